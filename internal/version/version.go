// Package version carries build metadata stamped in via -ldflags.
package version

import "fmt"

var (
	// Version is the semantic version of the binary.
	Version = "dev"
	// Commit is the git commit hash the binary was built from.
	Commit = "unknown"
	// BuildDate is the build timestamp.
	BuildDate = "unknown"
)

// Info bundles the stamped values for display surfaces.
type Info struct {
	Version   string
	Commit    string
	BuildDate string
}

// Get returns the build metadata of the running binary.
func Get() Info {
	return Info{Version: Version, Commit: Commit, BuildDate: BuildDate}
}

// String renders the metadata in the one-line form used by the version command.
func (i Info) String() string {
	return fmt.Sprintf("rizqtrackr %s (commit %s, built %s)", i.Version, i.Commit, i.BuildDate)
}
