package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/yusufdiallo1/Rizq-Trackr-sub001/internal/app"
)

var (
	exportMetal     string
	exportCurrency  string
	exportFrom      string
	exportTo        string
	exportCSVPath   string
	exportPNGPath   string
	exportMaxPoints int
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export persisted price samples as CSV and/or PNG",
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := app.ExportOptions{
			Metal:     exportMetal,
			Currency:  exportCurrency,
			CSVPath:   exportCSVPath,
			PNGPath:   exportPNGPath,
			MaxPoints: exportMaxPoints,
		}

		if exportFrom != "" {
			from, err := time.Parse(time.RFC3339, exportFrom)
			if err != nil {
				return fmt.Errorf("parse --from: %w", err)
			}
			opts.From = &from
		}
		if exportTo != "" {
			to, err := time.Parse(time.RFC3339, exportTo)
			if err != nil {
				return fmt.Errorf("parse --to: %w", err)
			}
			opts.To = &to
		}

		return getApp().Export(cmd.Context(), opts)
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportMetal, "metal", "gold", "Metal to export (gold or silver)")
	exportCmd.Flags().StringVar(&exportCurrency, "currency", "USD", "Currency to export")
	exportCmd.Flags().StringVar(&exportFrom, "from", "", "Window start (RFC3339)")
	exportCmd.Flags().StringVar(&exportTo, "to", "", "Window end (RFC3339)")
	exportCmd.Flags().StringVar(&exportCSVPath, "csv", "", "CSV output path")
	exportCmd.Flags().StringVar(&exportPNGPath, "png", "", "PNG output path")
	exportCmd.Flags().IntVar(&exportMaxPoints, "max-points", 0, "Maximum data points (defaults to config)")
}
