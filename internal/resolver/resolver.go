// Package resolver walks the configured price sources in priority order and
// guarantees a usable price table: callers never see an error, at worst they
// get the embedded fallback table tagged with its source.
package resolver

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/yusufdiallo1/Rizq-Trackr-sub001/internal/metrics"
	"github.com/yusufdiallo1/Rizq-Trackr-sub001/internal/pricing"
	"github.com/yusufdiallo1/Rizq-Trackr-sub001/internal/provider"
)

// DefaultAttemptTimeout bounds each adapter attempt.
const DefaultAttemptTimeout = 2 * time.Second

// Outcome classifies how a resolution terminated.
type Outcome string

const (
	// Resolved means a live adapter produced the table.
	Resolved Outcome = "resolved"
	// Degraded means every adapter failed and the static table was substituted.
	Degraded Outcome = "degraded"
)

// Options tune resolver behaviour.
type Options struct {
	AttemptTimeout time.Duration
}

// Resolver tries sources in a fixed priority order.
type Resolver struct {
	sources        []provider.Source
	attemptTimeout time.Duration
	logger         zerolog.Logger
}

// New constructs a Resolver over an ordered source list.
func New(sources []provider.Source, opts Options, logger zerolog.Logger) *Resolver {
	timeout := opts.AttemptTimeout
	if timeout <= 0 {
		timeout = DefaultAttemptTimeout
	}
	return &Resolver{
		sources:        sources,
		attemptTimeout: timeout,
		logger:         logger.With().Str("component", "resolver").Logger(),
	}
}

// Resolve returns the first successful source's table, or the static fallback
// table when every source fails. The error taxonomy is collapsed here: adapter
// failures are logged and consumed, never returned.
func (r *Resolver) Resolve(ctx context.Context) (pricing.PriceTable, Outcome) {
	for _, source := range r.sources {
		if !source.Available() {
			r.logger.Debug().Str("source", source.Name()).Msg("source unavailable, skipping")
			metrics.SourceAttempts.WithLabelValues(source.Name(), "skipped").Inc()
			continue
		}

		table, err := r.attempt(ctx, source)
		if err != nil {
			r.logger.Warn().Err(err).Str("source", source.Name()).Msg("source failed, advancing to next")
			metrics.SourceAttempts.WithLabelValues(source.Name(), "failure").Inc()
			continue
		}

		metrics.SourceAttempts.WithLabelValues(source.Name(), "success").Inc()
		r.logger.Info().Str("source", source.Name()).Msg("price table resolved")
		return table, Resolved
	}

	metrics.DegradedResolutions.Inc()
	r.logger.Warn().Msg("all sources failed, serving static fallback table")
	return provider.FallbackTable(time.Now().UTC()), Degraded
}

func (r *Resolver) attempt(ctx context.Context, source provider.Source) (pricing.PriceTable, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, r.attemptTimeout)
	defer cancel()

	start := time.Now()
	table, err := source.Fetch(attemptCtx)
	metrics.SourceLatency.WithLabelValues(source.Name()).Observe(time.Since(start).Seconds())
	if err != nil {
		return pricing.PriceTable{}, err
	}
	if err := table.Validate(); err != nil {
		return pricing.PriceTable{}, err
	}
	return table, nil
}
