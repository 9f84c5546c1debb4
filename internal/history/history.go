// Package history keeps the last live quote per (metal, currency) across
// restarts and derives price changes from it.
package history

import (
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/yusufdiallo1/Rizq-Trackr-sub001/internal/localstore"
	"github.com/yusufdiallo1/Rizq-Trackr-sub001/internal/pricing"
)

const storeKey = "price_history"

// Store guards the per-key read-then-write with a single mutex so a change is
// always computed against the pre-write value, even under concurrent refreshes.
type Store struct {
	mu      sync.Mutex
	local   *localstore.Store
	logger  zerolog.Logger
	entries map[string]pricing.PriceQuote
}

// New loads persisted history; a missing or unreadable record starts empty.
func New(local *localstore.Store, logger zerolog.Logger) *Store {
	s := &Store{
		local:   local,
		logger:  logger.With().Str("component", "price_history").Logger(),
		entries: make(map[string]pricing.PriceQuote),
	}

	if local != nil {
		if _, err := local.Get(storeKey, &s.entries); err != nil {
			s.logger.Warn().Err(err).Msg("failed to load price history, starting empty")
			s.entries = make(map[string]pricing.PriceQuote)
		}
	}
	return s
}

// Record diffs a live table against stored history, annotates each quote with
// its change, and overwrites the stored entries. Callers must not pass
// fallback tables; those are not observations.
func (s *Store) Record(table pricing.PriceTable) pricing.PriceTable {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, metal := range pricing.Metals() {
		for _, currency := range pricing.Currencies() {
			quote, ok := table.Quote(metal, currency)
			if !ok {
				continue
			}

			var prev *pricing.PriceQuote
			if stored, ok := s.entries[entryKey(metal, currency)]; ok {
				prev = &stored
			}
			quote.Change = pricing.ComputeChange(prev, quote)

			table.Set(quote)
			s.entries[entryKey(metal, currency)] = quote
		}
	}

	s.saveLocked()
	return table
}

// Last returns the stored quote for a key, if any.
func (s *Store) Last(metal pricing.Metal, currency pricing.Currency) (pricing.PriceQuote, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	quote, ok := s.entries[entryKey(metal, currency)]
	return quote, ok
}

func (s *Store) saveLocked() {
	if s.local == nil {
		return
	}
	if err := s.local.Put(storeKey, s.entries); err != nil {
		// Persistence is best effort; the in-memory history stays authoritative.
		s.logger.Error().Err(err).Msg("failed to persist price history")
	}
}

func entryKey(metal pricing.Metal, currency pricing.Currency) string {
	return fmt.Sprintf("%s/%s", metal, currency)
}
