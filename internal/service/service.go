// Package service exposes the caller-facing price engine: price tables,
// conversions, Nisab thresholds, preferences, and the refresh cycle that ties
// resolution, history, and alerting together.
package service

import (
	"context"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/yusufdiallo1/Rizq-Trackr-sub001/internal/alerting"
	"github.com/yusufdiallo1/Rizq-Trackr-sub001/internal/history"
	"github.com/yusufdiallo1/Rizq-Trackr-sub001/internal/prefs"
	"github.com/yusufdiallo1/Rizq-Trackr-sub001/internal/pricecache"
	"github.com/yusufdiallo1/Rizq-Trackr-sub001/internal/pricing"
	"github.com/yusufdiallo1/Rizq-Trackr-sub001/internal/resolver"
	"github.com/yusufdiallo1/Rizq-Trackr-sub001/internal/storage"
)

// Cycle wraps the fallback resolver with the per-refresh bookkeeping: history
// diffing, sample auditing, and alert evaluation. It slots in as the cache's
// resolver so every step runs exactly once per cache fill and the cached
// table already carries its change annotations.
type Cycle struct {
	inner       pricecache.TableResolver
	history     *history.Store
	prefsStore  *prefs.Store
	policy      *alerting.Policy
	notifier    alerting.Notifier
	sampleStore storage.PriceSampleStore
	alertStore  storage.AlertStore
	logger      zerolog.Logger
	userID      string
}

// NewCycle builds the refresh cycle. sampleStore, alertStore, and notifier may
// be nil; the cycle degrades to in-memory operation without them.
func NewCycle(inner pricecache.TableResolver, hist *history.Store, prefsStore *prefs.Store, policy *alerting.Policy, notifier alerting.Notifier, sampleStore storage.PriceSampleStore, alertStore storage.AlertStore, userID string, logger zerolog.Logger) *Cycle {
	return &Cycle{
		inner:       inner,
		history:     hist,
		prefsStore:  prefsStore,
		policy:      policy,
		notifier:    notifier,
		sampleStore: sampleStore,
		alertStore:  alertStore,
		logger:      logger.With().Str("component", "refresh_cycle").Logger(),
		userID:      userID,
	}
}

// Resolve runs one full refresh: resolve, then on a live result diff history,
// audit samples, and evaluate price-change alerts; the daily update is
// evaluated on every fill. Fallback tables never touch history.
func (c *Cycle) Resolve(ctx context.Context) (pricing.PriceTable, resolver.Outcome) {
	table, outcome := c.inner.Resolve(ctx)

	userPrefs := c.prefsStore.Load(ctx, c.userID)

	if outcome == resolver.Resolved {
		table = c.history.Record(table)
		c.auditSamples(ctx, table)
		c.evaluatePriceChanges(ctx, table, userPrefs)
	}

	c.evaluateDailyUpdate(ctx, table, userPrefs)
	return table, outcome
}

func (c *Cycle) auditSamples(ctx context.Context, table pricing.PriceTable) {
	if c.sampleStore == nil {
		return
	}
	for _, metal := range pricing.Metals() {
		for _, currency := range pricing.Currencies() {
			quote, ok := table.Quote(metal, currency)
			if !ok {
				continue
			}

			sample := storage.PriceSample{
				Metal:         string(metal),
				Currency:      string(currency),
				PricePerGram:  quote.PricePerGram,
				PricePerOunce: quote.PricePerOunce,
				Source:        quote.Source,
				ObservedAt:    quote.ObservedAt,
			}
			if quote.Change != nil {
				change := quote.Change.Percent
				direction := string(quote.Change.Direction)
				sample.ChangePercent = &change
				sample.Direction = &direction
			}

			if err := c.sampleStore.InsertPriceSample(ctx, sample); err != nil {
				c.logger.Error().Err(err).
					Str("metal", string(metal)).
					Str("currency", string(currency)).
					Msg("failed to persist price sample")
			}
		}
	}
}

func (c *Cycle) evaluatePriceChanges(ctx context.Context, table pricing.PriceTable, userPrefs prefs.UserPreferences) {
	for _, metal := range pricing.Metals() {
		quote, ok := table.Quote(metal, userPrefs.Currency)
		if !ok {
			continue
		}

		note, fire := c.policy.PriceChange(quote, userPrefs.NotificationsEnabled, userPrefs.AlertThresholdPercent)
		if !fire {
			continue
		}

		c.auditAlert(ctx, note, userPrefs)
		alerting.Dispatch(ctx, c.notifier, note, c.logger)
	}
}

func (c *Cycle) evaluateDailyUpdate(ctx context.Context, table pricing.PriceTable, userPrefs prefs.UserPreferences) {
	last := userPrefs.LastNotifiedAt[alerting.CategoryDailyUpdate]
	note, firedAt, fire := c.policy.DailyUpdate(table, userPrefs.Currency, last, userPrefs.NotificationsEnabled)
	if !fire {
		return
	}

	// The timestamp advances regardless of delivery success.
	c.prefsStore.MarkNotified(ctx, userPrefs.UserID, alerting.CategoryDailyUpdate, firedAt)
	c.auditAlert(ctx, note, userPrefs)
	alerting.Dispatch(ctx, c.notifier, note, c.logger)
}

func (c *Cycle) auditAlert(ctx context.Context, note alerting.Notification, userPrefs prefs.UserPreferences) {
	if c.alertStore == nil {
		return
	}

	record := storage.AlertRecord{
		UserID:           userPrefs.UserID,
		Category:         note.Category,
		Metal:            string(note.Metal),
		Currency:         string(note.Currency),
		ChangePercent:    note.ChangePct,
		ThresholdPercent: userPrefs.AlertThresholdPercent,
		Direction:        string(note.Direction),
		Message:          note.Body,
	}
	if _, err := c.alertStore.InsertAlert(ctx, record); err != nil {
		c.logger.Error().Err(err).Str("category", note.Category).Msg("failed to persist alert record")
	}
}

var _ pricecache.TableResolver = (*Cycle)(nil)

// Engine is the caller-facing API consumed by the HTTP server and CLI.
type Engine struct {
	cache      *pricecache.Cache
	prefsStore *prefs.Store
	policy     *alerting.Policy
	notifier   alerting.Notifier
	alertStore storage.AlertStore
	logger     zerolog.Logger
	userID     string
}

// New constructs the engine over a cache that has been wired with a Cycle.
func New(cache *pricecache.Cache, prefsStore *prefs.Store, policy *alerting.Policy, notifier alerting.Notifier, alertStore storage.AlertStore, userID string, logger zerolog.Logger) *Engine {
	return &Engine{
		cache:      cache,
		prefsStore: prefsStore,
		policy:     policy,
		notifier:   notifier,
		alertStore: alertStore,
		logger:     logger.With().Str("component", "engine").Logger(),
		userID:     userID,
	}
}

// PriceTable returns the current table. It never returns an error: a degraded
// table is still a valid table.
func (e *Engine) PriceTable(ctx context.Context) pricing.PriceTable {
	table, _ := e.cache.Get(ctx)
	return table
}

// Refresh busts the cache TTL and forces a full refresh cycle.
func (e *Engine) Refresh(ctx context.Context) pricing.PriceTable {
	table, _ := e.cache.Refresh(ctx)
	return table
}

// Convert values a holding against the current price table.
func (e *Engine) Convert(ctx context.Context, metal pricing.Metal, amount decimal.Decimal, unit pricing.Unit, currency pricing.Currency) (decimal.Decimal, error) {
	return pricing.Convert(e.PriceTable(ctx), metal, amount, unit, currency)
}

// Nisab returns the monetary thresholds for both metals in one currency.
func (e *Engine) Nisab(ctx context.Context, currency pricing.Currency) (map[pricing.Metal]pricing.NisabThreshold, error) {
	table := e.PriceTable(ctx)

	thresholds := make(map[pricing.Metal]pricing.NisabThreshold, len(pricing.Metals()))
	for _, metal := range pricing.Metals() {
		threshold, err := pricing.Nisab(table, metal, currency)
		if err != nil {
			return nil, err
		}
		thresholds[metal] = threshold
	}
	return thresholds, nil
}

// CheckNisabCrossing evaluates the edge-triggered Nisab alert for a holding
// transition and reports whether the new holding meets Nisab.
func (e *Engine) CheckNisabCrossing(ctx context.Context, metal pricing.Metal, prevAmount, newAmount decimal.Decimal, unit pricing.Unit) (bool, error) {
	prevGrams, err := pricing.ToGrams(prevAmount, unit)
	if err != nil {
		return false, err
	}
	newGrams, err := pricing.ToGrams(newAmount, unit)
	if err != nil {
		return false, err
	}

	userPrefs := e.prefsStore.Load(ctx, e.userID)
	note, fire := e.policy.NisabCrossing(metal, prevGrams, newGrams, userPrefs.NotificationsEnabled)
	if fire {
		if e.alertStore != nil {
			record := storage.AlertRecord{
				UserID:           userPrefs.UserID,
				Category:         note.Category,
				Metal:            string(note.Metal),
				ThresholdPercent: userPrefs.AlertThresholdPercent,
				Message:          note.Body,
			}
			if _, err := e.alertStore.InsertAlert(ctx, record); err != nil {
				e.logger.Error().Err(err).Str("category", note.Category).Msg("failed to persist alert record")
			}
		}
		alerting.Dispatch(ctx, e.notifier, note, e.logger)
	}

	return newGrams.GreaterThanOrEqual(pricing.NisabWeight(metal)), nil
}

// Preferences returns the engine user's current settings.
func (e *Engine) Preferences(ctx context.Context) prefs.UserPreferences {
	return e.prefsStore.Load(ctx, e.userID)
}

// SetPreferences saves settings through the local-first path.
func (e *Engine) SetPreferences(ctx context.Context, p prefs.UserPreferences) error {
	if p.UserID == "" {
		p.UserID = e.userID
	}
	return e.prefsStore.Save(ctx, p)
}
