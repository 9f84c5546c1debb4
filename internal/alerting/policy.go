// Package alerting decides whether notifications should fire. Delivery is a
// separate concern: a failed send never rolls back a decision.
package alerting

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/yusufdiallo1/Rizq-Trackr-sub001/internal/pricing"
)

// Notification categories; daily-update cooldown state is keyed by these.
const (
	CategoryPriceChange = "price_change"
	CategoryNisab       = "nisab_crossing"
	CategoryDailyUpdate = "daily_update"
)

// DailyUpdateCooldown suppresses repeat daily-update notifications.
const DailyUpdateCooldown = 24 * time.Hour

// Policy evaluates alert triggers against user preferences.
type Policy struct {
	logger zerolog.Logger
	now    func() time.Time
}

// NewPolicy constructs an alert policy.
func NewPolicy(logger zerolog.Logger) *Policy {
	return &Policy{
		logger: logger.With().Str("component", "alert_policy").Logger(),
		now:    time.Now,
	}
}

// PriceChange fires when a quote's change magnitude meets the user threshold
// and notifications are enabled. Evaluated once per refresh cycle per key, so
// no cooldown applies.
func (p *Policy) PriceChange(quote pricing.PriceQuote, enabled bool, thresholdPct decimal.Decimal) (Notification, bool) {
	if !enabled || quote.Change == nil {
		return Notification{}, false
	}
	if quote.Change.Percent.LessThan(thresholdPct) {
		return Notification{}, false
	}

	verb := "rose"
	if quote.Change.Direction == pricing.Down {
		verb = "fell"
	}

	p.logger.Debug().
		Str("metal", string(quote.Metal)).
		Str("currency", string(quote.Currency)).
		Str("change_pct", quote.Change.Percent.String()).
		Msg("price change alert fired")

	return Notification{
		Category: CategoryPriceChange,
		Title:    fmt.Sprintf("%s price %s %s%%", titleMetal(quote.Metal), verb, quote.Change.Percent.StringFixed(2)),
		Body: fmt.Sprintf("%s is now %s %s per gram (%s per ounce), %s %s%% since the last check.",
			titleMetal(quote.Metal),
			quote.PricePerGram.StringFixed(2), quote.Currency,
			quote.PricePerOunce.StringFixed(2),
			verb, quote.Change.Percent.StringFixed(2)),
		Metal:     quote.Metal,
		Currency:  quote.Currency,
		ChangePct: quote.Change.Percent,
		Direction: quote.Change.Direction,
	}, true
}

// NisabCrossing is edge-triggered: it fires only on the transition from below
// to at-or-above the threshold weight, and re-arms once the holding drops
// back below. Weights are compared, never monetary values.
func (p *Policy) NisabCrossing(metal pricing.Metal, prevGrams, newGrams decimal.Decimal, enabled bool) (Notification, bool) {
	if !enabled {
		return Notification{}, false
	}

	threshold := pricing.NisabWeight(metal)
	wasBelow := prevGrams.LessThan(threshold)
	isAtOrAbove := newGrams.GreaterThanOrEqual(threshold)
	if !wasBelow || !isAtOrAbove {
		return Notification{}, false
	}

	p.logger.Debug().
		Str("metal", string(metal)).
		Str("weight_grams", newGrams.String()).
		Msg("nisab crossing alert fired")

	return Notification{
		Category: CategoryNisab,
		Title:    fmt.Sprintf("%s holdings reached Nisab", titleMetal(metal)),
		Body: fmt.Sprintf("Your %s holdings of %s g now meet the Nisab threshold of %s g. Zakat may be due.",
			metal, newGrams.StringFixed(2), threshold.StringFixed(2)),
		Metal: metal,
	}, true
}

// DailyUpdate fires at most once per cooldown window per category. The caller
// persists the returned firing time as the new LastNotifiedAt even when
// delivery later fails.
func (p *Policy) DailyUpdate(table pricing.PriceTable, currency pricing.Currency, lastNotified time.Time, enabled bool) (Notification, time.Time, bool) {
	if !enabled {
		return Notification{}, time.Time{}, false
	}

	now := p.now().UTC()
	if !lastNotified.IsZero() && now.Sub(lastNotified) < DailyUpdateCooldown {
		return Notification{}, time.Time{}, false
	}

	gold, goldOK := table.Quote(pricing.Gold, currency)
	silver, silverOK := table.Quote(pricing.Silver, currency)
	if !goldOK || !silverOK {
		return Notification{}, time.Time{}, false
	}

	return Notification{
		Category: CategoryDailyUpdate,
		Title:    "Daily metals update",
		Body: fmt.Sprintf("Gold: %s %s/g. Silver: %s %s/g.",
			gold.PricePerGram.StringFixed(2), currency,
			silver.PricePerGram.StringFixed(2), currency),
		Currency: currency,
	}, now, true
}

func titleMetal(metal pricing.Metal) string {
	if metal == pricing.Silver {
		return "Silver"
	}
	return "Gold"
}
