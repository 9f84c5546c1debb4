package app

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/yusufdiallo1/Rizq-Trackr-sub001/internal/alerting"
	"github.com/yusufdiallo1/Rizq-Trackr-sub001/internal/localstore"
	"github.com/yusufdiallo1/Rizq-Trackr-sub001/internal/prefs"
	"github.com/yusufdiallo1/Rizq-Trackr-sub001/internal/pricing"
)

// SimulateAlert replays an old/new per-gram price pair through the alert
// policy and, when it fires, through the configured delivery sink.
func (a *App) SimulateAlert(ctx context.Context, metal pricing.Metal, oldPrice, newPrice decimal.Decimal) error {
	if !metal.Valid() {
		return errors.New("metal must be gold or silver")
	}
	if !oldPrice.IsPositive() || !newPrice.IsPositive() {
		return errors.New("prices must be positive")
	}

	notifier := a.newNotifier()
	if notifier == nil {
		a.Logger.Warn().Msg("no delivery sink configured; decision will be logged only")
	}

	local, err := localstore.Open(a.Config.Local.Path)
	if err != nil {
		return err
	}
	prefsStore := prefs.New(local, nil, a.Logger)
	userPrefs := prefsStore.Load(ctx, a.Config.App.UserID)

	now := time.Now().UTC()
	prev := pricing.NewQuote(metal, userPrefs.Currency, oldPrice, now.Add(-time.Hour), "simulated")
	next := pricing.NewQuote(metal, userPrefs.Currency, newPrice, now, "simulated")
	next.Change = pricing.ComputeChange(&prev, next)

	policy := alerting.NewPolicy(a.Logger)
	note, fire := policy.PriceChange(next, userPrefs.NotificationsEnabled, userPrefs.AlertThresholdPercent)
	if !fire {
		a.Logger.Info().
			Str("change_pct", next.Change.Percent.String()).
			Str("threshold_pct", userPrefs.AlertThresholdPercent.String()).
			Msg("simulated change below threshold; no alert")
		return nil
	}

	a.Logger.Info().Str("title", note.Title).Msg("simulated alert fired")
	alerting.Dispatch(ctx, notifier, note, a.Logger)
	return nil
}
