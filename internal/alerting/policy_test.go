package alerting

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/yusufdiallo1/Rizq-Trackr-sub001/internal/pricing"
)

func quoteWithChange(percent string, direction pricing.Direction) pricing.PriceQuote {
	quote := pricing.NewQuote(pricing.Gold, pricing.USD, decimal.NewFromInt(100), time.Now().UTC(), "test")
	if percent != "" {
		quote.Change = &pricing.PriceChange{
			Percent:   decimal.RequireFromString(percent),
			Direction: direction,
		}
	}
	return quote
}

func TestPriceChangeRequiresEnabledNotifications(t *testing.T) {
	policy := NewPolicy(zerolog.Nop())

	if _, fired := policy.PriceChange(quoteWithChange("5", pricing.Up), false, decimal.NewFromInt(2)); fired {
		t.Fatal("disabled notifications must never fire")
	}
}

func TestPriceChangeThresholdBoundary(t *testing.T) {
	policy := NewPolicy(zerolog.Nop())
	threshold := decimal.NewFromInt(2)

	if _, fired := policy.PriceChange(quoteWithChange("1.99", pricing.Up), true, threshold); fired {
		t.Fatal("change below threshold must not fire")
	}
	note, fired := policy.PriceChange(quoteWithChange("2", pricing.Up), true, threshold)
	if !fired {
		t.Fatal("change at threshold must fire")
	}
	if note.Category != CategoryPriceChange {
		t.Fatalf("expected category %q, got %q", CategoryPriceChange, note.Category)
	}
	if note.Direction != pricing.Up {
		t.Fatalf("expected direction up, got %s", note.Direction)
	}
}

func TestPriceChangeIgnoresFirstObservation(t *testing.T) {
	policy := NewPolicy(zerolog.Nop())

	if _, fired := policy.PriceChange(quoteWithChange("", ""), true, decimal.Zero); fired {
		t.Fatal("a quote without a change must not fire")
	}
}

func TestNisabCrossingEdgeTriggered(t *testing.T) {
	policy := NewPolicy(zerolog.Nop())
	below := decimal.NewFromInt(80)
	above := decimal.NewFromInt(90)

	note, fired := policy.NisabCrossing(pricing.Gold, below, above, true)
	if !fired {
		t.Fatal("below-to-above transition must fire")
	}
	if note.Category != CategoryNisab {
		t.Fatalf("expected category %q, got %q", CategoryNisab, note.Category)
	}

	if _, fired := policy.NisabCrossing(pricing.Gold, above, above.Add(decimal.NewFromInt(10)), true); fired {
		t.Fatal("staying above the threshold must not re-fire")
	}
	if _, fired := policy.NisabCrossing(pricing.Gold, above, below, true); fired {
		t.Fatal("dropping below the threshold must not fire")
	}
	// Re-armed after dropping below.
	if _, fired := policy.NisabCrossing(pricing.Gold, below, above, true); !fired {
		t.Fatal("crossing again after re-arming must fire")
	}
}

func TestNisabCrossingExactThreshold(t *testing.T) {
	policy := NewPolicy(zerolog.Nop())
	threshold := pricing.NisabWeightGold

	if _, fired := policy.NisabCrossing(pricing.Gold, threshold.Sub(decimal.NewFromInt(1)), threshold, true); !fired {
		t.Fatal("landing exactly on the threshold counts as a crossing")
	}
	if _, fired := policy.NisabCrossing(pricing.Gold, decimal.Zero, threshold, false); fired {
		t.Fatal("disabled notifications must never fire")
	}
}

func testDailyTable() pricing.PriceTable {
	table := pricing.NewTable("test", time.Now().UTC())
	for _, currency := range pricing.Currencies() {
		table.Set(pricing.NewQuote(pricing.Gold, currency, decimal.NewFromInt(100), table.FetchedAt, "test"))
		table.Set(pricing.NewQuote(pricing.Silver, currency, decimal.NewFromFloat(1.2), table.FetchedAt, "test"))
	}
	return table
}

func TestDailyUpdateCooldown(t *testing.T) {
	policy := NewPolicy(zerolog.Nop())
	now := time.Date(2026, 9, 1, 9, 0, 0, 0, time.UTC)
	policy.now = func() time.Time { return now }

	note, firedAt, fired := policy.DailyUpdate(testDailyTable(), pricing.USD, time.Time{}, true)
	if !fired {
		t.Fatal("never-notified user must get a daily update")
	}
	if note.Category != CategoryDailyUpdate {
		t.Fatalf("expected category %q, got %q", CategoryDailyUpdate, note.Category)
	}
	if !firedAt.Equal(now) {
		t.Fatalf("expected firing time %s, got %s", now, firedAt)
	}

	if _, _, fired := policy.DailyUpdate(testDailyTable(), pricing.USD, now.Add(-23*time.Hour), true); fired {
		t.Fatal("23 hours after the last update must be suppressed")
	}
	if _, _, fired := policy.DailyUpdate(testDailyTable(), pricing.USD, now.Add(-25*time.Hour), true); !fired {
		t.Fatal("25 hours after the last update must fire")
	}
	if _, _, fired := policy.DailyUpdate(testDailyTable(), pricing.USD, time.Time{}, false); fired {
		t.Fatal("disabled notifications must never fire")
	}
}
