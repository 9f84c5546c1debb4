package history

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/yusufdiallo1/Rizq-Trackr-sub001/internal/localstore"
	"github.com/yusufdiallo1/Rizq-Trackr-sub001/internal/pricing"
)

func liveTable(t *testing.T, goldPerGram string, observedAt time.Time) pricing.PriceTable {
	t.Helper()
	gold, err := decimal.NewFromString(goldPerGram)
	if err != nil {
		t.Fatalf("parse price: %v", err)
	}
	table := pricing.NewTable("goldapi", observedAt)
	for _, currency := range pricing.Currencies() {
		table.Set(pricing.NewQuote(pricing.Gold, currency, gold, observedAt, "goldapi"))
		table.Set(pricing.NewQuote(pricing.Silver, currency, decimal.NewFromFloat(1.2), observedAt, "goldapi"))
	}
	return table
}

func TestRecordFirstObservationHasNoChange(t *testing.T) {
	store := New(nil, zerolog.Nop())

	annotated := store.Record(liveTable(t, "100", time.Now().UTC()))
	quote, _ := annotated.Quote(pricing.Gold, pricing.USD)
	if quote.Change != nil {
		t.Fatalf("first observation should carry no change, got %+v", quote.Change)
	}

	if _, ok := store.Last(pricing.Gold, pricing.USD); !ok {
		t.Fatal("recorded quote should be retrievable")
	}
}

func TestRecordSecondObservationAnnotatesChange(t *testing.T) {
	store := New(nil, zerolog.Nop())
	base := time.Now().UTC()

	store.Record(liveTable(t, "100", base))
	annotated := store.Record(liveTable(t, "103", base.Add(time.Hour)))

	quote, _ := annotated.Quote(pricing.Gold, pricing.USD)
	if quote.Change == nil {
		t.Fatal("second observation should carry a change")
	}
	if !quote.Change.Percent.Equal(decimal.NewFromInt(3)) {
		t.Fatalf("expected 3%%, got %s", quote.Change.Percent)
	}
	if quote.Change.Direction != pricing.Up {
		t.Fatalf("expected direction up, got %s", quote.Change.Direction)
	}

	// The stored quote is the newest one; the next diff is against 103.
	last, _ := store.Last(pricing.Gold, pricing.USD)
	if !last.PricePerGram.Equal(decimal.NewFromInt(103)) {
		t.Fatalf("history not advanced, last is %s", last.PricePerGram)
	}
}

func TestHistorySurvivesRestart(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	base := time.Now().UTC().Truncate(time.Second)

	local, err := localstore.Open(path)
	if err != nil {
		t.Fatalf("open localstore: %v", err)
	}
	New(local, zerolog.Nop()).Record(liveTable(t, "100", base))

	reopened, err := localstore.Open(path)
	if err != nil {
		t.Fatalf("reopen localstore: %v", err)
	}
	store := New(reopened, zerolog.Nop())

	last, ok := store.Last(pricing.Gold, pricing.USD)
	if !ok {
		t.Fatal("history lost across restart")
	}
	if !last.PricePerGram.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("expected persisted price 100, got %s", last.PricePerGram)
	}

	annotated := store.Record(liveTable(t, "98", base.Add(2*time.Hour)))
	quote, _ := annotated.Quote(pricing.Gold, pricing.USD)
	if quote.Change == nil || quote.Change.Direction != pricing.Down {
		t.Fatalf("expected downward change against persisted history, got %+v", quote.Change)
	}
	if !quote.Change.Percent.Equal(decimal.NewFromInt(2)) {
		t.Fatalf("expected 2%%, got %s", quote.Change.Percent)
	}
}
