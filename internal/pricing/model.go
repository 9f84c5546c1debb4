package pricing

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// GramsPerTroyOunce is the conversion constant used for all ounce/gram math.
var GramsPerTroyOunce = decimal.NewFromFloat(31.1034768)

// Metal identifies a tracked precious metal.
type Metal string

const (
	Gold   Metal = "gold"
	Silver Metal = "silver"
)

// Metals lists supported metals in a stable order.
func Metals() []Metal {
	return []Metal{Gold, Silver}
}

// Symbol returns the ISO 4217 metal code used by upstream providers.
func (m Metal) Symbol() string {
	switch m {
	case Gold:
		return "XAU"
	case Silver:
		return "XAG"
	}
	return ""
}

// Valid reports whether the metal is one of the supported values.
func (m Metal) Valid() bool {
	return m == Gold || m == Silver
}

// Currency is one of the fixed set of supported quote currencies.
type Currency string

const (
	USD Currency = "USD"
	GBP Currency = "GBP"
	AED Currency = "AED"
	SAR Currency = "SAR"
	EGP Currency = "EGP"
)

// Currencies lists supported currencies in a stable order.
func Currencies() []Currency {
	return []Currency{USD, GBP, AED, SAR, EGP}
}

// Valid reports whether the currency is supported.
func (c Currency) Valid() bool {
	switch c {
	case USD, GBP, AED, SAR, EGP:
		return true
	}
	return false
}

// Direction classifies a price movement.
type Direction string

const (
	Up      Direction = "up"
	Down    Direction = "down"
	Neutral Direction = "neutral"
)

// PriceChange describes the move relative to the previous observation for the
// same (metal, currency) key. Absent on first observation.
type PriceChange struct {
	Percent   decimal.Decimal `json:"percent"`
	Direction Direction       `json:"direction"`
}

// PriceQuote is an immutable observation of a metal price in one currency.
type PriceQuote struct {
	Metal         Metal           `json:"metal"`
	Currency      Currency        `json:"currency"`
	PricePerGram  decimal.Decimal `json:"price_per_gram"`
	PricePerOunce decimal.Decimal `json:"price_per_ounce"`
	ObservedAt    time.Time       `json:"observed_at"`
	Source        string          `json:"source"`
	Change        *PriceChange    `json:"change,omitempty"`
}

// NewQuote builds a quote from a per-gram price, deriving the ounce price.
func NewQuote(metal Metal, currency Currency, perGram decimal.Decimal, observedAt time.Time, source string) PriceQuote {
	return PriceQuote{
		Metal:         metal,
		Currency:      currency,
		PricePerGram:  perGram,
		PricePerOunce: perGram.Mul(GramsPerTroyOunce),
		ObservedAt:    observedAt,
		Source:        source,
	}
}

// Validate rejects non-positive prices and gram/ounce mismatches.
func (q PriceQuote) Validate() error {
	if !q.Metal.Valid() {
		return fmt.Errorf("quote has unknown metal %q", q.Metal)
	}
	if !q.Currency.Valid() {
		return fmt.Errorf("quote has unknown currency %q", q.Currency)
	}
	if !q.PricePerGram.IsPositive() {
		return fmt.Errorf("%s/%s price per gram must be positive, got %s", q.Metal, q.Currency, q.PricePerGram)
	}
	if !q.PricePerOunce.IsPositive() {
		return fmt.Errorf("%s/%s price per ounce must be positive, got %s", q.Metal, q.Currency, q.PricePerOunce)
	}
	expected := q.PricePerGram.Mul(GramsPerTroyOunce)
	tolerance := expected.Abs().Mul(decimal.NewFromFloat(1e-6))
	if q.PricePerOunce.Sub(expected).Abs().GreaterThan(tolerance) {
		return fmt.Errorf("%s/%s ounce price %s inconsistent with gram price %s", q.Metal, q.Currency, q.PricePerOunce, q.PricePerGram)
	}
	return nil
}

// PriceTable is a full snapshot of quotes for every metal and currency.
type PriceTable struct {
	Quotes    map[Metal]map[Currency]PriceQuote `json:"quotes"`
	FetchedAt time.Time                         `json:"fetched_at"`
	Source    string                            `json:"source"`
}

// NewTable allocates an empty table tagged with a source.
func NewTable(source string, fetchedAt time.Time) PriceTable {
	quotes := make(map[Metal]map[Currency]PriceQuote, len(Metals()))
	for _, metal := range Metals() {
		quotes[metal] = make(map[Currency]PriceQuote, len(Currencies()))
	}
	return PriceTable{Quotes: quotes, FetchedAt: fetchedAt, Source: source}
}

// Set stores a quote under its (metal, currency) key.
func (t PriceTable) Set(q PriceQuote) {
	if t.Quotes[q.Metal] == nil {
		t.Quotes[q.Metal] = make(map[Currency]PriceQuote)
	}
	t.Quotes[q.Metal][q.Currency] = q
}

// Quote returns the stored quote for a key.
func (t PriceTable) Quote(metal Metal, currency Currency) (PriceQuote, bool) {
	byCurrency, ok := t.Quotes[metal]
	if !ok {
		return PriceQuote{}, false
	}
	q, ok := byCurrency[currency]
	return q, ok
}

// Validate checks the table covers every key with consistent positive prices.
func (t PriceTable) Validate() error {
	for _, metal := range Metals() {
		for _, currency := range Currencies() {
			q, ok := t.Quote(metal, currency)
			if !ok {
				return fmt.Errorf("table missing quote for %s/%s", metal, currency)
			}
			if err := q.Validate(); err != nil {
				return err
			}
		}
	}
	return nil
}
