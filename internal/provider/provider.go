package provider

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/yusufdiallo1/Rizq-Trackr-sub001/internal/pricing"
)

// Source is implemented once per upstream price provider. Implementations must
// honour the caller's context deadline, must not retry internally, and must
// fail rather than return zero or negative prices. Available reports whether
// the adapter has the credentials it needs; the resolver skips unavailable
// sources without spending an attempt.
type Source interface {
	Name() string
	Available() bool
	Fetch(ctx context.Context) (pricing.PriceTable, error)
}

// fallbackFiatRates gives units-per-USD multipliers used when a provider's
// payload does not carry its own exchange rates. Refreshed occasionally by hand.
var fallbackFiatRates = map[pricing.Currency]decimal.Decimal{
	pricing.USD: decimal.NewFromInt(1),
	pricing.GBP: decimal.NewFromFloat(0.79),
	pricing.AED: decimal.NewFromFloat(3.6725),
	pricing.SAR: decimal.NewFromFloat(3.75),
	pricing.EGP: decimal.NewFromFloat(48.6),
}

// fiatRate resolves a currency multiplier from provider rates, falling back to
// the embedded table for currencies the provider omits.
func fiatRate(rates map[pricing.Currency]decimal.Decimal, currency pricing.Currency) (decimal.Decimal, error) {
	if rates != nil {
		if rate, ok := rates[currency]; ok && rate.IsPositive() {
			return rate, nil
		}
	}
	rate, ok := fallbackFiatRates[currency]
	if !ok {
		return decimal.Decimal{}, fmt.Errorf("no exchange rate for %s", currency)
	}
	return rate, nil
}

// buildTable normalises USD-per-troy-ounce quotes into a full price table,
// applying the currency multipliers and rejecting non-positive inputs.
func buildTable(source string, perOunceUSD map[pricing.Metal]decimal.Decimal, rates map[pricing.Currency]decimal.Decimal, observedAt time.Time) (pricing.PriceTable, error) {
	table := pricing.NewTable(source, observedAt)
	for _, metal := range pricing.Metals() {
		ounce, ok := perOunceUSD[metal]
		if !ok {
			return pricing.PriceTable{}, fmt.Errorf("%s: missing %s quote", source, metal)
		}
		if !ounce.IsPositive() {
			return pricing.PriceTable{}, fmt.Errorf("%s: non-positive %s price %s", source, metal, ounce)
		}
		perGramUSD := ounce.Div(pricing.GramsPerTroyOunce)
		for _, currency := range pricing.Currencies() {
			rate, err := fiatRate(rates, currency)
			if err != nil {
				return pricing.PriceTable{}, fmt.Errorf("%s: %w", source, err)
			}
			table.Set(pricing.NewQuote(metal, currency, perGramUSD.Mul(rate), observedAt, source))
		}
	}
	if err := table.Validate(); err != nil {
		return pricing.PriceTable{}, fmt.Errorf("%s: %w", source, err)
	}
	return table, nil
}
