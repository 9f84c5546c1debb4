package pricing

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Nisab weight thresholds in grams, per classical jurisprudence.
var (
	NisabWeightGold   = decimal.NewFromFloat(87.48)
	NisabWeightSilver = decimal.NewFromFloat(612.36)
)

// NisabWeight returns the fixed threshold weight for a metal.
func NisabWeight(metal Metal) decimal.Decimal {
	if metal == Silver {
		return NisabWeightSilver
	}
	return NisabWeightGold
}

// NisabThreshold is the monetary Zakat-eligibility threshold for one metal in
// one currency. Derived from the current price, never persisted.
type NisabThreshold struct {
	Metal                Metal           `json:"metal"`
	Currency             Currency        `json:"currency"`
	ThresholdWeightGrams decimal.Decimal `json:"threshold_weight_grams"`
	MonetaryValue        decimal.Decimal `json:"monetary_value"`
}

// Nisab computes the threshold for a metal/currency from the current table.
func Nisab(table PriceTable, metal Metal, currency Currency) (NisabThreshold, error) {
	quote, ok := table.Quote(metal, currency)
	if !ok {
		return NisabThreshold{}, fmt.Errorf("no quote for %s/%s", metal, currency)
	}
	weight := NisabWeight(metal)
	return NisabThreshold{
		Metal:                metal,
		Currency:             currency,
		ThresholdWeightGrams: weight,
		MonetaryValue:        weight.Mul(quote.PricePerGram),
	}, nil
}

// MeetsNisab compares holding weight against the fixed threshold weight.
// Weights are compared directly so currency rounding can never flip the result.
func MeetsNisab(metal Metal, amount decimal.Decimal, unit Unit) (bool, error) {
	grams, err := ToGrams(amount, unit)
	if err != nil {
		return false, err
	}
	return grams.GreaterThanOrEqual(NisabWeight(metal)), nil
}
