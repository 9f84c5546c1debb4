package pricing

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Unit is the weight unit a caller expresses holdings in.
type Unit string

const (
	Grams      Unit = "grams"
	TroyOunces Unit = "toz"
)

// ToGrams normalises an amount in the given unit to grams.
func ToGrams(amount decimal.Decimal, unit Unit) (decimal.Decimal, error) {
	switch unit {
	case Grams, "":
		return amount, nil
	case TroyOunces:
		return amount.Mul(GramsPerTroyOunce), nil
	}
	return decimal.Decimal{}, fmt.Errorf("unknown weight unit %q", unit)
}

// Convert values a holding of the given metal against the table's per-gram price.
func Convert(table PriceTable, metal Metal, amount decimal.Decimal, unit Unit, currency Currency) (decimal.Decimal, error) {
	grams, err := ToGrams(amount, unit)
	if err != nil {
		return decimal.Decimal{}, err
	}
	quote, ok := table.Quote(metal, currency)
	if !ok {
		return decimal.Decimal{}, fmt.Errorf("no quote for %s/%s", metal, currency)
	}
	return grams.Mul(quote.PricePerGram), nil
}

// ComputeChange derives the movement of next relative to prev. Both quotes must
// share a key; callers pass nil prev on first observation and get nil back.
func ComputeChange(prev *PriceQuote, next PriceQuote) *PriceChange {
	if prev == nil || !prev.PricePerGram.IsPositive() {
		return nil
	}
	diff := next.PricePerGram.Sub(prev.PricePerGram)
	percent := diff.Abs().Div(prev.PricePerGram).Mul(decimal.NewFromInt(100))

	direction := Neutral
	switch diff.Sign() {
	case 1:
		direction = Up
	case -1:
		direction = Down
	}
	return &PriceChange{Percent: percent, Direction: direction}
}
