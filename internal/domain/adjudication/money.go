package adjudication

import "github.com/shopspring/decimal"

var hundred = decimal.NewFromInt(100)

// RoundCents rounds an amount to cent precision, half away from zero
func RoundCents(amount decimal.Decimal) decimal.Decimal {
	return amount.Round(2)
}

// ApplyPercentage returns pct percent of amount, rounded to cents
func ApplyPercentage(amount, pct decimal.Decimal) decimal.Decimal {
	return RoundCents(amount.Mul(pct).Div(hundred))
}

// ValidPercentage reports whether pct lies in [0, 100]
func ValidPercentage(pct decimal.Decimal) bool {
	return !pct.IsNegative() && pct.LessThanOrEqual(hundred)
}

// Benefit is the remaining annual benefit for a patient on a plan. The zero value is a
// limited benefit of 0; use UnlimitedBenefit for plans without an annual limit.
type Benefit struct {
	Unlimited bool
	Amount    decimal.Decimal
}

// UnlimitedBenefit is the remaining benefit of a plan with no annual limit
func UnlimitedBenefit() Benefit {
	return Benefit{Unlimited: true}
}

// LimitedBenefit returns a finite remaining benefit, floored at zero
func LimitedBenefit(amount decimal.Decimal) Benefit {
	if amount.IsNegative() {
		amount = decimal.Zero
	}
	return Benefit{Amount: RoundCents(amount)}
}

// Cap returns the smaller of amount and the remaining benefit
func (b Benefit) Cap(amount decimal.Decimal) decimal.Decimal {
	if b.Unlimited || amount.LessThanOrEqual(b.Amount) {
		return amount
	}
	return b.Amount
}

// MarshalJSON renders an unlimited benefit as null
func (b Benefit) MarshalJSON() ([]byte, error) {
	if b.Unlimited {
		return []byte("null"), nil
	}
	return []byte(`"` + b.Amount.StringFixed(2) + `"`), nil
}
