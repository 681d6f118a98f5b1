package model

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Money is a fixed-precision decimal that, unlike Quantity and Price, is
// allowed to go negative. It exists for signed accounting quantities -
// realized PnL chief among them (spec.md §4.3) - that would otherwise
// have to fight Quantity/Price's non-negativity invariant.
type Money struct {
	value decimal.Decimal
	scale int32
}

// NewMoney wraps value at the given scale, truncating to it.
func NewMoney(value decimal.Decimal, scale int32) Money {
	return Money{value: value.Truncate(scale), scale: scale}
}

// ZeroMoney returns the additive identity at the given scale.
func ZeroMoney(scale int32) Money {
	return Money{value: decimal.Zero, scale: scale}
}

func (m Money) Decimal() decimal.Decimal { return m.value }
func (m Money) Scale() int32             { return m.scale }
func (m Money) IsZero() bool             { return m.value.IsZero() }

func (m Money) sameScale(o Money) error {
	if m.scale != o.scale {
		return fmt.Errorf("%w: %d vs %d", ErrPrecisionMismatch, m.scale, o.scale)
	}
	return nil
}

// Add returns m+o. Both must share a scale.
func (m Money) Add(o Money) (Money, error) {
	if err := m.sameScale(o); err != nil {
		return Money{}, err
	}
	return Money{value: m.value.Add(o.value), scale: m.scale}, nil
}

// Neg returns -m.
func (m Money) Neg() Money {
	return Money{value: m.value.Neg(), scale: m.scale}
}

// MulQuantity returns m*q, a scalar multiple used to turn a per-unit
// price difference into a total PnL amount.
func (m Money) MulQuantity(q Quantity) Money {
	return Money{value: m.value.Mul(q.value).Truncate(m.scale), scale: m.scale}
}

func (m Money) String() string { return m.value.StringFixed(m.scale) }

// MoneyFromPriceDiff builds the signed difference (a - b) as Money at a's
// scale, used to seed a PnL calculation from two Price values.
func MoneyFromPriceDiff(a, b Price) (Money, error) {
	if err := a.sameScale(b); err != nil {
		return Money{}, err
	}
	return Money{value: a.value.Sub(b.value), scale: a.scale}, nil
}
