package model

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// ErrPrecisionMismatch is returned when arithmetic is attempted between two
// Quantity or Price values carrying different scales.
var ErrPrecisionMismatch = errors.New("model: precision mismatch")

// ErrNegative is returned when a Quantity or Price would become negative.
var ErrNegative = errors.New("model: value must be non-negative")

// Quantity is a non-negative decimal carrying a fixed precision (the number
// of digits after the decimal point). Two Quantity values can only be
// compared or combined when their scales match; comparisons are always
// performed on the canonical integer representation (value * 10^scale),
// never on floating point.
type Quantity struct {
	value decimal.Decimal
	scale int32
}

// NewQuantity builds a Quantity at the given scale, rejecting negative
// values.
func NewQuantity(value decimal.Decimal, scale int32) (Quantity, error) {
	if value.IsNegative() {
		return Quantity{}, fmt.Errorf("%w: quantity %s", ErrNegative, value)
	}
	return Quantity{value: value.Truncate(scale), scale: scale}, nil
}

// ZeroQuantity returns the additive identity at the given scale.
func ZeroQuantity(scale int32) Quantity {
	return Quantity{value: decimal.Zero, scale: scale}
}

func (q Quantity) Decimal() decimal.Decimal { return q.value }
func (q Quantity) Scale() int32             { return q.scale }
func (q Quantity) IsZero() bool             { return q.value.IsZero() }

// canonical returns the integer representation used for all comparisons:
// value scaled up to an integer at q.scale.
func (q Quantity) canonical() decimal.Decimal {
	return q.value.Shift(q.scale)
}

func (q Quantity) sameScale(o Quantity) error {
	if q.scale != o.scale {
		return fmt.Errorf("%w: %d vs %d", ErrPrecisionMismatch, q.scale, o.scale)
	}
	return nil
}

// Add returns q+o. Both must share the same scale.
func (q Quantity) Add(o Quantity) (Quantity, error) {
	if err := q.sameScale(o); err != nil {
		return Quantity{}, err
	}
	return Quantity{value: q.value.Add(o.value), scale: q.scale}, nil
}

// Sub returns q-o. Both must share the same scale; the result is never
// allowed to go negative (ErrNegative).
func (q Quantity) Sub(o Quantity) (Quantity, error) {
	if err := q.sameScale(o); err != nil {
		return Quantity{}, err
	}
	r := q.value.Sub(o.value)
	if r.IsNegative() {
		return Quantity{}, fmt.Errorf("%w: %s - %s", ErrNegative, q.value, o.value)
	}
	return Quantity{value: r, scale: q.scale}, nil
}

// Cmp compares q and o by their canonical integer representation.
// Returns -1, 0, 1. Panics-free: an error is returned on scale mismatch.
func (q Quantity) Cmp(o Quantity) (int, error) {
	if err := q.sameScale(o); err != nil {
		return 0, err
	}
	return q.canonical().Cmp(o.canonical()), nil
}

func (q Quantity) GreaterThan(o Quantity) bool {
	c, err := q.Cmp(o)
	return err == nil && c > 0
}

func (q Quantity) LessThan(o Quantity) bool {
	c, err := q.Cmp(o)
	return err == nil && c < 0
}

func (q Quantity) Equal(o Quantity) bool {
	c, err := q.Cmp(o)
	return err == nil && c == 0
}

func (q Quantity) String() string { return q.value.StringFixed(q.scale) }

// Price is a non-negative decimal carrying a fixed precision, identical in
// shape to Quantity but kept as a distinct type so a Price can never be
// passed where a Quantity is expected.
type Price struct {
	value decimal.Decimal
	scale int32
}

func NewPrice(value decimal.Decimal, scale int32) (Price, error) {
	if value.IsNegative() {
		return Price{}, fmt.Errorf("%w: price %s", ErrNegative, value)
	}
	return Price{value: value.Truncate(scale), scale: scale}, nil
}

func ZeroPrice(scale int32) Price {
	return Price{value: decimal.Zero, scale: scale}
}

func (p Price) Decimal() decimal.Decimal { return p.value }
func (p Price) Scale() int32             { return p.scale }
func (p Price) IsZero() bool             { return p.value.IsZero() }

func (p Price) canonical() decimal.Decimal {
	return p.value.Shift(p.scale)
}

func (p Price) sameScale(o Price) error {
	if p.scale != o.scale {
		return fmt.Errorf("%w: %d vs %d", ErrPrecisionMismatch, p.scale, o.scale)
	}
	return nil
}

func (p Price) Cmp(o Price) (int, error) {
	if err := p.sameScale(o); err != nil {
		return 0, err
	}
	return p.canonical().Cmp(o.canonical()), nil
}

func (p Price) GreaterThan(o Price) bool {
	c, err := p.Cmp(o)
	return err == nil && c > 0
}

func (p Price) LessThan(o Price) bool {
	c, err := p.Cmp(o)
	return err == nil && c < 0
}

func (p Price) Equal(o Price) bool {
	c, err := p.Cmp(o)
	return err == nil && c == 0
}

func (p Price) String() string { return p.value.StringFixed(p.scale) }

// WeightedAverage returns the quantity-weighted mean of two (price, qty)
// pairs — the calculation Order.avg_price and Position.avg_open_price both
// need. Both prices must share a scale and both quantities must share a
// scale; the result carries the price scale.
func WeightedAverage(p1 Price, q1 Quantity, p2 Price, q2 Quantity) (Price, error) {
	if err := p1.sameScale(p2); err != nil {
		return Price{}, err
	}
	if err := q1.sameScale(q2); err != nil {
		return Price{}, err
	}
	totalQty := q1.value.Add(q2.value)
	if totalQty.IsZero() {
		return ZeroPrice(p1.scale), nil
	}
	totalCost := p1.value.Mul(q1.value).Add(p2.value.Mul(q2.value))
	return Price{value: totalCost.Div(totalQty).Truncate(p1.scale), scale: p1.scale}, nil
}
