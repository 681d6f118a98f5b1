// Package position implements the Position entity, derived entirely from
// order fills (spec.md §4.3). A Position never receives commands; it is
// mutated only by the engine applying fill events.
package position

import (
	"github.com/nova-trading/execengine/model"
)

// Position aggregates every fill applied to one strategy/symbol pair into
// a single net exposure.
type Position struct {
	PositionID   model.PositionID
	StrategyID   model.StrategyID
	Symbol       model.Symbol
	Side         model.PositionSide
	Quantity     model.Quantity // always non-negative; Side carries direction
	AvgOpenPrice model.Price
	RealizedPnL  model.Money
	TsOpened     model.Timestamp
	TsClosed     model.Timestamp // zero until the position returns to FLAT
}

// New opens a position from the first fill on a previously flat
// strategy/symbol pair.
func New(id model.PositionID, strategyID model.StrategyID, symbol model.Symbol, side model.OrderSide, qty model.Quantity, price model.Price, ts model.Timestamp) Position {
	return Position{
		PositionID:   id,
		StrategyID:   strategyID,
		Symbol:       symbol,
		Side:         model.PositionSideFromOrderSide(side),
		Quantity:     qty,
		AvgOpenPrice: price,
		RealizedPnL:  model.ZeroMoney(price.Scale()),
		TsOpened:     ts,
		TsClosed:     model.Timestamp{},
	}
}

// IsFlat reports whether the position currently carries zero exposure.
func (p Position) IsFlat() bool {
	return p.Side == model.PositionSideFlat || p.Quantity.IsZero()
}

// ApplyFill folds one fill into the position, implementing the three
// cases from spec.md §4.3: adding to the existing side, reducing it
// (realizing PnL on the closed portion), and flipping through flat when
// the fill's quantity exceeds the current exposure.
func (p Position) ApplyFill(fillSide model.OrderSide, fillQty model.Quantity, fillPrice model.Price, ts model.Timestamp) (Position, error) {
	fillPositionSide := model.PositionSideFromOrderSide(fillSide)

	if p.IsFlat() {
		next := p
		next.Side = fillPositionSide
		next.Quantity = fillQty
		next.AvgOpenPrice = fillPrice
		next.TsOpened = ts
		next.TsClosed = model.Timestamp{}
		return next, nil
	}

	if fillPositionSide == p.Side {
		// Adding to the existing side: re-average the open price.
		newAvg, err := model.WeightedAverage(p.AvgOpenPrice, p.Quantity, fillPrice, fillQty)
		if err != nil {
			return Position{}, err
		}
		newQty, err := p.Quantity.Add(fillQty)
		if err != nil {
			return Position{}, err
		}
		next := p
		next.Quantity = newQty
		next.AvgOpenPrice = newAvg
		return next, nil
	}

	// Fill is on the opposite side: it reduces, closes, or flips.
	cmp, err := fillQty.Cmp(p.Quantity)
	if err != nil {
		return Position{}, err
	}

	switch {
	case cmp < 0:
		// Partial close: realize PnL on the closed slice, keep the rest open.
		remaining, err := p.Quantity.Sub(fillQty)
		if err != nil {
			return Position{}, err
		}
		realized, err := realizedPnL(p.Side, p.AvgOpenPrice, fillPrice, fillQty)
		if err != nil {
			return Position{}, err
		}
		combined, err := p.RealizedPnL.Add(realized)
		if err != nil {
			return Position{}, err
		}
		next := p
		next.Quantity = remaining
		next.RealizedPnL = combined
		return next, nil

	case cmp == 0:
		// Exact close: realize PnL on the whole position, return to flat.
		realized, err := realizedPnL(p.Side, p.AvgOpenPrice, fillPrice, fillQty)
		if err != nil {
			return Position{}, err
		}
		combined, err := p.RealizedPnL.Add(realized)
		if err != nil {
			return Position{}, err
		}
		next := p
		next.Quantity = model.ZeroQuantity(p.Quantity.Scale())
		next.Side = model.PositionSideFlat
		next.RealizedPnL = combined
		next.TsClosed = ts
		return next, nil

	default:
		// Flip: the fill closes the whole existing position and opens a
		// fresh one, on the opposite side, with the residual quantity.
		realized, err := realizedPnL(p.Side, p.AvgOpenPrice, fillPrice, p.Quantity)
		if err != nil {
			return Position{}, err
		}
		combined, err := p.RealizedPnL.Add(realized)
		if err != nil {
			return Position{}, err
		}
		residual, err := fillQty.Sub(p.Quantity)
		if err != nil {
			return Position{}, err
		}
		next := p
		next.Side = fillPositionSide
		next.Quantity = residual
		next.AvgOpenPrice = fillPrice
		next.RealizedPnL = combined
		next.TsOpened = ts
		next.TsClosed = model.Timestamp{}
		return next, nil
	}
}

// realizedPnL computes (close_price - open_price) * closed_qty, signed
// positive for a gain on the closing side: LONG realizes on the way up,
// SHORT realizes on the way down.
func realizedPnL(side model.PositionSide, openPrice, closePrice model.Price, closedQty model.Quantity) (model.Money, error) {
	diff, err := model.MoneyFromPriceDiff(closePrice, openPrice)
	if err != nil {
		return model.Money{}, err
	}
	if side.OrderSide().SideSign() < 0 {
		diff = diff.Neg()
	}
	return diff.MulQuantity(closedQty), nil
}
