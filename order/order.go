// Package order implements the Order entity and its lifecycle state
// machine (spec.md §4.2). An Order is driven exclusively by events; it
// never originates its own transitions.
package order

import (
	"fmt"

	"github.com/nova-trading/execengine/event"
	"github.com/nova-trading/execengine/model"
)

// Order is a stateful entity encapsulating one order's lifecycle. The
// engine is its sole mutator (spec.md §3); everything else holds a copy
// or an identifier.
type Order struct {
	ClientOrderID model.ClientOrderID
	OrderID       model.OrderID // zero until the venue assigns one
	StrategyID    model.StrategyID
	Symbol        model.Symbol
	Side          model.OrderSide
	Type          model.OrderType
	Quantity      model.Quantity
	FilledQty     model.Quantity
	AvgPrice      *model.Price // nil iff FilledQty == 0
	Price         model.Price // working price for limit orders; zero for market
	TimeInForce   model.TimeInForce
	State         State
	ExecutionIDs  []string
	InitID        string
	TsInit        model.Timestamp
	TsLast        model.Timestamp

	seenExecutions map[string]bool
}

// NewFromInitialized constructs an Order from the OrderInitialized event
// that creates it, validating the invariants spec.md §4.2 requires up
// front: positive quantity, and a time-in-force legal for the order type.
func NewFromInitialized(ev event.OrderInitialized) (*Order, error) {
	if ev.Quantity.IsZero() {
		return nil, ErrQuantityNonPositive
	}
	if ev.Type == model.OrderTypeMarket && !ev.TimeInForce.ValidForMarketOrder() {
		return nil, ErrTimeInForceInvalid
	}

	o := &Order{
		ClientOrderID:  ev.ClientOrderID,
		StrategyID:     ev.StrategyID,
		Symbol:         ev.Symbol,
		Side:           ev.Side,
		Type:           ev.Type,
		Quantity:       ev.Quantity,
		FilledQty:      model.ZeroQuantity(ev.Quantity.Scale()),
		Price:          ev.Price,
		TimeInForce:    ev.TimeInForce,
		State:          StateInitialized,
		ExecutionIDs:   nil,
		InitID:         ev.InitID,
		TsInit:         ev.TsInit,
		TsLast:         ev.TsInit,
		seenExecutions: make(map[string]bool),
	}
	return o, nil
}

// Apply advances the order's state machine by one event. A fill whose
// execution_id was already applied is a no-op that returns nil (spec.md
// §4.2 idempotence rule) even if the order is terminal. Any other event
// on a terminal order, or one illegal from the current state, returns
// ErrInvalidStateTransition and leaves the order unmutated.
func (o *Order) Apply(ev event.Envelope) error {
	switch payload := ev.Payload.(type) {
	case event.OrderSubmitted:
		return o.applySubmitted(ev)
	case event.OrderAccepted:
		return o.applyAccepted(ev, payload)
	case event.OrderRejected:
		return o.applyRejected(ev)
	case event.OrderWorking:
		return o.applyWorking(ev)
	case event.OrderAmended:
		return o.applyAmended(ev, payload)
	case event.OrderCancelled:
		return o.applyCancelled(ev)
	case event.OrderExpired:
		return o.applyExpired(ev)
	case event.OrderFilled:
		return o.applyFilled(ev, payload)
	default:
		return fmt.Errorf("%w: unsupported payload %T", ErrInvalidStateTransition, ev.Payload)
	}
}

func (o *Order) applySubmitted(ev event.Envelope) error {
	if o.State != StateInitialized {
		return o.transitionErr(ev)
	}
	o.State = StateSubmitted
	o.touch(ev)
	return nil
}

func (o *Order) applyAccepted(ev event.Envelope, p event.OrderAccepted) error {
	if o.State != StateSubmitted {
		return o.transitionErr(ev)
	}
	o.OrderID = p.OrderID
	o.State = StateAccepted
	o.touch(ev)
	return nil
}

// applyRejected implements the wire-level OrderRejected event, which maps
// to two distinct terminal states depending on how far the order got:
// Submitted -> Denied (venue never acknowledged it), Accepted or Working
// -> Rejected (venue pulled it after acknowledging).
func (o *Order) applyRejected(ev event.Envelope) error {
	switch o.State {
	case StateSubmitted:
		o.State = StateDenied
	case StateAccepted, StateWorking, StatePartiallyFilled:
		o.State = StateRejected
	default:
		return o.transitionErr(ev)
	}
	o.touch(ev)
	return nil
}

func (o *Order) applyWorking(ev event.Envelope) error {
	if o.State != StateAccepted {
		return o.transitionErr(ev)
	}
	o.State = StateWorking
	o.touch(ev)
	return nil
}

func (o *Order) applyAmended(ev event.Envelope, p event.OrderAmended) error {
	if o.State != StateWorking {
		return o.transitionErr(ev)
	}
	if o.Type == model.OrderTypeMarket {
		return ErrAmendNotSupported
	}
	if !p.Quantity.IsZero() {
		if cmp, err := p.Quantity.Cmp(o.FilledQty); err != nil {
			return err
		} else if cmp < 0 {
			return ErrQuantityBelowFilled
		}
		o.Quantity = p.Quantity
	}
	if !p.Price.IsZero() {
		o.Price = p.Price
	}
	// Amended is a transient waypoint: Working -> Amended -> Working.
	o.State = StateWorking
	o.touch(ev)
	return nil
}

func (o *Order) applyCancelled(ev event.Envelope) error {
	switch o.State {
	case StateWorking, StatePartiallyFilled:
		o.State = StateCancelled
	default:
		return o.transitionErr(ev)
	}
	o.touch(ev)
	return nil
}

func (o *Order) applyExpired(ev event.Envelope) error {
	switch o.State {
	case StateWorking, StatePartiallyFilled:
		o.State = StateExpired
	default:
		return o.transitionErr(ev)
	}
	o.touch(ev)
	return nil
}

func (o *Order) applyFilled(ev event.Envelope, p event.OrderFilled) error {
	if o.seenExecutions[p.ExecutionID] {
		return nil // idempotent no-op, even if terminal
	}
	switch o.State {
	case StateWorking, StatePartiallyFilled:
	default:
		return o.transitionErr(ev)
	}

	newFilled, err := o.FilledQty.Add(p.FillQuantity)
	if err != nil {
		return err
	}
	if cmp, err := newFilled.Cmp(o.Quantity); err != nil {
		return err
	} else if cmp > 0 {
		return fmt.Errorf("%w: filled %s exceeds quantity %s", ErrInvalidStateTransition, newFilled, o.Quantity)
	}

	newAvg, err := model.WeightedAverage(o.currentAvgPrice(p.FillPrice), o.FilledQty, p.FillPrice, p.FillQuantity)
	if err != nil {
		return err
	}

	if o.seenExecutions == nil {
		o.seenExecutions = make(map[string]bool)
	}
	o.seenExecutions[p.ExecutionID] = true
	o.ExecutionIDs = append(o.ExecutionIDs, p.ExecutionID)
	o.FilledQty = newFilled
	o.AvgPrice = &newAvg

	if cmp, _ := o.FilledQty.Cmp(o.Quantity); cmp == 0 {
		o.State = StateFilled
	} else {
		o.State = StatePartiallyFilled
	}
	o.touch(ev)
	return nil
}

// currentAvgPrice returns the zero-valued price at the fill's scale when
// no fill has landed yet, so WeightedAverage's first-fill case degenerates
// to just the new fill's price.
func (o *Order) currentAvgPrice(fillPrice model.Price) model.Price {
	if o.AvgPrice != nil {
		return *o.AvgPrice
	}
	return model.ZeroPrice(fillPrice.Scale())
}

func (o *Order) touch(ev event.Envelope) {
	o.TsLast = ev.EventTimestamp
}

func (o *Order) transitionErr(ev event.Envelope) error {
	return fmt.Errorf("%w: %s from state %s", ErrInvalidStateTransition, ev.Kind, o.State)
}

// IsWorking reports whether the order is not yet terminal - the
// definition the working-orders index uses. Orders the venue has not
// acknowledged yet (Initialized, Submitted) count as working.
func (o *Order) IsWorking() bool {
	return !o.State.IsTerminal()
}

// RestoreExecutionIndex rebuilds the idempotence index from a persisted
// execution_id list. Used only when rehydrating an Order from storage,
// where ExecutionIDs is set directly rather than through applyFilled.
func (o *Order) RestoreExecutionIndex(executionIDs []string) {
	o.seenExecutions = make(map[string]bool, len(executionIDs))
	for _, id := range executionIDs {
		o.seenExecutions[id] = true
	}
}
