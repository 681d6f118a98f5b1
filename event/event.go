// Package event defines the wire-neutral event envelope the engine
// consumes from venues and produces for strategy subscribers (spec.md §6).
// The on-wire serialization itself is out of scope (spec.md §1); this
// package only carries the in-process tagged sum.
package event

import (
	"github.com/nova-trading/execengine/model"
)

// Kind tags the payload carried by an Envelope.
type Kind string

const (
	KindOrderInitialized    Kind = "OrderInitialized"
	KindOrderSubmitted      Kind = "OrderSubmitted"
	KindOrderAccepted       Kind = "OrderAccepted"
	KindOrderRejected       Kind = "OrderRejected"
	KindOrderWorking        Kind = "OrderWorking"
	KindOrderAmended        Kind = "OrderAmended"
	KindOrderCancelled      Kind = "OrderCancelled"
	KindOrderExpired        Kind = "OrderExpired"
	KindOrderFilled         Kind = "OrderFilled"
	KindAccountState        Kind = "AccountState"
	KindOrderCommandTimeout Kind = "OrderCommandTimeout"
)

// Envelope is the wire-neutral shape described in spec.md §6:
// {event_id, event_timestamp, kind, payload}, plus the sequence number
// used for the tie-break rule in §4.2.
type Envelope struct {
	EventID        string
	EventTimestamp model.Timestamp
	SequenceNumber uint64
	Kind           Kind
	Payload        any
}

// Less implements the tie-break order from spec.md §4.2: events with
// identical ts_event are ordered by (sequence_number, event_id).
func Less(a, b Envelope) bool {
	if !a.EventTimestamp.Equal(b.EventTimestamp) {
		return a.EventTimestamp.Before(b.EventTimestamp)
	}
	if a.SequenceNumber != b.SequenceNumber {
		return a.SequenceNumber < b.SequenceNumber
	}
	return a.EventID < b.EventID
}

// OrderInitialized is emitted by a strategy to create a new order.
type OrderInitialized struct {
	ClientOrderID model.ClientOrderID
	StrategyID    model.StrategyID
	Symbol        model.Symbol
	Side          model.OrderSide
	Type          model.OrderType
	Quantity      model.Quantity
	Price         model.Price // zero value for market orders
	TimeInForce   model.TimeInForce
	InitID        string
	TsInit        model.Timestamp
}

// OrderSubmitted acknowledges the engine forwarded the order downstream.
type OrderSubmitted struct {
	ClientOrderID model.ClientOrderID
}

// OrderAccepted is the venue's acknowledgement that an order is working.
type OrderAccepted struct {
	ClientOrderID model.ClientOrderID
	OrderID       model.OrderID
}

// OrderRejected carries the venue's rejection reason.
type OrderRejected struct {
	ClientOrderID model.ClientOrderID
	Reason        string
}

// OrderWorking confirms the order is live in the venue's book.
type OrderWorking struct {
	ClientOrderID model.ClientOrderID
}

// OrderAmended carries a replacement quantity and/or working price.
type OrderAmended struct {
	ClientOrderID model.ClientOrderID
	Quantity      model.Quantity
	Price         model.Price
}

// OrderCancelled confirms a cancel.
type OrderCancelled struct {
	ClientOrderID model.ClientOrderID
}

// OrderExpired confirms a time-in-force expiry.
type OrderExpired struct {
	ClientOrderID model.ClientOrderID
}

// OrderFilled carries one fill report. ExecutionID is the idempotence key
// from spec.md §4.2.
type OrderFilled struct {
	ClientOrderID model.ClientOrderID
	ExecutionID   string
	StrategyID    model.StrategyID
	Symbol        model.Symbol
	Side          model.OrderSide
	FillQuantity  model.Quantity
	FillPrice     model.Price
}

// AccountState replaces an account's balance/margin snapshot atomically.
type AccountState struct {
	AccountID model.AccountID
	Balances  map[string]model.Quantity // currency -> balance
}

// OrderCommandTimeout is the synthetic event the engine emits when a
// venue ack doesn't arrive within command_timeout (spec.md §5).
type OrderCommandTimeout struct {
	ClientOrderID model.ClientOrderID
	Command       string
}
