package engine

import (
	"github.com/nova-trading/execengine/model"
)

// CommandKind tags the payload a Command carries.
type CommandKind string

const (
	CommandSubmitOrder     CommandKind = "SubmitOrder"
	CommandCancelOrder     CommandKind = "CancelOrder"
	CommandAmendOrder      CommandKind = "AmendOrder"
	CommandFlattenPosition CommandKind = "FlattenPosition"
)

// Command is the strategy-issued instruction the engine routes to the
// venue client (spec.md §4.5/§6).
type Command struct {
	Kind          CommandKind
	ClientOrderID model.ClientOrderID
	Payload       any
}

// SubmitOrderCommand creates and submits a brand new order.
type SubmitOrderCommand struct {
	ClientOrderID model.ClientOrderID
	StrategyID    model.StrategyID
	Symbol        model.Symbol
	Side          model.OrderSide
	Type          model.OrderType
	Quantity      model.Quantity
	Price         model.Price
	TimeInForce   model.TimeInForce
	InitID        string
}

// CancelOrderCommand cancels a working order.
type CancelOrderCommand struct {
	ClientOrderID model.ClientOrderID
}

// AmendOrderCommand replaces a working order's quantity and/or price.
type AmendOrderCommand struct {
	ClientOrderID model.ClientOrderID
	Quantity      model.Quantity
	Price         model.Price
}

// FlattenPositionCommand issues the opposite-side order needed to return
// a position to flat.
type FlattenPositionCommand struct {
	PositionID    model.PositionID
	ClientOrderID model.ClientOrderID
}
