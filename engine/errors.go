package engine

import "errors"

var (
	// ErrOrderNotFound is returned when a command names an order the
	// engine has no record of.
	ErrOrderNotFound = errors.New("engine: order not found")
	// ErrPositionNotFound is returned when FlattenPosition names an
	// unknown or already-flat position.
	ErrPositionNotFound = errors.New("engine: position not found or already flat")
	// ErrUnroutablePayload is returned by the event pipeline when an
	// Envelope's Payload carries no client_order_id or account_id the
	// engine can key off of.
	ErrUnroutablePayload = errors.New("engine: event payload missing routing key")
)
