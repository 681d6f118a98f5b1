// Package model defines the immutable, comparable value types the rest of
// the execution core is built on: identifiers, quantities, prices and
// timestamps. Nothing in this package mutates after construction.
package model

import (
	"encoding/hex"
	"errors"
	"unicode"

	"github.com/ethereum/go-ethereum/crypto"
)

// ErrEmptyIdentifier is returned when an identifier is constructed from an
// empty or control-character-bearing string.
var ErrEmptyIdentifier = errors.New("model: identifier must be non-empty and free of control characters")

// validate enforces the identifier invariants shared by every ID type in
// this package: non-empty, no control characters.
func validate(s string) error {
	if s == "" {
		return ErrEmptyIdentifier
	}
	for _, r := range s {
		if unicode.IsControl(r) {
			return ErrEmptyIdentifier
		}
	}
	return nil
}

// hash returns a stable, collision-safe hex digest of s using Keccak256,
// the same hash primitive the teacher's execution client already pulls in
// via go-ethereum/crypto for address derivation. Stable across process
// restarts since it depends only on the string bytes.
func hash(s string) string {
	sum := crypto.Keccak256([]byte(s))
	return hex.EncodeToString(sum)
}

// ClientOrderID is the strategy-issued identifier for an order. It is
// immutable for the lifetime of the order it names.
type ClientOrderID struct{ value string }

// NewClientOrderID validates and wraps a raw client order id.
func NewClientOrderID(s string) (ClientOrderID, error) {
	if err := validate(s); err != nil {
		return ClientOrderID{}, err
	}
	return ClientOrderID{value: s}, nil
}

func (id ClientOrderID) String() string { return id.value }
func (id ClientOrderID) Hash() string   { return hash(id.value) }
func (id ClientOrderID) IsZero() bool   { return id.value == "" }

// OrderID is the venue-issued identifier for an order, assigned once the
// venue acknowledges it. Absent until then.
type OrderID struct{ value string }

func NewOrderID(s string) (OrderID, error) {
	if err := validate(s); err != nil {
		return OrderID{}, err
	}
	return OrderID{value: s}, nil
}

func (id OrderID) String() string { return id.value }
func (id OrderID) Hash() string   { return hash(id.value) }
func (id OrderID) IsZero() bool   { return id.value == "" }

// PositionID is the engine-issued identifier for a position, minted the
// moment a position opens.
type PositionID struct{ value string }

func NewPositionID(s string) (PositionID, error) {
	if err := validate(s); err != nil {
		return PositionID{}, err
	}
	return PositionID{value: s}, nil
}

func (id PositionID) String() string { return id.value }
func (id PositionID) Hash() string   { return hash(id.value) }
func (id PositionID) IsZero() bool   { return id.value == "" }

// StrategyID names a strategy instance.
type StrategyID struct{ value string }

func NewStrategyID(s string) (StrategyID, error) {
	if err := validate(s); err != nil {
		return StrategyID{}, err
	}
	return StrategyID{value: s}, nil
}

func (id StrategyID) String() string { return id.value }
func (id StrategyID) Hash() string   { return hash(id.value) }

// TraderID names the owning trader/account holder, used as the partition
// key for the persistent database layout (§6).
type TraderID struct{ value string }

func NewTraderID(s string) (TraderID, error) {
	if err := validate(s); err != nil {
		return TraderID{}, err
	}
	return TraderID{value: s}, nil
}

func (id TraderID) String() string { return id.value }
func (id TraderID) Hash() string   { return hash(id.value) }

// AccountID names an account.
type AccountID struct{ value string }

func NewAccountID(s string) (AccountID, error) {
	if err := validate(s); err != nil {
		return AccountID{}, err
	}
	return AccountID{value: s}, nil
}

func (id AccountID) String() string { return id.value }
func (id AccountID) Hash() string   { return hash(id.value) }

// Symbol names an instrument.
type Symbol struct{ value string }

func NewSymbol(s string) (Symbol, error) {
	if err := validate(s); err != nil {
		return Symbol{}, err
	}
	return Symbol{value: s}, nil
}

func (s Symbol) String() string { return s.value }
func (s Symbol) Hash() string   { return hash(s.value) }

// Venue names an execution venue.
type Venue struct{ value string }

func NewVenue(s string) (Venue, error) {
	if err := validate(s); err != nil {
		return Venue{}, err
	}
	return Venue{value: s}, nil
}

func (v Venue) String() string { return v.value }
func (v Venue) Hash() string   { return hash(v.value) }
