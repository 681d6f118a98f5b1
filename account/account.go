// Package account implements the Account entity: a per-currency balance
// snapshot the engine replaces atomically from venue AccountState events
// (spec.md §4, grounded on the teacher's risk-state balance snapshot in
// execution/reconciler.go).
package account

import (
	"github.com/nova-trading/execengine/model"
)

// Account is a snapshot of one trading account's balances, keyed by
// currency. The engine never computes a balance itself; it only ever
// replaces the whole snapshot when the venue sends one (spec.md §4.5).
type Account struct {
	AccountID model.AccountID
	Balances  map[string]model.Quantity
	TsLast    model.Timestamp
}

// New returns an empty account snapshot.
func New(id model.AccountID) Account {
	return Account{AccountID: id, Balances: make(map[string]model.Quantity)}
}

// ApplyState replaces the account's balances wholesale and returns the
// updated snapshot; the caller's existing Account value is left
// untouched.
func (a Account) ApplyState(balances map[string]model.Quantity, ts model.Timestamp) Account {
	next := Account{
		AccountID: a.AccountID,
		Balances:  make(map[string]model.Quantity, len(balances)),
		TsLast:    ts,
	}
	for currency, qty := range balances {
		next.Balances[currency] = qty
	}
	return next
}

// Balance returns the balance for currency and whether it is present.
func (a Account) Balance(currency string) (model.Quantity, bool) {
	q, ok := a.Balances[currency]
	return q, ok
}
