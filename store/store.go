// Package store defines the Execution Database contract (spec.md §4.4):
// a uniform interface with an in-memory implementation (memstore) and a
// gorm-backed persistent implementation (sqlstore).
package store

import (
	"context"
	"errors"

	"github.com/nova-trading/execengine/account"
	"github.com/nova-trading/execengine/model"
	"github.com/nova-trading/execengine/order"
	"github.com/nova-trading/execengine/position"
)

// Sentinel errors shared by every Database implementation.
var (
	ErrAlreadyExists          = errors.New("store: record already exists")
	ErrNotFound               = errors.New("store: record not found")
	ErrPersistenceUnavailable = errors.New("store: persistence unavailable after retries")
)

// Database is the uniform contract every execution-state backend
// implements. Every operation is safe for concurrent use; implementations
// that need locking do it internally rather than relying on a caller's
// discipline.
type Database interface {
	LoadAccounts(ctx context.Context) (map[model.AccountID]account.Account, error)
	LoadOrders(ctx context.Context) (map[model.ClientOrderID]*order.Order, error)
	LoadPositions(ctx context.Context) (map[model.PositionID]*position.Position, error)

	LoadAccount(ctx context.Context, id model.AccountID) (account.Account, bool, error)
	LoadOrder(ctx context.Context, id model.ClientOrderID) (*order.Order, bool, error)
	LoadPosition(ctx context.Context, id model.PositionID) (*position.Position, bool, error)

	// LoadStrategy returns a strategy's opaque persisted key/value state.
	LoadStrategy(ctx context.Context, strategyID model.StrategyID) (map[string][]byte, error)

	AddAccount(ctx context.Context, a account.Account) error
	AddOrder(ctx context.Context, o *order.Order) error
	AddPosition(ctx context.Context, p *position.Position) error

	UpdateAccount(ctx context.Context, a account.Account) error
	UpdateOrder(ctx context.Context, o *order.Order) error
	UpdatePosition(ctx context.Context, p *position.Position) error
	UpdateStrategy(ctx context.Context, strategyID model.StrategyID, state map[string][]byte) error

	DeleteStrategy(ctx context.Context, strategyID model.StrategyID) error

	// OrdersByStrategy, PositionsByStrategy, WorkingOrders and
	// OpenPositions expose the secondary indices spec.md §4.4 requires.
	// They must stay consistent across every Add/Update call; an entity
	// drops out of WorkingOrders/OpenPositions on the update that moves
	// it to a terminal/flat state.
	OrdersByStrategy(ctx context.Context, strategyID model.StrategyID) ([]*order.Order, error)
	PositionsByStrategy(ctx context.Context, strategyID model.StrategyID) ([]*position.Position, error)
	WorkingOrders(ctx context.Context) ([]*order.Order, error)
	OpenPositions(ctx context.Context) ([]*position.Position, error)

	// Flush removes every record. Test and recovery use only.
	Flush(ctx context.Context) error
}
