// Package memstore is the in-memory Execution Database implementation
// (spec.md §4.4), authoritative in single-process deployments. It mirrors
// the teacher's map-of-pointers-plus-mutex storage shape from
// execution/executor.go, generalized to the full Database contract and
// its four secondary indices.
package memstore

import (
	"context"
	"sync"

	"github.com/nova-trading/execengine/account"
	"github.com/nova-trading/execengine/model"
	"github.com/nova-trading/execengine/order"
	"github.com/nova-trading/execengine/position"
	"github.com/nova-trading/execengine/store"
)

// Store is a concurrency-safe, in-memory Database.
type Store struct {
	mu sync.RWMutex

	accounts   map[model.AccountID]account.Account
	orders     map[model.ClientOrderID]*order.Order
	positions  map[model.PositionID]*position.Position
	strategies map[model.StrategyID]map[string][]byte

	ordersByStrategy    map[model.StrategyID]map[model.ClientOrderID]bool
	positionsByStrategy map[model.StrategyID]map[model.PositionID]bool
	workingOrders       map[model.ClientOrderID]bool
	openPositions       map[model.PositionID]bool
}

// New returns an empty in-memory Store.
func New() *Store {
	return &Store{
		accounts:            make(map[model.AccountID]account.Account),
		orders:              make(map[model.ClientOrderID]*order.Order),
		positions:           make(map[model.PositionID]*position.Position),
		strategies:          make(map[model.StrategyID]map[string][]byte),
		ordersByStrategy:    make(map[model.StrategyID]map[model.ClientOrderID]bool),
		positionsByStrategy: make(map[model.StrategyID]map[model.PositionID]bool),
		workingOrders:       make(map[model.ClientOrderID]bool),
		openPositions:       make(map[model.PositionID]bool),
	}
}

var _ store.Database = (*Store)(nil)

func (s *Store) LoadAccounts(ctx context.Context) (map[model.AccountID]account.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[model.AccountID]account.Account, len(s.accounts))
	for k, v := range s.accounts {
		out[k] = v
	}
	return out, nil
}

func (s *Store) LoadOrders(ctx context.Context) (map[model.ClientOrderID]*order.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[model.ClientOrderID]*order.Order, len(s.orders))
	for k, v := range s.orders {
		out[k] = v
	}
	return out, nil
}

func (s *Store) LoadPositions(ctx context.Context) (map[model.PositionID]*position.Position, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[model.PositionID]*position.Position, len(s.positions))
	for k, v := range s.positions {
		out[k] = v
	}
	return out, nil
}

func (s *Store) LoadAccount(ctx context.Context, id model.AccountID) (account.Account, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.accounts[id]
	return a, ok, nil
}

func (s *Store) LoadOrder(ctx context.Context, id model.ClientOrderID) (*order.Order, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.orders[id]
	return o, ok, nil
}

func (s *Store) LoadPosition(ctx context.Context, id model.PositionID) (*position.Position, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.positions[id]
	return p, ok, nil
}

func (s *Store) LoadStrategy(ctx context.Context, strategyID model.StrategyID) (map[string][]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	state, ok := s.strategies[strategyID]
	if !ok {
		return map[string][]byte{}, nil
	}
	out := make(map[string][]byte, len(state))
	for k, v := range state {
		out[k] = v
	}
	return out, nil
}

func (s *Store) AddAccount(ctx context.Context, a account.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.accounts[a.AccountID]; exists {
		return store.ErrAlreadyExists
	}
	s.accounts[a.AccountID] = a
	return nil
}

func (s *Store) AddOrder(ctx context.Context, o *order.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.orders[o.ClientOrderID]; exists {
		return store.ErrAlreadyExists
	}
	s.orders[o.ClientOrderID] = o
	s.indexOrder(o)
	return nil
}

func (s *Store) AddPosition(ctx context.Context, p *position.Position) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.positions[p.PositionID]; exists {
		return store.ErrAlreadyExists
	}
	s.positions[p.PositionID] = p
	s.indexPosition(p)
	return nil
}

func (s *Store) UpdateAccount(ctx context.Context, a account.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.accounts[a.AccountID]; !exists {
		return store.ErrNotFound
	}
	s.accounts[a.AccountID] = a
	return nil
}

func (s *Store) UpdateOrder(ctx context.Context, o *order.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.orders[o.ClientOrderID]; !exists {
		return store.ErrNotFound
	}
	s.orders[o.ClientOrderID] = o
	s.indexOrder(o)
	return nil
}

func (s *Store) UpdatePosition(ctx context.Context, p *position.Position) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.positions[p.PositionID]; !exists {
		return store.ErrNotFound
	}
	s.positions[p.PositionID] = p
	s.indexPosition(p)
	return nil
}

func (s *Store) UpdateStrategy(ctx context.Context, strategyID model.StrategyID, state map[string][]byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.strategies[strategyID]; !exists {
		return store.ErrNotFound
	}
	s.strategies[strategyID] = state
	return nil
}

func (s *Store) DeleteStrategy(ctx context.Context, strategyID model.StrategyID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.strategies, strategyID)
	return nil
}

func (s *Store) OrdersByStrategy(ctx context.Context, strategyID model.StrategyID) ([]*order.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := s.ordersByStrategy[strategyID]
	out := make([]*order.Order, 0, len(ids))
	for id := range ids {
		out = append(out, s.orders[id])
	}
	return out, nil
}

func (s *Store) PositionsByStrategy(ctx context.Context, strategyID model.StrategyID) ([]*position.Position, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := s.positionsByStrategy[strategyID]
	out := make([]*position.Position, 0, len(ids))
	for id := range ids {
		out = append(out, s.positions[id])
	}
	return out, nil
}

func (s *Store) WorkingOrders(ctx context.Context) ([]*order.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*order.Order, 0, len(s.workingOrders))
	for id := range s.workingOrders {
		out = append(out, s.orders[id])
	}
	return out, nil
}

func (s *Store) OpenPositions(ctx context.Context) ([]*position.Position, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*position.Position, 0, len(s.openPositions))
	for id := range s.openPositions {
		out = append(out, s.positions[id])
	}
	return out, nil
}

func (s *Store) Flush(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts = make(map[model.AccountID]account.Account)
	s.orders = make(map[model.ClientOrderID]*order.Order)
	s.positions = make(map[model.PositionID]*position.Position)
	s.strategies = make(map[model.StrategyID]map[string][]byte)
	s.ordersByStrategy = make(map[model.StrategyID]map[model.ClientOrderID]bool)
	s.positionsByStrategy = make(map[model.StrategyID]map[model.PositionID]bool)
	s.workingOrders = make(map[model.ClientOrderID]bool)
	s.openPositions = make(map[model.PositionID]bool)
	return nil
}

// indexOrder refreshes the strategy and working-orders indices for o.
// Callers must hold s.mu.
func (s *Store) indexOrder(o *order.Order) {
	if s.ordersByStrategy[o.StrategyID] == nil {
		s.ordersByStrategy[o.StrategyID] = make(map[model.ClientOrderID]bool)
	}
	s.ordersByStrategy[o.StrategyID][o.ClientOrderID] = true

	if o.IsWorking() {
		s.workingOrders[o.ClientOrderID] = true
	} else {
		delete(s.workingOrders, o.ClientOrderID)
	}
}

// indexPosition refreshes the strategy and open-positions indices for p.
// Callers must hold s.mu.
func (s *Store) indexPosition(p *position.Position) {
	if s.positionsByStrategy[p.StrategyID] == nil {
		s.positionsByStrategy[p.StrategyID] = make(map[model.PositionID]bool)
	}
	s.positionsByStrategy[p.StrategyID][p.PositionID] = true

	if !p.IsFlat() {
		s.openPositions[p.PositionID] = true
	} else {
		delete(s.openPositions, p.PositionID)
	}
}
