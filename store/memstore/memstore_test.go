package memstore

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nova-trading/execengine/event"
	"github.com/nova-trading/execengine/model"
	"github.com/nova-trading/execengine/order"
	"github.com/nova-trading/execengine/store"
)

func newOrder(t *testing.T, clientID, strategyID string) *order.Order {
	t.Helper()
	cid, err := model.NewClientOrderID(clientID)
	require.NoError(t, err)
	strat, err := model.NewStrategyID(strategyID)
	require.NoError(t, err)
	sym, err := model.NewSymbol("BTC-USD")
	require.NoError(t, err)
	qty, err := model.NewQuantity(decimal.NewFromInt(10), 2)
	require.NoError(t, err)
	price, err := model.NewPrice(decimal.NewFromInt(100), 2)
	require.NoError(t, err)
	ts, err := model.NewTimestamp(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	o, err := order.NewFromInitialized(event.OrderInitialized{
		ClientOrderID: cid,
		StrategyID:    strat,
		Symbol:        sym,
		Side:          model.OrderSideBuy,
		Type:          model.OrderTypeLimit,
		Quantity:      qty,
		Price:         price,
		TimeInForce:   model.TimeInForceGTC,
		InitID:        "init",
		TsInit:        ts,
	})
	require.NoError(t, err)
	return o
}

func TestAddOrderRejectsDuplicate(t *testing.T) {
	s := New()
	ctx := context.Background()
	o := newOrder(t, "CID-1", "STRAT-1")

	require.NoError(t, s.AddOrder(ctx, o))
	err := s.AddOrder(ctx, o)
	assert.ErrorIs(t, err, store.ErrAlreadyExists)
}

func TestUpdateOrderRequiresExisting(t *testing.T) {
	s := New()
	ctx := context.Background()
	o := newOrder(t, "CID-1", "STRAT-1")

	err := s.UpdateOrder(ctx, o)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestWorkingOrdersIndexDropsOnTerminal(t *testing.T) {
	s := New()
	ctx := context.Background()
	o := newOrder(t, "CID-1", "STRAT-1")
	require.NoError(t, s.AddOrder(ctx, o))

	working, err := s.WorkingOrders(ctx)
	require.NoError(t, err)
	assert.Len(t, working, 1)

	ts, _ := model.NewTimestamp(time.Date(2026, 1, 1, 0, 0, 1, 0, time.UTC))
	require.NoError(t, o.Apply(event.Envelope{
		EventID:        "e1",
		EventTimestamp: ts,
		Kind:           event.KindOrderSubmitted,
		Payload:        event.OrderSubmitted{},
	}))
	oid, _ := model.NewOrderID("VENUE-1")
	require.NoError(t, o.Apply(event.Envelope{
		EventID:        "e2",
		EventTimestamp: ts,
		Kind:           event.KindOrderRejected,
		Payload:        event.OrderRejected{Reason: "no credit"},
	}))
	_ = oid

	require.NoError(t, s.UpdateOrder(ctx, o))
	working, err = s.WorkingOrders(ctx)
	require.NoError(t, err)
	assert.Empty(t, working)
}

func TestOrdersByStrategyIndex(t *testing.T) {
	s := New()
	ctx := context.Background()
	o1 := newOrder(t, "CID-1", "STRAT-1")
	o2 := newOrder(t, "CID-2", "STRAT-1")
	o3 := newOrder(t, "CID-3", "STRAT-2")

	require.NoError(t, s.AddOrder(ctx, o1))
	require.NoError(t, s.AddOrder(ctx, o2))
	require.NoError(t, s.AddOrder(ctx, o3))

	strat1, _ := model.NewStrategyID("STRAT-1")
	byStrat, err := s.OrdersByStrategy(ctx, strat1)
	require.NoError(t, err)
	assert.Len(t, byStrat, 2)
}

func TestFlushClearsEverything(t *testing.T) {
	s := New()
	ctx := context.Background()
	require.NoError(t, s.AddOrder(ctx, newOrder(t, "CID-1", "STRAT-1")))

	require.NoError(t, s.Flush(ctx))

	orders, err := s.LoadOrders(ctx)
	require.NoError(t, err)
	assert.Empty(t, orders)
}
