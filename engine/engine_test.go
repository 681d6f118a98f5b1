package engine

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
	"github.com/nova-trading/execengine/store/memstore"
)

type fakeVenue struct {
	events chan event.Envelope
	sent   []Command
}

func newFakeVenue() *fakeVenue {
	return &fakeVenue{events: make(chan event.Envelope, 16)}
}

func (f *fakeVenue) Connect(ctx context.Context) error { return nil }
func (f *fakeVenue) Disconnect() error                 { close(f.events); return nil }
func (f *fakeVenue) Dispose() error                    { return nil }
func (f *fakeVenue) Send(ctx context.Context, cmd Command) error {
	f.sent = append(f.sent, cmd)
	return nil
}
func (f *fakeVenue) Events() <-chan event.Envelope { return f.events }

type recordingSubscriber struct {
	received []event.Envelope
}

func (r *recordingSubscriber) OnEvent(ev event.Envelope) {
	r.received = append(r.received, ev)
}

func ts(t *testing.T, offset time.Duration) model.Timestamp {
	t.Helper()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	tm, err := model.NewTimestamp(base.Add(offset))
	require.NoError(t, err)
	return tm
}

func newTestEngine(t *testing.T) (*Engine, *fakeVenue, *memstore.Store) {
	t.Helper()
	db := memstore.New()
	venue := newFakeVenue()
	return New(db, venue, time.Second), venue, db
}

func submitCmd(t *testing.T, clientID string) SubmitOrderCommand {
	t.Helper()
	cid, err := model.NewClientOrderID(clientID)
	require.NoError(t, err)
	strat, err := model.NewStrategyID("STRAT-1")
	require.NoError(t, err)
	sym, err := model.NewSymbol("BTC-USD")
	require.NoError(t, err)
	qty, err := model.NewQuantity(decimal.NewFromInt(100), 2)
	require.NoError(t, err)
	price, err := model.NewPrice(decimal.Zero, 2)
	require.NoError(t, err)
	return SubmitOrderCommand{
		ClientOrderID: cid,
		StrategyID:    strat,
		Symbol:        sym,
		Side:          model.OrderSideBuy,
		Type:          model.OrderTypeMarket,
		Quantity:      qty,
		Price:         price,
		TimeInForce:   model.TimeInForceIOC,
		InitID:        "init-" + clientID,
	}
}

func TestSubmitOrderCreatesOrderAndRoutesCommand(t *testing.T) {
	e, venue, db := newTestEngine(t)
	ctx := context.Background()

	require.NoError(t, e.SubmitOrder(ctx, submitCmd(t, "CID-1"), ts(t, 0)))

	cid, _ := model.NewClientOrderID("CID-1")
	o, found, err := db.LoadOrder(ctx, cid)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, order.StateInitialized, o.State)
	assert.Len(t, venue.sent, 1)
	assert.Equal(t, CommandSubmitOrder, venue.sent[0].Kind)
}

func TestApplyEventFillUpdatesOrderAndPosition(t *testing.T) {
	e, _, db := newTestEngine(t)
	ctx := context.Background()
	cmd := submitCmd(t, "CID-1")
	require.NoError(t, e.SubmitOrder(ctx, cmd, ts(t, 0)))

	sub := &recordingSubscriber{}
	e.Subscribe(sub)

	require.NoError(t, e.ApplyEvent(ctx, event.Envelope{
		EventID: "e1", EventTimestamp: ts(t, time.Second), Kind: event.KindOrderSubmitted,
		Payload: event.OrderSubmitted{ClientOrderID: cmd.ClientOrderID},
	}))
	oid, _ := model.NewOrderID("VENUE-1")
	require.NoError(t, e.ApplyEvent(ctx, event.Envelope{
		EventID: "e2", EventTimestamp: ts(t, 2*time.Second), Kind: event.KindOrderAccepted,
		Payload: event.OrderAccepted{ClientOrderID: cmd.ClientOrderID, OrderID: oid},
	}))
	require.NoError(t, e.ApplyEvent(ctx, event.Envelope{
		EventID: "e3", EventTimestamp: ts(t, 3*time.Second), Kind: event.KindOrderWorking,
		Payload: event.OrderWorking{ClientOrderID: cmd.ClientOrderID},
	}))

	fillQty, _ := model.NewQuantity(decimal.NewFromInt(100), 2)
	fillPrice, _ := model.NewPrice(decimal.NewFromInt(10), 2)
	require.NoError(t, e.ApplyEvent(ctx, event.Envelope{
		EventID: "e4", EventTimestamp: ts(t, 4*time.Second), Kind: event.KindOrderFilled,
		Payload: event.OrderFilled{
			ClientOrderID: cmd.ClientOrderID, ExecutionID: "exec-1",
			StrategyID: cmd.StrategyID, Symbol: cmd.Symbol,
			Side: model.OrderSideBuy, FillQuantity: fillQty, FillPrice: fillPrice,
		},
	}))

	o, found, err := db.LoadOrder(ctx, cmd.ClientOrderID)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, order.StateFilled, o.State)

	positionID, err := positionKey(cmd.StrategyID, cmd.Symbol)
	require.NoError(t, err)
	p, found, err := db.LoadPosition(ctx, positionID)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, model.PositionSideLong, p.Side)
	assert.Equal(t, "100.00", p.Quantity.String())

	assert.Len(t, sub.received, 4)
}

func TestApplyEventOrphanIncrementsStats(t *testing.T) {
	e, _, _ := newTestEngine(t)
	ctx := context.Background()
	unknownCid, _ := model.NewClientOrderID("UNKNOWN")

	err := e.ApplyEvent(ctx, event.Envelope{
		EventID: "e1", EventTimestamp: ts(t, 0), Kind: event.KindOrderSubmitted,
		Payload: event.OrderSubmitted{ClientOrderID: unknownCid},
	})
	assert.Error(t, err)
	assert.Equal(t, uint64(1), e.Stats().OrphanEvents)
}

func TestCancelOrderQueuesWhileSubmittedAndFiresOnAccept(t *testing.T) {
	e, venue, _ := newTestEngine(t)
	ctx := context.Background()
	cmd := submitCmd(t, "CID-1")
	require.NoError(t, e.SubmitOrder(ctx, cmd, ts(t, 0)))

	require.NoError(t, e.ApplyEvent(ctx, event.Envelope{
		EventID: "e1", EventTimestamp: ts(t, time.Second), Kind: event.KindOrderSubmitted,
		Payload: event.OrderSubmitted{ClientOrderID: cmd.ClientOrderID},
	}))

	require.NoError(t, e.CancelOrder(ctx, CancelOrderCommand{ClientOrderID: cmd.ClientOrderID}))
	sentBefore := len(venue.sent)

	oid, _ := model.NewOrderID("VENUE-1")
	require.NoError(t, e.ApplyEvent(ctx, event.Envelope{
		EventID: "e2", EventTimestamp: ts(t, 2*time.Second), Kind: event.KindOrderAccepted,
		Payload: event.OrderAccepted{ClientOrderID: cmd.ClientOrderID, OrderID: oid},
	}))

	assert.Greater(t, len(venue.sent), sentBefore)
	assert.Equal(t, CommandCancelOrder, venue.sent[len(venue.sent)-1].Kind)
}

func TestSweepTimeoutsEmitsOrderCommandTimeoutWhenVenueNeverAcks(t *testing.T) {
	db := memstore.New()
	venue := newFakeVenue()
	e := New(db, venue, 20*time.Millisecond)

	sub := &recordingSubscriber{}
	e.Subscribe(sub)

	cmd := submitCmd(t, "CID-1")
	require.NoError(t, e.SubmitOrder(context.Background(), cmd, ts(t, 0)))

	// venue never acks; wait past commandTimeout and run the sweep by hand
	// rather than via Run, so the test doesn't depend on the ticker cadence.
	time.Sleep(30 * time.Millisecond)
	e.sweepTimeouts(context.Background())

	require.NotEmpty(t, sub.received)
	last := sub.received[len(sub.received)-1]
	assert.Equal(t, event.KindOrderCommandTimeout, last.Kind)
	payload, ok := last.Payload.(event.OrderCommandTimeout)
	require.True(t, ok)
	assert.Equal(t, cmd.ClientOrderID, payload.ClientOrderID)
	assert.Equal(t, uint64(1), e.Stats().CommandTimeouts)
}

func TestRecoverLoadsPersistedStateWithoutError(t *testing.T) {
	e, _, db := newTestEngine(t)
	ctx := context.Background()

	require.NoError(t, e.SubmitOrder(ctx, submitCmd(t, "CID-1"), ts(t, 0)))
	require.NoError(t, e.ApplyEvent(ctx, event.Envelope{
		EventID: "e1", EventTimestamp: ts(t, time.Second), Kind: event.KindOrderSubmitted,
		Payload: event.OrderSubmitted{ClientOrderID: mustClientOrderID(t, "CID-1")},
	}))

	require.NoError(t, e.Recover(ctx))

	working, err := db.WorkingOrders(ctx)
	require.NoError(t, err)
	assert.NotNil(t, working)
}

func mustClientOrderID(t *testing.T, s string) model.ClientOrderID {
	t.Helper()
	cid, err := model.NewClientOrderID(s)
	require.NoError(t, err)
	return cid
}
