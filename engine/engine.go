// Package engine implements the Execution Engine (spec.md §4.5): the
// single writer that applies venue events to Orders, Positions and
// Accounts, routes strategy commands to a venue client, and publishes
// every applied event to its subscribers synchronously. Grounded on the
// teacher's core/engine.go orchestration loop and execution/reconciler.go
// recovery pattern, generalized from bot-specific signal routing to the
// full order/position/account state machine this spec requires.
package engine

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/nova-trading/execengine/account"
	"github.com/nova-trading/execengine/event"
	"github.com/nova-trading/execengine/model"
	"github.com/nova-trading/execengine/order"
	"github.com/nova-trading/execengine/position"
	"github.com/nova-trading/execengine/store"
)

// DefaultCommandTimeout is how long the engine waits for a venue ack
// before emitting a synthetic OrderCommandTimeout event (spec.md §5).
const DefaultCommandTimeout = 5 * time.Second

// Stats are the engine's ops-facing counters (supplements spec.md §4.5
// with the orphan/invalid-transition visibility an operator needs).
type Stats struct {
	OrphanEvents        uint64
	InvalidTransitions  uint64
	CommandTimeouts     uint64
	EventsApplied       uint64
}

// pendingCommand tracks a command awaiting a venue ack for the
// command-timeout sweep.
type pendingCommand struct {
	kind     CommandKind
	deadline time.Time
}

// Engine is the single writer over the execution state store. Every
// mutating method must be called from the same goroutine that runs
// Run - the domain entities it touches carry no internal locking of
// their own, by design (spec.md §3).
type Engine struct {
	db             store.Database
	venue          VenueClient
	commandTimeout time.Duration

	mu            sync.Mutex // guards subscribers, pending, queuedCancels, stats only
	subscribers   []Subscriber
	pending       map[model.ClientOrderID]pendingCommand
	queuedCancels map[model.ClientOrderID]bool

	seq   uint64
	stats Stats

	stopCh chan struct{}
}

// New constructs an Engine over db, routing commands through venue.
func New(db store.Database, venue VenueClient, commandTimeout time.Duration) *Engine {
	if commandTimeout <= 0 {
		commandTimeout = DefaultCommandTimeout
	}
	return &Engine{
		db:             db,
		venue:          venue,
		commandTimeout: commandTimeout,
		pending:        make(map[model.ClientOrderID]pendingCommand),
		queuedCancels:  make(map[model.ClientOrderID]bool),
		stopCh:         make(chan struct{}),
	}
}

// Subscribe registers s to receive every event the engine applies.
func (e *Engine) Subscribe(s Subscriber) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.subscribers = append(e.subscribers, s)
}

// Stats returns a snapshot of the engine's counters.
func (e *Engine) Stats() Stats {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stats
}

// Run drives the engine's event loop: venue events are applied as they
// arrive, and a periodic sweep expires commands that never got a venue
// ack within commandTimeout. Run blocks until ctx is cancelled or Stop
// is called.
func (e *Engine) Run(ctx context.Context) {
	sweep := time.NewTicker(e.commandTimeout / 2)
	defer sweep.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-e.stopCh:
			return
		case ev, ok := <-e.venue.Events():
			if !ok {
				return
			}
			if err := e.ApplyEvent(ctx, ev); err != nil {
				log.Error().Err(err).Str("kind", string(ev.Kind)).Msg("failed to apply venue event")
			}
		case <-sweep.C:
			e.sweepTimeouts(ctx)
		}
	}
}

// Stop ends a running Run loop.
func (e *Engine) Stop() {
	close(e.stopCh)
}

// nextSequence hands out the monotonically increasing sequence number
// used for the tie-break rule in event.Less.
func (e *Engine) nextSequence() uint64 {
	return atomic.AddUint64(&e.seq, 1)
}

// SubmitOrder creates a new Order in Initialized state, persists it, and
// routes a SubmitOrder command to the venue.
func (e *Engine) SubmitOrder(ctx context.Context, cmd SubmitOrderCommand, ts model.Timestamp) error {
	o, err := order.NewFromInitialized(event.OrderInitialized{
		ClientOrderID: cmd.ClientOrderID,
		StrategyID:    cmd.StrategyID,
		Symbol:        cmd.Symbol,
		Side:          cmd.Side,
		Type:          cmd.Type,
		Quantity:      cmd.Quantity,
		Price:         cmd.Price,
		TimeInForce:   cmd.TimeInForce,
		InitID:        cmd.InitID,
		TsInit:        ts,
	})
	if err != nil {
		return err
	}
	if err := e.db.AddOrder(ctx, o); err != nil {
		return err
	}

	e.publish(event.Envelope{
		EventID:        cmd.InitID,
		EventTimestamp: ts,
		SequenceNumber: e.nextSequence(),
		Kind:           event.KindOrderInitialized,
		Payload: event.OrderInitialized{
			ClientOrderID: cmd.ClientOrderID,
			StrategyID:    cmd.StrategyID,
			Symbol:        cmd.Symbol,
			Side:          cmd.Side,
			Type:          cmd.Type,
			Quantity:      cmd.Quantity,
			Price:         cmd.Price,
			TimeInForce:   cmd.TimeInForce,
			InitID:        cmd.InitID,
			TsInit:        ts,
		},
	})

	e.trackPending(cmd.ClientOrderID, CommandSubmitOrder)
	return e.venue.Send(ctx, Command{Kind: CommandSubmitOrder, ClientOrderID: cmd.ClientOrderID, Payload: cmd})
}

// CancelOrder cancels a working order immediately, or - if the order has
// been submitted but not yet acknowledged - queues the cancel to fire as
// soon as the acknowledgement (Accepted or Working) lands. This is the
// queued-cancel behavior spec.md §4.5 implies but does not spell out: a
// venue cannot cancel an order it hasn't acknowledged yet.
func (e *Engine) CancelOrder(ctx context.Context, cmd CancelOrderCommand) error {
	o, found, err := e.db.LoadOrder(ctx, cmd.ClientOrderID)
	if err != nil {
		return err
	}
	if !found {
		return ErrOrderNotFound
	}

	switch o.State {
	case order.StateAccepted, order.StateWorking, order.StatePartiallyFilled:
		e.trackPending(cmd.ClientOrderID, CommandCancelOrder)
		return e.venue.Send(ctx, Command{Kind: CommandCancelOrder, ClientOrderID: cmd.ClientOrderID, Payload: cmd})
	case order.StateSubmitted:
		e.mu.Lock()
		e.queuedCancels[cmd.ClientOrderID] = true
		e.mu.Unlock()
		return nil
	default:
		return fmt.Errorf("%w: order %s not cancellable from state %s", order.ErrInvalidStateTransition, cmd.ClientOrderID, o.State)
	}
}

// AmendOrder replaces a working order's quantity and/or price.
func (e *Engine) AmendOrder(ctx context.Context, cmd AmendOrderCommand) error {
	o, found, err := e.db.LoadOrder(ctx, cmd.ClientOrderID)
	if err != nil {
		return err
	}
	if !found {
		return ErrOrderNotFound
	}
	if o.State != order.StateWorking {
		return fmt.Errorf("%w: order %s not amendable from state %s", order.ErrInvalidStateTransition, cmd.ClientOrderID, o.State)
	}

	e.trackPending(cmd.ClientOrderID, CommandAmendOrder)
	return e.venue.Send(ctx, Command{Kind: CommandAmendOrder, ClientOrderID: cmd.ClientOrderID, Payload: cmd})
}

// FlattenPosition issues the opposite-side order needed to return a
// position to flat.
func (e *Engine) FlattenPosition(ctx context.Context, cmd FlattenPositionCommand) error {
	p, found, err := e.db.LoadPosition(ctx, cmd.PositionID)
	if err != nil {
		return err
	}
	if !found || p.IsFlat() {
		return ErrPositionNotFound
	}

	flattenSide := p.Side.OrderSide().Opposite()

	submit := SubmitOrderCommand{
		ClientOrderID: cmd.ClientOrderID,
		StrategyID:    p.StrategyID,
		Symbol:        p.Symbol,
		Side:          flattenSide,
		Type:          model.OrderTypeMarket,
		Quantity:      p.Quantity,
		Price:         model.ZeroPrice(p.Quantity.Scale()),
		TimeInForce:   model.TimeInForceIOC,
		InitID:        cmd.ClientOrderID.String(),
	}
	return e.SubmitOrder(ctx, submit, model.Now())
}

// ApplyEvent is the per-event pipeline from spec.md §4.5: locate the
// order the event names, apply it through the state machine, fold fills
// into the matching position, persist both, and publish the event to
// every subscriber synchronously.
func (e *Engine) ApplyEvent(ctx context.Context, ev event.Envelope) error {
	if ev.Kind == event.KindAccountState {
		return e.applyAccountState(ctx, ev)
	}

	clientOrderID, ok := clientOrderIDOf(ev)
	if !ok {
		e.mu.Lock()
		e.stats.OrphanEvents++
		e.mu.Unlock()
		return ErrUnroutablePayload
	}

	o, found, err := e.db.LoadOrder(ctx, clientOrderID)
	if err != nil {
		return err
	}
	if !found {
		e.mu.Lock()
		e.stats.OrphanEvents++
		e.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrOrderNotFound, clientOrderID)
	}

	if err := o.Apply(ev); err != nil {
		e.mu.Lock()
		e.stats.InvalidTransitions++
		e.mu.Unlock()
		return err
	}
	e.clearPending(clientOrderID)

	if err := e.db.UpdateOrder(ctx, o); err != nil {
		return err
	}

	if fill, ok := ev.Payload.(event.OrderFilled); ok {
		if err := e.applyFillToPosition(ctx, o, fill, ev.EventTimestamp); err != nil {
			return err
		}
	}

	if o.State == order.StateAccepted || o.State == order.StateWorking {
		e.fireQueuedCancel(ctx, clientOrderID)
	}

	e.mu.Lock()
	e.stats.EventsApplied++
	e.mu.Unlock()

	e.publish(ev)
	return nil
}

// applyFillToPosition folds a fill into the position keyed by the
// order's strategy and symbol, creating one if none is open yet.
func (e *Engine) applyFillToPosition(ctx context.Context, o *order.Order, fill event.OrderFilled, ts model.Timestamp) error {
	positionID, err := positionKey(o.StrategyID, o.Symbol)
	if err != nil {
		return err
	}

	existing, found, err := e.db.LoadPosition(ctx, positionID)
	if err != nil {
		return err
	}

	if !found {
		p := position.New(positionID, o.StrategyID, o.Symbol, fill.Side, fill.FillQuantity, fill.FillPrice, ts)
		return e.db.AddPosition(ctx, &p)
	}

	next, err := existing.ApplyFill(fill.Side, fill.FillQuantity, fill.FillPrice, ts)
	if err != nil {
		return err
	}
	*existing = next
	return e.db.UpdatePosition(ctx, existing)
}

func (e *Engine) applyAccountState(ctx context.Context, ev event.Envelope) error {
	state, ok := ev.Payload.(event.AccountState)
	if !ok {
		return ErrUnroutablePayload
	}

	existing, found, err := e.db.LoadAccount(ctx, state.AccountID)
	if err != nil {
		return err
	}
	if !found {
		a := account.New(state.AccountID).ApplyState(state.Balances, ev.EventTimestamp)
		if err := e.db.AddAccount(ctx, a); err != nil {
			return err
		}
	} else {
		next := existing.ApplyState(state.Balances, ev.EventTimestamp)
		if err := e.db.UpdateAccount(ctx, next); err != nil {
			return err
		}
	}

	e.mu.Lock()
	e.stats.EventsApplied++
	e.mu.Unlock()
	e.publish(ev)
	return nil
}

// publish fans ev out to every subscriber synchronously, in registration
// order, matching spec.md §4.5's "publishes events to subscribers
// synchronously" requirement.
func (e *Engine) publish(ev event.Envelope) {
	e.mu.Lock()
	subscribers := make([]Subscriber, len(e.subscribers))
	copy(subscribers, e.subscribers)
	e.mu.Unlock()

	for _, s := range subscribers {
		s.OnEvent(ev)
	}
}

func (e *Engine) trackPending(id model.ClientOrderID, kind CommandKind) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.pending[id] = pendingCommand{kind: kind, deadline: time.Now().Add(e.commandTimeout)}
}

func (e *Engine) clearPending(id model.ClientOrderID) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.pending, id)
}

func (e *Engine) fireQueuedCancel(ctx context.Context, id model.ClientOrderID) {
	e.mu.Lock()
	queued := e.queuedCancels[id]
	delete(e.queuedCancels, id)
	e.mu.Unlock()

	if !queued {
		return
	}
	if err := e.CancelOrder(ctx, CancelOrderCommand{ClientOrderID: id}); err != nil {
		log.Error().Err(err).Str("client_order_id", id.String()).Msg("failed to fire queued cancel")
	}
}

// sweepTimeouts emits a synthetic OrderCommandTimeout event for every
// pending command whose deadline has passed without a venue ack
// (spec.md §5, the supplemented command-timeout feature).
func (e *Engine) sweepTimeouts(ctx context.Context) {
	now := time.Now()
	e.mu.Lock()
	var expired []model.ClientOrderID
	for id, p := range e.pending {
		if now.After(p.deadline) {
			expired = append(expired, id)
		}
	}
	for _, id := range expired {
		delete(e.pending, id)
		e.stats.CommandTimeouts++
	}
	e.mu.Unlock()

	for _, id := range expired {
		e.publish(event.Envelope{
			EventID:        "timeout-" + id.String(),
			EventTimestamp: model.Now(),
			SequenceNumber: e.nextSequence(),
			Kind:           event.KindOrderCommandTimeout,
			Payload:        event.OrderCommandTimeout{ClientOrderID: id, Command: "unknown"},
		})
	}
}

// positionKey derives the deterministic position id a strategy/symbol
// pair maps to - positions are engine-issued, but stable so an
// already-open position for the pair is always the one reused.
func positionKey(strategyID model.StrategyID, symbol model.Symbol) (model.PositionID, error) {
	return model.NewPositionID(strategyID.String() + ":" + symbol.String())
}

// clientOrderIDOf extracts the client_order_id routing key carried by
// every order-lifecycle event payload.
func clientOrderIDOf(ev event.Envelope) (model.ClientOrderID, bool) {
	switch p := ev.Payload.(type) {
	case event.OrderInitialized:
		return p.ClientOrderID, true
	case event.OrderSubmitted:
		return p.ClientOrderID, true
	case event.OrderAccepted:
		return p.ClientOrderID, true
	case event.OrderRejected:
		return p.ClientOrderID, true
	case event.OrderWorking:
		return p.ClientOrderID, true
	case event.OrderAmended:
		return p.ClientOrderID, true
	case event.OrderCancelled:
		return p.ClientOrderID, true
	case event.OrderExpired:
		return p.ClientOrderID, true
	case event.OrderFilled:
		return p.ClientOrderID, true
	case event.OrderCommandTimeout:
		return p.ClientOrderID, true
	default:
		return model.ClientOrderID{}, false
	}
}
