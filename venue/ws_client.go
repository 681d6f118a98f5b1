// Package venue is a reference execution-client adapter (spec.md §6):
// it satisfies engine.VenueClient over a websocket connection, the way
// the teacher's feeds/polymarket_ws.go talks to a market-data stream and
// exec/client.go talks to the Polymarket CLOB. It exists to exercise the
// engine end-to-end against a real transport; a production deployment
// would swap this for a venue-specific client behind the same interface.
package venue

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/nova-trading/execengine/engine"
	"github.com/nova-trading/execengine/event"
	"github.com/nova-trading/execengine/model"
)

const (
	reconnectDelay = 5 * time.Second
	pingInterval   = 30 * time.Second
	priceScale     = 2
	quantityScale  = 2
)

// WSClient is a minimal websocket execution client: outgoing commands
// are JSON-encoded and written to the socket, incoming frames are
// decoded into event.Envelope and handed to the engine through Events().
type WSClient struct {
	url string

	mu        sync.RWMutex
	conn      *websocket.Conn
	connected bool
	disposed  bool
	stopCh    chan struct{}

	events chan event.Envelope
	seq    uint64
}

var _ engine.VenueClient = (*WSClient)(nil)

// New returns a WSClient that will dial url on Connect.
func New(url string) *WSClient {
	return &WSClient{
		url:    url,
		stopCh: make(chan struct{}),
		events: make(chan event.Envelope, 1024),
	}
}

// Connect dials the venue and starts the read loop.
func (c *WSClient) Connect(ctx context.Context) error {
	c.mu.RLock()
	disposed := c.disposed
	c.mu.RUnlock()
	if disposed {
		return fmt.Errorf("venue: client disposed")
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.url, nil)
	if err != nil {
		return fmt.Errorf("venue: dial %s: %w", c.url, err)
	}

	c.mu.Lock()
	c.conn = conn
	c.connected = true
	c.mu.Unlock()

	go c.readLoop()
	go c.pingLoop()

	log.Info().Str("url", c.url).Msg("venue websocket connected")
	return nil
}

// Disconnect closes the connection and stops background loops. The
// client may be reconnected afterward with Connect.
func (c *WSClient) Disconnect() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.connected {
		return nil
	}
	c.connected = false
	close(c.stopCh)
	return c.conn.Close()
}

// Dispose tears down the connection for good (spec.md §6's
// connect/disconnect/dispose lifecycle): after Dispose the client must
// not be reconnected.
func (c *WSClient) Dispose() error {
	err := c.Disconnect()
	c.mu.Lock()
	c.disposed = true
	c.mu.Unlock()
	return err
}

// Send encodes cmd as a wire command and writes it to the socket.
func (c *WSClient) Send(ctx context.Context, cmd engine.Command) error {
	c.mu.RLock()
	conn := c.conn
	c.mu.RUnlock()
	if conn == nil {
		return fmt.Errorf("venue: not connected")
	}

	wire, err := toWireCommand(cmd)
	if err != nil {
		return err
	}
	log.Debug().Str("command", marshalForLog(wire)).Msg("venue: sending command")
	return conn.WriteJSON(wire)
}

// Events returns the channel venue-originated events arrive on, in the
// order the venue declared them.
func (c *WSClient) Events() <-chan event.Envelope {
	return c.events
}

func (c *WSClient) readLoop() {
	defer close(c.events)
	for {
		select {
		case <-c.stopCh:
			return
		default:
		}

		c.mu.RLock()
		conn := c.conn
		c.mu.RUnlock()
		if conn == nil {
			return
		}

		var frame wireEvent
		if err := conn.ReadJSON(&frame); err != nil {
			log.Error().Err(err).Msg("venue websocket read failed")
			return
		}

		ev, err := frame.toEnvelope(c.nextSequence())
		if err != nil {
			log.Warn().Err(err).Str("kind", frame.Kind).Msg("dropping malformed venue frame")
			continue
		}

		select {
		case c.events <- ev:
		case <-c.stopCh:
			return
		}
	}
}

func (c *WSClient) pingLoop() {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-c.stopCh:
			return
		case <-ticker.C:
			c.mu.RLock()
			conn := c.conn
			c.mu.RUnlock()
			if conn != nil {
				_ = conn.WriteMessage(websocket.PingMessage, nil)
			}
		}
	}
}

func (c *WSClient) nextSequence() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq++
	return c.seq
}

// wireCommand is the JSON shape written to the socket for an outgoing
// Command.
type wireCommand struct {
	Kind          string `json:"kind"`
	ClientOrderID string `json:"client_order_id"`
	Symbol        string `json:"symbol,omitempty"`
	Side          string `json:"side,omitempty"`
	Type          string `json:"type,omitempty"`
	Quantity      string `json:"quantity,omitempty"`
	Price         string `json:"price,omitempty"`
	TimeInForce   string `json:"time_in_force,omitempty"`
}

func toWireCommand(cmd engine.Command) (wireCommand, error) {
	wire := wireCommand{Kind: string(cmd.Kind), ClientOrderID: cmd.ClientOrderID.String()}
	switch p := cmd.Payload.(type) {
	case engine.SubmitOrderCommand:
		wire.Symbol = p.Symbol.String()
		wire.Side = string(p.Side)
		wire.Type = string(p.Type)
		wire.Quantity = p.Quantity.String()
		wire.Price = p.Price.String()
		wire.TimeInForce = string(p.TimeInForce)
	case engine.CancelOrderCommand:
	case engine.AmendOrderCommand:
		wire.Quantity = p.Quantity.String()
		wire.Price = p.Price.String()
	}
	return wire, nil
}

// wireEvent is the JSON shape a venue frame arrives in.
type wireEvent struct {
	EventID       string `json:"event_id"`
	Kind          string `json:"kind"`
	ClientOrderID string `json:"client_order_id"`
	OrderID       string `json:"order_id,omitempty"`
	StrategyID    string `json:"strategy_id,omitempty"`
	Symbol        string `json:"symbol,omitempty"`
	Side          string `json:"side,omitempty"`
	ExecutionID   string `json:"execution_id,omitempty"`
	Quantity      string `json:"quantity,omitempty"`
	Price         string `json:"price,omitempty"`
	Reason        string `json:"reason,omitempty"`
	TimestampUnix int64  `json:"ts_unix_nano"`
}

func (w wireEvent) toEnvelope(seq uint64) (event.Envelope, error) {
	cid, err := model.NewClientOrderID(w.ClientOrderID)
	if err != nil {
		return event.Envelope{}, err
	}
	ts, err := model.NewTimestamp(time.Unix(0, w.TimestampUnix).UTC())
	if err != nil {
		return event.Envelope{}, err
	}

	env := event.Envelope{EventID: w.EventID, EventTimestamp: ts, SequenceNumber: seq, Kind: event.Kind(w.Kind)}

	switch event.Kind(w.Kind) {
	case event.KindOrderSubmitted:
		env.Payload = event.OrderSubmitted{ClientOrderID: cid}
	case event.KindOrderAccepted:
		oid, err := model.NewOrderID(w.OrderID)
		if err != nil {
			return event.Envelope{}, err
		}
		env.Payload = event.OrderAccepted{ClientOrderID: cid, OrderID: oid}
	case event.KindOrderRejected:
		env.Payload = event.OrderRejected{ClientOrderID: cid, Reason: w.Reason}
	case event.KindOrderWorking:
		env.Payload = event.OrderWorking{ClientOrderID: cid}
	case event.KindOrderCancelled:
		env.Payload = event.OrderCancelled{ClientOrderID: cid}
	case event.KindOrderExpired:
		env.Payload = event.OrderExpired{ClientOrderID: cid}
	case event.KindOrderFilled:
		strat, err := model.NewStrategyID(w.StrategyID)
		if err != nil {
			return event.Envelope{}, err
		}
		sym, err := model.NewSymbol(w.Symbol)
		if err != nil {
			return event.Envelope{}, err
		}
		qtyDec, err := decimal.NewFromString(w.Quantity)
		if err != nil {
			return event.Envelope{}, err
		}
		qty, err := model.NewQuantity(qtyDec, quantityScale)
		if err != nil {
			return event.Envelope{}, err
		}
		priceDec, err := decimal.NewFromString(w.Price)
		if err != nil {
			return event.Envelope{}, err
		}
		fillPrice, err := model.NewPrice(priceDec, priceScale)
		if err != nil {
			return event.Envelope{}, err
		}
		env.Payload = event.OrderFilled{
			ClientOrderID: cid,
			ExecutionID:   w.ExecutionID,
			StrategyID:    strat,
			Symbol:        sym,
			Side:          model.OrderSide(w.Side),
			FillQuantity:  qty,
			FillPrice:     fillPrice,
		}
	default:
		return event.Envelope{}, fmt.Errorf("venue: unsupported event kind %q", w.Kind)
	}

	return env, nil
}

// marshalForLog renders cmd for structured log fields without leaking a
// full JSON dump at info level.
func marshalForLog(cmd wireCommand) string {
	b, err := json.Marshal(cmd)
	if err != nil {
		return "<unmarshalable>"
	}
	return string(b)
}
