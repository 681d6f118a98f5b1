package notify

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nova-trading/execengine/event"
	"github.com/nova-trading/execengine/model"
)

func envelope(t *testing.T, kind event.Kind, payload any) event.Envelope {
	t.Helper()
	ts, err := model.NewTimestamp(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	return event.Envelope{EventID: "evt-1", EventTimestamp: ts, SequenceNumber: 1, Kind: kind, Payload: payload}
}

func clientOrderID(t *testing.T) model.ClientOrderID {
	t.Helper()
	cid, err := model.NewClientOrderID("CID-1")
	require.NoError(t, err)
	return cid
}

func TestRenderRejectedProducesAlert(t *testing.T) {
	ev := envelope(t, event.KindOrderRejected, event.OrderRejected{
		ClientOrderID: clientOrderID(t),
		Reason:        "insufficient balance",
	})

	text, ok := render(ev)

	require.True(t, ok)
	assert.Contains(t, text, "CID-1")
	assert.Contains(t, text, "insufficient balance")
}

func TestRenderFilledProducesAlert(t *testing.T) {
	sym, err := model.NewSymbol("BTC-USD")
	require.NoError(t, err)
	qty, err := model.NewQuantity(decimal.NewFromFloat(1.5), 2)
	require.NoError(t, err)
	price, err := model.NewPrice(decimal.NewFromFloat(50000), 2)
	require.NoError(t, err)

	ev := envelope(t, event.KindOrderFilled, event.OrderFilled{
		ClientOrderID: clientOrderID(t),
		Symbol:        sym,
		FillQuantity:  qty,
		FillPrice:     price,
	})

	text, ok := render(ev)

	require.True(t, ok)
	assert.Contains(t, text, "BTC-USD")
	assert.Contains(t, text, "1.50")
	assert.Contains(t, text, "50000.00")
}

func TestRenderIgnoresUninterestingEvents(t *testing.T) {
	ev := envelope(t, event.KindOrderSubmitted, event.OrderSubmitted{ClientOrderID: clientOrderID(t)})

	_, ok := render(ev)

	assert.False(t, ok)
}
