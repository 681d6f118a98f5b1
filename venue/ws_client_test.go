package venue

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nova-trading/execengine/engine"
	"github.com/nova-trading/execengine/event"
	"github.com/nova-trading/execengine/model"
)

var upgrader = websocket.Upgrader{}

func TestWSClientRoundTrip(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		defer conn.Close()

		var cmd wireCommand
		require.NoError(t, conn.ReadJSON(&cmd))
		assert.Equal(t, "SubmitOrder", cmd.Kind)

		frame := wireEvent{
			EventID:       "ack-1",
			Kind:          string(event.KindOrderAccepted),
			ClientOrderID: cmd.ClientOrderID,
			OrderID:       "VENUE-1",
			TimestampUnix: time.Now().UnixNano(),
		}
		require.NoError(t, conn.WriteJSON(frame))
		time.Sleep(50 * time.Millisecond)
	}))
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")
	client := New(wsURL)
	require.NoError(t, client.Connect(context.Background()))
	defer client.Disconnect()

	cid, err := model.NewClientOrderID("CID-1")
	require.NoError(t, err)
	err = client.Send(context.Background(), engine.Command{
		Kind:          engine.CommandSubmitOrder,
		ClientOrderID: cid,
		Payload: engine.SubmitOrderCommand{
			ClientOrderID: cid,
		},
	})
	require.NoError(t, err)

	select {
	case ev := <-client.Events():
		assert.Equal(t, event.KindOrderAccepted, ev.Kind)
		payload, ok := ev.Payload.(event.OrderAccepted)
		require.True(t, ok)
		assert.Equal(t, "CID-1", payload.ClientOrderID.String())
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for venue event")
	}
}
