package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ldap-admin/internal/event"
)

func startHub(t *testing.T) (*Hub, *event.InMemoryBus, *httptest.Server) {
	t.Helper()

	bus := event.NewBus()
	hub := NewHub(bus)

	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)
	t.Cleanup(cancel)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := Serve(hub, w, r, "alice"); err != nil {
			t.Logf("serve: %v", err)
		}
	}))
	t.Cleanup(server.Close)

	return hub, bus, server
}

func dial(t *testing.T, server *httptest.Server) *websocket.Conn {
	t.Helper()

	url := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	_ = resp.Body.Close()
	t.Cleanup(func() { _ = conn.Close() })

	return conn
}

func TestHubBroadcastsBusEvents(t *testing.T) {
	hub, bus, server := startHub(t)

	first := dial(t, server)
	second := dial(t, server)
	require.Eventually(t, func() bool { return hub.ClientCount() == 2 }, 2*time.Second, 10*time.Millisecond)

	bus.Publish(event.Event{
		Type:    event.TypeActivityRecorded,
		Payload: map[string]any{"action": "user_created"},
		ActorID: "alice",
	})

	for _, conn := range []*websocket.Conn{first, second} {
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
		_, message, err := conn.ReadMessage()
		require.NoError(t, err)

		var received event.Event
		require.NoError(t, json.Unmarshal(message, &received))
		assert.Equal(t, event.TypeActivityRecorded, received.Type)
		assert.Equal(t, "alice", received.ActorID)
		assert.NotEmpty(t, received.ID)
	}
}

func TestHubUnregistersClosedClients(t *testing.T) {
	hub, _, server := startHub(t)

	conn := dial(t, server)
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, conn.Close())
	require.Eventually(t, func() bool { return hub.ClientCount() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestHubStopClosesClients(t *testing.T) {
	bus := event.NewBus()
	hub := NewHub(bus)

	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(stopped)
	}()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = Serve(hub, w, r, "bob")
	}))
	defer server.Close()

	conn := dial(t, server)
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, 2*time.Second, 10*time.Millisecond)

	cancel()
	<-stopped

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := conn.ReadMessage()
	require.Error(t, err)
	assert.Equal(t, 0, hub.ClientCount())
}
