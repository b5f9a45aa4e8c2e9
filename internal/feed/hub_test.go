package feed

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/park285/cheese-session/pkg/chessdto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.Dial(ctx, url, nil)
	require.NoError(t, err)
	return conn
}

func waitClients(t *testing.T, h *Hub, n int) {
	t.Helper()
	require.Eventually(t, func() bool { return h.Clients() == n }, 2*time.Second, 10*time.Millisecond)
}

func TestHubBroadcast(t *testing.T) {
	hub := NewHub(nil)
	srv := httptest.NewServer(hub)
	defer srv.Close()
	defer hub.Close()

	a := dial(t, srv)
	defer a.Close(websocket.StatusNormalClosure, "")
	b := dial(t, srv)
	defer b.Close(websocket.StatusNormalClosure, "")
	waitClients(t, hub, 2)

	hub.Publish(chessdto.Projection{SessionID: "s-1", MoveCount: 3, Status: "active"})

	for _, conn := range []*websocket.Conn{a, b} {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		var got chessdto.Projection
		require.NoError(t, wsjson.Read(ctx, conn, &got))
		cancel()
		assert.Equal(t, "s-1", got.SessionID)
		assert.Equal(t, 3, got.MoveCount)
	}
}

func TestHubReplaysLastProjection(t *testing.T) {
	hub := NewHub(nil)
	srv := httptest.NewServer(hub)
	defer srv.Close()
	defer hub.Close()

	hub.Publish(chessdto.Projection{SessionID: "s-2", MoveCount: 5})
	conn := dial(t, srv)
	defer conn.Close(websocket.StatusNormalClosure, "")

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	var got chessdto.Projection
	require.NoError(t, wsjson.Read(ctx, conn, &got))
	assert.Equal(t, 5, got.MoveCount)
}

func TestHubForgetsClosedClients(t *testing.T) {
	hub := NewHub(nil)
	srv := httptest.NewServer(hub)
	defer srv.Close()

	conn := dial(t, srv)
	waitClients(t, hub, 1)
	require.NoError(t, conn.Close(websocket.StatusNormalClosure, "bye"))
	waitClients(t, hub, 0)
}

func TestWatchReceivesProjections(t *testing.T) {
	hub := NewHub(nil)
	srv := httptest.NewServer(hub)
	defer srv.Close()
	defer hub.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	got := make(chan chessdto.Projection, 1)
	go func() {
		_ = Watch(ctx, "ws"+strings.TrimPrefix(srv.URL, "http"), WatchOptions{}, func(p chessdto.Projection) {
			select {
			case got <- p:
			default:
			}
		})
	}()
	waitClients(t, hub, 1)
	hub.Publish(chessdto.Projection{SessionID: "s-3"})

	select {
	case p := <-got:
		assert.Equal(t, "s-3", p.SessionID)
	case <-ctx.Done():
		t.Fatal("no projection received")
	}
}
