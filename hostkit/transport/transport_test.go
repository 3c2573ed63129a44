package transport

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/chanlattice/installproto/wire"
)

// serveHub wraps hub behind an httptest server, upgrading every connection
// under the given identifier.
func serveHub(t *testing.T, hub *Hub, identifier string) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		hub.Register(identifier, conn)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + srv.URL[len("http"):]
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func TestMessenger_SendAndWait_CorrelatesByProcessID(t *testing.T) {
	hub := NewHub()
	srv := serveHub(t, hub, "peer-a")
	peerConn := dial(t, srv)

	// Give the hub's readLoop goroutine a moment to register the connection.
	time.Sleep(50 * time.Millisecond)

	msn := New(hub)

	done := make(chan error, 1)
	var reply wire.Envelope
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		var err error
		reply, err = msn.SendAndWait(ctx, wire.Envelope{ProcessID: "proc-1", To: "peer-a", Seq: 1})
		done <- err
	}()

	// Act as the remote peer: read the outbound envelope, then reply.
	_, data, err := peerConn.ReadMessage()
	require.NoError(t, err)
	var received wire.Envelope
	require.NoError(t, json.Unmarshal(data, &received))

	require.NoError(t, peerConn.WriteJSON(wire.Envelope{ProcessID: "proc-1", Seq: wire.UnassignedSeqNo}))

	require.NoError(t, <-done)
	require.Equal(t, "proc-1", reply.ProcessID)
}

func TestMessenger_Send_NoOpenConnection(t *testing.T) {
	hub := NewHub()
	msn := New(hub)

	err := msn.Send(context.Background(), wire.Envelope{To: "nobody"})
	require.Error(t, err)
}

func TestMessenger_SendAndWait_CancelledContext(t *testing.T) {
	hub := NewHub()
	srv := serveHub(t, hub, "peer-b")
	dial(t, srv)
	time.Sleep(50 * time.Millisecond)

	msn := New(hub)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := msn.SendAndWait(ctx, wire.Envelope{ProcessID: "proc-2", To: "peer-b"})
	require.Error(t, err)
}
