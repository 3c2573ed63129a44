// Package transport provides the reference host.Messenger over
// gorilla/websocket, grounded in the teacher's pkg/rpc connection hub and
// rpc_node.go dispatch loop. Connections are tracked by participant
// identifier (the hex address string used as wire.Envelope.To); inbound
// replies correlated to an outstanding SendAndWait are delivered to the
// waiting caller, everything else is handed to OnMessage for the
// orchestrator to Dispatch as a fresh responder run.
package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/chanlattice/installproto/wire"
)

// OnMessage is invoked for every inbound envelope that does not correlate to
// an outstanding SendAndWait call.
type OnMessage func(from string, env wire.Envelope)

// Hub tracks one websocket connection per participant identifier and
// correlates replies to outstanding SendAndWait calls by processID.
type Hub struct {
	mu    sync.RWMutex
	conns map[string]*websocket.Conn

	pendingMu sync.Mutex
	pending   map[string]chan wire.Envelope

	OnMessage OnMessage
}

// NewHub builds an empty Hub.
func NewHub() *Hub {
	return &Hub{
		conns:   make(map[string]*websocket.Conn),
		pending: make(map[string]chan wire.Envelope),
	}
}

// Register associates identifier with an open connection and starts its read
// loop. The read loop runs until the connection closes.
func (h *Hub) Register(identifier string, conn *websocket.Conn) {
	h.mu.Lock()
	h.conns[identifier] = conn
	h.mu.Unlock()

	go h.readLoop(identifier, conn)
}

func (h *Hub) readLoop(identifier string, conn *websocket.Conn) {
	defer func() {
		h.mu.Lock()
		delete(h.conns, identifier)
		h.mu.Unlock()
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var env wire.Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			continue
		}

		h.pendingMu.Lock()
		ch, waiting := h.pending[env.ProcessID]
		if waiting {
			delete(h.pending, env.ProcessID)
		}
		h.pendingMu.Unlock()

		if waiting {
			ch <- env
			continue
		}
		if h.OnMessage != nil {
			h.OnMessage(identifier, env)
		}
	}
}

// Messenger is the reference host.Messenger.
type Messenger struct {
	hub *Hub
}

// New builds a Messenger over hub.
func New(hub *Hub) *Messenger { return &Messenger{hub: hub} }

func (m *Messenger) connFor(to string) (*websocket.Conn, error) {
	m.hub.mu.RLock()
	defer m.hub.mu.RUnlock()
	conn, ok := m.hub.conns[to]
	if !ok {
		return nil, fmt.Errorf("transport: no open connection to %s", to)
	}
	return conn, nil
}

// Send implements host.Messenger: fire-and-forget IO_SEND.
func (m *Messenger) Send(_ context.Context, env wire.Envelope) error {
	conn, err := m.connFor(env.To)
	if err != nil {
		return err
	}
	return conn.WriteJSON(env)
}

// SendAndWait implements host.Messenger: IO_SEND_AND_WAIT. It blocks until a
// reply carrying the same ProcessID arrives, or ctx is done.
func (m *Messenger) SendAndWait(ctx context.Context, env wire.Envelope) (wire.Envelope, error) {
	conn, err := m.connFor(env.To)
	if err != nil {
		return wire.Envelope{}, err
	}

	ch := make(chan wire.Envelope, 1)
	m.hub.pendingMu.Lock()
	m.hub.pending[env.ProcessID] = ch
	m.hub.pendingMu.Unlock()

	if err := conn.WriteJSON(env); err != nil {
		m.hub.pendingMu.Lock()
		delete(m.hub.pending, env.ProcessID)
		m.hub.pendingMu.Unlock()
		return wire.Envelope{}, err
	}

	select {
	case reply := <-ch:
		return reply, nil
	case <-ctx.Done():
		m.hub.pendingMu.Lock()
		delete(m.hub.pending, env.ProcessID)
		m.hub.pendingMu.Unlock()
		return wire.Envelope{}, ctx.Err()
	}
}
