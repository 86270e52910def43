// Package gateway owns the socket edge of the pipeline: it accepts
// WebSocket connections, stamps frames with server-owned connection ids,
// publishes them to the raw intake queue, and pushes routed outcomes back
// out over the live sockets.
package gateway

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/chatmesh-io/chatmesh/internal/crypto"
	"github.com/chatmesh-io/chatmesh/internal/metrics"
)

const writeTimeout = 10 * time.Second

// Conn wraps one live socket. The write mutex keeps concurrent delivery
// workers from interleaving frames; gorilla permits only one writer.
type Conn struct {
	id string
	ws *websocket.Conn

	mu sync.Mutex
}

// ID returns the server-generated connection id.
func (c *Conn) ID() string {
	return c.id
}

// WriteJSON sends one JSON frame to the client.
func (c *Conn) WriteJSON(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ws.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.ws.WriteJSON(v)
}

func (c *Conn) closeWith(code int, reason string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	msg := websocket.FormatCloseMessage(code, reason)
	c.ws.SetWriteDeadline(time.Now().Add(writeTimeout))
	c.ws.WriteMessage(websocket.CloseMessage, msg)
	c.ws.Close()
}

// ConnectionStore is the synchronized directory of live sockets. Sockets
// are owned exclusively by the store and referenced by id everywhere else.
type ConnectionStore struct {
	mu    sync.RWMutex
	conns map[string]*Conn
}

// NewConnectionStore creates an empty store.
func NewConnectionStore() *ConnectionStore {
	return &ConnectionStore{conns: make(map[string]*Conn)}
}

// Add registers a socket and returns its generated connection id.
func (s *ConnectionStore) Add(ws *websocket.Conn) string {
	conn := &Conn{id: crypto.NewConnectionID(), ws: ws}

	s.mu.Lock()
	s.conns[conn.id] = conn
	s.mu.Unlock()

	metrics.ConnectionsOpen.Inc()
	return conn.id
}

// Get returns the live connection for an id.
func (s *ConnectionStore) Get(id string) (*Conn, bool) {
	s.mu.RLock()
	conn, ok := s.conns[id]
	s.mu.RUnlock()
	return conn, ok
}

// Remove closes the socket with the given close code and evicts it.
func (s *ConnectionStore) Remove(id string, reason string, code int) {
	conn, ok := s.evict(id)
	if !ok {
		return
	}
	conn.closeWith(code, reason)
}

// Release evicts a connection whose socket already completed a clean
// close; no further close frame is sent.
func (s *ConnectionStore) Release(id string) {
	if conn, ok := s.evict(id); ok {
		conn.ws.Close()
	}
}

func (s *ConnectionStore) evict(id string) (*Conn, bool) {
	s.mu.Lock()
	conn, ok := s.conns[id]
	if ok {
		delete(s.conns, id)
	}
	s.mu.Unlock()

	if ok {
		metrics.ConnectionsOpen.Dec()
	}
	return conn, ok
}

// Len reports the number of live connections.
func (s *ConnectionStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.conns)
}
