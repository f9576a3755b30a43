// internal/realtime/registry.go
//
// Connection Registry: the set of open realtime connections.
// Open, Close and Broadcast are the only ways to change or fan out over it.
//
// Lifecycle per connection: Open → Closed. Close is idempotent: a second
// close for the same id reports removed=false so callers never announce a
// departure twice.

package realtime

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Conn is a registry entry for one realtime client.
// Outbound frames go through a bounded queue drained by the transport;
// a full or closed queue drops the frame for this recipient only.
type Conn struct {
	id   string
	send chan []byte

	mu            sync.Mutex
	closed        bool
	lastMessageAt time.Time // zero until the first accepted chat message
}

func newConn(id string, buffer int) *Conn {
	return &Conn{id: id, send: make(chan []byte, buffer)}
}

// ID returns the connection's unique identifier.
func (c *Conn) ID() string { return c.id }

// Outbound is the queue the transport writes to the socket. It is closed
// when the connection leaves the registry.
func (c *Conn) Outbound() <-chan []byte { return c.send }

// LastMessageAt reports when the last chat message was accepted.
func (c *Conn) LastMessageAt() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastMessageAt
}

// Enqueue queues payload without blocking. It reports false when the
// connection is closed or its queue is full.
func (c *Conn) Enqueue(payload []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- payload:
		return true
	default:
		return false
	}
}

func (c *Conn) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

// Registry tracks open connections keyed by id.
type Registry struct {
	mu     sync.RWMutex
	conns  map[string]*Conn
	buffer int
}

// NewRegistry creates an empty registry whose connections queue up to
// buffer outbound frames.
func NewRegistry(buffer int) *Registry {
	if buffer <= 0 {
		buffer = 1
	}
	return &Registry{conns: make(map[string]*Conn), buffer: buffer}
}

// Open registers a new connection and returns it with the new registry size.
func (r *Registry) Open() (*Conn, int) {
	c := newConn(uuid.NewString(), r.buffer)
	r.mu.Lock()
	r.conns[c.id] = c
	n := len(r.conns)
	r.mu.Unlock()
	return c, n
}

// Close removes id and closes its queue. removed is false when id was not
// registered (already closed or never opened); size is the registry size
// after the call either way.
func (r *Registry) Close(id string) (size int, removed bool) {
	r.mu.Lock()
	c, ok := r.conns[id]
	if ok {
		delete(r.conns, id)
	}
	size = len(r.conns)
	r.mu.Unlock()

	if ok {
		c.close()
	}
	return size, ok
}

// CloseAll empties the registry, closing every queue.
func (r *Registry) CloseAll() int {
	r.mu.Lock()
	conns := r.conns
	r.conns = make(map[string]*Conn)
	r.mu.Unlock()

	for _, c := range conns {
		c.close()
	}
	return len(conns)
}

// Get looks up an open connection.
func (r *Registry) Get(id string) (*Conn, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.conns[id]
	return c, ok
}

// Len is the number of open connections.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

// Snapshot copies the currently open connections.
func (r *Registry) Snapshot() []*Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Conn, 0, len(r.conns))
	for _, c := range r.conns {
		out = append(out, c)
	}
	return out
}

// Broadcast queues payload on every connection open when the call starts.
// Connections that cannot take it are skipped. It returns how many accepted.
func (r *Registry) Broadcast(payload []byte) int {
	delivered := 0
	for _, c := range r.Snapshot() {
		if c.Enqueue(payload) {
			delivered++
		}
	}
	return delivered
}
