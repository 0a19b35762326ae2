package entity

import (
	"fmt"
	"net"
	"sync"

	domainSvc "ikedadada/go-ptor/internal/domain/service"
	"ikedadada/go-ptor/internal/domain/value_object"
)

// CellHandler receives cells dispatched to a circuit id bound on a Connection.
type CellHandler func(cell *value_object.Cell)

const maxBindAttempts = 64

// Connection is a framed TCP socket to exactly one relay. It owns that
// socket's connection-local circuit-id space: a 2-byte value drawn at
// random and retried on collision, never handed out sequentially. Binding
// and releasing an id only ever touches this table; the id space handed
// back out after a release is indistinguishable from one that was never
// used.
type Connection struct {
	conn net.Conn

	mu       sync.Mutex
	handlers map[value_object.CircuitID]CellHandler
}

// NewConnection wraps an already-dialed net.Conn.
func NewConnection(conn net.Conn) *Connection {
	return &Connection{conn: conn, handlers: make(map[value_object.CircuitID]CellHandler)}
}

// Conn returns the underlying socket.
func (c *Connection) Conn() net.Conn { return c.conn }

// Bind allocates a fresh circuit id on this connection and registers
// handler to receive cells dispatched under it. 0 is reserved and never
// handed out; collisions against ids already bound on this connection are
// retried up to maxBindAttempts times before giving up.
func (c *Connection) Bind(handler CellHandler) (value_object.CircuitID, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	rng := domainSvc.NewRandomSource()
	for attempt := 0; attempt < maxBindAttempts; attempt++ {
		n, err := rng.Intn(0x10000)
		if err != nil {
			return value_object.CircuitID{}, fmt.Errorf("draw circuit id: %w", err)
		}
		if n == 0 {
			continue
		}
		id := value_object.CircuitIDFromUint16(uint16(n))
		if _, taken := c.handlers[id]; taken {
			continue
		}
		c.handlers[id] = handler
		return id, nil
	}
	return value_object.CircuitID{}, fmt.Errorf("no free circuit id after %d attempts", maxBindAttempts)
}

// Release frees a bound circuit id, making it eligible for reuse by Bind.
func (c *Connection) Release(id value_object.CircuitID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.handlers, id)
}

// Dispatch routes a decoded cell to the handler bound to its circuit id, if
// any. It reports whether a handler was found.
func (c *Connection) Dispatch(id value_object.CircuitID, cell *value_object.Cell) bool {
	c.mu.Lock()
	handler, ok := c.handlers[id]
	c.mu.Unlock()
	if !ok {
		return false
	}
	handler(cell)
	return true
}

// Bound returns the circuit ids currently allocated on this connection.
func (c *Connection) Bound() []value_object.CircuitID {
	c.mu.Lock()
	defer c.mu.Unlock()
	ids := make([]value_object.CircuitID, 0, len(c.handlers))
	for id := range c.handlers {
		ids = append(ids, id)
	}
	return ids
}

// Close closes the underlying socket.
func (c *Connection) Close() error { return c.conn.Close() }
