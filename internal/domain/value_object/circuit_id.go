package value_object

import (
	"encoding/binary"
	"fmt"
	"strconv"

	domainSvc "ikedadada/go-ptor/internal/domain/service"
)

// CircuitID is a connection-local circuit identifier: the 2-byte value
// that prefixes every cell on the wire, meaningful only within the
// Connection that allocated it. entity.Connection.Bind draws one at random
// and retries on collision against that connection's own allocation table
// rather than handing out sequential values.
type CircuitID struct{ val uint16 }

// NewCircuitID draws a CircuitID from the shared random source, for callers
// with no Connection to bind against (the in-memory circuit repository,
// tests). Anything framed on the wire should come from
// entity.Connection.Bind instead, which also checks for collisions.
func NewCircuitID() CircuitID {
	n, err := domainSvc.NewRandomSource().Intn(0x10000)
	if err != nil || n == 0 {
		return CircuitID{}
	}
	return CircuitID{uint16(n)}
}

// CircuitIDFromUint16 wraps an already-allocated wire value.
func CircuitIDFromUint16(v uint16) CircuitID { return CircuitID{v} }

// CircuitIDFrom parses a circuit id previously rendered by String: exactly
// four hex digits, with nothing before or after them.
func CircuitIDFrom(s string) (CircuitID, error) {
	if len(s) != 4 {
		return CircuitID{}, fmt.Errorf("parse circuit id %q: want 4 hex digits", s)
	}
	v, err := strconv.ParseUint(s, 16, 16)
	if err != nil {
		return CircuitID{}, fmt.Errorf("parse circuit id %q: %w", s, err)
	}
	return CircuitID{uint16(v)}, nil
}

func (c CircuitID) String() string         { return fmt.Sprintf("%04x", c.val) }
func (c CircuitID) Equal(o CircuitID) bool { return c.val == o.val }
func (c CircuitID) UInt16() uint16         { return c.val }
func (c CircuitID) IsZero() bool           { return c.val == 0 }

// Bytes returns the 2-byte big-endian wire encoding.
func (c CircuitID) Bytes() []byte {
	b := make([]byte, 2)
	binary.BigEndian.PutUint16(b, c.val)
	return b
}
