package service

import (
	"net"

	vo "ikedadada/go-ptor/internal/domain/value_object"
)

// Dialer abstracts the handshake transport used to establish a single hop
// of a circuit: dialing a relay, sending a CREATE/EXTEND cell and waiting
// for the matching CREATED/EXTENDED reply.
type Dialer interface {
	// Dial opens a framed connection to a relay endpoint.
	Dial(addr string) (net.Conn, error)
	// SendCell writes a single cell to the connection.
	SendCell(conn net.Conn, cell vo.Cell) error
	// WaitCreated blocks for the next CREATED/EXTENDED reply and returns its
	// gob-encoded CreatedPayload.
	WaitCreated(conn net.Conn) ([]byte, error)
	// SendDestroy tears the circuit down at the relay end.
	SendDestroy(conn net.Conn, cid vo.CircuitID) error
}
