package value_object

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
)

// CellCommand identifies the kind of cell on the wire. CREATE/CREATED/
// EXTEND/EXTENDED/DESTROY travel between adjacent hops during circuit
// setup and teardown; the relay commands below (DATA/BEGIN/CONNECTED/END/
// SENDME/CONNECT) ride directly as the outer cell's command, each hop's
// AEAD layer applied and peeled in sequence rather than nested behind a
// separate RELAY wrapper (this core plays only the client role — see the
// relay-role Non-goal — so there is no intermediate hop here to address a
// wrapped cell to).
type CellCommand = byte

const (
	CmdCreate   byte = 0x01
	CmdCreated  byte = 0x02
	CmdExtend   byte = 0x03
	CmdExtended byte = 0x04
	CmdDestroy  byte = 0x06

	// Relay commands.
	CmdData      byte = 0x10
	CmdBegin     byte = 0x11
	CmdBeginAck  byte = 0x12
	CmdConnected byte = 0x13
	CmdEnd       byte = 0x14
	CmdSendme    byte = 0x15
	CmdConnect   byte = 0x16 // opens a control stream to the exit hop itself, e.g. to fetch directory data over the circuit

	MaxPayloadSize = MaxCellSize - headerOverhead
)

// Cell represents a 512-byte protocol cell: circuitID (2 bytes) | command
// (1 byte) | payload (509 bytes, zero-padded). There is no separate length
// field — every payload this core ever frames is either a fixed-size
// handshake value or a gob-encoded relay payload, both of which know their
// own length on decode and simply ignore the trailing padding.
type Cell struct {
	CircuitID CircuitID
	Cmd       byte
	Payload   []byte
}

// Encode serializes the cell into a fixed 512-byte slice with random padding.
func Encode(c Cell) ([]byte, error) {
	if len(c.Payload) > MaxPayloadSize {
		return nil, fmt.Errorf("payload too big: %d > %d", len(c.Payload), MaxPayloadSize)
	}
	buf := make([]byte, MaxCellSize)
	binary.BigEndian.PutUint16(buf[0:2], c.CircuitID.UInt16())
	buf[2] = c.Cmd
	copy(buf[headerOverhead:], c.Payload)
	if _, err := rand.Read(buf[headerOverhead+len(c.Payload):]); err != nil {
		return nil, err
	}
	return buf, nil
}

// Decode parses a 512-byte buffer into a Cell struct. The returned
// Payload is always MaxPayloadSize bytes (real content followed by
// padding); callers decode it with a self-delimiting payload codec
// rather than trusting its length.
func Decode(buf []byte) (*Cell, error) {
	if len(buf) != MaxCellSize {
		return nil, fmt.Errorf("invalid cell length: %d", len(buf))
	}
	cid := CircuitIDFromUint16(binary.BigEndian.Uint16(buf[0:2]))
	payload := make([]byte, MaxPayloadSize)
	copy(payload, buf[headerOverhead:])
	return &Cell{
		CircuitID: cid,
		Cmd:       buf[2],
		Payload:   payload,
	}, nil
}
