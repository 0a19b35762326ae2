package service

import (
	"io"
	"net"

	vo "ikedadada/go-ptor/internal/domain/value_object"
	useSvc "ikedadada/go-ptor/internal/usecase/service"
)

// TCPDialer implements service.Dialer over raw TCP connections, framing
// every cell the same way regardless of handshake step: the circuit id now
// travels inside the cell itself rather than as a separate prefix.
type TCPDialer struct{}

// NewTCPDialer returns a Dialer using TCP.
func NewTCPDialer() useSvc.Dialer { return TCPDialer{} }

func (TCPDialer) Dial(addr string) (net.Conn, error) { return net.Dial("tcp", addr) }

// SendCell writes a single fixed-size cell.
func (TCPDialer) SendCell(conn net.Conn, cell vo.Cell) error {
	buf, err := vo.Encode(cell)
	if err != nil {
		return err
	}
	_, err = conn.Write(buf)
	return err
}

// WaitCreated blocks for the next fixed-size cell and returns its payload.
func (TCPDialer) WaitCreated(conn net.Conn) ([]byte, error) {
	var buf [vo.MaxCellSize]byte
	if _, err := io.ReadFull(conn, buf[:]); err != nil {
		return nil, err
	}
	cell, err := vo.Decode(buf[:])
	if err != nil {
		return nil, err
	}
	return cell.Payload, nil
}

// SendDestroy frames a DESTROY cell behind the circuit id.
func (TCPDialer) SendDestroy(conn net.Conn, cid vo.CircuitID) error {
	cell := vo.Cell{CircuitID: cid, Cmd: vo.CmdDestroy}
	buf, err := vo.Encode(cell)
	if err != nil {
		return err
	}
	_, err = conn.Write(buf)
	return err
}
