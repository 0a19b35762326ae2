package service

import (
	"net"

	"ikedadada/go-ptor/internal/domain/entity"
	"ikedadada/go-ptor/internal/domain/value_object"
)

// StreamManagerService provides thread-safe stream management for circuit connections
type StreamManagerService interface {
	Add(id uint16, conn net.Conn)
	Get(id uint16) (net.Conn, bool)
	Remove(id uint16)
	CloseAll()
}

// streamManagerImpl adapts entity.StreamTable (the stream table the circuit
// I/O component owns) to the uint16-keyed shape the SOCKS5 controller wants,
// so there is one stream-id-to-net.Conn table instead of a parallel one
// duplicating it.
type streamManagerImpl struct {
	tbl *entity.StreamTable
}

func NewStreamManagerService() StreamManagerService {
	return &streamManagerImpl{tbl: entity.NewStreamTable()}
}

func (s *streamManagerImpl) Add(id uint16, conn net.Conn) {
	sid, err := value_object.StreamIDFrom(id)
	if err != nil {
		return
	}
	_ = s.tbl.Add(sid, conn)
}

func (s *streamManagerImpl) Get(id uint16) (net.Conn, bool) {
	sid, err := value_object.StreamIDFrom(id)
	if err != nil {
		return nil, false
	}
	conn, err := s.tbl.Get(sid)
	if err != nil {
		return nil, false
	}
	return conn, true
}

func (s *streamManagerImpl) Remove(id uint16) {
	sid, err := value_object.StreamIDFrom(id)
	if err != nil {
		return
	}
	_ = s.tbl.Remove(sid)
}

func (s *streamManagerImpl) CloseAll() {
	s.tbl.DestroyAll()
}
