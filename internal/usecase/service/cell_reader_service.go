package service

import (
	"io"

	vo "ikedadada/go-ptor/internal/domain/value_object"
)

// CellReaderService abstracts reading a fixed-size cell off a connection
// and reporting the circuit id it was framed with.
type CellReaderService interface {
	ReadCell(r io.Reader) (vo.CircuitID, *vo.Cell, error)
}

type cellReaderService struct{}

// NewCellReaderService returns a CellReaderService reading the wire
// framing TCPCircuitMessagingService writes: a single fixed-size cell with
// the circuit id as its first two bytes.
func NewCellReaderService() CellReaderService { return cellReaderService{} }

func (cellReaderService) ReadCell(r io.Reader) (vo.CircuitID, *vo.Cell, error) {
	var buf [vo.MaxCellSize]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return vo.CircuitID{}, nil, err
	}
	cell, err := vo.Decode(buf[:])
	if err != nil {
		return vo.CircuitID{}, nil, err
	}
	return cell.CircuitID, cell, nil
}
