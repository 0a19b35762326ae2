package usecase

import (
	"fmt"

	"ikedadada/go-ptor/internal/domain/repository"
	"ikedadada/go-ptor/internal/domain/value_object"
)

// OpenStreamInput identifies the circuit a new stream should be opened on.
type OpenStreamInput struct {
	CircuitID string
}

// OpenStreamOutput reports the newly allocated stream identifier.
type OpenStreamOutput struct {
	StreamID uint16 `json:"stream_id"`
}

// OpenStreamUseCase allocates a new stream on an existing circuit.
type OpenStreamUseCase interface {
	Handle(in OpenStreamInput) (OpenStreamOutput, error)
}

type openStreamUsecaseImpl struct {
	cr repository.CircuitRepository
}

// NewOpenStreamUsecase creates a use case for opening streams.
func NewOpenStreamUsecase(cr repository.CircuitRepository) OpenStreamUseCase {
	return &openStreamUsecaseImpl{cr: cr}
}

func (uc *openStreamUsecaseImpl) Handle(in OpenStreamInput) (OpenStreamOutput, error) {
	cid, err := value_object.CircuitIDFrom(in.CircuitID)
	if err != nil {
		return OpenStreamOutput{}, err
	}
	cir, err := uc.cr.Find(cid)
	if err != nil {
		return OpenStreamOutput{}, fmt.Errorf("circuit not found: %w", err)
	}
	st, err := cir.OpenStream()
	if err != nil {
		return OpenStreamOutput{}, err
	}
	if err := uc.cr.Save(cir); err != nil {
		return OpenStreamOutput{}, fmt.Errorf("save circuit: %w", err)
	}
	return OpenStreamOutput{StreamID: st.ID.UInt16()}, nil
}
