package value_object

import (
	"errors"

	"github.com/google/uuid"
)

// RelayID uniquely identifies a relay in the directory.
type RelayID struct{ val uuid.UUID }

// NewRelayID parses s as a UUID and rejects the nil UUID.
func NewRelayID(s string) (RelayID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return RelayID{}, err
	}
	if id == uuid.Nil {
		return RelayID{}, errors.New("invalid relay id: nil uuid")
	}
	return RelayID{val: id}, nil
}

func (r RelayID) String() string       { return r.val.String() }
func (r RelayID) Equal(o RelayID) bool { return r.val == o.val }
