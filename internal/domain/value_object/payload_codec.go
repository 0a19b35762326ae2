package value_object

import (
	"bytes"
	"encoding/gob"
)

// EncodePayload serializes any relay-command payload using gob.
func EncodePayload[T any](p *T) ([]byte, error) {
	var buf bytes.Buffer
	err := gob.NewEncoder(&buf).Encode(p)
	return buf.Bytes(), err
}

// DecodePayload decodes gob-encoded bytes into a T.
func DecodePayload[T any](b []byte) (*T, error) {
	var p T
	err := gob.NewDecoder(bytes.NewReader(b)).Decode(&p)
	return &p, err
}
