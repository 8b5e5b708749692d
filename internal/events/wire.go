package events

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
)

// Messages use the Confluent wire format: a zero magic byte, a big-endian schema id, then the
// JSON payload.
const (
	magicByte    = 0
	headerLength = 5
)

// ErrInvalidFrame reports a value that is not in the wire format.
var ErrInvalidFrame = errors.New("events: invalid wire frame")

// Encode frames payload as JSON under schemaID.
func Encode(schemaID uint32, payload any) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("events: encode payload: %w", err)
	}
	out := make([]byte, headerLength+len(body))
	out[0] = magicByte
	binary.BigEndian.PutUint32(out[1:headerLength], schemaID)
	copy(out[headerLength:], body)
	return out, nil
}

// Decode splits a framed value into its schema id and a copy of the JSON payload.
func Decode(value []byte) (uint32, json.RawMessage, error) {
	if len(value) < headerLength {
		return 0, nil, fmt.Errorf("%w: length %d", ErrInvalidFrame, len(value))
	}
	if value[0] != magicByte {
		return 0, nil, fmt.Errorf("%w: magic byte %d", ErrInvalidFrame, value[0])
	}
	schemaID := binary.BigEndian.Uint32(value[1:headerLength])
	return schemaID, json.RawMessage(append([]byte(nil), value[headerLength:]...)), nil
}
