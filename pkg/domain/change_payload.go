package domain

import (
	"bytes"
	"encoding/json"
	"errors"
)

// ErrUndefinedPayload is returned when decoding a payload that was never set.
var ErrUndefinedPayload = errors.New("domain: change payload undefined")

// ChangePayload wraps a JSON snapshot of an entity. Backends use it to encode
// what they write and to compare a dirty entity against its clean baseline.
type ChangePayload struct {
	defined bool
	raw     json.RawMessage
}

// NewChangePayload builds a payload wrapper from raw JSON. The bytes are cloned
// to prevent callers from mutating shared state. Passing a nil slice yields a
// defined but empty payload; use UndefinedChangePayload for "not set".
func NewChangePayload(raw json.RawMessage) ChangePayload {
	payload := ChangePayload{defined: true}
	if raw != nil {
		payload.raw = cloneRawMessage(raw)
	}
	return payload
}

// NewChangePayloadFromValue marshals a typed value into a ChangePayload.
func NewChangePayloadFromValue[T any](value T) (ChangePayload, error) {
	raw, err := json.Marshal(value)
	if err != nil {
		return ChangePayload{}, err
	}
	return NewChangePayload(raw), nil
}

// UndefinedChangePayload returns an uninitialized payload wrapper.
func UndefinedChangePayload() ChangePayload {
	return ChangePayload{}
}

// Defined reports whether the payload has been initialized.
func (p ChangePayload) Defined() bool {
	return p.defined
}

// IsEmpty reports whether the payload contains no bytes.
func (p ChangePayload) IsEmpty() bool {
	if !p.defined {
		return true
	}
	return len(p.raw) == 0
}

// Raw returns a cloned copy of the underlying JSON bytes. Nil is returned when
// the payload is undefined or empty.
func (p ChangePayload) Raw() json.RawMessage {
	if !p.defined || len(p.raw) == 0 {
		return nil
	}
	return cloneRawMessage(p.raw)
}

// Bytes returns the payload as a plain byte slice for drivers that bind []byte.
func (p ChangePayload) Bytes() []byte {
	return []byte(p.Raw())
}

// Equal reports whether both payloads are defined and byte-identical.
func (p ChangePayload) Equal(other ChangePayload) bool {
	return p.defined && other.defined && bytes.Equal(p.raw, other.raw)
}

// Decode unmarshals the payload into dst.
func (p ChangePayload) Decode(dst any) error {
	if !p.defined {
		return ErrUndefinedPayload
	}
	return json.Unmarshal(p.raw, dst)
}

func cloneRawMessage(raw json.RawMessage) json.RawMessage {
	if raw == nil {
		return nil
	}
	cloned := make(json.RawMessage, len(raw))
	copy(cloned, raw)
	return cloned
}
