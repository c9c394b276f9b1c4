package domain

import (
	"encoding/json"
	"errors"
	"testing"
)

type failingPayload struct{}

func (failingPayload) MarshalJSON() ([]byte, error) {
	return nil, errors.New("marshal failure")
}

func TestChangePayloadDefinedAndEmpty(t *testing.T) {
	undefined := UndefinedChangePayload()
	if undefined.Defined() {
		t.Fatalf("expected undefined payload to be not defined")
	}
	if !undefined.IsEmpty() {
		t.Fatalf("expected undefined payload to be empty")
	}
	if undefined.Raw() != nil {
		t.Fatalf("expected undefined payload to return nil raw bytes")
	}

	empty := NewChangePayload(nil)
	if !empty.Defined() || !empty.IsEmpty() {
		t.Fatalf("expected defined empty payload, got defined=%v empty=%v", empty.Defined(), empty.IsEmpty())
	}

	raw := json.RawMessage(`{"id":"123"}`)
	defined := NewChangePayload(raw)
	if defined.IsEmpty() {
		t.Fatalf("expected raw payload to be non-empty")
	}
	if got := defined.Raw(); string(got) != string(raw) {
		t.Fatalf("expected raw payload %s, got %s", raw, got)
	}
}

func TestChangePayloadRawIsCloned(t *testing.T) {
	raw := json.RawMessage(`{"id":"cloned"}`)
	payload := NewChangePayload(raw)
	raw[2] = 'X'

	first := payload.Raw()
	first[2] = 'Y'
	if second := payload.Raw(); string(second) != `{"id":"cloned"}` {
		t.Fatalf("expected stored payload to remain unchanged, got %s", second)
	}
}

func TestNewChangePayloadFromValue(t *testing.T) {
	payload, err := NewChangePayloadFromValue(map[string]string{"id": "123"})
	if err != nil {
		t.Fatalf("build payload: %v", err)
	}
	var out map[string]string
	if err := payload.Decode(&out); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if out["id"] != "123" {
		t.Fatalf("expected id 123, got %q", out["id"])
	}

	if _, err := NewChangePayloadFromValue(failingPayload{}); err == nil {
		t.Fatalf("expected marshal failure to surface")
	}
}

func TestChangePayloadEqual(t *testing.T) {
	a := NewChangePayload(json.RawMessage(`{"n":1}`))
	b := NewChangePayload(json.RawMessage(`{"n":1}`))
	c := NewChangePayload(json.RawMessage(`{"n":2}`))
	if !a.Equal(b) {
		t.Fatalf("expected identical payloads to be equal")
	}
	if a.Equal(c) {
		t.Fatalf("expected different payloads to differ")
	}
	if UndefinedChangePayload().Equal(UndefinedChangePayload()) {
		t.Fatalf("undefined payloads never compare equal")
	}
}

func TestChangePayloadDecodeUndefined(t *testing.T) {
	var out map[string]any
	if err := UndefinedChangePayload().Decode(&out); !errors.Is(err, ErrUndefinedPayload) {
		t.Fatalf("expected ErrUndefinedPayload, got %v", err)
	}
}
