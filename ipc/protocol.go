package ipc

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// MaxMessageSize bounds the JSON payload of one frame. Observations with
// a few hundred units and build orders of a few hundred items fit well
// inside it.
const MaxMessageSize = 1 << 20

var (
	// ErrTooLarge is returned when an envelope does not fit in one frame.
	ErrTooLarge = errors.New("message exceeds frame size")
	// ErrNotGreeted refuses requests that arrive before hello.
	ErrNotGreeted = errors.New("hello required before " + TypePlanRequest)
)

// Envelope is one framed message. Data stays raw until the handler for
// Type decodes it.
type Envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

func NewEnvelope(msgType string, data any) (Envelope, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return Envelope{}, fmt.Errorf("encode %s: %w", msgType, err)
	}
	return Envelope{Type: msgType, Data: raw}, nil
}

// ReadEnvelope reads the next frame from r.
func ReadEnvelope(r io.Reader) (Envelope, error) {
	var prefix [4]byte
	if _, err := io.ReadFull(r, prefix[:]); err != nil {
		return Envelope{}, fmt.Errorf("read frame prefix: %w", err)
	}
	n := binary.LittleEndian.Uint32(prefix[:])
	if n == 0 || n > MaxMessageSize {
		return Envelope{}, fmt.Errorf("frame of %d bytes: %w", n, ErrTooLarge)
	}

	payload := make([]byte, n)
	if _, err := io.ReadFull(r, payload); err != nil {
		return Envelope{}, fmt.Errorf("read frame payload: %w", err)
	}
	var env Envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return Envelope{}, fmt.Errorf("decode envelope: %w", err)
	}
	return env, nil
}

// WriteEnvelope frames env onto w with a single Write.
func WriteEnvelope(w io.Writer, env Envelope) error {
	payload, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("encode envelope: %w", err)
	}
	if len(payload) > MaxMessageSize {
		return fmt.Errorf("%s of %d bytes: %w", env.Type, len(payload), ErrTooLarge)
	}

	frame := make([]byte, 4+len(payload))
	binary.LittleEndian.PutUint32(frame, uint32(len(payload)))
	copy(frame[4:], payload)
	if _, err := w.Write(frame); err != nil {
		return fmt.Errorf("write %s: %w", env.Type, err)
	}
	return nil
}
