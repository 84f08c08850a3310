// Package protocol is the wire format spoken between the bridge server and
// the agent embedded in the target application: length-prefixed frames
// carrying a JSON envelope.
package protocol

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"
)

const (
	Version         = "uibridge.v1"
	DefaultMaxFrame = 16 << 20 // 16 MiB; PNG screenshots routinely exceed 1 MiB
	headerSize      = 4
)

var (
	ErrTruncated        = errors.New("protocol: truncated frame")
	ErrOversizedMessage = errors.New("protocol: frame exceeds size limit")
	ErrMalformedPayload = errors.New("protocol: malformed payload")
)

// WriteFrame writes a 4-byte big-endian length followed by payload. Header
// and body go out in a single Write so concurrent writers serialized by the
// caller never interleave partial frames.
func WriteFrame(w io.Writer, payload []byte, maxFrame int) error {
	limit := maxFrame
	if limit <= 0 {
		limit = DefaultMaxFrame
	}
	if len(payload) == 0 {
		return fmt.Errorf("%w: empty frame", ErrMalformedPayload)
	}
	if len(payload) > limit {
		return fmt.Errorf("%w: %d > %d bytes", ErrOversizedMessage, len(payload), limit)
	}
	buf := make([]byte, headerSize+len(payload))
	binary.BigEndian.PutUint32(buf[:headerSize], uint32(len(payload)))
	copy(buf[headerSize:], payload)
	if _, err := w.Write(buf); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	return nil
}

// ReadFrame blocks until one complete frame is available. A stream closed
// cleanly between frames yields io.EOF; closed inside a frame, ErrTruncated.
// A declared length above maxFrame fails without reading the body.
func ReadFrame(r io.Reader, maxFrame int) ([]byte, error) {
	limit := maxFrame
	if limit <= 0 {
		limit = DefaultMaxFrame
	}
	var lenBuf [headerSize]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		switch {
		case errors.Is(err, io.EOF):
			return nil, io.EOF
		case errors.Is(err, io.ErrUnexpectedEOF):
			return nil, fmt.Errorf("%w: short length prefix", ErrTruncated)
		}
		return nil, fmt.Errorf("read frame length: %w", err)
	}
	size := binary.BigEndian.Uint32(lenBuf[:])
	if size == 0 {
		return nil, fmt.Errorf("%w: zero-length frame", ErrMalformedPayload)
	}
	if uint64(size) > uint64(limit) {
		return nil, fmt.Errorf("%w: %d > %d bytes", ErrOversizedMessage, size, limit)
	}
	body := make([]byte, size)
	if _, err := io.ReadFull(r, body); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, fmt.Errorf("%w: got part of %d bytes", ErrTruncated, size)
		}
		return nil, fmt.Errorf("read frame body: %w", err)
	}
	return body, nil
}

// Envelope is one logical message. Responses echo the request's RequestID.
type Envelope struct {
	Type      string          `json:"type"`
	RequestID string          `json:"request_id,omitempty"`
	SentAt    time.Time       `json:"sent_at"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// NewEnvelope marshals payload under the given type tag. A nil payload is
// omitted.
func NewEnvelope(msgType, requestID string, payload any) (Envelope, error) {
	if strings.TrimSpace(msgType) == "" {
		return Envelope{}, fmt.Errorf("%w: type is required", ErrMalformedPayload)
	}
	env := Envelope{
		Type:      strings.TrimSpace(msgType),
		RequestID: requestID,
		SentAt:    time.Now().UTC(),
	}
	if payload != nil {
		body, err := json.Marshal(payload)
		if err != nil {
			return Envelope{}, fmt.Errorf("marshal payload: %w", err)
		}
		env.Payload = body
	}
	return env, nil
}

// DecodePayload unmarshals the payload into dst. An absent payload leaves
// dst at its zero value.
func (e Envelope) DecodePayload(dst any) error {
	if len(e.Payload) == 0 || string(e.Payload) == "null" {
		return nil
	}
	if err := json.Unmarshal(e.Payload, dst); err != nil {
		return fmt.Errorf("%w: %s payload: %v", ErrMalformedPayload, e.Type, err)
	}
	return nil
}

// Encode writes env as one frame.
func Encode(w io.Writer, env Envelope, maxFrame int) error {
	body, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}
	return WriteFrame(w, body, maxFrame)
}

// Decode reads one frame and parses it as an Envelope.
func Decode(r io.Reader, maxFrame int) (Envelope, error) {
	body, err := ReadFrame(r, maxFrame)
	if err != nil {
		return Envelope{}, err
	}
	var env Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return Envelope{}, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	if strings.TrimSpace(env.Type) == "" {
		return Envelope{}, fmt.Errorf("%w: type is required", ErrMalformedPayload)
	}
	return env, nil
}
