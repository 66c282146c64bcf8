package scribe

import (
	"bytes"
	"context"
	"io"
	"strconv"
	"strings"
)

// Event is one Server-Sent Event. Data may be a string (written verbatim,
// after CR/LF escaping) or any other value (JSON-encoded).
type Event struct {
	ID    string
	Name  string
	Data  any
	Retry int // milliseconds, 0 to omit
}

// WriteServerSentEvent builds the textual payload for one event: JSON
// encoding non-string data, and escaping CR/LF in string data so a
// multi-line payload cannot be mistaken for multiple events or a
// premature terminator.
func WriteServerSentEvent(ev Event) ([]byte, error) {
	var buf bytes.Buffer
	if ev.ID != "" {
		buf.WriteString("id: " + ev.ID + "\n")
	}
	if ev.Name != "" {
		buf.WriteString("event: " + ev.Name + "\n")
	}
	if ev.Retry > 0 {
		buf.WriteString("retry: " + strconv.Itoa(ev.Retry) + "\n")
	}

	var payload string
	switch v := ev.Data.(type) {
	case string:
		payload = v
	case []byte:
		payload = string(v)
	case nil:
		payload = ""
	default:
		encoded, err := jsonMarshal(v)
		if err != nil {
			return nil, err
		}
		payload = string(encoded)
	}

	buf.WriteString("data: " + escapeNewlines(payload) + "\n")
	buf.WriteString("\n")
	return buf.Bytes(), nil
}

func escapeNewlines(s string) string {
	return strings.NewReplacer("\r", `\r`, "\n", `\n`).Replace(s)
}

// SSEEncoder lets multiple goroutines push events onto one response
// stream, framing each with WriteServerSentEvent and funnelling the
// bytes through a channel that a single writer goroutine drains in
// arrival order.
type SSEEncoder struct {
	ch chan []byte
}

// NewSSEEncoder builds an encoder with the given channel buffer size.
func NewSSEEncoder(buffer int) *SSEEncoder {
	return &SSEEncoder{ch: make(chan []byte, buffer)}
}

// Push encodes and queues ev. It blocks if the channel buffer is full.
func (e *SSEEncoder) Push(ctx context.Context, ev Event) error {
	encoded, err := WriteServerSentEvent(ev)
	if err != nil {
		return err
	}
	select {
	case e.ch <- encoded:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close signals that no more events will be pushed.
func (e *SSEEncoder) Close() { close(e.ch) }

// Next implements httpcore.ByteStream, draining queued events in order.
func (e *SSEEncoder) Next(ctx context.Context) ([]byte, error) {
	select {
	case b, ok := <-e.ch:
		if !ok {
			return nil, io.EOF
		}
		return b, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
