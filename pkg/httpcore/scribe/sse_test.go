package scribe

import (
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteServerSentEventStringPayload(t *testing.T) {
	out, err := WriteServerSentEvent(Event{ID: "1", Name: "tick", Data: "hello"})
	require.NoError(t, err)
	assert.Equal(t, "id: 1\nevent: tick\ndata: hello\n\n", string(out))
}

func TestWriteServerSentEventEscapesMultilinePayload(t *testing.T) {
	out, err := WriteServerSentEvent(Event{Data: "line1\nline2"})
	require.NoError(t, err)
	assert.Equal(t, "data: line1\\nline2\n\n", string(out))
}

func TestWriteServerSentEventEncodesNonStringDataAsJSON(t *testing.T) {
	out, err := WriteServerSentEvent(Event{Data: map[string]int{"a": 1}})
	require.NoError(t, err)
	assert.Equal(t, "data: {\"a\":1}\n\n", string(out))
}

func TestWriteServerSentEventIncludesRetry(t *testing.T) {
	out, err := WriteServerSentEvent(Event{Retry: 3000, Data: "x"})
	require.NoError(t, err)
	assert.Equal(t, "retry: 3000\ndata: x\n\n", string(out))
}

func TestSSEEncoderPushAndDrainInOrder(t *testing.T) {
	enc := NewSSEEncoder(4)
	require.NoError(t, enc.Push(context.Background(), Event{Data: "one"}))
	require.NoError(t, enc.Push(context.Background(), Event{Data: "two"}))
	enc.Close()

	first, err := enc.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "data: one\n\n", string(first))

	second, err := enc.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "data: two\n\n", string(second))

	_, err = enc.Next(context.Background())
	assert.ErrorIs(t, err, io.EOF)
}

func TestSSEEncoderPushRespectsContextCancellation(t *testing.T) {
	enc := NewSSEEncoder(0)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := enc.Push(ctx, Event{Data: "x"})
	assert.ErrorIs(t, err, context.Canceled)
}
