package httpcore

import (
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neoteroi/httpcore/pkg/httpcore/errdefs"
)

func TestBufferedContentReadAndStream(t *testing.T) {
	c := NewBufferedContent([]byte("text/plain"), []byte("hello"))
	assert.Equal(t, int64(5), c.Length())

	body, err := c.Read(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "hello", string(body))

	stream, err := c.Stream(context.Background())
	require.NoError(t, err)
	chunk, err := stream.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "hello", string(chunk))
	_, err = stream.Next(context.Background())
	assert.ErrorIs(t, err, io.EOF)
}

func TestBufferedContentStreamIsIndependentPerCall(t *testing.T) {
	c := NewBufferedContent(nil, []byte("abc"))
	s1, _ := c.Stream(context.Background())
	s2, _ := c.Stream(context.Background())

	_, err := s1.Next(context.Background())
	require.NoError(t, err)
	_, err = s1.Next(context.Background())
	assert.ErrorIs(t, err, io.EOF)

	chunk, err := s2.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "abc", string(chunk))
}

func TestStreamedContentReadDrainsFreshTraversal(t *testing.T) {
	chunks := [][]byte{[]byte("a"), []byte("b"), []byte("c")}
	factory := func(ctx context.Context) (ByteStream, error) {
		i := 0
		return streamFunc(func(ctx context.Context) ([]byte, error) {
			if i >= len(chunks) {
				return nil, io.EOF
			}
			c := chunks[i]
			i++
			return c, nil
		}), nil
	}
	c := NewStreamedContent([]byte("text/plain"), -1, factory)

	body, err := c.Read(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "abc", string(body))

	body2, err := c.Read(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "abc", string(body2))
}

func TestGatewayContentReadMemoisesFirstResult(t *testing.T) {
	calls := 0
	frames := []GatewayFrame{
		{Body: []byte("hel"), MoreBody: true},
		{Body: []byte("lo"), MoreBody: false},
	}
	receive := func(ctx context.Context) (GatewayFrame, error) {
		f := frames[calls]
		calls++
		return f, nil
	}
	c := NewGatewayContent([]byte("text/plain"), -1, receive)

	body, err := c.Read(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "hello", string(body))
	assert.Equal(t, 2, calls)

	body2, err := c.Read(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "hello", string(body2))
	assert.Equal(t, 2, calls, "second Read must not re-invoke receive")
}

func TestGatewayContentReadFailsOnDisconnectFrame(t *testing.T) {
	receive := func(ctx context.Context) (GatewayFrame, error) {
		return GatewayFrame{Type: GatewayFrameDisconnect}, nil
	}
	c := NewGatewayContent([]byte("text/plain"), -1, receive)

	_, err := c.Read(context.Background())
	assert.ErrorIs(t, err, errdefs.ErrMessageAborted)
}

func TestGatewayContentStreamStopsAfterLastFrame(t *testing.T) {
	frames := []GatewayFrame{
		{Body: []byte("x"), MoreBody: true},
		{Body: []byte("y"), MoreBody: false},
	}
	i := 0
	receive := func(ctx context.Context) (GatewayFrame, error) {
		f := frames[i]
		i++
		return f, nil
	}
	c := NewGatewayContent([]byte("text/plain"), -1, receive)
	stream, err := c.Stream(context.Background())
	require.NoError(t, err)

	first, err := stream.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "x", string(first))

	second, err := stream.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "y", string(second))
}

// streamFunc adapts a plain function to ByteStream.
type streamFunc func(ctx context.Context) ([]byte, error)

func (f streamFunc) Next(ctx context.Context) ([]byte, error) { return f(ctx) }
