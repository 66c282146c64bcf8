package scribe

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neoteroi/httpcore/pkg/httpcore"
)

type fakeSink struct {
	buf bytes.Buffer
}

func (s *fakeSink) Write(ctx context.Context, b []byte) error {
	s.buf.Write(b)
	return nil
}

func mustURL(t *testing.T, raw string) *httpcore.URL {
	t.Helper()
	u, err := httpcore.NewURL([]byte(raw))
	require.NoError(t, err)
	return u
}

func TestStatusLineUsesKnownReasonPhrase(t *testing.T) {
	assert.Equal(t, "HTTP/1.1 200 OK\r\n", string(StatusLine(200)))
	assert.Equal(t, "HTTP/1.1 404 Not Found\r\n", string(StatusLine(404)))
}

func TestStatusLineFallsBackToUnknown(t *testing.T) {
	assert.Equal(t, "HTTP/1.1 499 Unknown\r\n", string(StatusLine(499)))
}

func TestWriteResponseSmallBufferedBody(t *testing.T) {
	resp := httpcore.TextResponse("hello")
	sink := &fakeSink{}
	require.NoError(t, WriteResponse(context.Background(), sink, resp, false))

	out := sink.buf.String()
	assert.True(t, strings.HasPrefix(out, "HTTP/1.1 200 OK\r\n"))
	assert.True(t, strings.Contains(out, "Content-Length: 5\r\n"))
	assert.True(t, strings.HasSuffix(out, "\r\n\r\nhello"))
}

func TestWriteResponseHeadersOnlySkipsBody(t *testing.T) {
	resp := httpcore.TextResponse("hello")
	sink := &fakeSink{}
	require.NoError(t, WriteResponse(context.Background(), sink, resp, true))

	out := sink.buf.String()
	assert.False(t, strings.Contains(out, "hello"))
	assert.True(t, strings.HasSuffix(out, "\r\n\r\n"))
}

func TestWriteResponseWithoutContentSetsZeroContentLength(t *testing.T) {
	resp := httpcore.NewResponse(204)
	sink := &fakeSink{}
	require.NoError(t, WriteResponse(context.Background(), sink, resp, false))
	assert.True(t, strings.Contains(sink.buf.String(), "Content-Length: 0\r\n"))
}

func TestWriteResponseStreamsUnknownLengthAsChunked(t *testing.T) {
	chunks := [][]byte{[]byte("ab"), []byte("cd")}
	i := 0
	factory := func(ctx context.Context) (httpcore.ByteStream, error) {
		return chunkStream(func(ctx context.Context) ([]byte, error) {
			if i >= len(chunks) {
				return nil, io.EOF
			}
			c := chunks[i]
			i++
			return c, nil
		}), nil
	}
	resp := httpcore.NewResponse(200)
	resp.SetContent(httpcore.NewStreamedContent([]byte("text/plain"), -1, factory))

	sink := &fakeSink{}
	require.NoError(t, WriteResponse(context.Background(), sink, resp, false))

	out := sink.buf.String()
	assert.True(t, strings.Contains(out, "Transfer-Encoding: chunked\r\n"))
	assert.True(t, strings.Contains(out, "2\r\nab\r\n"))
	assert.True(t, strings.Contains(out, "2\r\ncd\r\n"))
	assert.True(t, strings.HasSuffix(out, "0\r\n\r\n"))
}

func TestWriteRequestSetsHostFromAbsoluteURL(t *testing.T) {
	req := httpcore.NewRequest([]byte("GET"), mustURL(t, "http://example.com/x"))
	sink := &fakeSink{}
	require.NoError(t, WriteRequest(context.Background(), sink, req))

	out := sink.buf.String()
	assert.True(t, strings.HasPrefix(out, "GET /x HTTP/1.1\r\n"))
	assert.True(t, strings.Contains(out, "Host: example.com\r\n"))
}

func TestWriteRequestPreservesExplicitHostHeader(t *testing.T) {
	req := httpcore.NewRequest([]byte("GET"), mustURL(t, "http://example.com/x"))
	req.Headers().Set([]byte("Host"), []byte("custom.example"))
	sink := &fakeSink{}
	require.NoError(t, WriteRequest(context.Background(), sink, req))

	assert.True(t, strings.Contains(sink.buf.String(), "Host: custom.example\r\n"))
}

// chunkStream adapts a plain function to httpcore.ByteStream for tests.
type chunkStream func(ctx context.Context) ([]byte, error)

func (f chunkStream) Next(ctx context.Context) ([]byte, error) { return f(ctx) }
