package httpcore

import (
	"context"
	"io"

	"github.com/neoteroi/httpcore/pkg/httpcore/errdefs"
)

// ByteStream is a pull-style iterator over body chunks. It is returned
// fresh by every call to Content.Stream so a Buffered/Streamed content can
// be traversed more than once (read() and stream() each get an
// independent traversal).
type ByteStream interface {
	// Next returns the next chunk, or io.EOF when exhausted.
	Next(ctx context.Context) ([]byte, error)
}

// Content is the common contract shared by the three body shapes: a
// declared media type, a declared length (-1 if unknown), a whole-body
// Read, and a chunked Stream.
type Content interface {
	Type() []byte
	Length() int64
	Read(ctx context.Context) ([]byte, error)
	Stream(ctx context.Context) (ByteStream, error)
	Dispose()
}

// sliceStream walks a single already-materialised byte slice as one
// chunk, used by BufferedContent.Stream.
type sliceStream struct {
	data []byte
	done bool
}

func (s *sliceStream) Next(ctx context.Context) ([]byte, error) {
	if s.done {
		return nil, io.EOF
	}
	s.done = true
	return s.data, nil
}

// BufferedContent holds the entire body in memory.
type BufferedContent struct {
	contentType []byte
	body        []byte
}

// NewBufferedContent builds a Content whose Length equals len(body).
func NewBufferedContent(contentType, body []byte) *BufferedContent {
	return &BufferedContent{contentType: contentType, body: body}
}

func (c *BufferedContent) Type() []byte  { return c.contentType }
func (c *BufferedContent) Length() int64 { return int64(len(c.body)) }
func (c *BufferedContent) Dispose()      { c.body = nil }

func (c *BufferedContent) Read(ctx context.Context) ([]byte, error) {
	return c.body, nil
}

func (c *BufferedContent) Stream(ctx context.Context) (ByteStream, error) {
	return &sliceStream{data: c.body}, nil
}

// StreamFactory produces a ByteStream. StreamedContent invokes it once per
// Read or Stream call, so each call traverses whatever stream the factory
// returns. NewStreamedContent does not check whether a factory is
// restartable: a factory that hands back the same exhausted iterator
// yields an empty body on later calls.
type StreamFactory func(ctx context.Context) (ByteStream, error)

// StreamedContent is backed by an async generator factory. Length may be
// declared (>=0) or unknown (-1), in which case the wire encoding uses
// chunked transfer.
type StreamedContent struct {
	contentType []byte
	length      int64
	factory     StreamFactory
}

// NewStreamedContent builds a Content over factory. length may be -1 if
// unknown.
func NewStreamedContent(contentType []byte, length int64, factory StreamFactory) *StreamedContent {
	return &StreamedContent{contentType: contentType, length: length, factory: factory}
}

func (c *StreamedContent) Type() []byte  { return c.contentType }
func (c *StreamedContent) Length() int64 { return c.length }
func (c *StreamedContent) Dispose()      {}

func (c *StreamedContent) Stream(ctx context.Context) (ByteStream, error) {
	return c.factory(ctx)
}

// Read materialises the whole stream by draining a fresh traversal.
func (c *StreamedContent) Read(ctx context.Context) ([]byte, error) {
	stream, err := c.factory(ctx)
	if err != nil {
		return nil, err
	}
	var out []byte
	for {
		chunk, err := stream.Next(ctx)
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return nil, err
		}
		out = append(out, chunk...)
	}
}

// GatewayFrame mirrors an ASGI-like frame contract: a gateway delivers
// body fragments as {body, more_body} frames and signals abrupt
// disconnection with a distinguished frame type.
type GatewayFrame struct {
	Type     string
	Body     []byte
	MoreBody bool
}

const GatewayFrameDisconnect = "http.disconnect"

// GatewayReceive pulls the next frame from the gateway's request channel.
type GatewayReceive func(ctx context.Context) (GatewayFrame, error)

// GatewayContent consumes frames from a gateway-supplied receive
// function. Reading past an "http.disconnect" frame fails with
// ErrMessageAborted. The first full Read is memoised so repeated calls
// do not re-drain the gateway channel.
type GatewayContent struct {
	contentType []byte
	length      int64
	receive     GatewayReceive

	read    bool
	body    []byte
	readErr error
}

// NewGatewayContent builds a Content fed by receive. length is -1 if the
// gateway did not declare Content-Length.
func NewGatewayContent(contentType []byte, length int64, receive GatewayReceive) *GatewayContent {
	return &GatewayContent{contentType: contentType, length: length, receive: receive}
}

func (c *GatewayContent) Type() []byte  { return c.contentType }
func (c *GatewayContent) Length() int64 { return c.length }
func (c *GatewayContent) Dispose()      { c.receive = nil }

func (c *GatewayContent) Read(ctx context.Context) ([]byte, error) {
	if c.read {
		return c.body, c.readErr
	}
	c.read = true
	var out []byte
	for {
		frame, err := c.receive(ctx)
		if err != nil {
			c.readErr = err
			return nil, err
		}
		if frame.Type == GatewayFrameDisconnect {
			c.readErr = errdefs.ErrMessageAborted
			return nil, errdefs.ErrMessageAborted
		}
		out = append(out, frame.Body...)
		if !frame.MoreBody {
			break
		}
	}
	c.body = out
	return out, nil
}

type gatewayStream struct {
	content *GatewayContent
	ctx     context.Context
	done    bool
}

func (s *gatewayStream) Next(ctx context.Context) ([]byte, error) {
	if s.done {
		return nil, io.EOF
	}
	frame, err := s.content.receive(ctx)
	if err != nil {
		return nil, err
	}
	if frame.Type == GatewayFrameDisconnect {
		return nil, errdefs.ErrMessageAborted
	}
	if !frame.MoreBody {
		s.done = true
	}
	return frame.Body, nil
}

func (c *GatewayContent) Stream(ctx context.Context) (ByteStream, error) {
	return &gatewayStream{content: c, ctx: ctx}, nil
}
