// Package server drives one HTTP/1.1 connection: it feeds inbound bytes
// to a parser.Parser, assembles the callbacks into an httpcore.Request,
// dispatches it to a Handler as soon as the request's headers are complete
// (any body keeps arriving in the background), and serialises the resulting
// httpcore.Response back through the scribe onto a Transport.
package server

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/docker/go-units"
	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"

	"github.com/neoteroi/httpcore/pkg/httpcore"
	"github.com/neoteroi/httpcore/pkg/httpcore/errdefs"
	"github.com/neoteroi/httpcore/pkg/httpcore/parser"
	"github.com/neoteroi/httpcore/pkg/httpcore/scribe"
)

var (
	errHeadersCountExceeded = errors.New("server: request header count exceeds the configured limit")
	errHeadersSizeExceeded  = errors.New("server: request header size exceeds the configured limit")
	errBodyTooLarge         = errors.New("server: request body exceeds the configured limit")
)

// Handler processes one request and returns the response to write back.
// It is called as soon as the request's headers are complete, while a body
// may still be arriving; reading the body waits for its bytes. A nil
// return is normalised to an empty 204 by the caller.
type Handler interface {
	Handle(ctx context.Context, req *httpcore.Request) *httpcore.Response
}

// HandlerFunc adapts a plain function to Handler.
type HandlerFunc func(ctx context.Context, req *httpcore.Request) *httpcore.Response

func (f HandlerFunc) Handle(ctx context.Context, req *httpcore.Request) *httpcore.Response {
	return f(ctx, req)
}

// Limits bounds the admission control a Connection enforces while
// building a request, protecting the handler from unbounded memory use.
type Limits struct {
	MaxRequestHeadersCount int
	MaxRequestHeaderSize   int64 // per header value, not cumulative
	MaxBodySize            int64
}

// DefaultLimits returns conservative defaults. MaxBodySize matches the
// 24 MiB default of the system this core's body-size admission control
// is modelled on.
func DefaultLimits() Limits {
	return Limits{
		MaxRequestHeadersCount: 100,
		MaxRequestHeaderSize:   16 * 1024,
		MaxBodySize:            24 << 20,
	}
}

// String renders limits using human-readable byte sizes, for startup logs.
func (l Limits) String() string {
	return fmt.Sprintf("headers<=%d headerValue<=%s body<=%s",
		l.MaxRequestHeadersCount,
		units.HumanSize(float64(l.MaxRequestHeaderSize)),
		units.HumanSize(float64(l.MaxBodySize)))
}

// Metrics receives the admission-control and traffic counters a
// Connection reports. Implementations must be safe for concurrent use;
// nil is a valid Connection field and every call site checks for it.
type Metrics interface {
	AdmissionRejected(status int)
	ObserveRequestBody(size int64)
	ConnectionAttached()
	ConnectionClosed()
}

// Connection is one accepted HTTP/1.1 connection's state machine:
//
//	IDLE -> HEADERS_BUILDING -> BODY_STREAMING -> HANDLING -> WRITING -> IDLE
//
// with ABORTED reachable from any state on transport loss or a fatal
// parsing/admission error. A Connection is not safe for concurrent use
// from more than one reader goroutine; Feed must be called sequentially
// as bytes arrive, matching how a net.Conn is read.
type Connection struct {
	handler Handler
	limits  Limits
	clock   clockwork.Clock
	log     *logrus.Entry
	metrics Metrics

	ctx    context.Context
	cancel context.CancelFunc

	// parserMu serialises entry into the parser from the two goroutines
	// that drive it: the transport's reader feeding live bytes, and a
	// just-finished request's continuation replaying pipelined bytes
	// already sitting in the parser's buffer. It is held for a whole
	// FeedData call, including the parser callbacks that call runs; those
	// callbacks lock only mu, never parserMu.
	parserMu sync.Mutex
	parser   *parser.Parser

	mu        sync.Mutex
	transport Transport
	writable  *writableGate
	state     State
	closed    bool

	building    *httpcore.Request // under construction until headers complete
	current     *httpcore.Request // dispatched to the handler
	headerCount int
	body        bytes.Buffer
	bodySize    int64
}

// NewConnection builds a Connection bound to handler. Attach must be
// called once a Transport is available before Feed is used.
func NewConnection(handler Handler, limits Limits, clock clockwork.Clock, log *logrus.Entry) *Connection {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	c := &Connection{
		handler:  handler,
		limits:   limits,
		clock:    clock,
		log:      log,
		writable: newWritableGate(),
		state:    StateIdle,
	}
	c.log.WithField("limits", limits.String()).Debug("connection admission limits")
	c.ctx, c.cancel = context.WithCancel(context.Background())
	c.parser = parser.New(parser.Callbacks{
		OnURL:             c.onURL,
		OnHeader:          c.onHeader,
		OnHeadersComplete: c.onHeadersComplete,
		OnBody:            c.onBody,
		OnMessageComplete: c.onMessageComplete,
		OnUpgrade:         c.onUpgrade,
	})
	return c
}

// Attach associates transport with this connection, marking it live.
func (c *Connection) Attach(transport Transport) {
	c.mu.Lock()
	c.transport = transport
	c.mu.Unlock()
	if c.metrics != nil {
		c.metrics.ConnectionAttached()
	}
}

// SetMetrics wires m to receive this connection's admission-control and
// traffic counters. Must be called before Attach/Feed to avoid missed
// events; a nil m (the default) disables reporting.
func (c *Connection) SetMetrics(m Metrics) { c.metrics = m }

// State reports the connection's current state, mostly useful for tests
// and diagnostics.
func (c *Connection) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// PauseWriting asks the connection to stop writing response bytes until
// ResumeWriting, propagated from the transport's own send-buffer
// backpressure signal.
func (c *Connection) PauseWriting() { c.writable.Pause() }

// ResumeWriting reverses PauseWriting.
func (c *Connection) ResumeWriting() { c.writable.Resume() }

// Feed ingests bytes newly read from the transport. Admission-control and
// protocol violations are handled by writing an error response and closing
// the transport; Feed then returns the error that triggered them.
func (c *Connection) Feed(ctx context.Context, b []byte) error {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return nil
	}

	c.parserMu.Lock()
	err := c.parser.FeedData(b)
	c.parserMu.Unlock()

	if err == nil {
		return nil
	}

	var upgradeErr *parser.UpgradeRequestedError
	if errors.As(err, &upgradeErr) {
		return c.handleUpgrade(ctx)
	}

	return c.fail(ctx, err)
}

// Lost notifies the connection that the transport is gone (read error, or
// the peer closed the socket). It aborts any in-flight request and moves
// the connection to ABORTED.
func (c *Connection) Lost(err error) {
	c.mu.Lock()
	alreadyClosed := c.closed
	c.state = StateAborted
	current := c.current
	building := c.building
	c.closed = true
	c.mu.Unlock()

	c.cancel()
	if current != nil {
		current.MarkAborted()
	}
	if building != nil {
		building.MarkAborted()
	}
	if err != nil {
		c.log.WithError(err).Debug("connection lost")
	}
	if !alreadyClosed && c.metrics != nil {
		c.metrics.ConnectionClosed()
	}
}

// Close tears the connection down from the server side. Idempotent.
func (c *Connection) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.state = StateAborted
	transport := c.transport
	current := c.current
	c.mu.Unlock()

	if c.metrics != nil {
		c.metrics.ConnectionClosed()
	}
	c.cancel()
	if current != nil {
		current.MarkAborted()
	}
	if transport != nil {
		return transport.Close()
	}
	return nil
}

func (c *Connection) onURL(raw []byte) error {
	u, err := httpcore.NewURL(cloneBytes(raw))
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.building = httpcore.NewRequest(cloneBytes(c.parser.Method()), u)
	c.headerCount = 0
	c.body.Reset()
	c.bodySize = 0
	c.state = StateHeadersBuilding
	c.mu.Unlock()
	return nil
}

func (c *Connection) onHeader(name, value []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.building == nil {
		return errdefs.ErrBadRequest
	}
	c.headerCount++
	if c.limits.MaxRequestHeadersCount > 0 && c.headerCount > c.limits.MaxRequestHeadersCount {
		return errHeadersCountExceeded
	}
	if c.limits.MaxRequestHeaderSize > 0 && int64(len(value)) > c.limits.MaxRequestHeaderSize {
		return errHeadersSizeExceeded
	}
	c.building.Headers().Add(cloneBytes(name), cloneBytes(value))
	return nil
}

func (c *Connection) onHeadersComplete() error {
	c.mu.Lock()
	req := c.building
	if req == nil {
		c.mu.Unlock()
		return errdefs.ErrBadRequest
	}
	c.building = nil
	c.current = req
	c.state = StateBodyStreaming
	c.mu.Unlock()

	go c.serveRequest(req)
	return nil
}

func (c *Connection) onBody(chunk []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.bodySize += int64(len(chunk))
	if c.limits.MaxBodySize > 0 && c.bodySize > c.limits.MaxBodySize {
		return errBodyTooLarge
	}
	c.body.Write(chunk)
	return nil
}

func (c *Connection) onMessageComplete() error {
	c.mu.Lock()
	req := c.current
	if req == nil {
		c.mu.Unlock()
		return nil
	}
	body := append([]byte(nil), c.body.Bytes()...)
	c.state = StateHandling
	c.mu.Unlock()

	if len(body) > 0 {
		req.SetContent(httpcore.NewBufferedContent(req.Headers().GetSingle([]byte("Content-Type")), body))
	}
	if c.metrics != nil {
		c.metrics.ObserveRequestBody(int64(len(body)))
	}
	req.MarkComplete()
	return nil
}

func (c *Connection) onUpgrade(method []byte) error { return nil }

// serveRequest runs the handler for req and writes the response, then
// resumes the parser for any pipelined request already buffered.
func (c *Connection) serveRequest(req *httpcore.Request) {
	ctx := c.ctx
	resp := c.handler.Handle(ctx, req)
	if resp == nil {
		resp = httpcore.NewResponse(204)
	}

	c.mu.Lock()
	c.state = StateWriting
	c.mu.Unlock()

	if err := c.writable.Wait(ctx); err != nil {
		c.finishRequest(req, false)
		return
	}

	headersOnly := bytes.EqualFold(req.Method, []byte("HEAD")) || httpcore.BodylessStatus(resp.Status)
	transport := c.transportRef()
	keepAlive := c.parserKeepAlive()
	if !keepAlive {
		resp.Headers().Set([]byte("Connection"), []byte("close"))
	}

	var writeErr error
	if transport != nil {
		writeErr = scribe.WriteResponse(ctx, transportSink{t: transport}, resp, headersOnly)
	}

	// The handler may have responded without reading the body at all; onBody
	// keeps writing into this request's buffer until onMessageComplete fires
	// (or the connection is lost/closed, which marks it aborted), so the
	// parser must not be reset for the next pipelined request until then.
	<-req.Complete()

	req.Release()
	c.finishRequest(req, writeErr == nil && keepAlive)

	if writeErr != nil || !keepAlive {
		if transport != nil {
			_ = transport.Close()
		}
	}
}

// finishRequest clears current, resets the parser for the next pipelined
// request when keepAlive, and replays any bytes already buffered past
// the message boundary.
func (c *Connection) finishRequest(req *httpcore.Request, keepAlive bool) {
	c.mu.Lock()
	if c.current == req {
		c.current = nil
	}
	if c.closed {
		c.mu.Unlock()
		return
	}
	if !keepAlive {
		c.state = StateAborted
		c.closed = true
		c.mu.Unlock()
		return
	}
	c.state = StateIdle
	c.mu.Unlock()

	c.parserMu.Lock()
	pending := append([]byte(nil), c.parser.Pending()...)
	c.parser.Reset()
	c.parserMu.Unlock()

	if len(pending) > 0 {
		_ = c.Feed(c.ctx, pending)
	}
}

func (c *Connection) transportRef() Transport {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.transport
}

func (c *Connection) parserKeepAlive() bool {
	c.parserMu.Lock()
	defer c.parserMu.Unlock()
	return c.parser.ShouldKeepAlive()
}

// fail writes an error response for a connection-fatal condition (bad
// framing, or an admission-control limit breached mid-request) and
// closes the transport; the parser state cannot be trusted to resync.
func (c *Connection) fail(ctx context.Context, err error) error {
	status := statusForConnectionError(err)
	c.log.WithError(err).WithField("status", status).Debug("rejecting connection")
	if c.metrics != nil {
		c.metrics.AdmissionRejected(status)
	}

	c.mu.Lock()
	transport := c.transport
	c.state = StateAborted
	c.closed = true
	building := c.building
	current := c.current
	c.mu.Unlock()

	if building != nil {
		building.MarkAborted()
	}
	if current != nil {
		current.MarkAborted()
	}

	if transport != nil {
		resp := httpcore.NewResponse(status)
		resp.Headers().Set([]byte("Connection"), []byte("close"))
		_ = scribe.WriteResponse(ctx, transportSink{t: transport}, resp, true)
		_ = transport.Close()
	}
	return err
}

func statusForConnectionError(err error) int {
	switch {
	case errors.Is(err, errHeadersCountExceeded), errors.Is(err, errHeadersSizeExceeded):
		return 413
	case errors.Is(err, errBodyTooLarge):
		return 400
	case errdefs.IsBadRequestError(err), errdefs.IsInvalidURLError(err):
		return 400
	default:
		return 400
	}
}

// handleUpgrade responds to a requested protocol upgrade. This core
// implements HTTP/1.1 request/response framing only; an upgrade request
// is answered with 501 rather than left to hang.
func (c *Connection) handleUpgrade(ctx context.Context) error {
	c.mu.Lock()
	transport := c.transport
	c.state = StateAborted
	c.closed = true
	c.mu.Unlock()

	if transport != nil {
		resp := httpcore.NewResponse(errdefs.StatusCode(errdefs.ErrNotImplementedByServer))
		resp.Headers().Set([]byte("Connection"), []byte("close"))
		_ = scribe.WriteResponse(ctx, transportSink{t: transport}, resp, true)
		_ = transport.Close()
	}
	return nil
}

// transportSink adapts a Transport to scribe.Sink.
type transportSink struct{ t Transport }

func (s transportSink) Write(ctx context.Context, b []byte) error { return s.t.Write(ctx, b) }

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
