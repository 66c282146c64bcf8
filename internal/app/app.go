// Package app implements BaseApplication: dispatching a matched request
// to its handler and reifying any error it returns (or panics with) into
// an HTTP response, following a fixed exception-handler resolution order.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/trace"

	"github.com/neoteroi/httpcore/internal/telemetry"
	"github.com/neoteroi/httpcore/pkg/httpcore"
	"github.com/neoteroi/httpcore/pkg/httpcore/errdefs"
	"github.com/neoteroi/httpcore/pkg/httpcore/server"
)

// RequestMetrics receives the per-request timing Handle observes. Defined
// here, next to its only caller, so this package's dependency on telemetry
// stays one-directional: *telemetry.Metrics satisfies it structurally.
type RequestMetrics interface {
	ObserveRequestDuration(time.Duration)
}

// ExceptionHandler renders err (raised by a route handler, or synthesised
// by Application itself for a no-match/aborted request) into a Response.
type ExceptionHandler func(ctx context.Context, req *httpcore.Request, err error) *httpcore.Response

type exceptionRule struct {
	match   func(error) bool
	handler ExceptionHandler
}

// Option configures an Application at construction time.
type Option func(*Application)

// WithShowErrorDetails controls whether the default 500 handler includes
// the triggering error's message in the response body.
func WithShowErrorDetails(show bool) Option {
	return func(a *Application) { a.showErrorDetails = show }
}

// WithLogger overrides the default logrus entry used for handler panics
// and recovery failures.
func WithLogger(log *logrus.Entry) Option {
	return func(a *Application) { a.log = log }
}

// WithTracer makes Handle open one span per request, tagged with the
// matched route, response status and whether the request was aborted.
// Without this option Handle does not trace.
func WithTracer(tracer trace.Tracer) Option {
	return func(a *Application) { a.tracer = tracer }
}

// WithMetrics makes Handle record its dispatch duration on m. Without this
// option Handle does not record timing.
func WithMetrics(m RequestMetrics) Option {
	return func(a *Application) { a.metrics = m }
}

// Application is the C9 BaseApplication: it owns no transport state of
// its own and is safe to share across every connection's Handle calls, as
// long as the Router and registered handlers are themselves read-only
// after construction.
type Application struct {
	router   Router
	rules    []exceptionRule
	byStatus map[int]ExceptionHandler

	badRequest       ExceptionHandler
	notFound         ExceptionHandler
	messageAbort     ExceptionHandler
	showErrorDetails bool
	log              *logrus.Entry
	tracer           trace.Tracer
	metrics          RequestMetrics
}

var _ server.Handler = (*Application)(nil)

// New builds an Application dispatching matched requests through router.
func New(router Router, opts ...Option) *Application {
	a := &Application{
		router:   router,
		byStatus: map[int]ExceptionHandler{},
		log:      logrus.NewEntry(logrus.StandardLogger()),
	}
	for _, opt := range opts {
		opt(a)
	}
	a.badRequest = defaultBadRequestHandler
	a.notFound = defaultNotFoundHandler
	a.messageAbort = messageAbortedHandler
	return a
}

// OnException registers handler for any error that match reports true
// for, checked before the built-in status/type classification. Use
// errors.As inside match to dispatch by a handler-defined error type,
// the idiomatic stand-in for walking an exception class hierarchy.
func (a *Application) OnException(match func(error) bool, handler ExceptionHandler) {
	a.rules = append(a.rules, exceptionRule{match: match, handler: handler})
}

// OnStatus registers handler for any *errdefs.HTTPError (or sentinel
// classified via errdefs.StatusCode) carrying the given status.
func (a *Application) OnStatus(status int, handler ExceptionHandler) {
	a.byStatus[status] = handler
}

// Handle implements server.Handler: match the request, invoke its
// handler, and translate either a no-match or a returned/panicking error
// into a response. A nil response is normalised to 204. When a tracer is
// configured (WithTracer), the whole dispatch runs inside one span; when
// a RequestMetrics is configured (WithMetrics), its wall-clock duration
// is recorded regardless.
func (a *Application) Handle(ctx context.Context, req *httpcore.Request) *httpcore.Response {
	start := time.Now()
	resp := a.traced(ctx, req)
	if a.metrics != nil {
		a.metrics.ObserveRequestDuration(time.Since(start))
	}
	return resp
}

func (a *Application) traced(ctx context.Context, req *httpcore.Request) *httpcore.Response {
	if a.tracer == nil {
		return a.handle(ctx, req)
	}

	route := string(req.URL.Path())
	ctx, span := a.tracer.Start(ctx, "http.handle")
	defer span.End()

	resp := a.handle(ctx, req)
	span.SetAttributes(telemetry.RequestAttributes(route, resp.Status, req.Aborted())...)
	return resp
}

func (a *Application) handle(ctx context.Context, req *httpcore.Request) *httpcore.Response {
	match, ok := a.router.Match(req)
	if !ok {
		return a.recover(ctx, req, errdefs.ErrNotFound, false)
	}

	req.RouteValues = match.RouteValues
	resp, err := a.invoke(ctx, req, match.Handler)
	if err != nil {
		return a.recover(ctx, req, err, false)
	}
	if resp == nil {
		resp = httpcore.NewResponse(204)
	}
	return resp
}

// invoke calls handler, converting a panic into an error so Handle has a
// single recovery path regardless of how the handler failed.
func (a *Application) invoke(ctx context.Context, req *httpcore.Request, handler RouteHandler) (resp *httpcore.Response, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = panicToError(r)
		}
	}()
	return handler(ctx, req)
}

// recover resolves and invokes the handler for err. retried distinguishes
// the first attempt from the single allowed retry after a failing
// exception handler; a second failure falls through to the internal
// server error handler without being routed again.
func (a *Application) recover(ctx context.Context, req *httpcore.Request, err error, retried bool) *httpcore.Response {
	handler := a.resolveHandler(err)
	resp, handlerErr := a.invokeExceptionHandler(ctx, req, handler, err)
	if handlerErr != nil {
		if retried {
			a.log.WithError(handlerErr).Error("exception handler failed twice, falling back to 500")
			return a.defaultInternalServerErrorHandler(ctx, req, handlerErr)
		}
		a.log.WithError(handlerErr).WithField("cause", err).Warn("exception handler failed, retrying once")
		return a.recover(ctx, req, handlerErr, true)
	}
	if resp == nil {
		resp = httpcore.NewResponse(204)
	}
	return resp
}

func (a *Application) invokeExceptionHandler(ctx context.Context, req *httpcore.Request, handler ExceptionHandler, err error) (resp *httpcore.Response, handlerErr error) {
	defer func() {
		if r := recover(); r != nil {
			handlerErr = panicToError(r)
		}
	}()
	resp = handler(ctx, req, err)
	return resp, nil
}

// resolveHandler picks the handler for err: a registered predicate rule
// first, then a status match (handler-raised *errdefs.HTTPError or a
// core sentinel classified via errdefs.StatusCode), then the built-in
// not-found/bad-request/message-aborted handlers, defaulting to the
// internal server error handler.
func (a *Application) resolveHandler(err error) ExceptionHandler {
	for _, rule := range a.rules {
		if rule.match(err) {
			return rule.handler
		}
	}

	status := errdefs.StatusCode(err)
	if handler, ok := a.byStatus[status]; ok {
		return handler
	}

	switch {
	case errdefs.IsMessageAbortedError(err):
		return a.messageAbort
	case errdefs.IsNotFoundError(err):
		return a.notFound
	case errdefs.IsBadRequestError(err), errdefs.IsInvalidURLError(err):
		return a.badRequest
	case status != 500:
		return defaultStatusHandler(status)
	default:
		return a.defaultInternalServerErrorHandler
	}
}

func panicToError(r any) error {
	if err, ok := r.(error); ok {
		return err
	}
	return fmt.Errorf("panic: %v", r)
}
