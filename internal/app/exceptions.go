package app

import (
	"context"
	"errors"

	"github.com/neoteroi/httpcore/pkg/httpcore"
	"github.com/neoteroi/httpcore/pkg/httpcore/errdefs"
	"github.com/neoteroi/httpcore/pkg/httpcore/scribe"
)

// JSONError lets a handler-raised error control its own JSON
// representation (e.g. a validation failure exposing field errors); the
// default bad-request handler renders it as the response body instead of
// the plain-text reason when present.
type JSONError interface {
	error
	JSON() ([]byte, error)
}

func reasonOf(err error) string {
	var httpErr *errdefs.HTTPError
	if errors.As(err, &httpErr) && httpErr.Reason != "" {
		return httpErr.Reason
	}
	return err.Error()
}

func defaultBadRequestHandler(_ context.Context, _ *httpcore.Request, err error) *httpcore.Response {
	if jsonErr, ok := err.(JSONError); ok {
		body, encodeErr := jsonErr.JSON()
		if encodeErr == nil {
			return httpcore.JSONResponse(400, body)
		}
	}
	resp := httpcore.TextResponse("Bad Request: " + reasonOf(err))
	resp.Status = 400
	return resp
}

func defaultNotFoundHandler(context.Context, *httpcore.Request, error) *httpcore.Response {
	resp := httpcore.NewResponse(404)
	resp.SetContent(httpcore.NewBufferedContent(
		[]byte("text/plain; charset=utf-8"),
		[]byte("Resource not found"),
	))
	return resp
}

// messageAbortedHandler answers a request whose body never finished
// arriving because the connection dropped. The response it builds is
// swallowed in practice — writing it will itself fail against the
// already-gone transport — but Application.Handle always needs something
// to return.
func messageAbortedHandler(context.Context, *httpcore.Request, error) *httpcore.Response {
	return httpcore.NewResponse(499)
}

// defaultStatusHandler renders the standard reason phrase for status as
// a plain-text body, used for any handler-raised *errdefs.HTTPError that
// has no specific registered handler.
func defaultStatusHandler(status int) ExceptionHandler {
	return func(_ context.Context, _ *httpcore.Request, err error) *httpcore.Response {
		reason := scribe.ReasonPhrase(status)
		var httpErr *errdefs.HTTPError
		if errors.As(err, &httpErr) && httpErr.Reason != "" {
			reason = httpErr.Reason
		}
		resp := httpcore.NewResponse(status)
		resp.SetContent(httpcore.NewBufferedContent([]byte("text/plain; charset=utf-8"), []byte(reason)))
		return resp
	}
}

// defaultInternalServerErrorHandler renders 500, including the error's
// message when ShowErrorDetails is enabled.
func (a *Application) defaultInternalServerErrorHandler(_ context.Context, _ *httpcore.Request, err error) *httpcore.Response {
	resp := httpcore.NewResponse(500)
	message := "Internal Server Error"
	if a.showErrorDetails && err != nil {
		message = "Internal Server Error: " + err.Error()
	}
	resp.SetContent(httpcore.NewBufferedContent([]byte("text/plain; charset=utf-8"), []byte(message)))
	return resp
}
