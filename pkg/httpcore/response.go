package httpcore

import (
	"context"

	"github.com/jonboulle/clockwork"
)

var redirectStatuses = map[int]bool{
	301: true, 302: true, 303: true, 307: true, 308: true,
}

// Response is an outbound HTTP/1.1 message.
type Response struct {
	Message

	Status int

	clock clockwork.Clock
}

// NewResponse builds a Response with the given status and no body.
func NewResponse(status int) *Response {
	return &Response{Message: newMessage(), Status: status, clock: clockwork.NewRealClock()}
}

// TextResponse builds a 200 response with a text/plain; charset=utf-8
// buffered body, the common case for a handler returning plain text.
func TextResponse(body string) *Response {
	r := NewResponse(200)
	r.SetContent(NewBufferedContent([]byte("text/plain; charset=utf-8"), []byte(body)))
	return r
}

// JSONResponse builds a response with the given status whose
// application/json body is body, which must already be encoded JSON.
func JSONResponse(status int, body []byte) *Response {
	r := NewResponse(status)
	r.SetContent(NewBufferedContent([]byte("application/json"), body))
	return r
}

// IsRedirect reports whether Status is one of the redirect codes.
func (r *Response) IsRedirect() bool { return redirectStatuses[r.Status] }

// Read returns the whole response body.
func (r *Response) Read(ctx context.Context) ([]byte, error) {
	content := r.Content()
	if content == nil {
		return nil, nil
	}
	return content.Read(ctx)
}

// SetCookie appends a Set-Cookie header for c.
func (r *Response) SetCookie(c *Cookie) {
	r.Headers().Add([]byte("Set-Cookie"), WriteCookieForResponse(c))
}

// UnsetCookie appends a Set-Cookie header that clears name.
func (r *Response) UnsetCookie(name []byte) {
	r.Headers().Add([]byte("Set-Cookie"), UnsetCookie(name, r.clock))
}

// Cookies folds every Set-Cookie header into a name->Cookie view,
// recomputed from the header list on every call — never kept as a
// parallel structure that could diverge from a later header mutation.
func (r *Response) Cookies() map[string]*Cookie {
	cookies := map[string]*Cookie{}
	for _, raw := range r.Headers().Get([]byte("Set-Cookie")) {
		c, err := ParseCookie(raw)
		if err != nil {
			continue
		}
		cookies[string(c.Name)] = c
	}
	return cookies
}

// BodylessStatus reports statuses that never carry a body (1xx, 204, 304),
// consulted by the connection when deciding whether to write the body.
func BodylessStatus(status int) bool {
	if status >= 100 && status < 200 {
		return true
	}
	return status == 204 || status == 304
}
