package httpcore

import (
	"bytes"
	"context"
	"encoding/json"
	"net/url"
	"sync"
	"unicode/utf8"

	"github.com/mitchellh/mapstructure"

	"github.com/neoteroi/httpcore/pkg/httpcore/errdefs"
	"github.com/neoteroi/httpcore/pkg/httpcore/multipart"
)

// bodylessMethods never carry a request body; a connection marks
// Request.complete as soon as headers are done for these.
var bodylessMethods = map[string]bool{
	"GET": true, "HEAD": true, "TRACE": true, "OPTIONS": true, "CONNECT": true,
}

// IsBodylessMethod reports whether method never carries a body.
func IsBodylessMethod(method []byte) bool {
	return bodylessMethods[string(bytes.ToUpper(method))]
}

// Request is an inbound HTTP/1.1 message.
type Request struct {
	Message

	Method      []byte
	URL         *URL
	RouteValues map[string]string
	Scope       map[string]any

	complete *signal

	mu      sync.Mutex
	active  bool
	aborted bool

	formOnce   sync.Once
	formValue  map[string][]any
	formParts  []*multipart.FormPart
	formErr    error

	cookiesOnce sync.Once
	cookies     map[string]string
}

// NewRequest builds a Request for method/url. complete is already set for
// body-less methods, since they never carry a body to wait for.
func NewRequest(method []byte, u *URL) *Request {
	r := &Request{
		Message:  newMessage(),
		Method:   method,
		URL:      u,
		complete: newSignal(),
		active:   true,
	}
	if IsBodylessMethod(method) {
		r.complete.Set()
	}
	return r
}

// Active reports whether the connection that produced this request is
// still live.
func (r *Request) Active() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active
}

// Aborted reports whether the connection was lost before the body
// completed.
func (r *Request) Aborted() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.aborted
}

// MarkComplete signals that the body has finished arriving (called by the
// connection's on_message_complete callback).
func (r *Request) MarkComplete() {
	r.complete.Set()
}

// MarkAborted marks the request aborted and unblocks any goroutine
// waiting in Read. Safe to call more than once.
func (r *Request) MarkAborted() {
	r.mu.Lock()
	r.active = false
	r.aborted = true
	r.mu.Unlock()
	r.complete.Set()
	r.dispose()
}

// Complete returns a channel that is closed once the body has fully
// arrived or the request was aborted.
func (r *Request) Complete() <-chan struct{} { return r.complete.Done() }

// Release disposes of the request's body after normal completion (the
// handler has returned and its response was written), distinct from
// MarkAborted which additionally flags the request as connection-lost.
func (r *Request) Release() {
	r.mu.Lock()
	r.active = false
	r.mu.Unlock()
	r.dispose()
}

// Read awaits body completion and returns the accumulated bytes, or
// ErrMessageAborted if the connection was lost first.
func (r *Request) Read(ctx context.Context) ([]byte, error) {
	select {
	case <-r.complete.Done():
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	if r.Aborted() {
		return nil, errdefs.ErrMessageAborted
	}
	content := r.Content()
	if content == nil {
		return nil, nil
	}
	return content.Read(ctx)
}

// Text decodes the body using the Content-Type charset parameter,
// falling back to UTF-8 validity, then ISO-8859-1 (byte-for-codepoint).
func (r *Request) Text(ctx context.Context) (string, error) {
	body, err := r.Read(ctx)
	if err != nil {
		return "", err
	}
	return decodeText(body, r.contentTypeCharset())
}

func (r *Request) contentTypeCharset() string {
	content := r.Content()
	if content == nil {
		return ""
	}
	return charsetOf(content.Type())
}

func decodeText(body []byte, charset string) (string, error) {
	switch charset {
	case "", "utf-8", "utf8":
		if utf8.Valid(body) {
			return string(body), nil
		}
	default:
		if charset != "iso-8859-1" && charset != "latin1" {
			if utf8.Valid(body) {
				return string(body), nil
			}
		}
	}
	// ISO-8859-1 fallback: every byte maps 1:1 to a Unicode code point.
	runes := make([]rune, len(body))
	for i, b := range body {
		runes[i] = rune(b)
	}
	return string(runes), nil
}

func charsetOf(contentType []byte) string {
	idx := bytes.Index(bytes.ToLower(contentType), []byte("charset="))
	if idx == -1 {
		return ""
	}
	rest := contentType[idx+len("charset="):]
	if semi := bytes.IndexByte(rest, ';'); semi != -1 {
		rest = rest[:semi]
	}
	return string(bytes.ToLower(bytes.TrimSpace(rest)))
}

// JSON decodes the body into v. If the content type declares JSON and the
// body fails to parse, the error is ErrBadRequestFormat; if the content
// type does not declare JSON at all, the error is ErrInvalidOperation.
func (r *Request) JSON(ctx context.Context, v any) error {
	content := r.Content()
	if content == nil || !bytes.Contains(bytes.ToLower(content.Type()), []byte("json")) {
		return errdefs.ErrInvalidOperation
	}
	body, err := r.Read(ctx)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, v); err != nil {
		return errdefs.ErrBadRequestFormat
	}
	return nil
}

// ExpectsContinue reports whether the first Expect header is
// "100-continue".
func (r *Request) ExpectsContinue() bool {
	v := r.Headers().GetFirst([]byte("Expect"))
	return lowerEqual(v, []byte("100-continue"))
}

// Cookies folds every Cookie header into a name->value view, computed
// lazily and cached; since headers are immutable after the request is
// materialised, a single computation is safe to reuse.
func (r *Request) Cookies() map[string]string {
	r.cookiesOnce.Do(func() {
		r.cookies = map[string]string{}
		for _, raw := range r.Headers().Get([]byte("Cookie")) {
			for _, part := range splitAttributes(raw) {
				eq := bytes.IndexByte(part, '=')
				if eq == -1 {
					continue
				}
				name := string(bytes.TrimSpace(part[:eq]))
				value := string(bytes.TrimSpace(part[eq+1:]))
				if unescaped, err := url.QueryUnescape(value); err == nil {
					value = unescaped
				}
				r.cookies[name] = value
			}
		}
	})
	return r.cookies
}

// Form dispatches on Content-Type to either application/x-www-form-urlencoded
// or multipart/form-data parsing, memoising the result. A name with one
// value maps to that value (a string, or a *multipart.FormPart for a file
// part); a name with several values maps to a []any of them (see
// multipart.SimplifyFormData for the multipart case).
func (r *Request) Form(ctx context.Context) (map[string]any, error) {
	r.formOnce.Do(func() {
		content := r.Content()
		if content == nil {
			r.formValue = map[string][]any{}
			return
		}
		ct := content.Type()
		switch {
		case bytes.Contains(bytes.ToLower(ct), []byte("multipart/form-data")):
			r.parseMultipartForm(ctx, ct)
		case bytes.Contains(bytes.ToLower(ct), []byte("application/x-www-form-urlencoded")):
			r.parseURLEncodedForm(ctx)
		default:
			r.formErr = errdefs.ErrInvalidOperation
		}
	})
	if r.formErr != nil {
		return nil, r.formErr
	}
	out := make(map[string]any, len(r.formValue))
	for k, v := range r.formValue {
		if len(v) == 1 {
			out[k] = v[0]
		} else {
			out[k] = v
		}
	}
	return out, nil
}

func (r *Request) parseURLEncodedForm(ctx context.Context) {
	body, err := r.Read(ctx)
	if err != nil {
		r.formErr = err
		return
	}
	values, err := url.ParseQuery(string(body))
	if err != nil {
		r.formErr = errdefs.ErrBadRequestFormat
		return
	}
	r.formValue = map[string][]any{}
	for k, vs := range values {
		for _, v := range vs {
			r.formValue[k] = append(r.formValue[k], v)
		}
	}
}

func (r *Request) parseMultipartForm(ctx context.Context, contentType []byte) {
	boundary, err := multipart.BoundaryFromContentType(contentType)
	if err != nil {
		r.formErr = err
		return
	}
	body, err := r.Read(ctx)
	if err != nil {
		r.formErr = err
		return
	}
	parts, err := multipart.Parse(boundary, body)
	if err != nil {
		r.formErr = err
		return
	}
	r.formParts = parts
	simplified, err := multipart.SimplifyFormData(parts)
	if err != nil && simplified == nil {
		r.formErr = err
		return
	}
	r.formValue = map[string][]any{}
	for k, v := range simplified {
		r.formValue[k] = append(r.formValue[k], v)
	}
}

// Files filters the last parsed multipart body to parts carrying a file
// name, optionally matching a specific field name.
func (r *Request) Files(name string) []*multipart.FormPart {
	var out []*multipart.FormPart
	for _, p := range r.formParts {
		if p.FileName == "" {
			continue
		}
		if name != "" && p.Name != name {
			continue
		}
		out = append(out, p)
	}
	return out
}

// Bind decodes the parsed form (or JSON body, tried first) into dst using
// mapstructure, a narrow convenience atop Form/JSON rather than a binding
// framework.
func (r *Request) Bind(ctx context.Context, dst any) error {
	content := r.Content()
	if content != nil && bytes.Contains(bytes.ToLower(content.Type()), []byte("json")) {
		return r.JSON(ctx, dst)
	}
	form, err := r.Form(ctx)
	if err != nil {
		return err
	}
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           dst,
		WeaklyTypedInput: true,
		TagName:          "form",
	})
	if err != nil {
		return err
	}
	return decoder.Decode(form)
}
