// Package scribe serialises requests and responses to the wire: status
// and request lines, content-header policy, the small-response fast path,
// and chunked-transfer streaming.
package scribe

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/neoteroi/httpcore/pkg/httpcore"
)

// MaxResponseChunkSize is the threshold below which a fully-known body is
// serialised and written in one call rather than streamed.
const MaxResponseChunkSize = 64 * 1024

var statusLines = buildStatusLines()

// statusText holds the reason phrase for status codes this core writes
// verbatim; anything unlisted falls back to "Unknown".
var statusText = map[int]string{
	100: "Continue", 101: "Switching Protocols",
	200: "OK", 201: "Created", 202: "Accepted", 204: "No Content", 206: "Partial Content",
	301: "Moved Permanently", 302: "Found", 303: "See Other", 304: "Not Modified",
	307: "Temporary Redirect", 308: "Permanent Redirect",
	400: "Bad Request", 401: "Unauthorized", 403: "Forbidden", 404: "Not Found",
	405: "Method Not Allowed", 406: "Not Acceptable", 408: "Request Timeout",
	409: "Conflict", 410: "Gone", 411: "Length Required", 413: "Payload Too Large",
	414: "URI Too Long", 415: "Unsupported Media Type", 416: "Range Not Satisfiable",
	417: "Expectation Failed", 426: "Upgrade Required", 429: "Too Many Requests",
	500: "Internal Server Error", 501: "Not Implemented", 502: "Bad Gateway",
	503: "Service Unavailable", 504: "Gateway Timeout", 505: "HTTP Version Not Supported",
}

// buildStatusLines precomputes "HTTP/1.1 <code> <reason>\r\n" for every
// status in 100..599.
func buildStatusLines() [600][]byte {
	var lines [600][]byte
	for code := 100; code < 600; code++ {
		reason, ok := statusText[code]
		if !ok {
			reason = "Unknown"
		}
		lines[code] = []byte(fmt.Sprintf("HTTP/1.1 %d %s\r\n", code, reason))
	}
	return lines
}

// ReasonPhrase returns the standard reason phrase for status, or
// "Unknown" if unlisted.
func ReasonPhrase(status int) string {
	if r, ok := statusText[status]; ok {
		return r
	}
	return "Unknown"
}

// StatusLine returns the precomputed "HTTP/1.1 <code> <reason>\r\n" line.
func StatusLine(status int) []byte {
	if status < 100 || status >= 600 {
		return []byte(fmt.Sprintf("HTTP/1.1 %d %s\r\n", status, ReasonPhrase(status)))
	}
	return statusLines[status]
}

// RequestLine builds "<METHOD> <target> HTTP/1.1\r\n".
func RequestLine(method []byte, target []byte) []byte {
	var buf bytes.Buffer
	buf.Write(method)
	buf.WriteByte(' ')
	buf.Write(target)
	buf.WriteString(" HTTP/1.1\r\n")
	return buf.Bytes()
}

// applyContentHeaders sets the content headers for a message, evaluated
// in order: no content, unknown length (chunked), or a known length
// (Content-Type + Content-Length). It must be called exactly once per
// message before writing.
func applyContentHeaders(headers *httpcore.Headers, content httpcore.Content) {
	if content == nil {
		headers.Set([]byte("Content-Length"), []byte("0"))
		return
	}
	length := content.Length()
	if length < 0 {
		headers.Set([]byte("Transfer-Encoding"), []byte("chunked"))
		headers.Remove([]byte("Content-Length"))
		return
	}
	ct := content.Type()
	if len(ct) == 0 {
		ct = []byte("application/octet-stream")
	}
	headers.Set([]byte("Content-Type"), ct)
	headers.Set([]byte("Content-Length"), []byte(strconv.FormatInt(length, 10)))
}

// Sink is the minimal transport surface the scribe writes through: one
// synchronous Write per call, matching ServerConnection's own write path
// so both the small-response and chunked paths share a single writer
// contract.
type Sink interface {
	Write(ctx context.Context, b []byte) error
}

// WriteResponse serialises resp onto sink. headersOnly skips the body
// (used for HEAD requests and 1xx/204/304 statuses).
func WriteResponse(ctx context.Context, sink Sink, resp *httpcore.Response, headersOnly bool) error {
	content := resp.Content()
	applyContentHeaders(resp.Headers(), content)

	head := buildHead(StatusLine(resp.Status), resp.Headers())

	if headersOnly || content == nil {
		return sink.Write(ctx, head)
	}

	length := content.Length()
	if length >= 0 && length < MaxResponseChunkSize {
		body, err := content.Read(ctx)
		if err != nil {
			return err
		}
		return sink.Write(ctx, append(head, body...))
	}

	if err := sink.Write(ctx, head); err != nil {
		return err
	}
	return writeStreamed(ctx, sink, content, length)
}

func writeStreamed(ctx context.Context, sink Sink, content httpcore.Content, length int64) error {
	stream, err := content.Stream(ctx)
	if err != nil {
		return err
	}
	chunked := length < 0

	for {
		chunk, err := stream.Next(ctx)
		if err == io.EOF {
			if chunked {
				return sink.Write(ctx, []byte("0\r\n\r\n"))
			}
			return nil
		}
		if err != nil {
			return err
		}
		if len(chunk) == 0 {
			continue
		}
		if !chunked {
			if err := sink.Write(ctx, chunk); err != nil {
				return err
			}
			continue
		}
		frame := formatChunk(chunk)
		if err := sink.Write(ctx, frame); err != nil {
			return err
		}
	}
}

// formatChunk wraps chunk as "<hex length>\r\n<data>\r\n".
func formatChunk(chunk []byte) []byte {
	var buf bytes.Buffer
	buf.WriteString(strconv.FormatInt(int64(len(chunk)), 16))
	buf.WriteString("\r\n")
	buf.Write(chunk)
	buf.WriteString("\r\n")
	return buf.Bytes()
}

func buildHead(statusLine []byte, headers *httpcore.Headers) []byte {
	var buf bytes.Buffer
	buf.Write(statusLine)
	headers.Range(func(name, value []byte) bool {
		buf.Write(name)
		buf.WriteString(": ")
		buf.Write(value)
		buf.WriteString("\r\n")
		return true
	})
	buf.WriteString("\r\n")
	return buf.Bytes()
}

// WriteRequest serialises an outbound client request onto sink. When the
// request has no Host header and its URL is absolute, a Host header is
// added from the URL; a request with a relative URL is written without one.
func WriteRequest(ctx context.Context, sink Sink, req *httpcore.Request) error {
	headers := req.Headers()
	if !headers.Contains([]byte("Host")) && req.URL.IsAbsolute() {
		headers.Set([]byte("Host"), req.URL.Host())
	}
	content := req.Content()
	applyContentHeaders(headers, content)

	var buf bytes.Buffer
	buf.Write(RequestLine(req.Method, requestTarget(req)))
	headers.Range(func(name, value []byte) bool {
		buf.Write(name)
		buf.WriteString(": ")
		buf.Write(value)
		buf.WriteString("\r\n")
		return true
	})
	buf.WriteString("\r\n")

	if content == nil {
		return sink.Write(ctx, buf.Bytes())
	}

	length := content.Length()
	if length >= 0 && length < MaxResponseChunkSize {
		body, err := content.Read(ctx)
		if err != nil {
			return err
		}
		buf.Write(body)
		return sink.Write(ctx, buf.Bytes())
	}

	if err := sink.Write(ctx, buf.Bytes()); err != nil {
		return err
	}
	return writeStreamed(ctx, sink, content, length)
}

func requestTarget(req *httpcore.Request) []byte {
	if req.URL.IsAbsolute() {
		return req.URL.Path()
	}
	return req.URL.Raw()
}

// jsonMarshal is used by WriteServerSentEvent for non-string event data.
func jsonMarshal(v any) ([]byte, error) { return json.Marshal(v) }
