// Package parser implements the incremental HTTP/1.1 byte parser that
// ServerConnection depends on: FeedData ingests whatever bytes the
// transport handed over and invokes Callbacks as soon as each element of
// the request is recognised, without ever requiring a full message to be
// buffered first.
package parser

import (
	"bytes"
	"strconv"
)

// Callbacks is the set of hooks ServerConnection registers. Any callback
// may be left nil.
type Callbacks struct {
	OnURL             func(raw []byte) error
	OnHeader          func(name, value []byte) error
	OnHeadersComplete func() error
	OnBody            func(chunk []byte) error
	OnMessageComplete func() error
	// OnUpgrade fires once a request with a Connection: Upgrade header
	// has had its headers parsed; FeedData stops consuming bytes as
	// request framing past that point and returns an *UpgradeRequestedError.
	OnUpgrade func(method []byte) error
}

type state int

const (
	stateRequestLine state = iota
	stateHeaders
	stateBodyIdentity
	stateBodyChunkedSize
	stateBodyChunkedData
	stateBodyChunkedTrailer
	stateDone
)

// Parser is a single connection's incremental HTTP/1.1 request parser. It
// is not safe for concurrent use; ServerConnection owns exactly one.
type Parser struct {
	cb Callbacks

	st  state
	buf []byte // bytes not yet consumed

	method           []byte
	keepAlive        bool
	httpMinor        int
	contentLength    int64
	haveLength       bool
	chunked          bool
	remainingChunk   int64
	bodyBytesRead    int64
	upgradeRequested bool
}

// New builds a Parser that will invoke cb as it recognises request
// elements.
func New(cb Callbacks) *Parser {
	return &Parser{cb: cb, keepAlive: true, httpMinor: 1}
}

// Reset prepares the parser for the next pipelined request on the same
// connection.
func (p *Parser) Reset() {
	p.st = stateRequestLine
	p.buf = nil
	p.method = nil
	p.keepAlive = true
	p.contentLength = 0
	p.haveLength = false
	p.chunked = false
	p.remainingChunk = 0
	p.bodyBytesRead = 0
	p.upgradeRequested = false
}

// ShouldKeepAlive reports whether the connection should remain open for
// another request after the current one completes.
func (p *Parser) ShouldKeepAlive() bool { return p.keepAlive }

// Method returns the method of the request currently being parsed.
func (p *Parser) Method() []byte { return p.method }

// UpgradeRequested reports whether the parsed request asked for a
// protocol upgrade (Connection: Upgrade).
func (p *Parser) UpgradeRequested() bool { return p.upgradeRequested }

// Pending returns the bytes FeedData has buffered but not yet consumed,
// typically the start of a pipelined next request sitting past the
// current message's final byte. Reset discards this buffer, so callers
// supporting pipelining must capture it first and re-feed it after Reset.
func (p *Parser) Pending() []byte { return p.buf }

// FeedData ingests b, invoking callbacks for whatever new elements become
// recognisable. It may be called repeatedly as more bytes arrive.
func (p *Parser) FeedData(b []byte) error {
	p.buf = append(p.buf, b...)

	for {
		switch p.st {
		case stateRequestLine:
			line, ok := p.takeLine()
			if !ok {
				return nil
			}
			if err := p.parseRequestLine(line); err != nil {
				return err
			}
			p.st = stateHeaders

		case stateHeaders:
			line, ok := p.takeLine()
			if !ok {
				return nil
			}
			if len(line) == 0 {
				if err := p.headersComplete(); err != nil {
					return err
				}
				continue
			}
			if err := p.parseHeaderLine(line); err != nil {
				return err
			}

		case stateBodyIdentity:
			if len(p.buf) == 0 {
				return nil
			}
			remaining := p.contentLength - p.bodyBytesRead
			n := int64(len(p.buf))
			if !p.haveLength || n <= remaining {
				chunk := p.buf
				p.buf = nil
				p.bodyBytesRead += int64(len(chunk))
				if err := p.emitBody(chunk); err != nil {
					return err
				}
				if p.haveLength && p.bodyBytesRead >= p.contentLength {
					if err := p.messageComplete(); err != nil {
						return err
					}
				}
				return nil
			}
			chunk := p.buf[:remaining]
			p.buf = p.buf[remaining:]
			p.bodyBytesRead += remaining
			if err := p.emitBody(chunk); err != nil {
				return err
			}
			if err := p.messageComplete(); err != nil {
				return err
			}

		case stateBodyChunkedSize:
			line, ok := p.takeLine()
			if !ok {
				return nil
			}
			size, err := parseChunkSize(line)
			if err != nil {
				return &CallbackError{Err: err}
			}
			if size == 0 {
				p.st = stateBodyChunkedTrailer
				continue
			}
			p.remainingChunk = size
			p.st = stateBodyChunkedData

		case stateBodyChunkedData:
			n := int64(len(p.buf))
			if n == 0 {
				return nil
			}
			if n < p.remainingChunk {
				// Not even the full chunk has arrived yet; emit what we
				// have and wait for more without consuming the trailing
				// CRLF bookkeeping until the chunk is complete.
				chunk := p.buf
				p.buf = nil
				p.remainingChunk -= n
				if err := p.emitBody(chunk); err != nil {
					return err
				}
				return nil
			}
			// The full chunk has arrived, but its trailing CRLF might
			// not have — wait for two more bytes before consuming it.
			if n < p.remainingChunk+2 {
				return nil
			}
			chunk := p.buf[:p.remainingChunk]
			p.buf = p.buf[p.remainingChunk+2:]
			p.remainingChunk = 0
			p.st = stateBodyChunkedSize
			if err := p.emitBody(chunk); err != nil {
				return err
			}

		case stateBodyChunkedTrailer:
			line, ok := p.takeLine()
			if !ok {
				return nil
			}
			if len(line) == 0 {
				if err := p.messageComplete(); err != nil {
					return err
				}
				continue
			}
			// trailer headers are parsed but not surfaced; callers only
			// need the connection to tolerate their presence.

		case stateDone:
			return nil
		}
	}
}

func (p *Parser) takeLine() ([]byte, bool) {
	idx := bytes.Index(p.buf, []byte("\r\n"))
	if idx == -1 {
		return nil, false
	}
	line := p.buf[:idx]
	p.buf = p.buf[idx+2:]
	return line, true
}

func (p *Parser) parseRequestLine(line []byte) error {
	parts := bytes.SplitN(line, []byte(" "), 3)
	if len(parts) != 3 {
		return &InvalidURLError{Raw: line}
	}
	p.method = parts[0]
	url := parts[1]
	proto := parts[2]

	if !bytes.HasPrefix(proto, []byte("HTTP/1.")) {
		return &InvalidURLError{Raw: line}
	}
	if bytes.Equal(proto, []byte("HTTP/1.0")) {
		p.httpMinor = 0
		p.keepAlive = false
	} else {
		p.httpMinor = 1
		p.keepAlive = true
	}

	if p.cb.OnURL != nil {
		if err := p.cb.OnURL(url); err != nil {
			return &CallbackError{Err: err}
		}
	}
	return nil
}

func (p *Parser) parseHeaderLine(line []byte) error {
	colon := bytes.IndexByte(line, ':')
	if colon == -1 {
		return &CallbackError{Err: errMalformedHeader}
	}
	name := bytes.TrimSpace(line[:colon])
	value := bytes.TrimSpace(line[colon+1:])

	lname := bytes.ToLower(name)
	switch {
	case bytes.Equal(lname, []byte("content-length")):
		n, err := strconv.ParseInt(string(value), 10, 64)
		if err == nil && n >= 0 {
			p.contentLength = n
			p.haveLength = true
		}
	case bytes.Equal(lname, []byte("transfer-encoding")):
		if bytes.Contains(bytes.ToLower(value), []byte("chunked")) {
			p.chunked = true
		}
	case bytes.Equal(lname, []byte("connection")):
		lv := bytes.ToLower(value)
		if bytes.Contains(lv, []byte("close")) {
			p.keepAlive = false
		} else if bytes.Contains(lv, []byte("keep-alive")) {
			p.keepAlive = true
		} else if bytes.Contains(lv, []byte("upgrade")) {
			p.upgradeRequested = true
		}
	}

	if p.cb.OnHeader != nil {
		if err := p.cb.OnHeader(name, value); err != nil {
			return &CallbackError{Err: err}
		}
	}
	return nil
}

func (p *Parser) headersComplete() error {
	if p.cb.OnHeadersComplete != nil {
		if err := p.cb.OnHeadersComplete(); err != nil {
			return &CallbackError{Err: err}
		}
	}

	if p.upgradeRequested {
		p.st = stateDone
		if p.cb.OnUpgrade != nil {
			if err := p.cb.OnUpgrade(p.method); err != nil {
				return &CallbackError{Err: err}
			}
		}
		return &UpgradeRequestedError{}
	}

	switch {
	case p.chunked:
		p.st = stateBodyChunkedSize
	case p.haveLength && p.contentLength > 0:
		p.st = stateBodyIdentity
	default:
		return p.messageComplete()
	}
	return nil
}

func (p *Parser) emitBody(chunk []byte) error {
	if p.cb.OnBody != nil {
		if err := p.cb.OnBody(chunk); err != nil {
			return &CallbackError{Err: err}
		}
	}
	return nil
}

func (p *Parser) messageComplete() error {
	p.st = stateDone
	if p.cb.OnMessageComplete != nil {
		if err := p.cb.OnMessageComplete(); err != nil {
			return &CallbackError{Err: err}
		}
	}
	return nil
}
