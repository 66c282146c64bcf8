package httpcore

import (
	"bytes"
	"strconv"

	"github.com/neoteroi/httpcore/pkg/httpcore/errdefs"
)

// URL is an immutable record over a byte-valued HTTP target: either an
// absolute URL (scheme, host, optional port) or a path-only relative
// reference. It deliberately does not implement a general URI grammar —
// only what an HTTP/1.1 request-line or Host-qualified absolute form can
// carry.
type URL struct {
	raw        []byte
	scheme     []byte
	host       []byte
	port       int
	path       []byte
	query      []byte
	fragment   []byte
	userinfo   []byte
	isAbsolute bool
}

// NewURL parses raw into a URL. An empty value is invalid. Only a value
// starting with "http://", "https://", "HTTP://" or "HTTPS://" is parsed
// as absolute; any other value that does not start with '/' (including one
// starting with 'h' or 'H') is treated as relative and auto-prefixed with
// '/'.
func NewURL(raw []byte) (*URL, error) {
	if len(raw) == 0 {
		return nil, errdefs.ErrInvalidURL
	}

	u := &URL{}

	if bytes.HasPrefix(raw, []byte("http://")) || bytes.HasPrefix(raw, []byte("https://")) ||
		bytes.HasPrefix(raw, []byte("HTTP://")) || bytes.HasPrefix(raw, []byte("HTTPS://")) {
		if err := u.parseAbsolute(raw); err != nil {
			return nil, err
		}
		return u, nil
	}

	if raw[0] != '/' {
		raw = append([]byte{'/'}, raw...)
	}

	u.raw = raw
	u.parseRelative(raw)
	return u, nil
}

func (u *URL) parseAbsolute(raw []byte) error {
	u.raw = raw
	u.isAbsolute = true

	schemeEnd := bytes.Index(raw, []byte("://"))
	scheme := bytes.ToLower(raw[:schemeEnd])
	if !bytes.Equal(scheme, []byte("http")) && !bytes.Equal(scheme, []byte("https")) {
		return errdefs.ErrInvalidURL
	}
	u.scheme = scheme

	rest := raw[schemeEnd+3:]

	idx := indexAny(rest, "/?#")
	var authority []byte
	if idx == -1 {
		authority = rest
		rest = nil
	} else {
		authority = rest[:idx]
		rest = rest[idx:]
	}

	if at := bytes.LastIndexByte(authority, '@'); at != -1 {
		u.userinfo = authority[:at]
		authority = authority[at+1:]
	}

	host := authority
	port := 0
	if bytes.HasPrefix(authority, []byte("[")) {
		// IPv6 literal
		end := bytes.IndexByte(authority, ']')
		if end == -1 {
			return errdefs.ErrInvalidURL
		}
		host = authority[:end+1]
		if end+1 < len(authority) && authority[end+1] == ':' {
			p, err := strconv.Atoi(string(authority[end+2:]))
			if err != nil {
				return errdefs.ErrInvalidURL
			}
			port = p
		}
	} else if colon := bytes.LastIndexByte(authority, ':'); colon != -1 {
		host = authority[:colon]
		p, err := strconv.Atoi(string(authority[colon+1:]))
		if err != nil {
			return errdefs.ErrInvalidURL
		}
		port = p
	}
	u.host = host
	u.port = port

	u.parseRelative(rest)
	if len(u.path) == 0 {
		u.path = []byte("/")
	}
	return nil
}

// parseRelative splits rest into path, query and fragment. rest may be
// nil (absolute URL with no path component).
func (u *URL) parseRelative(rest []byte) {
	if rest == nil {
		return
	}

	if fIdx := bytes.IndexByte(rest, '#'); fIdx != -1 {
		u.fragment = rest[fIdx+1:]
		rest = rest[:fIdx]
	}
	if qIdx := bytes.IndexByte(rest, '?'); qIdx != -1 {
		u.query = rest[qIdx+1:]
		rest = rest[:qIdx]
	}
	u.path = rest
}

func indexAny(b []byte, chars string) int {
	for i, c := range b {
		for j := 0; j < len(chars); j++ {
			if c == chars[j] {
				return i
			}
		}
	}
	return -1
}

func (u *URL) Raw() []byte      { return u.raw }
func (u *URL) Scheme() []byte   { return u.scheme }
func (u *URL) Host() []byte     { return u.host }
func (u *URL) Port() int        { return u.port }
func (u *URL) Path() []byte     { return u.path }
func (u *URL) Query() []byte    { return u.query }
func (u *URL) Fragment() []byte { return u.fragment }
func (u *URL) Userinfo() []byte { return u.userinfo }
func (u *URL) IsAbsolute() bool { return u.isAbsolute }

// Equal compares two URLs by raw value.
func (u *URL) Equal(other *URL) bool {
	if other == nil {
		return false
	}
	return bytes.Equal(u.raw, other.raw)
}

// BaseURL composes scheme://host[:port], omitting default ports (80 for
// http, 443 for https). It is empty for a relative URL.
func (u *URL) BaseURL() []byte {
	if !u.isAbsolute {
		return nil
	}
	var buf bytes.Buffer
	buf.Write(u.scheme)
	buf.WriteString("://")
	buf.Write(u.host)
	if u.port != 0 && !isDefaultPort(u.scheme, u.port) {
		buf.WriteByte(':')
		buf.WriteString(strconv.Itoa(u.port))
	}
	return buf.Bytes()
}

func isDefaultPort(scheme []byte, port int) bool {
	if bytes.Equal(scheme, []byte("http")) && port == 80 {
		return true
	}
	if bytes.Equal(scheme, []byte("https")) && port == 443 {
		return true
	}
	return false
}

// Join composes u (the base) with other (must be relative, i.e. not
// absolute) and returns a new URL. Joining is only defined when u has no
// query or fragment of its own.
func (u *URL) Join(other *URL) (*URL, error) {
	if other.isAbsolute {
		return nil, errdefs.ErrInvalidURL
	}
	if len(u.query) != 0 || len(u.fragment) != 0 {
		return nil, errdefs.ErrInvalidURL
	}

	joined := &URL{
		scheme:     u.scheme,
		host:       u.host,
		port:       u.port,
		userinfo:   u.userinfo,
		isAbsolute: u.isAbsolute,
		query:      other.query,
		fragment:   other.fragment,
	}

	base := bytes.TrimRight(u.path, "/")
	rel := other.path
	if !bytes.HasPrefix(rel, []byte("/")) {
		rel = append([]byte{'/'}, rel...)
	}
	joined.path = append(append([]byte{}, base...), rel...)

	var buf bytes.Buffer
	if u.isAbsolute {
		buf.Write(u.BaseURL())
	}
	buf.Write(joined.path)
	if len(joined.query) > 0 {
		buf.WriteByte('?')
		buf.Write(joined.query)
	}
	if len(joined.fragment) > 0 {
		buf.WriteByte('#')
		buf.Write(joined.fragment)
	}
	joined.raw = buf.Bytes()

	return joined, nil
}

// WithHost returns a copy of u with its host replaced. u must be absolute.
func (u *URL) WithHost(host []byte) (*URL, error) {
	if !u.isAbsolute {
		return nil, errdefs.ErrInvalidURL
	}
	c := u.clone()
	c.host = host
	c.raw = c.rebuild()
	return c, nil
}

// WithScheme returns a copy of u with its scheme replaced. u must be
// absolute and scheme must be http or https.
func (u *URL) WithScheme(scheme []byte) (*URL, error) {
	if !u.isAbsolute {
		return nil, errdefs.ErrInvalidURL
	}
	lower := bytes.ToLower(scheme)
	if !bytes.Equal(lower, []byte("http")) && !bytes.Equal(lower, []byte("https")) {
		return nil, errdefs.ErrInvalidURL
	}
	c := u.clone()
	c.scheme = lower
	c.raw = c.rebuild()
	return c, nil
}

// WithQuery returns a copy of u with its query string replaced (without a
// leading '?').
func (u *URL) WithQuery(q []byte) (*URL, error) {
	c := u.clone()
	c.query = q
	c.raw = c.rebuild()
	return c, nil
}

func (u *URL) clone() *URL {
	c := *u
	return &c
}

func (u *URL) rebuild() []byte {
	var buf bytes.Buffer
	if u.isAbsolute {
		buf.Write(u.BaseURL())
	}
	buf.Write(u.path)
	if len(u.query) > 0 {
		buf.WriteByte('?')
		buf.Write(u.query)
	}
	if len(u.fragment) > 0 {
		buf.WriteByte('#')
		buf.Write(u.fragment)
	}
	return buf.Bytes()
}
