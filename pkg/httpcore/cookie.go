package httpcore

import (
	"bytes"
	"net/url"
	"strconv"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/neoteroi/httpcore/pkg/httpcore/errdefs"
)

// SameSite is the cookie SameSite attribute.
type SameSite int

const (
	SameSiteUndefined SameSite = iota
	SameSiteLax
	SameSiteStrict
	SameSiteNone
)

// MaxCookieValueLength is the serialised value length ceiling enforced on
// construction. Parsing does not enforce it — see DESIGN.md for the
// rationale.
const MaxCookieValueLength = 4096

// Cookie is an HTTP cookie record.
type Cookie struct {
	Name     []byte
	Value    []byte
	Expires  *time.Time
	Domain   []byte
	Path     []byte
	HTTPOnly bool
	Secure   bool
	MaxAge   int // -1 if unset
	SameSite SameSite

	clock clockwork.Clock
}

// NewCookie constructs a Cookie, requiring a non-empty name and a
// serialised value no longer than MaxCookieValueLength. SameSite
// Strict/None forces Secure.
func NewCookie(name, value []byte) (*Cookie, error) {
	if len(name) == 0 {
		return nil, errdefs.ErrInvalidCookie
	}
	encoded := url.QueryEscape(string(value))
	if len(encoded) > MaxCookieValueLength {
		return nil, errdefs.ErrInvalidCookie
	}
	return &Cookie{
		Name:   name,
		Value:  value,
		MaxAge: -1,
		clock:  clockwork.NewRealClock(),
	}, nil
}

// WithSameSite sets SameSite, forcing Secure=true for Strict/None.
func (c *Cookie) WithSameSite(s SameSite) *Cookie {
	c.SameSite = s
	if s == SameSiteStrict || s == SameSiteNone {
		c.Secure = true
	}
	return c
}

// IsExpired reports whether c's Expires time has passed, relative to the
// given clock (defaulting to the cookie's own clock if nil).
func (c *Cookie) IsExpired(clock clockwork.Clock) bool {
	if c.Expires == nil {
		return false
	}
	if clock == nil {
		clock = c.clock
	}
	return clock.Now().After(*c.Expires)
}

const (
	rfc1123Date  = "Mon, 02 Jan 2006 15:04:05 GMT"
	legacyCookie = "Mon, 02-Jan-2006 15:04:05 GMT"
)

// ParseCookie parses either a bare "Cookie" pair string ("name=value") or
// a full "Set-Cookie" value with attributes. It tolerates "; " or ";" as
// the attribute separator and silently skips unknown attributes.
func ParseCookie(raw []byte) (*Cookie, error) {
	parts := splitAttributes(raw)
	if len(parts) == 0 {
		return nil, errdefs.ErrInvalidCookie
	}

	nameValue := parts[0]
	eq := bytes.IndexByte(nameValue, '=')
	if eq == -1 {
		return nil, errdefs.ErrInvalidCookie
	}
	name := bytes.TrimSpace(nameValue[:eq])
	rawValue := bytes.TrimSpace(nameValue[eq+1:])
	value, err := url.QueryUnescape(string(rawValue))
	if err != nil {
		value = string(rawValue)
	}

	c := &Cookie{
		Name:   name,
		Value:  []byte(value),
		MaxAge: -1,
		clock:  clockwork.NewRealClock(),
	}

	for _, attr := range parts[1:] {
		kv := bytes.SplitN(attr, []byte("="), 2)
		key := bytes.TrimSpace(kv[0])
		var val []byte
		if len(kv) == 2 {
			val = bytes.TrimSpace(kv[1])
		}
		switch {
		case lowerEqual(key, []byte("Expires")):
			if t, err := parseCookieDate(string(val)); err == nil {
				c.Expires = &t
			}
		case lowerEqual(key, []byte("Max-Age")):
			if n, err := strconv.Atoi(string(val)); err == nil {
				c.MaxAge = n
			}
		case lowerEqual(key, []byte("Domain")):
			c.Domain = val
		case lowerEqual(key, []byte("Path")):
			c.Path = val
		case lowerEqual(key, []byte("HttpOnly")):
			c.HTTPOnly = true
		case lowerEqual(key, []byte("Secure")):
			c.Secure = true
		case lowerEqual(key, []byte("SameSite")):
			switch {
			case lowerEqual(val, []byte("Lax")):
				c.SameSite = SameSiteLax
			case lowerEqual(val, []byte("Strict")):
				c.SameSite = SameSiteStrict
			case lowerEqual(val, []byte("None")):
				c.SameSite = SameSiteNone
			}
		}
		// unknown attributes are silently skipped
	}

	return c, nil
}

func parseCookieDate(s string) (time.Time, error) {
	if t, err := time.Parse(rfc1123Date, s); err == nil {
		return t, nil
	}
	return time.Parse(legacyCookie, s)
}

// splitAttributes splits on "; " or ";".
func splitAttributes(raw []byte) [][]byte {
	var parts [][]byte
	start := 0
	for i := 0; i < len(raw); i++ {
		if raw[i] == ';' {
			parts = append(parts, bytes.TrimSpace(raw[start:i]))
			if i+1 < len(raw) && raw[i+1] == ' ' {
				i++
			}
			start = i + 1
		}
	}
	parts = append(parts, bytes.TrimSpace(raw[start:]))
	return parts
}

// WriteCookieForResponse serialises c as a Set-Cookie value: percent
// encoded name=value, then Expires, Max-Age (if >= 0), Domain, Path,
// HttpOnly, Secure (also forced for SameSite Strict/None), SameSite.
func WriteCookieForResponse(c *Cookie) []byte {
	var buf bytes.Buffer
	buf.WriteString(url.QueryEscape(string(c.Name)))
	buf.WriteByte('=')
	buf.WriteString(url.QueryEscape(string(c.Value)))

	if c.Expires != nil {
		buf.WriteString("; Expires=")
		buf.WriteString(c.Expires.UTC().Format(rfc1123Date))
	}
	if c.MaxAge >= 0 {
		buf.WriteString("; Max-Age=")
		buf.WriteString(strconv.Itoa(c.MaxAge))
	}
	if len(c.Domain) > 0 {
		buf.WriteString("; Domain=")
		buf.Write(c.Domain)
	}
	if len(c.Path) > 0 {
		buf.WriteString("; Path=")
		buf.Write(c.Path)
	}
	if c.HTTPOnly {
		buf.WriteString("; HttpOnly")
	}
	secure := c.Secure || c.SameSite == SameSiteStrict || c.SameSite == SameSiteNone
	if secure {
		buf.WriteString("; Secure")
	}
	switch c.SameSite {
	case SameSiteLax:
		buf.WriteString("; SameSite=Lax")
	case SameSiteStrict:
		buf.WriteString("; SameSite=Strict")
	case SameSiteNone:
		buf.WriteString("; SameSite=None")
	}
	return buf.Bytes()
}

// UnsetCookie returns a Set-Cookie value that clears name: an empty value
// with an expiry in the past.
func UnsetCookie(name []byte, clock clockwork.Clock) []byte {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	past := clock.Now().Add(-24 * time.Hour)
	c := &Cookie{Name: name, MaxAge: 0, Expires: &past}
	return WriteCookieForResponse(c)
}
