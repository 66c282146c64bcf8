package httpcore

import (
	"strings"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neoteroi/httpcore/pkg/httpcore/errdefs"
)

func TestNewCookieRejectsEmptyName(t *testing.T) {
	_, err := NewCookie(nil, []byte("v"))
	assert.ErrorIs(t, err, errdefs.ErrInvalidCookie)
}

func TestNewCookieRejectsOversizedValue(t *testing.T) {
	_, err := NewCookie([]byte("session"), []byte(strings.Repeat("a", MaxCookieValueLength+1)))
	assert.ErrorIs(t, err, errdefs.ErrInvalidCookie)
}

func TestWithSameSiteForcesSecureForStrictAndNone(t *testing.T) {
	c, err := NewCookie([]byte("session"), []byte("abc"))
	require.NoError(t, err)

	c.WithSameSite(SameSiteStrict)
	assert.True(t, c.Secure)

	c2, _ := NewCookie([]byte("session"), []byte("abc"))
	c2.WithSameSite(SameSiteLax)
	assert.False(t, c2.Secure)
}

func TestCookieIsExpired(t *testing.T) {
	clock := clockwork.NewFakeClock()
	c, err := NewCookie([]byte("a"), []byte("b"))
	require.NoError(t, err)
	past := clock.Now().Add(-time.Hour)
	c.Expires = &past
	assert.True(t, c.IsExpired(clock))

	future := clock.Now().Add(time.Hour)
	c.Expires = &future
	assert.False(t, c.IsExpired(clock))
}

func TestParseCookieFullSetCookieValue(t *testing.T) {
	raw := []byte("session=abc%20def; Max-Age=3600; Domain=example.com; Path=/; HttpOnly; Secure; SameSite=Strict")
	c, err := ParseCookie(raw)
	require.NoError(t, err)

	assert.Equal(t, "session", string(c.Name))
	assert.Equal(t, "abc def", string(c.Value))
	assert.Equal(t, 3600, c.MaxAge)
	assert.Equal(t, "example.com", string(c.Domain))
	assert.Equal(t, "/", string(c.Path))
	assert.True(t, c.HTTPOnly)
	assert.True(t, c.Secure)
	assert.Equal(t, SameSiteStrict, c.SameSite)
}

func TestParseCookieSkipsUnknownAttributes(t *testing.T) {
	c, err := ParseCookie([]byte("a=1; Priority=High; Path=/x"))
	require.NoError(t, err)
	assert.Equal(t, "1", string(c.Value))
	assert.Equal(t, "/x", string(c.Path))
}

func TestParseCookieRejectsMissingEquals(t *testing.T) {
	_, err := ParseCookie([]byte("notapair"))
	assert.ErrorIs(t, err, errdefs.ErrInvalidCookie)
}

func TestWriteCookieForResponseRoundTrips(t *testing.T) {
	c, err := NewCookie([]byte("session"), []byte("a b"))
	require.NoError(t, err)
	c.Path = []byte("/")
	c.MaxAge = 60

	raw := WriteCookieForResponse(c)
	parsed, err := ParseCookie(raw)
	require.NoError(t, err)
	assert.Equal(t, "session", string(parsed.Name))
	assert.Equal(t, "a b", string(parsed.Value))
	assert.Equal(t, 60, parsed.MaxAge)
	assert.Equal(t, "/", string(parsed.Path))
}

func TestUnsetCookieExpiresInThePast(t *testing.T) {
	clock := clockwork.NewFakeClock()
	raw := UnsetCookie([]byte("session"), clock)
	parsed, err := ParseCookie(raw)
	require.NoError(t, err)
	assert.True(t, parsed.IsExpired(clock))
	assert.Equal(t, 0, parsed.MaxAge)
}
