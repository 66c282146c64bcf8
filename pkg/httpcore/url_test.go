package httpcore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neoteroi/httpcore/pkg/httpcore/errdefs"
)

func TestNewURLRejectsEmpty(t *testing.T) {
	_, err := NewURL(nil)
	assert.ErrorIs(t, err, errdefs.ErrInvalidURL)
}

func TestNewURLAutoPrefixesRelativePath(t *testing.T) {
	u, err := NewURL([]byte("hello"))
	require.NoError(t, err)
	assert.Equal(t, "/hello", string(u.Path()))
	assert.False(t, u.IsAbsolute())
}

func TestNewURLParsesQueryAndFragment(t *testing.T) {
	u, err := NewURL([]byte("/search?q=go&page=2#results"))
	require.NoError(t, err)
	assert.Equal(t, "/search", string(u.Path()))
	assert.Equal(t, "q=go&page=2", string(u.Query()))
	assert.Equal(t, "results", string(u.Fragment()))
}

func TestNewURLParsesAbsoluteURL(t *testing.T) {
	u, err := NewURL([]byte("https://user:pw@example.com:8443/a/b?x=1"))
	require.NoError(t, err)
	assert.True(t, u.IsAbsolute())
	assert.Equal(t, "https", string(u.Scheme()))
	assert.Equal(t, "example.com", string(u.Host()))
	assert.Equal(t, 8443, u.Port())
	assert.Equal(t, "user:pw", string(u.Userinfo()))
	assert.Equal(t, "/a/b", string(u.Path()))
	assert.Equal(t, "x=1", string(u.Query()))
}

func TestNewURLAbsoluteDefaultsToRootPath(t *testing.T) {
	u, err := NewURL([]byte("http://example.com"))
	require.NoError(t, err)
	assert.Equal(t, "/", string(u.Path()))
}

func TestNewURLRejectsUnknownScheme(t *testing.T) {
	_, err := NewURL([]byte("ftp://example.com/file"))
	assert.ErrorIs(t, err, errdefs.ErrInvalidURL)
}

func TestBaseURLOmitsDefaultPort(t *testing.T) {
	u, err := NewURL([]byte("http://example.com:80/x"))
	require.NoError(t, err)
	assert.Equal(t, "http://example.com", string(u.BaseURL()))

	u2, err := NewURL([]byte("http://example.com:8080/x"))
	require.NoError(t, err)
	assert.Equal(t, "http://example.com:8080", string(u2.BaseURL()))
}

func TestURLJoinComposesRelativeAgainstBase(t *testing.T) {
	base, err := NewURL([]byte("https://example.com/api/"))
	require.NoError(t, err)
	rel, err := NewURL([]byte("users/42"))
	require.NoError(t, err)

	joined, err := base.Join(rel)
	require.NoError(t, err)
	assert.Equal(t, "/api/users/42", string(joined.Path()))
	assert.Equal(t, "https://example.com/api/users/42", string(joined.Raw()))
}

func TestURLJoinRejectsAbsoluteOther(t *testing.T) {
	base, err := NewURL([]byte("https://example.com/api/"))
	require.NoError(t, err)
	other, err := NewURL([]byte("https://other.example/x"))
	require.NoError(t, err)

	_, err = base.Join(other)
	assert.ErrorIs(t, err, errdefs.ErrInvalidURL)
}

func TestURLWithHostAndSchemeRequireAbsolute(t *testing.T) {
	rel, err := NewURL([]byte("/x"))
	require.NoError(t, err)
	_, err = rel.WithHost([]byte("example.com"))
	assert.ErrorIs(t, err, errdefs.ErrInvalidURL)

	abs, err := NewURL([]byte("http://example.com/x"))
	require.NoError(t, err)
	withHost, err := abs.WithHost([]byte("other.example"))
	require.NoError(t, err)
	assert.Equal(t, "other.example", string(withHost.Host()))
	assert.Equal(t, "http://other.example/x", string(withHost.Raw()))
}

func TestURLEqualComparesRawValue(t *testing.T) {
	a, _ := NewURL([]byte("/a?b=1"))
	b, _ := NewURL([]byte("/a?b=1"))
	c, _ := NewURL([]byte("/a?b=2"))
	assert.True(t, a.Equal(b))
	assert.False(t, a.Equal(c))
	assert.False(t, a.Equal(nil))
}
