package urlutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	n := NewNormalizer("sessionid")

	tests := []struct {
		in, want string
	}{
		{"HTTPS://Example.COM:443/About/", "https://example.com/About"},
		{"http://example.com:80", "http://example.com/"},
		{"https://example.com/a//b/./c/../d#frag", "https://example.com/a/b/d"},
		{"https://example.com/?b=2&a=1&utm_source=x", "https://example.com/?a=1&b=2"},
		{"https://example.com/p?SessionID=9", "https://example.com/p"},
		{"  https://example.com/x  ", "https://example.com/x"},
	}
	for _, tt := range tests {
		got, err := n.Normalize(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestNormalizeKeepOptions(t *testing.T) {
	n := NewNormalizer()
	n.KeepTrailingSlash = true
	n.KeepFragment = true

	got, err := n.Normalize("https://example.com/dir/#top")
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/dir/#top", got)
}

func TestResolve(t *testing.T) {
	got, err := Resolve("https://example.com/blog/post", "../about")
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/about", got)

	got, err = Resolve("https://example.com/", "//cdn.example.com/x.js")
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/x.js", got)
}

func TestSameSite(t *testing.T) {
	tests := []struct {
		base, target string
		subdomains   bool
		want         bool
	}{
		{"https://example.com/", "https://example.com/a", false, true},
		{"https://example.com/", "https://www.example.com/a", false, true},
		{"https://example.com/", "http://EXAMPLE.com:8080/a", false, true},
		{"https://example.com/", "https://blog.example.com/", false, false},
		{"https://example.com/", "https://blog.example.com/", true, true},
		{"https://example.com/", "https://example.org/", true, false},
		{"https://example.com/", "mailto:me@example.com", false, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, SameSite(tt.base, tt.target, tt.subdomains), tt.target)
	}
}

func TestRegistrableDomain(t *testing.T) {
	assert.Equal(t, "example.com", RegistrableDomain("blog.example.com"))
	assert.Equal(t, "example.co.uk", RegistrableDomain("shop.example.co.uk"))
	assert.Equal(t, "127.0.0.1", RegistrableDomain("127.0.0.1"))
	assert.Equal(t, "co.uk", RegistrableDomain("co.uk"))
}

func TestIsHTTP(t *testing.T) {
	assert.True(t, IsHTTP("https://example.com"))
	assert.False(t, IsHTTP("/relative"))
	assert.False(t, IsHTTP("javascript:void(0)"))
	assert.False(t, IsHTTP("ftp://example.com/file"))
}
