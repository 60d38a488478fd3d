package crawler

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeURL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{"HTTPS://Example.COM:443/a?b=2&a=1#top", "https://example.com/a?a=1&b=2"},
		{"http://example.com:80", "http://example.com/"},
		{" https://example.com/path/ ", "https://example.com/path/"},
	}
	for _, tt := range tests {
		got, err := NormalizeURL(tt.in)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}

	_, err := NormalizeURL("/relative/only")
	require.Error(t, err)
}

func TestRegistrableDomain(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "bank.co.id", RegistrableDomain("news.bank.co.id"))
	assert.Equal(t, "example.com", RegistrableDomain("WWW.Example.com."))
	assert.Equal(t, "127.0.0.1", RegistrableDomain("127.0.0.1"))
	assert.Equal(t, "localhost", RegistrableDomain("localhost"))
}

func TestSameSite(t *testing.T) {
	t.Parallel()

	a, _ := url.Parse("https://www.ojk.go.id/")
	b, _ := url.Parse("http://sikapiuangmu.ojk.go.id/x")
	c, _ := url.Parse("https://kemenkeu.go.id/")
	assert.True(t, SameSite(a, b))
	assert.False(t, SameSite(a, c))
	assert.False(t, SameSite(nil, a))
}

func TestDiscoverLinksResolvesAndFilters(t *testing.T) {
	t.Parallel()

	base, _ := url.Parse("https://example.com/dir/page")
	body := []byte(`<a href="next">n</a><a href="/root">r</a><a href="mailto:x@y">m</a><a href="  ">blank</a><a href="tel:1">t</a>`)
	links, err := DiscoverLinks(body, base, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"https://example.com/dir/next", "https://example.com/root"}, links)
}
