package local_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/fincorpus/internal/crawler"
	"github.com/JakeFAU/fincorpus/internal/storage/local"
)

func TestNew(t *testing.T) {
	t.Run("ValidConfig", func(t *testing.T) {
		cache, err := local.New(local.Config{BaseDir: t.TempDir()})
		require.NoError(t, err)
		assert.NotNil(t, cache)
	})

	t.Run("CreatesMissingDir", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "nested", "cache")
		_, err := local.New(local.Config{BaseDir: dir})
		require.NoError(t, err)
		assert.DirExists(t, dir)
	})

	t.Run("MissingBaseDir", func(t *testing.T) {
		_, err := local.New(local.Config{})
		assert.Error(t, err)
	})

	t.Run("BaseDirIsNotADirectory", func(t *testing.T) {
		file := filepath.Join(t.TempDir(), "file")
		require.NoError(t, os.WriteFile(file, []byte("x"), 0o600))
		_, err := local.New(local.Config{BaseDir: file})
		assert.Error(t, err)
	})
}

func TestPageCacheRoundTrip(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	cache, err := local.New(local.Config{BaseDir: t.TempDir()})
	require.NoError(t, err)

	_, ok, err := cache.Get(ctx, "https://bank.example.id/")
	require.NoError(t, err)
	assert.False(t, ok)

	page := crawler.CachedPage{
		URL:         "https://bank.example.id/",
		ContentType: "text/html; charset=utf-8",
		Body:        []byte("<html><body>Tagihan listrik</body></html>"),
	}
	require.NoError(t, cache.Put(ctx, page))

	got, ok, err := cache.Get(ctx, page.URL)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, page, got)

	page.Body = []byte("updated")
	require.NoError(t, cache.Put(ctx, page))
	got, ok, err = cache.Get(ctx, page.URL)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("updated"), got.Body)
}

func TestPageCacheSurvivesReopen(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	dir := t.TempDir()
	first, err := local.New(local.Config{BaseDir: dir})
	require.NoError(t, err)
	require.NoError(t, first.Put(ctx, crawler.CachedPage{URL: "https://a.example/", Body: []byte("a")}))

	second, err := local.New(local.Config{BaseDir: dir})
	require.NoError(t, err)
	got, ok, err := second.Get(ctx, "https://a.example/")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("a"), got.Body)
}

func TestPageCacheRejectsEmptyURL(t *testing.T) {
	t.Parallel()

	cache, err := local.New(local.Config{BaseDir: t.TempDir()})
	require.NoError(t, err)
	assert.Error(t, cache.Put(context.Background(), crawler.CachedPage{}))
}
