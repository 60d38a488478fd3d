// Package local persists fetched pages on the local filesystem so resumed
// crawls can replay them offline.
package local

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/JakeFAU/fincorpus/internal/crawler"
	"github.com/JakeFAU/fincorpus/internal/hash/sha256"
)

// Config captures the parameters for the local page cache.
type Config struct {
	// BaseDir is the root directory where pages will be stored.
	BaseDir string `mapstructure:"base_dir" yaml:"base_dir"`
}

// PageCache stores one JSON file per URL, sharded by digest prefix.
type PageCache struct {
	baseDir string
}

var _ crawler.PageCache = (*PageCache)(nil)

// New creates a new filesystem-backed page cache.
func New(cfg Config) (*PageCache, error) {
	if strings.TrimSpace(cfg.BaseDir) == "" {
		return nil, fmt.Errorf("base directory is required")
	}

	info, err := os.Stat(cfg.BaseDir)
	switch {
	case os.IsNotExist(err):
		if mkErr := os.MkdirAll(cfg.BaseDir, 0o750); mkErr != nil {
			return nil, fmt.Errorf("failed to create base directory: %w", mkErr)
		}
	case err != nil:
		return nil, fmt.Errorf("failed to stat base directory: %w", err)
	case !info.IsDir():
		return nil, fmt.Errorf("base directory path is not a directory")
	}

	// Check for write permissions.
	testFile := filepath.Join(cfg.BaseDir, ".writable_test")
	if err := os.WriteFile(testFile, []byte("test"), 0o600); err != nil {
		return nil, fmt.Errorf("base directory is not writable: %w", err)
	}
	if err := os.Remove(testFile); err != nil {
		return nil, fmt.Errorf("failed to clean up test file: %w", err)
	}

	return &PageCache{baseDir: cfg.BaseDir}, nil
}

// Get returns the cached page for rawURL. A miss is not an error.
func (c *PageCache) Get(_ context.Context, rawURL string) (crawler.CachedPage, bool, error) {
	data, err := os.ReadFile(c.pathFor(rawURL))
	if errors.Is(err, os.ErrNotExist) {
		return crawler.CachedPage{}, false, nil
	}
	if err != nil {
		return crawler.CachedPage{}, false, fmt.Errorf("read cached page: %w", err)
	}
	var page crawler.CachedPage
	if err := json.Unmarshal(data, &page); err != nil {
		return crawler.CachedPage{}, false, fmt.Errorf("decode cached page: %w", err)
	}
	if page.URL != rawURL {
		// Digest collision or hand-edited file.
		return crawler.CachedPage{}, false, nil
	}
	return page, true, nil
}

// Put writes page atomically, replacing any earlier copy.
func (c *PageCache) Put(_ context.Context, page crawler.CachedPage) error {
	if strings.TrimSpace(page.URL) == "" {
		return fmt.Errorf("page url is required")
	}
	data, err := json.Marshal(page)
	if err != nil {
		return fmt.Errorf("encode cached page: %w", err)
	}

	fullPath := c.pathFor(page.URL)
	dir := filepath.Dir(fullPath)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("failed to create parent directories: %w", err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(fullPath)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("failed to write file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), fullPath); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("rename cached page: %w", err)
	}
	return nil
}

func (c *PageCache) pathFor(rawURL string) string {
	key := sha256.Key(rawURL)
	return filepath.Join(c.baseDir, key[:2], key+".json")
}
