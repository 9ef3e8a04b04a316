// Package edgar provides caching for SEC EDGAR responses.
package edgar

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// ResponseCache provides file-based caching for raw SEC JSON documents.
// Each URL maps to <sha256>.json (body) and <sha256>.meta.json (etag, fetch time).
// A cache with an empty directory is a no-op.
type ResponseCache struct {
	cacheDir string
}

type cacheMeta struct {
	URL       string    `json:"url"`
	FetchedAt time.Time `json:"fetched_at"`
	ETag      string    `json:"etag,omitempty"`
}

// NewResponseCache creates a cache rooted at dir.
func NewResponseCache(dir string) *ResponseCache {
	if dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			slog.Warn("response cache dir unavailable", slog.String("dir", dir), slog.String("error", err.Error()))
		}
	}
	return &ResponseCache{cacheDir: dir}
}

// cacheKey generates a stable key for a URL
func (c *ResponseCache) cacheKey(url string) string {
	sum := sha256.Sum256([]byte(url))
	return hex.EncodeToString(sum[:])
}

func (c *ResponseCache) bodyPath(url string) string {
	return filepath.Join(c.cacheDir, c.cacheKey(url)+".json")
}

func (c *ResponseCache) metaPath(url string) string {
	return filepath.Join(c.cacheDir, c.cacheKey(url)+".meta.json")
}

// Enabled reports whether the cache writes to disk.
func (c *ResponseCache) Enabled() bool {
	return c != nil && c.cacheDir != ""
}

// Get retrieves the cached body for a URL.
func (c *ResponseCache) Get(url string) ([]byte, bool) {
	if !c.Enabled() {
		return nil, false
	}
	data, err := os.ReadFile(c.bodyPath(url))
	if err != nil {
		return nil, false
	}
	return data, true
}

// ETag returns the validator stored with the last successful fetch, if any.
func (c *ResponseCache) ETag(url string) string {
	if !c.Enabled() {
		return ""
	}
	raw, err := os.ReadFile(c.metaPath(url))
	if err != nil {
		return ""
	}
	var meta cacheMeta
	if err := json.Unmarshal(raw, &meta); err != nil {
		return ""
	}
	return meta.ETag
}

// Set stores a body and its metadata.
func (c *ResponseCache) Set(url string, body []byte, etag string) error {
	if !c.Enabled() {
		return nil
	}
	if err := os.WriteFile(c.bodyPath(url), body, 0644); err != nil {
		return fmt.Errorf("failed to write cache body: %w", err)
	}
	meta, err := json.Marshal(cacheMeta{URL: url, FetchedAt: time.Now().UTC(), ETag: etag})
	if err != nil {
		return fmt.Errorf("failed to marshal cache meta: %w", err)
	}
	if err := os.WriteFile(c.metaPath(url), meta, 0644); err != nil {
		return fmt.Errorf("failed to write cache meta: %w", err)
	}
	return nil
}

// GetCacheDir returns the cache directory path
func (c *ResponseCache) GetCacheDir() string {
	return c.cacheDir
}

// ClearCache removes all cached files
func (c *ResponseCache) ClearCache() error {
	if !c.Enabled() {
		return nil
	}
	return os.RemoveAll(c.cacheDir)
}
