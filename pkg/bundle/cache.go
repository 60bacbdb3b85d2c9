package bundle

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/dmitrymomot/trellis/pkg/cache"
)

// CachedOption configures a Cached bundler.
type CachedOption func(*Cached)

// WithTTL sets how long a manifest stays cached. Zero keeps the cache's
// default TTL, negative never expires.
func WithTTL(ttl time.Duration) CachedOption {
	return func(c *Cached) {
		c.ttl = ttl
	}
}

// Cached memoizes manifests by the content of their inputs.
type Cached struct {
	next  Bundler
	cache cache.Cache[*Manifest]
	root  string
	ttl   time.Duration
}

// NewCached wraps next with a content-addressed manifest cache.
// root is the directory module paths are relative to.
func NewCached(next Bundler, c cache.Cache[*Manifest], root string, opts ...CachedOption) *Cached {
	b := &Cached{next: next, cache: c, root: root, ttl: -1}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Build returns the cached manifest for req, building it on a miss.
// Concurrent misses for the same key run a single build. A cached manifest
// whose imported files changed since it was built is replaced.
func (b *Cached) Build(ctx context.Context, req Request) (*Manifest, error) {
	key, err := Key(b.root, req)
	if err != nil {
		return nil, err
	}
	build := func(ctx context.Context) (*Manifest, time.Duration, error) {
		m, err := b.next.Build(ctx, req)
		if err != nil {
			return nil, 0, err
		}
		return m, b.ttl, nil
	}

	m, err := cache.GetOrSet(ctx, b.cache, key, build)
	if err != nil || !m.Stale(b.root) {
		return m, err
	}
	if err := b.cache.Delete(ctx, key); err != nil {
		return nil, err
	}
	return cache.GetOrSet(ctx, b.cache, key, build)
}

// Invalidate drops every cached manifest.
func (b *Cached) Invalidate(ctx context.Context) error {
	return b.cache.Clear(ctx)
}

// Key derives the cache key of a request from the entry point, the module
// paths, their client exports and the current content of every source file.
func Key(root string, req Request) (string, error) {
	h := sha256.New()
	fmt.Fprintf(h, "entry:%s\n", cleanPath(req.Entry))
	if err := hashFile(h, root, req.Entry); err != nil {
		return "", err
	}
	for _, m := range req.Modules {
		fmt.Fprintf(h, "module:%s:%v\n", cleanPath(m.Path), AllowedExports(m.Exports))
		if err := hashFile(h, root, m.Path); err != nil {
			return "", err
		}
	}
	return "bundle:" + hex.EncodeToString(h.Sum(nil)), nil
}

func hashFile(w io.Writer, root, name string) error {
	f, err := os.Open(filepath.Join(root, filepath.FromSlash(cleanPath(name))))
	if err != nil {
		return fmt.Errorf("bundle: hash %s: %w", name, err)
	}
	defer f.Close()
	if _, err := io.Copy(w, f); err != nil {
		return fmt.Errorf("bundle: hash %s: %w", name, err)
	}
	return nil
}

// Fingerprint records the current digest of every source of m.
func (m *Manifest) Fingerprint(root string) error {
	for name := range m.Sources {
		sum, err := digest(root, name)
		if err != nil {
			return err
		}
		m.Sources[name] = sum
	}
	return nil
}

// Stale reports whether a source of m changed or disappeared since it was
// fingerprinted.
func (m *Manifest) Stale(root string) bool {
	for name, want := range m.Sources {
		if sum, err := digest(root, name); err != nil || sum != want {
			return true
		}
	}
	return false
}

func digest(root, name string) (string, error) {
	h := sha256.New()
	if err := hashFile(h, root, name); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
