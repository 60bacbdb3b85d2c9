package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/singleflight"
)

var (
	ErrNotFound = errors.New("cache: entry not found")
	ErrClosed   = errors.New("cache: closed")
	ErrEncode   = errors.New("cache: encode value")
	ErrDecode   = errors.New("cache: decode value")
)

// Cache stores values of one type by string key.
//
// A positive TTL expires the entry after that duration, zero uses the
// cache's default TTL and a negative TTL never expires.
type Cache[V any] interface {
	Get(ctx context.Context, key string) (V, error)
	Set(ctx context.Context, key string, value V, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Clear(ctx context.Context) error
	Close() error
}

// Codec converts values for byte-oriented backends.
type Codec[V any] interface {
	Encode(v V) ([]byte, error)
	Decode(data []byte) (V, error)
}

// JSON is the default Codec.
type JSON[V any] struct{}

func (JSON[V]) Encode(v V) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, errors.Join(ErrEncode, err)
	}
	return data, nil
}

func (JSON[V]) Decode(data []byte) (V, error) {
	var v V
	if err := json.Unmarshal(data, &v); err != nil {
		return v, errors.Join(ErrDecode, err)
	}
	return v, nil
}

type options struct {
	prefix     string
	ttl        time.Duration
	cleanup    time.Duration
	maxEntries int
}

// Option configures a cache backend.
type Option func(*options)

// WithTTL sets the TTL used when Set gets zero. Default: 1 hour.
func WithTTL(d time.Duration) Option {
	return func(o *options) { o.ttl = d }
}

// WithMaxEntries bounds the memory cache; the least recently used entry
// is evicted first. Zero means unbounded.
func WithMaxEntries(n int) Option {
	return func(o *options) { o.maxEntries = n }
}

// WithCleanupInterval makes the memory cache sweep expired entries in the
// background. Without it entries expire lazily on access.
func WithCleanupInterval(d time.Duration) Option {
	return func(o *options) { o.cleanup = d }
}

// WithPrefix namespaces redis keys as "<prefix>:<key>".
func WithPrefix(prefix string) Option {
	return func(o *options) { o.prefix = prefix }
}

func newOptions(opts []Option) options {
	o := options{ttl: time.Hour}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

var flight singleflight.Group

type computed[V any] struct {
	val V
	ttl time.Duration
}

// GetOrSet returns the cached value of key or computes it with fn and
// stores it. Concurrent misses on the same cache and key share one call of
// fn. Errors from fn are returned and nothing is stored.
func GetOrSet[V any](ctx context.Context, c Cache[V], key string, fn func(ctx context.Context) (V, time.Duration, error)) (V, error) {
	if v, err := c.Get(ctx, key); err == nil {
		return v, nil
	}

	res, err, _ := flight.Do(fmt.Sprintf("%p/%s", c, key), func() (any, error) {
		v, ttl, err := fn(ctx)
		if err != nil {
			return nil, err
		}
		// Stored inside the flight so waiters never race a second fill.
		_ = c.Set(ctx, key, v, ttl)
		return computed[V]{val: v, ttl: ttl}, nil
	})
	if err != nil {
		var zero V
		return zero, err
	}
	return res.(computed[V]).val, nil
}
