package query

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"

	"ragdesk/internal/backend"
)

// Notifier shows transient success and error messages
type Notifier interface {
	Success(text string)
	Error(text string)
}

// Key builds a cache key from path-like segments, e.g. Key("documents", id, "versions").
func Key(parts ...string) string {
	return strings.Join(parts, "/")
}

// entry is one cached read
type entry struct {
	value     interface{}
	stale     bool
	fetchedAt time.Time
}

// Client caches read queries and runs mutations that invalidate them
type Client struct {
	cache    *cache.Cache
	notifier Notifier
	logger   *zap.Logger

	// mu serializes stale-flag updates against reads of the same entry
	mu sync.Mutex
	// epochs counts invalidations per key seen by Fetch, so a fetch that
	// overlaps an invalidation stores its result as stale
	epochs map[string]uint64
}

// NewClient creates a query client. Cached reads are dropped entirely after
// gcTime; before that they are served until invalidated.
func NewClient(gcTime time.Duration, notifier Notifier, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		cache:    cache.New(gcTime, gcTime),
		notifier: notifier,
		logger:   logger,
		epochs:   make(map[string]uint64),
	}
}

// Result is the outcome of a read query. Data may hold the last good value
// even when Err is set.
type Result[T any] struct {
	Data      T
	Err       error
	FromCache bool
	FetchedAt time.Time
}

// HasData reports whether Data holds a fetched value.
func (r Result[T]) HasData() bool {
	return !r.FetchedAt.IsZero()
}

// Fetch serves key from cache while it is fresh, otherwise calls fetch and
// caches the result. A failed fetch leaves the cache untouched. A result
// whose key was invalidated while the fetch ran is cached as stale.
func Fetch[T any](ctx context.Context, c *Client, key string, fetch func(ctx context.Context) (T, error)) Result[T] {
	var prev *entry

	c.mu.Lock()
	epoch := c.epochs[key]
	c.epochs[key] = epoch
	if x, found := c.cache.Get(key); found {
		e := x.(*entry)
		if !e.stale {
			c.mu.Unlock()
			return Result[T]{Data: e.value.(T), FromCache: true, FetchedAt: e.fetchedAt}
		}
		prev = e
	}
	c.mu.Unlock()

	data, err := fetch(ctx)
	if err != nil {
		c.logger.Debug("query failed", zap.String("key", key), zap.Error(err))
		res := Result[T]{Err: err}
		if prev != nil {
			res.Data = prev.value.(T)
			res.FetchedAt = prev.fetchedAt
		}
		return res
	}

	e := &entry{value: data, fetchedAt: time.Now()}
	c.mu.Lock()
	e.stale = c.epochs[key] != epoch
	c.cache.Set(key, e, cache.DefaultExpiration)
	c.mu.Unlock()

	return Result[T]{Data: data, FetchedAt: e.fetchedAt}
}

// Invalidate marks every cached key equal to, or nested under, one of keys
// as stale so the next Fetch goes to the backend.
func (c *Client) Invalidate(keys ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for k := range c.epochs {
		for _, prefix := range keys {
			if k == prefix || strings.HasPrefix(k, prefix+"/") {
				c.epochs[k]++
				if x, found := c.cache.Get(k); found {
					x.(*entry).stale = true
				}
				c.logger.Debug("invalidated query", zap.String("key", k))
				break
			}
		}
	}
}

// Clear drops every cached read, as when the signed-in user changes.
func (c *Client) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache.Flush()
	for k := range c.epochs {
		c.epochs[k]++
	}
}

// IsStale reports whether key is cached and marked stale. Unknown keys are
// not stale.
func (c *Client) IsStale(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if x, found := c.cache.Get(key); found {
		return x.(*entry).stale
	}
	return false
}

// Mutation describes a write and what it does to cached reads
type Mutation[In, Out any] struct {
	Do func(ctx context.Context, in In) (Out, error)
	// Invalidates lists keys made stale by a successful write.
	Invalidates []string
	// Success renders the success toast; nil means no toast.
	Success func(out Out) string
	// ErrorFallback is shown when the backend sends no detail.
	ErrorFallback string
}

// Mutate runs m once. Nothing cached changes unless the write succeeds.
func Mutate[In, Out any](ctx context.Context, c *Client, m Mutation[In, Out], in In) (Out, error) {
	out, err := m.Do(ctx, in)
	if err != nil {
		c.logger.Info("mutation failed", zap.Error(err))
		if c.notifier != nil {
			fallback := m.ErrorFallback
			if fallback == "" {
				fallback = "Something went wrong"
			}
			c.notifier.Error(backend.UserMessage(err, fallback))
		}
		return out, err
	}

	c.Invalidate(m.Invalidates...)
	if c.notifier != nil && m.Success != nil {
		if msg := m.Success(out); msg != "" {
			c.notifier.Success(msg)
		}
	}
	return out, nil
}

// Message returns a Success renderer that always shows text.
func Message[Out any](text string) func(Out) string {
	return func(Out) string { return text }
}
