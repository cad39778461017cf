package notify

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
)

// Level of a toast
type Level string

const (
	LevelSuccess Level = "success"
	LevelError   Level = "error"
	LevelInfo    Level = "info"
)

// Toast is a transient notification
type Toast struct {
	ID        string
	Level     Level
	Text      string
	CreatedAt time.Time

	seq uint64
}

// Sink receives every toast as it is raised
type Sink func(Toast)

// Center keeps toasts visible until their TTL runs out
type Center struct {
	cache *cache.Cache

	mu   sync.RWMutex
	sink Sink
	seq  uint64
}

// NewCenter creates a center whose toasts expire after ttl.
func NewCenter(ttl time.Duration, sink Sink) *Center {
	return &Center{
		cache: cache.New(ttl, ttl),
		sink:  sink,
	}
}

// Success raises a success toast.
func (c *Center) Success(text string) { c.raise(LevelSuccess, text) }

// Error raises an error toast.
func (c *Center) Error(text string) { c.raise(LevelError, text) }

// Info raises an informational toast.
func (c *Center) Info(text string) { c.raise(LevelInfo, text) }

func (c *Center) raise(level Level, text string) {
	c.mu.Lock()
	c.seq++
	t := Toast{
		ID:        uuid.New().String(),
		Level:     level,
		Text:      text,
		CreatedAt: time.Now(),
		seq:       c.seq,
	}
	sink := c.sink
	c.mu.Unlock()

	c.cache.Set(t.ID, t, cache.DefaultExpiration)
	if sink != nil {
		sink(t)
	}
}

// Active returns undismissed, unexpired toasts, oldest first.
func (c *Center) Active() []Toast {
	items := c.cache.Items()
	out := make([]Toast, 0, len(items))
	for _, item := range items {
		if t, ok := item.Object.(Toast); ok {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].seq < out[j].seq
	})
	return out
}

// Dismiss removes a toast before it expires.
func (c *Center) Dismiss(id string) {
	c.cache.Delete(id)
}
