package cache

import (
	"sync"
	"time"

	"syncdeck/pkg/pathutil"
	"syncdeck/pkg/shared"
)

const DefaultTTL = 5 * time.Minute

type Key struct {
	RemoteID string
	Path     string
}

// Record is a whole directory listing snapshot. Records are never mutated
// after they are stored; Put swaps in a new one.
type Record struct {
	Key       Key
	Entries   []shared.DirectoryEntry
	FetchedAt time.Time
}

// DirectoryCache holds at most one listing per (remote, path).
type DirectoryCache struct {
	ttl     time.Duration
	now     func() time.Time
	mu      sync.RWMutex
	records map[Key]*Record
}

type Option func(*DirectoryCache)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(c *DirectoryCache) { c.now = now }
}

func NewDirectoryCache(ttl time.Duration, opts ...Option) *DirectoryCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	c := &DirectoryCache{
		ttl:     ttl,
		now:     time.Now,
		records: make(map[Key]*Record),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *DirectoryCache) TTL() time.Duration {
	return c.ttl
}

// Get returns the record for the key only while it is fresh.
func (c *DirectoryCache) Get(remoteID, path string) (*Record, bool) {
	rec, fresh, ok := c.Peek(remoteID, path)
	if !ok || !fresh {
		return nil, false
	}
	return rec, true
}

// Peek returns the record regardless of age along with its freshness.
func (c *DirectoryCache) Peek(remoteID, path string) (rec *Record, fresh bool, ok bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	rec, ok = c.records[makeKey(remoteID, path)]
	if !ok {
		return nil, false, false
	}
	return rec, c.isFresh(rec), true
}

func (c *DirectoryCache) Put(remoteID, path string, entries []shared.DirectoryEntry) *Record {
	key := makeKey(remoteID, path)
	rec := &Record{
		Key:       key,
		Entries:   append([]shared.DirectoryEntry(nil), entries...),
		FetchedAt: c.now(),
	}

	c.mu.Lock()
	c.records[key] = rec
	c.mu.Unlock()

	return rec
}

// InvalidateAll drops every record, or every record of one remote when
// remoteID is non-empty.
func (c *DirectoryCache) InvalidateAll(remoteID string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	if remoteID == "" {
		n := len(c.records)
		c.records = make(map[Key]*Record)
		return n
	}

	removed := 0
	for key := range c.records {
		if key.RemoteID == remoteID {
			delete(c.records, key)
			removed++
		}
	}
	return removed
}

func (c *DirectoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.records)
}

func (c *DirectoryCache) isFresh(rec *Record) bool {
	return c.now().Sub(rec.FetchedAt) < c.ttl
}

func makeKey(remoteID, path string) Key {
	return Key{RemoteID: remoteID, Path: pathutil.Normalize(path)}
}
