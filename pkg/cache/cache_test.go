package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"syncdeck/pkg/shared"
)

type fakeClock struct {
	t time.Time
}

func (f *fakeClock) Now() time.Time          { return f.t }
func (f *fakeClock) Advance(d time.Duration) { f.t = f.t.Add(d) }

func newTestCache() (*DirectoryCache, *fakeClock) {
	clock := &fakeClock{t: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
	return NewDirectoryCache(5*time.Minute, WithClock(clock.Now)), clock
}

func dirs(names ...string) []shared.DirectoryEntry {
	out := make([]shared.DirectoryEntry, 0, len(names))
	for _, n := range names {
		out = append(out, shared.DirectoryEntry{Name: n, Path: "/" + n, IsDirectory: true})
	}
	return out
}

func TestGetAfterPutWithinTTL(t *testing.T) {
	c, clock := newTestCache()
	entries := dirs("photos", "music")

	c.Put("nas", "/", entries)
	clock.Advance(4*time.Minute + 59*time.Second)

	rec, ok := c.Get("nas", "/")
	require.True(t, ok)
	assert.Equal(t, entries, rec.Entries)
	assert.Equal(t, Key{RemoteID: "nas", Path: "/"}, rec.Key)
}

func TestGetAfterTTLIsAbsent(t *testing.T) {
	c, clock := newTestCache()
	c.Put("nas", "/", dirs("photos"))

	clock.Advance(5 * time.Minute)

	_, ok := c.Get("nas", "/")
	assert.False(t, ok)

	rec, fresh, ok := c.Peek("nas", "/")
	require.True(t, ok, "stale records stay until replaced")
	assert.False(t, fresh)
	assert.Len(t, rec.Entries, 1)
	assert.Equal(t, 1, c.Len())
}

func TestPutReplacesRecord(t *testing.T) {
	c, clock := newTestCache()

	first := c.Put("nas", "/media", dirs("a"))
	clock.Advance(time.Minute)
	second := c.Put("nas", "/media/", dirs("b", "c"))

	assert.Equal(t, 1, c.Len())
	assert.True(t, second.FetchedAt.After(first.FetchedAt))

	rec, ok := c.Get("nas", "/media")
	require.True(t, ok)
	assert.Equal(t, second.FetchedAt, rec.FetchedAt)
	assert.Equal(t, dirs("b", "c"), rec.Entries)
}

func TestPutCopiesEntries(t *testing.T) {
	c, _ := newTestCache()
	entries := dirs("a")

	c.Put("nas", "/", entries)
	entries[0].Name = "mutated"

	rec, ok := c.Get("nas", "/")
	require.True(t, ok)
	assert.Equal(t, "a", rec.Entries[0].Name)
}

func TestKeysAreScopedByRemote(t *testing.T) {
	c, _ := newTestCache()
	c.Put("nas", "/", dirs("a"))

	_, ok := c.Get("s3", "/")
	assert.False(t, ok)
}

func TestInvalidateAll(t *testing.T) {
	c, _ := newTestCache()
	c.Put("nas", "/", dirs("a"))
	c.Put("nas", "/a", dirs("b"))
	c.Put("s3", "/", dirs("c"))

	assert.Equal(t, 2, c.InvalidateAll("nas"))
	assert.Equal(t, 1, c.Len())
	_, ok := c.Get("s3", "/")
	assert.True(t, ok)

	assert.Equal(t, 0, c.InvalidateAll("missing"))
	assert.Equal(t, 1, c.InvalidateAll(""))
	assert.Equal(t, 0, c.Len())
	assert.Equal(t, 0, c.InvalidateAll(""))
}

func TestDefaultTTL(t *testing.T) {
	assert.Equal(t, DefaultTTL, NewDirectoryCache(0).TTL())
}
