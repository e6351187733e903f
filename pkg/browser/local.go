package browser

import (
	"context"
	"fmt"
	"sync"

	"syncdeck/pkg/pathutil"
	"syncdeck/pkg/shared"
)

const DefaultLocalPath = "/mnt/home"

type LocalSource interface {
	ListLocal(ctx context.Context, path string) ([]shared.DirectoryEntry, error)
}

// LocalBrowser lists the machine the backend runs on. It is uncached and
// shows files as well as directories.
type LocalBrowser struct {
	source LocalSource

	mu      sync.Mutex
	current string
	entries []shared.DirectoryEntry
}

func NewLocalBrowser(source LocalSource, start string) *LocalBrowser {
	if start == "" {
		start = DefaultLocalPath
	}
	return &LocalBrowser{source: source, current: pathutil.Normalize(start)}
}

// Open lists path and makes it current. A failed listing keeps the previous
// location.
func (b *LocalBrowser) Open(ctx context.Context, path string) ([]shared.DirectoryEntry, error) {
	path = pathutil.Normalize(path)

	entries, err := b.source.ListLocal(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", path, err)
	}

	b.mu.Lock()
	b.current = path
	b.entries = entries
	b.mu.Unlock()

	return entries, nil
}

// Refresh lists the current location again.
func (b *LocalBrowser) Refresh(ctx context.Context) ([]shared.DirectoryEntry, error) {
	return b.Open(ctx, b.Current())
}

func (b *LocalBrowser) Up(ctx context.Context) ([]shared.DirectoryEntry, error) {
	return b.Open(ctx, pathutil.ParentOf(b.Current()))
}

func (b *LocalBrowser) Current() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.current
}

func (b *LocalBrowser) Entries() []shared.DirectoryEntry {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]shared.DirectoryEntry(nil), b.entries...)
}

func (b *LocalBrowser) Breadcrumbs() []pathutil.Breadcrumb {
	return pathutil.Breadcrumbs(b.Current())
}
