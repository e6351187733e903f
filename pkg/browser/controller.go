package browser

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/semaphore"

	"syncdeck/pkg/cache"
	"syncdeck/pkg/kvstore"
	"syncdeck/pkg/logger"
	"syncdeck/pkg/pathutil"
	"syncdeck/pkg/shared"
)

const (
	lastRemoteKey = "last_remote"
	lastPathKey   = "last_path"

	DefaultMaxConcurrentFetches = 4
)

var ErrNoRemote = errors.New("no remote selected")

// RemoteSource lists directories of a configured remote.
type RemoteSource interface {
	ListRemote(ctx context.Context, remoteID, path string) ([]shared.DirectoryEntry, error)
}

// View renders the remote browser. Its methods are called from the
// controller's serialized section and must not call back into the
// controller.
type View interface {
	ShowEntries(remoteID, path string, entries []shared.DirectoryEntry, stale bool)
	ShowLoading(remoteID, path string)
	ShowError(remoteID, path string, err error)
}

type NavigationState struct {
	RemoteID     string
	CurrentPath  string
	SelectedPath string
}

func initialState() NavigationState {
	return NavigationState{CurrentPath: pathutil.Root, SelectedPath: pathutil.Root}
}

type Options struct {
	Memory               kvstore.Store
	MaxConcurrentFetches int64
	Logger               *logger.Logger
}

// Controller drives the destination browser: it serves listings from the
// directory cache, revalidates stale ones in the background and only renders
// results that still match what the user is looking at.
type Controller struct {
	source RemoteSource
	cache  *cache.DirectoryCache
	view   View
	memory kvstore.Store
	fetch  *semaphore.Weighted
	logger *logger.Logger

	mu         sync.Mutex
	state      NavigationState
	generation uint64

	inflight sync.WaitGroup
}

func NewController(source RemoteSource, dirCache *cache.DirectoryCache, view View, opts Options) *Controller {
	if opts.Memory == nil {
		opts.Memory = kvstore.NewMemoryStore()
	}
	if opts.MaxConcurrentFetches <= 0 {
		opts.MaxConcurrentFetches = DefaultMaxConcurrentFetches
	}
	if opts.Logger == nil {
		opts.Logger = logger.NewDefault().With("browser")
	}

	return &Controller{
		source: source,
		cache:  dirCache,
		view:   view,
		memory: opts.Memory,
		fetch:  semaphore.NewWeighted(opts.MaxConcurrentFetches),
		logger: opts.Logger,
		state:  initialState(),
	}
}

// Initialize picks the starting remote. A single configured remote is
// selected directly. With several, the remembered remote and path are
// restored if that remote still exists; a memory that points to a removed
// remote is discarded.
func (c *Controller) Initialize(ctx context.Context, remotes []shared.RemoteConfig) error {
	switch len(remotes) {
	case 0:
		return nil
	case 1:
		return c.SelectRemote(ctx, remotes[0].Name)
	}

	remembered, ok, err := c.memory.Get(ctx, lastRemoteKey)
	if err != nil {
		return fmt.Errorf("failed to read remembered remote: %w", err)
	}
	if !ok || remembered == "" {
		return nil
	}

	for _, r := range remotes {
		if r.Name != remembered {
			continue
		}
		path, ok, err := c.memory.Get(ctx, lastPathKey)
		if err != nil {
			return fmt.Errorf("failed to read remembered path: %w", err)
		}
		if !ok || path == "" {
			path = pathutil.Root
		}
		return c.Open(ctx, remembered, path)
	}

	c.logger.Debug("discarding remembered remote that is no longer configured", map[string]any{
		"remote": remembered,
	})
	if err := c.memory.Remove(ctx, lastRemoteKey); err != nil {
		return fmt.Errorf("failed to discard remembered remote: %w", err)
	}
	if err := c.memory.Remove(ctx, lastPathKey); err != nil {
		return fmt.Errorf("failed to discard remembered path: %w", err)
	}
	return nil
}

// SelectRemote switches to a remote and loads its root.
func (c *Controller) SelectRemote(ctx context.Context, remoteID string) error {
	if remoteID == "" {
		return ErrNoRemote
	}
	return c.Open(ctx, remoteID, pathutil.Root)
}

// Navigate shows path under the current remote.
func (c *Controller) Navigate(ctx context.Context, path string) error {
	c.mu.Lock()
	remoteID := c.state.RemoteID
	c.mu.Unlock()

	if remoteID == "" {
		return ErrNoRemote
	}
	return c.Open(ctx, remoteID, path)
}

func (c *Controller) NavigateUp(ctx context.Context) error {
	c.mu.Lock()
	parent := pathutil.ParentOf(c.state.CurrentPath)
	c.mu.Unlock()

	return c.Navigate(ctx, parent)
}

// Select marks a destination without navigating.
func (c *Controller) Select(path string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.SelectedPath = pathutil.Normalize(path)
}

func (c *Controller) Breadcrumbs() []pathutil.Breadcrumb {
	c.mu.Lock()
	defer c.mu.Unlock()
	return pathutil.Breadcrumbs(c.state.CurrentPath)
}

func (c *Controller) State() NavigationState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Close ends the destination-choosing session. Fetches still in flight
// complete into the cache but render nothing.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = initialState()
	c.generation++
}

// Wait blocks until every background fetch has completed.
func (c *Controller) Wait() {
	c.inflight.Wait()
}

// Open switches to remoteID and shows path.
func (c *Controller) Open(ctx context.Context, remoteID, path string) error {
	if remoteID == "" {
		return ErrNoRemote
	}
	path = pathutil.Normalize(path)

	c.mu.Lock()
	c.state = NavigationState{RemoteID: remoteID, CurrentPath: path, SelectedPath: path}
	c.generation++
	generation := c.generation

	rec, fresh, ok := c.cache.Peek(remoteID, path)
	switch {
	case ok && fresh:
		c.view.ShowEntries(remoteID, path, rec.Entries, false)
	case ok:
		c.view.ShowEntries(remoteID, path, rec.Entries, true)
		c.revalidate(ctx, remoteID, path, generation)
	default:
		c.view.ShowLoading(remoteID, path)
		c.revalidate(ctx, remoteID, path, generation)
	}
	c.mu.Unlock()

	c.remember(ctx, remoteID, path)
	return nil
}

// revalidate fetches (remoteID, path) in the background. Navigation never
// cancels it.
func (c *Controller) revalidate(ctx context.Context, remoteID, path string, generation uint64) {
	ctx = context.WithoutCancel(ctx)

	c.inflight.Add(1)
	go func() {
		defer c.inflight.Done()

		if err := c.fetch.Acquire(ctx, 1); err != nil {
			return
		}
		entries, err := c.source.ListRemote(ctx, remoteID, path)
		c.fetch.Release(1)

		c.complete(remoteID, path, generation, entries, err)
	}()
}

func (c *Controller) complete(remoteID, path string, generation uint64, entries []shared.DirectoryEntry, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err != nil {
		c.logger.Warn("remote listing failed", map[string]any{
			"remote": remoteID,
			"path":   path,
			"error":  err.Error(),
		})
		c.view.ShowError(remoteID, path, err)
		return
	}

	rec := c.cache.Put(remoteID, path, directoriesOnly(entries))

	if c.state.RemoteID != remoteID || c.state.CurrentPath != path || c.generation != generation {
		c.logger.Debug("dropping late listing", map[string]any{
			"remote": remoteID,
			"path":   path,
		})
		return
	}
	c.view.ShowEntries(remoteID, path, rec.Entries, false)
}

func (c *Controller) remember(ctx context.Context, remoteID, path string) {
	if err := c.memory.Set(ctx, lastRemoteKey, remoteID); err != nil {
		c.logger.Warn("failed to remember remote", map[string]any{"error": err.Error()})
		return
	}
	if err := c.memory.Set(ctx, lastPathKey, path); err != nil {
		c.logger.Warn("failed to remember path", map[string]any{"error": err.Error()})
	}
}

func directoriesOnly(entries []shared.DirectoryEntry) []shared.DirectoryEntry {
	dirs := make([]shared.DirectoryEntry, 0, len(entries))
	for _, e := range entries {
		if e.IsDirectory {
			dirs = append(dirs, e)
		}
	}
	return dirs
}
