package jobs

import (
	"context"
	"sync"

	"syncdeck/pkg/shared"
)

// ProgressTracker is the primary progress view: it follows only the job that
// was launched last.
type ProgressTracker struct {
	fetcher  shared.StatusFetcher
	registry *Registry
	renderer Renderer
	cfg      MonitorConfig

	mu      sync.Mutex
	current *Monitor
}

func NewProgressTracker(fetcher shared.StatusFetcher, registry *Registry, renderer Renderer, cfg MonitorConfig) *ProgressTracker {
	return &ProgressTracker{
		fetcher:  fetcher,
		registry: registry,
		renderer: renderer,
		cfg:      cfg,
	}
}

// Track stops following the previous job and starts monitoring jobID.
func (t *ProgressTracker) Track(ctx context.Context, jobID string) *Monitor {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.current != nil {
		t.current.Stop()
	}
	t.current = StartMonitor(ctx, jobID, t.fetcher, t.registry, t.renderer, t.cfg)
	return t.current
}

// Current returns the job being followed, or "" when the view is closed.
func (t *ProgressTracker) Current() string {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.current == nil {
		return ""
	}
	return t.current.JobID()
}

// Monitor returns the monitor of the followed job, or nil.
func (t *ProgressTracker) Monitor() *Monitor {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.current
}

// Close tears the progress view down. Scheduled polls are cancelled; the
// registry keeps the last snapshot.
func (t *ProgressTracker) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.current != nil {
		t.current.Stop()
		t.current = nil
	}
}
