package jobs

import (
	"context"
	"sync"
	"time"

	"syncdeck/pkg/logger"
	"syncdeck/pkg/shared"
)

const DefaultListInterval = 2 * time.Second

type ListRenderer interface {
	RenderJobs(jobs []shared.JobStatus)
}

type ListRendererFunc func(jobs []shared.JobStatus)

func (f ListRendererFunc) RenderJobs(jobs []shared.JobStatus) { f(jobs) }

// ListPoller refreshes the aggregate job list on a fixed cadence. Every
// successful poll replaces the displayed set wholesale.
type ListPoller struct {
	lister   shared.JobLister
	renderer ListRenderer
	interval time.Duration
	logger   *logger.Logger

	mu      sync.RWMutex
	jobs    []shared.JobStatus
	cancel  context.CancelFunc
	done    chan struct{}
	running bool
}

func NewListPoller(lister shared.JobLister, renderer ListRenderer, interval time.Duration) *ListPoller {
	if interval <= 0 {
		interval = DefaultListInterval
	}
	return &ListPoller{
		lister:   lister,
		renderer: renderer,
		interval: interval,
		logger:   logger.NewDefault().With("job-list"),
	}
}

// Start polls immediately and then on every tick until Stop. Calling Start
// on a running poller does nothing.
func (p *ListPoller) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.done = make(chan struct{})
	p.running = true

	go p.run(ctx, p.done)
}

func (p *ListPoller) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.cancel()
	done := p.done
	p.running = false
	p.mu.Unlock()

	<-done
}

// Refresh runs one poll synchronously.
func (p *ListPoller) Refresh(ctx context.Context) error {
	jobs, err := p.lister.ListJobs(ctx)
	if err != nil {
		return err
	}

	replaced := append([]shared.JobStatus(nil), jobs...)
	p.mu.Lock()
	p.jobs = replaced
	p.mu.Unlock()

	if p.renderer != nil {
		p.renderer.RenderJobs(replaced)
	}
	return nil
}

// Jobs returns the currently displayed set.
func (p *ListPoller) Jobs() []shared.JobStatus {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return append([]shared.JobStatus(nil), p.jobs...)
}

func (p *ListPoller) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		if err := p.Refresh(context.WithoutCancel(ctx)); err != nil {
			p.logger.Warn("job list poll failed", map[string]any{"error": err.Error()})
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
