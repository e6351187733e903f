package jobs

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"syncdeck/pkg/logger"
	"syncdeck/pkg/metrics"
	"syncdeck/pkg/shared"
)

const DefaultPollInterval = time.Second

// Renderer receives every snapshot a monitor applies.
type Renderer interface {
	RenderJob(status shared.JobStatus, m metrics.Metrics)
}

type RendererFunc func(status shared.JobStatus, m metrics.Metrics)

func (f RendererFunc) RenderJob(status shared.JobStatus, m metrics.Metrics) { f(status, m) }

type MonitorConfig struct {
	Interval time.Duration
	Now      func() time.Time
	Logger   *logger.Logger
}

func (c MonitorConfig) withDefaults() MonitorConfig {
	if c.Interval <= 0 {
		c.Interval = DefaultPollInterval
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	if c.Logger == nil {
		c.Logger = logger.NewDefault().With("monitor")
	}
	return c
}

// Monitor polls one job until the server reports a terminal state or Stop
// is called.
type Monitor struct {
	jobID    string
	fetcher  shared.StatusFetcher
	registry *Registry
	renderer Renderer
	cfg      MonitorConfig

	cancel   context.CancelFunc
	stopOnce sync.Once
	done     chan struct{}
	polls    atomic.Int64
	failures atomic.Int64
}

// StartMonitor registers the job and polls it right away, then once per
// interval while the job is non-terminal.
func StartMonitor(ctx context.Context, jobID string, fetcher shared.StatusFetcher, registry *Registry, renderer Renderer, cfg MonitorConfig) *Monitor {
	ctx, cancel := context.WithCancel(ctx)
	m := &Monitor{
		jobID:    jobID,
		fetcher:  fetcher,
		registry: registry,
		renderer: renderer,
		cfg:      cfg.withDefaults(),
		cancel:   cancel,
		done:     make(chan struct{}),
	}

	registry.Register(jobID)
	registry.Attach(jobID, m)

	go m.run(ctx)
	return m
}

func (m *Monitor) JobID() string {
	return m.jobID
}

// Stop prevents further polls. A poll already in flight completes and its
// result is still applied.
func (m *Monitor) Stop() {
	m.stopOnce.Do(m.cancel)
}

// Done is closed once the loop has exited.
func (m *Monitor) Done() <-chan struct{} {
	return m.done
}

func (m *Monitor) Wait() {
	<-m.done
}

func (m *Monitor) Polls() int64 {
	return m.polls.Load()
}

func (m *Monitor) Failures() int64 {
	return m.failures.Load()
}

func (m *Monitor) run(ctx context.Context) {
	defer close(m.done)
	defer m.Stop()

	for {
		if ctx.Err() != nil {
			return
		}

		if m.poll(ctx) {
			m.cfg.Logger.Info("job reached terminal state, polling stopped", map[string]any{
				"job_id": m.jobID,
				"polls":  m.polls.Load(),
			})
			return
		}

		timer := time.NewTimer(m.cfg.Interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

// poll fetches one snapshot and reports whether the job is terminal.
func (m *Monitor) poll(ctx context.Context) bool {
	m.polls.Add(1)

	status, err := m.fetcher.JobStatus(context.WithoutCancel(ctx), m.jobID)
	if err != nil {
		m.failures.Add(1)
		m.cfg.Logger.Warn("job status poll failed, retrying next tick", map[string]any{
			"job_id": m.jobID,
			"error":  err.Error(),
		})
		return false
	}

	if status.ID == "" {
		status.ID = m.jobID
	}
	m.registry.Update(*status)
	if m.renderer != nil {
		m.renderer.RenderJob(*status, metrics.Derive(*status, m.cfg.Now()))
	}

	return status.State.IsTerminal()
}
