package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/sync/errgroup"

	"syncdeck/pkg/browser"
	"syncdeck/pkg/cache"
	"syncdeck/pkg/jobs"
	"syncdeck/pkg/kvstore"
	"syncdeck/pkg/logger"
	"syncdeck/pkg/metrics"
	"syncdeck/pkg/shared"
)

// Backend serves listings and remote configs. Jobs may go elsewhere.
type Backend interface {
	shared.Lister
	shared.RemoteLister
	shared.RemoteDeleter
}

type Views struct {
	Browser browser.View
	Job     jobs.Renderer
	JobList jobs.ListRenderer
}

type Options struct {
	CacheTTL             time.Duration
	PollInterval         time.Duration
	ListInterval         time.Duration
	MaxConcurrentFetches int64
	LocalStartPath       string
	Memory               kvstore.Store
	Logger               *logger.Logger
}

// Session owns every piece of client state for one user session.
type Session struct {
	backend  Backend
	jobs     shared.JobBackend
	validate *validator.Validate
	logger   *logger.Logger

	Cache    *cache.DirectoryCache
	Remote   *browser.Controller
	Local    *browser.LocalBrowser
	Registry *jobs.Registry
	Progress *jobs.ProgressTracker
	JobList  *jobs.ListPoller

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.RWMutex
	remotes []shared.RemoteConfig
}

func New(backend Backend, jobBackend shared.JobBackend, views Views, opts Options) *Session {
	if opts.Logger == nil {
		opts.Logger = logger.NewDefault()
	}
	if views.Browser == nil {
		views.Browser = nopView{}
	}

	dirCache := cache.NewDirectoryCache(opts.CacheTTL)
	registry := jobs.NewRegistry()
	ctx, cancel := context.WithCancel(context.Background())

	return &Session{
		backend:  backend,
		jobs:     jobBackend,
		validate: validator.New(),
		logger:   opts.Logger.With("session"),
		Cache:    dirCache,
		Remote: browser.NewController(backend, dirCache, views.Browser, browser.Options{
			Memory:               opts.Memory,
			MaxConcurrentFetches: opts.MaxConcurrentFetches,
			Logger:               opts.Logger.With("browser"),
		}),
		Local:    browser.NewLocalBrowser(backend, opts.LocalStartPath),
		Registry: registry,
		Progress: jobs.NewProgressTracker(jobBackend, registry, views.Job, jobs.MonitorConfig{
			Interval: opts.PollInterval,
			Logger:   opts.Logger.With("monitor"),
		}),
		JobList: jobs.NewListPoller(jobBackend, views.JobList, opts.ListInterval),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Start loads remotes, the local start directory and the job list in
// parallel, then restores the remote browser. Only a failed remote load
// fails the session; the local listing and the job list are logged and
// retried by the user or the list poller.
func (s *Session) Start(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return s.RefreshRemotes(gctx)
	})
	g.Go(func() error {
		if _, err := s.Local.Refresh(gctx); err != nil {
			s.logger.Warn("initial local listing failed", map[string]any{
				"path":  s.Local.Current(),
				"error": err.Error(),
			})
		}
		return nil
	})
	g.Go(func() error {
		if err := s.JobList.Refresh(gctx); err != nil {
			s.logger.Warn("initial job list load failed", map[string]any{"error": err.Error()})
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}

	return s.Remote.Initialize(ctx, s.Remotes())
}

// WatchJobs starts the periodic job-list refresh.
func (s *Session) WatchJobs() {
	s.JobList.Start(s.ctx)
}

func (s *Session) RefreshRemotes(ctx context.Context) error {
	remotes, err := s.backend.ListRemotes(ctx)
	if err != nil {
		return fmt.Errorf("failed to load remotes: %w", err)
	}

	s.mu.Lock()
	s.remotes = remotes
	s.mu.Unlock()
	return nil
}

func (s *Session) Remotes() []shared.RemoteConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]shared.RemoteConfig(nil), s.remotes...)
}

// DeleteRemote removes a remote config and every listing cached for it.
func (s *Session) DeleteRemote(ctx context.Context, name string) error {
	if err := s.backend.DeleteRemote(ctx, name); err != nil {
		return fmt.Errorf("failed to delete remote %s: %w", name, err)
	}

	dropped := s.Cache.InvalidateAll(name)
	if s.Remote.State().RemoteID == name {
		s.Remote.Close()
	}
	s.logger.Info("remote deleted", map[string]any{
		"remote":          name,
		"dropped_records": dropped,
	})

	return s.RefreshRemotes(ctx)
}

// SuggestHint returns the chunk-size suggestion for a source path.
func (s *Session) SuggestHint(sourcePath string) metrics.Suggestion {
	return metrics.SuggestPerformanceHint(sourcePath)
}

// StartSync validates and submits a transfer, then makes it the job the
// progress view follows. Parallel transfers without a hint get the
// suggested one.
func (s *Session) StartSync(ctx context.Context, req shared.SyncRequest) (string, error) {
	if req.UseParallelism && req.PerformanceHint == "" {
		req.PerformanceHint = metrics.SuggestPerformanceHint(req.SourcePath).Hint
	}
	if err := s.validate.Struct(req); err != nil {
		return "", fmt.Errorf("invalid sync request: %w", err)
	}

	jobID, err := s.jobs.SubmitSync(ctx, req)
	if err != nil {
		return "", fmt.Errorf("failed to start sync: %w", err)
	}

	s.logger.Info("sync started", map[string]any{
		"job_id": jobID,
		"source": req.SourcePath,
		"remote": req.RemoteID,
		"dest":   req.DestPath,
	})
	s.Progress.Track(s.ctx, jobID)
	return jobID, nil
}

// Watch makes an existing job the one the progress view follows.
func (s *Session) Watch(jobID string) *jobs.Monitor {
	return s.Progress.Track(s.ctx, jobID)
}

func (s *Session) DeleteJob(ctx context.Context, jobID string) error {
	if err := jobs.Delete(ctx, s.jobs, s.Registry, jobID); err != nil {
		return err
	}
	if err := s.JobList.Refresh(ctx); err != nil {
		s.logger.Warn("job list refresh after delete failed", map[string]any{"error": err.Error()})
	}
	return nil
}

func (s *Session) JobLog(ctx context.Context, jobID string) (jobs.LogResult, error) {
	return jobs.Log(ctx, s.jobs, jobID)
}

// Close stops every poll loop. Requests already sent are left to finish.
func (s *Session) Close() {
	s.Progress.Close()
	s.JobList.Stop()
	s.Registry.StopAll()
	s.Remote.Close()
	s.cancel()
}

type nopView struct{}

func (nopView) ShowEntries(string, string, []shared.DirectoryEntry, bool) {}
func (nopView) ShowLoading(string, string)                                {}
func (nopView) ShowError(string, string, error)                           {}
