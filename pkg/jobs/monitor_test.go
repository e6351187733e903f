package jobs

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"syncdeck/pkg/metrics"
	"syncdeck/pkg/shared"
)

type mockFetcher struct {
	mock.Mock
}

func (m *mockFetcher) JobStatus(ctx context.Context, jobID string) (*shared.JobStatus, error) {
	args := m.Called(ctx, jobID)
	if s := args.Get(0); s != nil {
		return s.(*shared.JobStatus), args.Error(1)
	}
	return nil, args.Error(1)
}

type recordingRenderer struct {
	mu       sync.Mutex
	statuses []shared.JobStatus
	metrics  []metrics.Metrics
	rendered chan struct{}
}

func newRecordingRenderer() *recordingRenderer {
	return &recordingRenderer{rendered: make(chan struct{}, 64)}
}

func (r *recordingRenderer) RenderJob(status shared.JobStatus, m metrics.Metrics) {
	r.mu.Lock()
	r.statuses = append(r.statuses, status)
	r.metrics = append(r.metrics, m)
	r.mu.Unlock()
	r.rendered <- struct{}{}
}

func (r *recordingRenderer) States() []shared.JobState {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]shared.JobState, 0, len(r.statuses))
	for _, s := range r.statuses {
		out = append(out, s.State)
	}
	return out
}

func snapshot(id string, state shared.JobState, progress float64) *shared.JobStatus {
	return &shared.JobStatus{
		ID:              id,
		State:           state,
		ProgressPercent: progress,
		StartTime:       time.Unix(1000, 0),
	}
}

func waitDone(t *testing.T, m *Monitor) {
	t.Helper()
	select {
	case <-m.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("monitor did not stop")
	}
}

func testConfig(interval time.Duration) MonitorConfig {
	return MonitorConfig{
		Interval: interval,
		Now:      func() time.Time { return time.Unix(1100, 0) },
	}
}

func TestMonitorStopsAtTerminalState(t *testing.T) {
	fetcher := &mockFetcher{}
	for _, s := range []*shared.JobStatus{
		snapshot("job-1", shared.JobStateStarting, 0),
		snapshot("job-1", shared.JobStateRunning, 10),
		snapshot("job-1", shared.JobStateRunning, 50),
		snapshot("job-1", shared.JobStateCompleted, 100),
	} {
		fetcher.On("JobStatus", mock.Anything, "job-1").Return(s, nil).Once()
	}

	registry := NewRegistry()
	renderer := newRecordingRenderer()
	m := StartMonitor(context.Background(), "job-1", fetcher, registry, renderer, testConfig(time.Millisecond))
	waitDone(t, m)

	assert.Equal(t, int64(4), m.Polls())
	fetcher.AssertNumberOfCalls(t, "JobStatus", 4)
	assert.Equal(t, []shared.JobState{
		shared.JobStateStarting,
		shared.JobStateRunning,
		shared.JobStateRunning,
		shared.JobStateCompleted,
	}, renderer.States())

	entry, ok := registry.Get("job-1")
	require.True(t, ok)
	assert.True(t, entry.Terminal())

	// The second Running snapshot at 50% after 100s has an ETA of 100s.
	require.NotNil(t, renderer.metrics[2].RemainingSeconds)
	assert.Equal(t, int64(100), *renderer.metrics[2].RemainingSeconds)
	assert.Nil(t, renderer.metrics[0].RemainingSeconds)
}

func TestMonitorRetriesFailedPolls(t *testing.T) {
	fetcher := &mockFetcher{}
	fetcher.On("JobStatus", mock.Anything, "job-1").Return(nil, errors.New("connection refused")).Once()
	fetcher.On("JobStatus", mock.Anything, "job-1").Return(snapshot("job-1", "Error: spawn failed", 0), nil).Once()

	m := StartMonitor(context.Background(), "job-1", fetcher, NewRegistry(), newRecordingRenderer(), testConfig(time.Millisecond))
	waitDone(t, m)

	assert.Equal(t, int64(2), m.Polls())
	assert.Equal(t, int64(1), m.Failures())
}

func TestMonitorStopPreventsReschedule(t *testing.T) {
	fetcher := &mockFetcher{}
	fetcher.On("JobStatus", mock.Anything, "job-1").Return(snapshot("job-1", shared.JobStateRunning, 5), nil)

	renderer := newRecordingRenderer()
	m := StartMonitor(context.Background(), "job-1", fetcher, NewRegistry(), renderer, testConfig(time.Hour))
	<-renderer.rendered

	m.Stop()
	m.Stop()
	waitDone(t, m)
	assert.Equal(t, int64(1), m.Polls())
}

type gatedFetcher struct {
	started chan struct{}
	release chan struct{}
	ctxErr  error
}

func (g *gatedFetcher) JobStatus(ctx context.Context, jobID string) (*shared.JobStatus, error) {
	close(g.started)
	<-g.release
	g.ctxErr = ctx.Err()
	return snapshot(jobID, shared.JobStateRunning, 30), nil
}

func TestMonitorAppliesInFlightPollAfterStop(t *testing.T) {
	fetcher := &gatedFetcher{started: make(chan struct{}), release: make(chan struct{})}
	registry := NewRegistry()

	m := StartMonitor(context.Background(), "job-1", fetcher, registry, nil, testConfig(time.Millisecond))
	<-fetcher.started
	m.Stop()
	close(fetcher.release)
	waitDone(t, m)

	assert.NoError(t, fetcher.ctxErr, "in-flight fetch must not be cancelled")
	assert.Equal(t, int64(1), m.Polls())

	entry, ok := registry.Get("job-1")
	require.True(t, ok)
	require.NotNil(t, entry.LastSnapshot)
	assert.Equal(t, float64(30), entry.LastSnapshot.ProgressPercent)
}

func TestRegistryRemoveStopsMonitor(t *testing.T) {
	fetcher := &mockFetcher{}
	fetcher.On("JobStatus", mock.Anything, "job-1").Return(snapshot("job-1", shared.JobStateRunning, 5), nil)

	registry := NewRegistry()
	renderer := newRecordingRenderer()
	m := StartMonitor(context.Background(), "job-1", fetcher, registry, renderer, testConfig(time.Hour))
	<-renderer.rendered

	registry.Remove("job-1")
	waitDone(t, m)
}

func TestProgressTrackerFollowsLatestJob(t *testing.T) {
	fetcher := &mockFetcher{}
	fetcher.On("JobStatus", mock.Anything, "a").Return(snapshot("a", shared.JobStateRunning, 5), nil)
	fetcher.On("JobStatus", mock.Anything, "b").Return(snapshot("b", shared.JobStateRunning, 5), nil)

	registry := NewRegistry()
	tracker := NewProgressTracker(fetcher, registry, nil, testConfig(time.Hour))

	first := tracker.Track(context.Background(), "a")
	second := tracker.Track(context.Background(), "b")
	waitDone(t, first)
	assert.Equal(t, "b", tracker.Current())

	tracker.Close()
	waitDone(t, second)
	assert.Equal(t, "", tracker.Current())
	assert.Equal(t, 2, registry.Len(), "closing the view keeps the registry")
}
