package jobs

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"syncdeck/pkg/shared"
)

type sequenceLister struct {
	mu      sync.Mutex
	results [][]shared.JobStatus
	calls   int
}

func (s *sequenceLister) ListJobs(ctx context.Context) ([]shared.JobStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if len(s.results) == 0 {
		return nil, errors.New("backend down")
	}
	next := s.results[0]
	if len(s.results) > 1 {
		s.results = s.results[1:]
	}
	return next, nil
}

func TestListPollerReplacesWholesale(t *testing.T) {
	lister := &sequenceLister{results: [][]shared.JobStatus{
		{{ID: "a"}, {ID: "b"}},
		{{ID: "c"}},
	}}
	p := NewListPoller(lister, nil, time.Hour)

	require.NoError(t, p.Refresh(context.Background()))
	assert.Len(t, p.Jobs(), 2)

	require.NoError(t, p.Refresh(context.Background()))
	assert.Equal(t, []shared.JobStatus{{ID: "c"}}, p.Jobs())
}

func TestListPollerKeepsSetOnFailure(t *testing.T) {
	lister := &sequenceLister{results: [][]shared.JobStatus{{{ID: "a"}}}}
	p := NewListPoller(lister, nil, time.Hour)
	require.NoError(t, p.Refresh(context.Background()))

	lister.results = nil
	assert.Error(t, p.Refresh(context.Background()))
	assert.Equal(t, []shared.JobStatus{{ID: "a"}}, p.Jobs())
}

func TestListPollerPollsOnCadence(t *testing.T) {
	lister := &sequenceLister{results: [][]shared.JobStatus{{{ID: "a"}}}}
	rendered := make(chan int, 16)
	p := NewListPoller(lister, ListRendererFunc(func(jobs []shared.JobStatus) {
		rendered <- len(jobs)
	}), 5*time.Millisecond)

	p.Start(context.Background())
	p.Start(context.Background())
	for i := 0; i < 3; i++ {
		select {
		case n := <-rendered:
			assert.Equal(t, 1, n)
		case <-time.After(5 * time.Second):
			t.Fatal("list poller did not render")
		}
	}
	p.Stop()
	p.Stop()
}
