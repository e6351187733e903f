package jobs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"syncdeck/pkg/shared"
)

type countingHandle struct {
	stops int
}

func (h *countingHandle) Stop() { h.stops++ }

func TestRegistryRegisterIsIdempotent(t *testing.T) {
	r := NewRegistry()
	r.Register("a")
	r.Register("b")
	r.Register("a")

	require.Equal(t, 2, r.Len())
	list := r.List()
	assert.Equal(t, "a", list[0].JobID)
	assert.Equal(t, "b", list[1].JobID)
}

func TestRegistryUpdate(t *testing.T) {
	r := NewRegistry()
	r.Register("a")

	assert.False(t, r.Update(shared.JobStatus{ID: "unknown"}))

	assert.True(t, r.Update(shared.JobStatus{ID: "a", State: shared.JobStateRunning, ProgressPercent: 10}))
	assert.True(t, r.Update(shared.JobStatus{ID: "a", State: shared.JobStateRunning, ProgressPercent: 20}))

	entry, ok := r.Get("a")
	require.True(t, ok)
	assert.Equal(t, float64(20), entry.LastSnapshot.ProgressPercent)
	assert.False(t, entry.Terminal())

	assert.True(t, r.Update(shared.JobStatus{ID: "a", State: shared.JobStateCompleted, ProgressPercent: 100}))
	assert.False(t, r.Update(shared.JobStatus{ID: "a", State: shared.JobStateRunning, ProgressPercent: 50}),
		"terminal jobs never transition again")

	entry, _ = r.Get("a")
	assert.True(t, entry.Terminal())
	assert.Equal(t, shared.JobStateCompleted, entry.LastSnapshot.State)
}

func TestRegistryAttachStopsPrevious(t *testing.T) {
	r := NewRegistry()
	r.Register("a")

	first := &countingHandle{}
	second := &countingHandle{}
	require.True(t, r.Attach("a", first))
	require.True(t, r.Attach("a", second))
	assert.Equal(t, 1, first.stops)
	assert.Equal(t, 0, second.stops)

	assert.False(t, r.Attach("missing", &countingHandle{}))
}

func TestRegistryRemoveStopsHandle(t *testing.T) {
	r := NewRegistry()
	r.Register("a")
	r.Register("b")
	h := &countingHandle{}
	r.Attach("a", h)

	assert.True(t, r.Remove("a"))
	assert.Equal(t, 1, h.stops)
	assert.False(t, r.Remove("a"))

	_, ok := r.Get("a")
	assert.False(t, ok)
	require.Len(t, r.List(), 1)
	assert.Equal(t, "b", r.List()[0].JobID)
}

func TestRegistryStopAll(t *testing.T) {
	r := NewRegistry()
	handles := []*countingHandle{{}, {}}
	for i, id := range []string{"a", "b"} {
		r.Register(id)
		r.Attach(id, handles[i])
	}

	r.StopAll()
	for _, h := range handles {
		assert.Equal(t, 1, h.stops)
	}
	assert.Equal(t, 2, r.Len(), "stopping keeps the entries")
}
