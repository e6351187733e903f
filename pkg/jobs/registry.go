package jobs

import (
	"sync"

	"syncdeck/pkg/shared"
)

// PollHandle stops a job's poll loop. Stopping never aborts a request that
// has already been sent.
type PollHandle interface {
	Stop()
}

type Entry struct {
	JobID        string
	LastSnapshot *shared.JobStatus
	handle       PollHandle
}

// Terminal reports whether the last known snapshot is terminal.
func (e Entry) Terminal() bool {
	return e.LastSnapshot != nil && e.LastSnapshot.State.IsTerminal()
}

// Registry tracks jobs this client launched or viewed, in registration order.
type Registry struct {
	mu      sync.Mutex
	entries map[string]*Entry
	order   []string
}

func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]*Entry)}
}

// Register adds a job. Registering a known id is a no-op.
func (r *Registry) Register(jobID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.entries[jobID]; ok {
		return
	}
	r.entries[jobID] = &Entry{JobID: jobID}
	r.order = append(r.order, jobID)
}

// Attach sets the poll handle of a job, stopping any previous one so that a
// job never has two poll loops.
func (r *Registry) Attach(jobID string, h PollHandle) bool {
	r.mu.Lock()
	entry, ok := r.entries[jobID]
	var previous PollHandle
	if ok {
		previous = entry.handle
		entry.handle = h
	}
	r.mu.Unlock()

	if previous != nil && previous != h {
		previous.Stop()
	}
	return ok
}

// Update stores a snapshot, last write wins. Snapshots of a job already in a
// terminal state are ignored, as are unknown job ids.
func (r *Registry) Update(status shared.JobStatus) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.entries[status.ID]
	if !ok || entry.Terminal() {
		return false
	}
	snapshot := status
	entry.LastSnapshot = &snapshot
	return true
}

func (r *Registry) Get(jobID string) (Entry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.entries[jobID]
	if !ok {
		return Entry{}, false
	}
	return *entry, true
}

func (r *Registry) List() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Entry, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, *r.entries[id])
	}
	return out
}

// Remove forgets a job and stops its poll loop.
func (r *Registry) Remove(jobID string) bool {
	r.mu.Lock()
	entry, ok := r.entries[jobID]
	if ok {
		delete(r.entries, jobID)
		for i, id := range r.order {
			if id == jobID {
				r.order = append(r.order[:i], r.order[i+1:]...)
				break
			}
		}
	}
	r.mu.Unlock()

	if ok && entry.handle != nil {
		entry.handle.Stop()
	}
	return ok
}

func (r *Registry) StopAll() {
	r.mu.Lock()
	handles := make([]PollHandle, 0, len(r.entries))
	for _, entry := range r.entries {
		if entry.handle != nil {
			handles = append(handles, entry.handle)
		}
	}
	r.mu.Unlock()

	for _, h := range handles {
		h.Stop()
	}
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}
