package shared

import (
	"context"
	"errors"
	"time"
)

const (
	TaskTypeSyncTransfer = "sync_transfer"
)

// ErrNotFound is returned by collaborators when the requested resource does
// not exist, e.g. a job log that was never written.
var ErrNotFound = errors.New("not found")

type DirectoryEntry struct {
	Name        string  `json:"name"`
	Path        string  `json:"path"`
	IsDirectory bool    `json:"is_dir"`
	Size        *uint64 `json:"size,omitempty"`
	Modified    string  `json:"modified,omitempty"`
}

type JobState string

const (
	JobStateStarting  JobState = "Starting"
	JobStateRunning   JobState = "Running"
	JobStateCompleted JobState = "Completed"
	JobStateFailed    JobState = "Failed"
)

// IsTerminal reports whether no further transition can happen. Only
// Starting and Running are polled again; every other label, including the
// backend's free-form spawn and capture errors, ends the job.
func (s JobState) IsTerminal() bool {
	return s != JobStateStarting && s != JobStateRunning
}

type JobStatus struct {
	ID               string     `json:"id"`
	State            JobState   `json:"status"`
	ProgressPercent  float64    `json:"progress"`
	TransferredBytes uint64     `json:"transferred"`
	TotalBytes       uint64     `json:"total"`
	SourceName       string     `json:"source_name,omitempty"`
	StartTime        time.Time  `json:"start_time"`
	EndTime          *time.Time `json:"end_time,omitempty"`
}

type RemoteConfig struct {
	Name     string `json:"name"`
	Type     string `json:"config_type"`
	URL      string `json:"url,omitempty"`
	Username string `json:"username,omitempty"`
}

type SyncRequest struct {
	SourcePath      string `json:"source_path" validate:"required"`
	RemoteID        string `json:"remote_name" validate:"required"`
	DestPath        string `json:"remote_path" validate:"required"`
	UseParallelism  bool   `json:"use_chunking"`
	PerformanceHint string `json:"chunk_size,omitempty" validate:"omitempty,oneof=8M 16M 32M 64M 128M"`
}

type Lister interface {
	ListRemote(ctx context.Context, remoteID, path string) ([]DirectoryEntry, error)
	ListLocal(ctx context.Context, path string) ([]DirectoryEntry, error)
}

type Submitter interface {
	SubmitSync(ctx context.Context, req SyncRequest) (string, error)
}

type StatusFetcher interface {
	JobStatus(ctx context.Context, jobID string) (*JobStatus, error)
}

type JobLister interface {
	ListJobs(ctx context.Context) ([]JobStatus, error)
}

type JobDeleter interface {
	DeleteJob(ctx context.Context, jobID string) error
}

type LogFetcher interface {
	JobLog(ctx context.Context, jobID string) (string, error)
}

// JobBackend is everything the job side of a session needs.
type JobBackend interface {
	Submitter
	StatusFetcher
	JobLister
	JobDeleter
	LogFetcher
}

type RemoteLister interface {
	ListRemotes(ctx context.Context) ([]RemoteConfig, error)
}

type RemoteDeleter interface {
	DeleteRemote(ctx context.Context, name string) error
}
