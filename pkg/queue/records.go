package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"syncdeck/pkg/shared"
)

// ProgressRecord is what a transfer worker writes under job_progress:<id>
// while it runs. Status overrides the asynq state for running tasks, so a
// worker can report labels such as "Error: rclone exited".
type ProgressRecord struct {
	Status      string  `json:"status,omitempty"`
	Progress    float64 `json:"progress"`
	Transferred uint64  `json:"transferred"`
	Total       uint64  `json:"total"`
	SourceName  string  `json:"source_name,omitempty"`
	StartTime   int64   `json:"start_time,omitempty"`
	EndTime     *int64  `json:"end_time,omitempty"`
}

// Recorder is the worker side of the progress protocol. No worker runs in
// this module; the transfer engine that consumes sync_transfer tasks links
// this package and reports through a Recorder so Transport can read the
// records back. It is the reference for the key layout and JSON format.
type Recorder struct {
	redis     *redis.Client
	retention time.Duration
	now       func() time.Time
}

func NewRecorder(client *redis.Client, retention time.Duration) *Recorder {
	if retention <= 0 {
		retention = DefaultRetention
	}
	return &Recorder{redis: client, retention: retention, now: time.Now}
}

func (r *Recorder) RecordProgress(ctx context.Context, jobID string, rec ProgressRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal progress record: %w", err)
	}
	if err := r.redis.Set(ctx, progressKeyPrefix+jobID, data, r.retention).Err(); err != nil {
		return fmt.Errorf("write progress of job %s: %w", jobID, err)
	}
	return nil
}

// AppendLog adds one timestamped line to the job log.
func (r *Recorder) AppendLog(ctx context.Context, jobID, line string) error {
	key := logKeyPrefix + jobID
	entry := fmt.Sprintf("[%s] %s\n", r.now().Format("15:04:05"), line)

	pipe := r.redis.TxPipeline()
	pipe.Append(ctx, key, entry)
	pipe.Expire(ctx, key, r.retention)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("append log of job %s: %w", jobID, err)
	}
	return nil
}

func applyRecord(status *shared.JobStatus, rec ProgressRecord) {
	progress := rec.Progress
	if progress < 0 {
		progress = 0
	}
	if progress > 100 {
		progress = 100
	}
	status.ProgressPercent = progress
	status.TransferredBytes = rec.Transferred
	status.TotalBytes = rec.Total
	if rec.SourceName != "" {
		status.SourceName = rec.SourceName
	}
	if rec.StartTime > 0 {
		status.StartTime = time.Unix(rec.StartTime, 0)
	}
	if rec.EndTime != nil {
		end := time.Unix(*rec.EndTime, 0)
		status.EndTime = &end
	}
}

func statusFromRecord(jobID string, rec ProgressRecord) shared.JobStatus {
	status := shared.JobStatus{ID: jobID, State: shared.JobState(rec.Status)}
	applyRecord(&status, rec)
	return status
}
