package jobs

import (
	"context"
	"errors"
	"fmt"

	"syncdeck/pkg/shared"
)

// LogResult distinguishes a missing log, which is shown as information,
// from a log that was read.
type LogResult struct {
	JobID   string
	Content string
	Found   bool
}

// Delete forwards the delete to the server and drops the local entry once
// the server agreed. The server only deletes terminal jobs; its refusal is
// returned unchanged and the entry is kept.
func Delete(ctx context.Context, deleter shared.JobDeleter, registry *Registry, jobID string) error {
	if err := deleter.DeleteJob(ctx, jobID); err != nil {
		return fmt.Errorf("failed to delete job %s: %w", jobID, err)
	}
	registry.Remove(jobID)
	return nil
}

func Log(ctx context.Context, fetcher shared.LogFetcher, jobID string) (LogResult, error) {
	content, err := fetcher.JobLog(ctx, jobID)
	if errors.Is(err, shared.ErrNotFound) {
		return LogResult{JobID: jobID}, nil
	}
	if err != nil {
		return LogResult{}, fmt.Errorf("failed to read log for job %s: %w", jobID, err)
	}
	return LogResult{JobID: jobID, Content: content, Found: true}, nil
}
