package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"syncdeck/pkg/logger"
	"syncdeck/pkg/shared"
)

const (
	progressKeyPrefix = "job_progress:"
	logKeyPrefix      = "job_log:"

	DefaultRetention = 24 * time.Hour
	listPageSize     = 100
)

type Config struct {
	QueueName string
	MaxRetry  int
	Timeout   time.Duration
	Retention time.Duration
}

// SyncPayload is the asynq task payload a transfer worker consumes.
type SyncPayload struct {
	Request     shared.SyncRequest `json:"request"`
	SubmittedAt int64              `json:"submitted_at"`
}

// Transport runs the job side of a session over asynq. Sync requests become
// tasks; job state comes from the asynq inspector overlaid with the progress
// records a worker keeps in redis.
type Transport struct {
	client    *asynq.Client
	inspector *asynq.Inspector
	redis     *redis.Client
	config    Config
	now       func() time.Time
	logger    *logger.Logger
}

func NewTransport(redisOpt asynq.RedisClientOpt, redisClient *redis.Client, config Config) *Transport {
	if config.QueueName == "" {
		config.QueueName = "default"
	}
	if config.Retention <= 0 {
		config.Retention = DefaultRetention
	}

	return &Transport{
		client:    asynq.NewClient(redisOpt),
		inspector: asynq.NewInspector(redisOpt),
		redis:     redisClient,
		config:    config,
		now:       time.Now,
		logger:    logger.NewDefault().With("queue"),
	}
}

func (t *Transport) Close() {
	_ = t.client.Close()
	_ = t.inspector.Close()
}

func (t *Transport) SubmitSync(ctx context.Context, req shared.SyncRequest) (string, error) {
	if req.SourcePath == "" {
		return "", fmt.Errorf("source path is required")
	}
	if req.RemoteID == "" {
		return "", fmt.Errorf("remote is required")
	}
	if !req.UseParallelism {
		req.PerformanceHint = ""
	}

	payload := SyncPayload{Request: req, SubmittedAt: t.now().Unix()}
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}

	task := asynq.NewTask(shared.TaskTypeSyncTransfer, payloadBytes)
	info, err := t.client.EnqueueContext(
		ctx,
		task,
		asynq.TaskID(uuid.NewString()),
		asynq.Queue(t.config.QueueName),
		asynq.MaxRetry(t.config.MaxRetry),
		asynq.Timeout(t.config.Timeout),
		asynq.Retention(t.config.Retention),
	)
	if err != nil {
		return "", fmt.Errorf("enqueue task: %w", err)
	}

	t.logger.Info("sync task enqueued", map[string]any{
		"task_id": info.ID,
		"queue":   info.Queue,
		"source":  req.SourcePath,
		"remote":  req.RemoteID,
	})
	return info.ID, nil
}

func (t *Transport) JobStatus(ctx context.Context, jobID string) (*shared.JobStatus, error) {
	rec, err := t.progress(ctx, jobID)
	if err != nil {
		return nil, err
	}

	info, err := t.inspector.GetTaskInfo(t.config.QueueName, jobID)
	if err != nil {
		if !isTaskNotFound(err) {
			return nil, fmt.Errorf("inspect task %s: %w", jobID, err)
		}
		// Tasks past their retention are gone from asynq; the worker's record
		// still has the final state.
		if rec == nil || rec.Status == "" {
			return nil, fmt.Errorf("job %s: %w", jobID, shared.ErrNotFound)
		}
		status := statusFromRecord(jobID, *rec)
		return &status, nil
	}

	status := BuildStatus(info, rec)
	return &status, nil
}

func (t *Transport) ListJobs(ctx context.Context) ([]shared.JobStatus, error) {
	listers := []func(string, ...asynq.ListOption) ([]*asynq.TaskInfo, error){
		t.inspector.ListPendingTasks,
		t.inspector.ListScheduledTasks,
		t.inspector.ListActiveTasks,
		t.inspector.ListRetryTasks,
		t.inspector.ListArchivedTasks,
		t.inspector.ListCompletedTasks,
	}

	var infos []*asynq.TaskInfo
	for _, list := range listers {
		page, err := list(t.config.QueueName, asynq.PageSize(listPageSize))
		if err != nil {
			if errors.Is(err, asynq.ErrQueueNotFound) {
				return []shared.JobStatus{}, nil
			}
			return nil, fmt.Errorf("list tasks: %w", err)
		}
		for _, info := range page {
			if info.Type == shared.TaskTypeSyncTransfer {
				infos = append(infos, info)
			}
		}
	}

	records, err := t.progressMany(ctx, infos)
	if err != nil {
		return nil, err
	}

	jobs := make([]shared.JobStatus, 0, len(infos))
	for i, info := range infos {
		jobs = append(jobs, BuildStatus(info, records[i]))
	}
	sortJobs(jobs)
	return jobs, nil
}

// DeleteJob drops a finished job and its records. Jobs still queued or
// running are refused.
func (t *Transport) DeleteJob(ctx context.Context, jobID string) error {
	info, err := t.inspector.GetTaskInfo(t.config.QueueName, jobID)
	switch {
	case err == nil:
		if !isTerminalTask(info.State) {
			return fmt.Errorf("can only delete completed or failed jobs")
		}
		if err := t.inspector.DeleteTask(t.config.QueueName, jobID); err != nil && !isTaskNotFound(err) {
			return fmt.Errorf("delete task %s: %w", jobID, err)
		}
	case isTaskNotFound(err):
		rec, recErr := t.progress(ctx, jobID)
		if recErr != nil {
			return recErr
		}
		if rec == nil {
			return fmt.Errorf("job %s: %w", jobID, shared.ErrNotFound)
		}
	default:
		return fmt.Errorf("inspect task %s: %w", jobID, err)
	}

	if err := t.redis.Del(ctx, progressKeyPrefix+jobID, logKeyPrefix+jobID).Err(); err != nil {
		return fmt.Errorf("delete job records %s: %w", jobID, err)
	}

	t.logger.Info("job deleted", map[string]any{"job_id": jobID})
	return nil
}

func (t *Transport) JobLog(ctx context.Context, jobID string) (string, error) {
	content, err := t.redis.Get(ctx, logKeyPrefix+jobID).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", fmt.Errorf("log of job %s: %w", jobID, shared.ErrNotFound)
		}
		return "", fmt.Errorf("read log of job %s: %w", jobID, err)
	}
	return content, nil
}

func (t *Transport) progress(ctx context.Context, jobID string) (*ProgressRecord, error) {
	raw, err := t.redis.Get(ctx, progressKeyPrefix+jobID).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("read progress of job %s: %w", jobID, err)
	}

	var rec ProgressRecord
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return nil, fmt.Errorf("failed to unmarshal progress of job %s: %w", jobID, err)
	}
	return &rec, nil
}

func (t *Transport) progressMany(ctx context.Context, infos []*asynq.TaskInfo) ([]*ProgressRecord, error) {
	records := make([]*ProgressRecord, len(infos))
	if len(infos) == 0 {
		return records, nil
	}

	keys := make([]string, len(infos))
	for i, info := range infos {
		keys[i] = progressKeyPrefix + info.ID
	}

	values, err := t.redis.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("read progress records: %w", err)
	}

	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			continue
		}
		var rec ProgressRecord
		if err := json.Unmarshal([]byte(raw), &rec); err != nil {
			t.logger.Warn("skipping malformed progress record", map[string]any{
				"job_id": infos[i].ID,
				"error":  err.Error(),
			})
			continue
		}
		records[i] = &rec
	}
	return records, nil
}

// BuildStatus merges what asynq knows about a task with the worker's
// progress record, if any.
func BuildStatus(info *asynq.TaskInfo, rec *ProgressRecord) shared.JobStatus {
	status := shared.JobStatus{
		ID:    info.ID,
		State: MapState(info.State),
	}

	var payload SyncPayload
	if err := json.Unmarshal(info.Payload, &payload); err == nil {
		status.SourceName = path.Base(payload.Request.SourcePath)
		if payload.SubmittedAt > 0 {
			status.StartTime = time.Unix(payload.SubmittedAt, 0)
		}
	}

	if rec != nil {
		applyRecord(&status, *rec)
		if rec.Status != "" && status.State == shared.JobStateRunning {
			status.State = shared.JobState(rec.Status)
		}
	}

	switch info.State {
	case asynq.TaskStateCompleted:
		status.ProgressPercent = 100
		if status.EndTime == nil && !info.CompletedAt.IsZero() {
			end := info.CompletedAt
			status.EndTime = &end
		}
	case asynq.TaskStateArchived:
		if info.LastErr != "" {
			status.State = shared.JobState("Failed: " + info.LastErr)
		}
		if status.EndTime == nil && !info.LastFailedAt.IsZero() {
			end := info.LastFailedAt
			status.EndTime = &end
		}
	}

	return status
}

// MapState maps an asynq task state onto the job lifecycle. Archived tasks
// exhausted their retries.
func MapState(state asynq.TaskState) shared.JobState {
	switch state {
	case asynq.TaskStateActive:
		return shared.JobStateRunning
	case asynq.TaskStateCompleted:
		return shared.JobStateCompleted
	case asynq.TaskStateArchived:
		return shared.JobStateFailed
	default:
		return shared.JobStateStarting
	}
}

func isTerminalTask(state asynq.TaskState) bool {
	return state == asynq.TaskStateCompleted || state == asynq.TaskStateArchived
}

func isTaskNotFound(err error) bool {
	return errors.Is(err, asynq.ErrTaskNotFound) || errors.Is(err, asynq.ErrQueueNotFound)
}

// sortJobs orders newest first, matching the HTTP backend.
func sortJobs(jobs []shared.JobStatus) {
	sort.SliceStable(jobs, func(i, j int) bool {
		if !jobs[i].StartTime.Equal(jobs[j].StartTime) {
			return jobs[i].StartTime.After(jobs[j].StartTime)
		}
		return jobs[i].ID > jobs[j].ID
	})
}
