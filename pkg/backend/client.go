package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-retryablehttp"

	"syncdeck/pkg/logger"
	"syncdeck/pkg/pathutil"
	"syncdeck/pkg/shared"
)

const requestIDHeader = "X-Request-ID"

type Config struct {
	BaseURL      string
	Timeout      time.Duration
	RetryMax     int
	RetryWaitMin time.Duration
	RetryWaitMax time.Duration
}

// envelope is the {success, data, error} wrapper every API response uses.
type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

type fileEntryWire struct {
	Name     string  `json:"name"`
	Path     string  `json:"path"`
	IsDir    bool    `json:"is_dir"`
	Size     *uint64 `json:"size"`
	Modified *string `json:"modified"`
}

type jobStatusWire struct {
	ID          string  `json:"id"`
	Progress    float64 `json:"progress"`
	Status      string  `json:"status"`
	Transferred uint64  `json:"transferred"`
	Total       uint64  `json:"total"`
	SourceName  string  `json:"source_name"`
	StartTime   int64   `json:"start_time"`
	EndTime     *int64  `json:"end_time"`
}

type syncRequestWire struct {
	SourcePath  string  `json:"source_path"`
	RemoteName  string  `json:"remote_name"`
	RemotePath  string  `json:"remote_path"`
	UseChunking bool    `json:"use_chunking"`
	ChunkSize   *string `json:"chunk_size"`
}

// Client talks to the sync GUI backend over HTTP. POST requests go through
// oneShot, which never retries.
type Client struct {
	httpClient *http.Client
	oneShot    *http.Client
	baseURL    string
	logger     *logger.Logger
}

// retryLogger adapts our logger to retryablehttp.LeveledLogger.
type retryLogger struct {
	logger *logger.Logger
}

func (l *retryLogger) Error(msg string, keysAndValues ...interface{}) {
	l.logger.Error(msg, nil, kvFields(keysAndValues))
}

func (l *retryLogger) Warn(msg string, keysAndValues ...interface{}) {
	l.logger.Warn(msg, kvFields(keysAndValues))
}

func (l *retryLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug(msg, kvFields(keysAndValues))
}

func (l *retryLogger) Debug(msg string, keysAndValues ...interface{}) {
	l.logger.Debug(msg, kvFields(keysAndValues))
}

func kvFields(keysAndValues []interface{}) map[string]any {
	fields := make(map[string]any, len(keysAndValues)/2)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		fields[fmt.Sprint(keysAndValues[i])] = keysAndValues[i+1]
	}
	return fields
}

func NewClient(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, &Error{Type: ErrorTypeInvalidInput, Message: "base url is required"}
	}
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, &Error{Type: ErrorTypeInvalidInput, Message: "invalid base url", Cause: err}
	}

	log := logger.NewDefault().With("backend")

	retryClient := newRetryClient(cfg, log)
	retryClient.RetryMax = cfg.RetryMax

	// A resent POST /api/sync would start a second transfer.
	oneShotClient := newRetryClient(cfg, log)
	oneShotClient.RetryMax = 0

	return &Client{
		httpClient: retryClient.StandardClient(),
		oneShot:    oneShotClient.StandardClient(),
		baseURL:    strings.TrimSuffix(cfg.BaseURL, "/"),
		logger:     log,
	}, nil
}

func newRetryClient(cfg Config, log *logger.Logger) *retryablehttp.Client {
	client := retryablehttp.NewClient()
	client.HTTPClient.Timeout = cfg.Timeout
	if cfg.RetryWaitMin > 0 {
		client.RetryWaitMin = cfg.RetryWaitMin
	}
	if cfg.RetryWaitMax > 0 {
		client.RetryWaitMax = cfg.RetryWaitMax
	}
	client.Logger = &retryLogger{logger: log}
	// Hand the last response back so a failed envelope still decodes.
	client.ErrorHandler = retryablehttp.PassthroughErrorHandler
	return client
}

func (c *Client) ListLocal(ctx context.Context, path string) ([]shared.DirectoryEntry, error) {
	q := url.Values{}
	q.Set("path", path)
	return c.listFiles(ctx, "/api/files/local?"+q.Encode())
}

func (c *Client) ListRemote(ctx context.Context, remoteID, path string) ([]shared.DirectoryEntry, error) {
	if remoteID == "" {
		return nil, &Error{Type: ErrorTypeInvalidInput, Message: "remote name is required"}
	}
	q := url.Values{}
	q.Set("remote", remoteID)
	q.Set("path", path)
	return c.listFiles(ctx, "/api/files/remote?"+q.Encode())
}

func (c *Client) listFiles(ctx context.Context, endpoint string) ([]shared.DirectoryEntry, error) {
	var wire []fileEntryWire
	if err := c.do(ctx, http.MethodGet, endpoint, nil, &wire); err != nil {
		return nil, err
	}

	entries := make([]shared.DirectoryEntry, 0, len(wire))
	for _, w := range wire {
		entry := shared.DirectoryEntry{
			Name:        w.Name,
			Path:        w.Path,
			IsDirectory: w.IsDir,
			Size:        w.Size,
		}
		if entry.Path == "" {
			entry.Path = pathutil.Join("/", w.Name)
		}
		if w.Modified != nil {
			entry.Modified = *w.Modified
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

func (c *Client) SubmitSync(ctx context.Context, req shared.SyncRequest) (string, error) {
	wire := syncRequestWire{
		SourcePath:  req.SourcePath,
		RemoteName:  req.RemoteID,
		RemotePath:  req.DestPath,
		UseChunking: req.UseParallelism,
	}
	if req.UseParallelism && req.PerformanceHint != "" {
		hint := req.PerformanceHint
		wire.ChunkSize = &hint
	}

	var jobID string
	if err := c.do(ctx, http.MethodPost, "/api/sync", wire, &jobID); err != nil {
		return "", err
	}
	if jobID == "" {
		return "", &Error{Type: ErrorTypeDecode, Message: "backend returned an empty job id"}
	}

	c.logger.Info("sync job submitted", map[string]any{
		"job_id":      jobID,
		"source_path": req.SourcePath,
		"remote":      req.RemoteID,
		"remote_path": req.DestPath,
	})
	return jobID, nil
}

func (c *Client) JobStatus(ctx context.Context, jobID string) (*shared.JobStatus, error) {
	var wire jobStatusWire
	if err := c.do(ctx, http.MethodGet, "/api/sync/"+url.PathEscape(jobID), nil, &wire); err != nil {
		return nil, err
	}
	status := wire.toStatus()
	return &status, nil
}

func (c *Client) ListJobs(ctx context.Context) ([]shared.JobStatus, error) {
	var wire []jobStatusWire
	if err := c.do(ctx, http.MethodGet, "/api/sync", nil, &wire); err != nil {
		return nil, err
	}

	jobs := make([]shared.JobStatus, 0, len(wire))
	for _, w := range wire {
		jobs = append(jobs, w.toStatus())
	}
	return jobs, nil
}

func (c *Client) DeleteJob(ctx context.Context, jobID string) error {
	return c.do(ctx, http.MethodDelete, "/api/sync/"+url.PathEscape(jobID), nil, nil)
}

func (c *Client) JobLog(ctx context.Context, jobID string) (string, error) {
	var content string
	if err := c.do(ctx, http.MethodGet, "/api/sync/"+url.PathEscape(jobID)+"/log", nil, &content); err != nil {
		return "", err
	}
	return content, nil
}

func (c *Client) ListRemotes(ctx context.Context) ([]shared.RemoteConfig, error) {
	var remotes []shared.RemoteConfig
	if err := c.do(ctx, http.MethodGet, "/api/configs", nil, &remotes); err != nil {
		return nil, err
	}
	return remotes, nil
}

func (c *Client) DeleteRemote(ctx context.Context, name string) error {
	return c.do(ctx, http.MethodDelete, "/api/configs/"+url.PathEscape(name), nil, nil)
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return &Error{Type: ErrorTypeInvalidInput, Message: "marshal request", Cause: err}
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, reader)
	if err != nil {
		return &Error{Type: ErrorTypeInvalidInput, Message: "build request", Cause: err}
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	requestID := uuid.NewString()
	req.Header.Set(requestIDHeader, requestID)

	client := c.httpClient
	if method == http.MethodPost {
		client = c.oneShot
	}

	resp, err := client.Do(req)
	if err != nil {
		return &Error{Type: ErrorTypeNetwork, Message: fmt.Sprintf("%s %s", method, endpoint), Cause: err}
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return &Error{Type: ErrorTypeNetwork, Message: "read response body", StatusCode: resp.StatusCode, Cause: err}
	}

	c.logger.Debug("backend call", map[string]any{
		"method":     method,
		"endpoint":   endpoint,
		"status":     resp.StatusCode,
		"request_id": requestID,
	})

	if resp.StatusCode == http.StatusNotFound {
		return &Error{Type: ErrorTypeNotFound, Message: endpoint, StatusCode: resp.StatusCode}
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		if resp.StatusCode >= 300 {
			return &Error{Type: ErrorTypeBackend, Message: http.StatusText(resp.StatusCode), StatusCode: resp.StatusCode}
		}
		return &Error{Type: ErrorTypeDecode, Message: "decode response envelope", StatusCode: resp.StatusCode, Cause: err}
	}

	if !env.Success {
		errType := ErrorTypeBackend
		if isNotFoundMessage(env.Error) {
			errType = ErrorTypeNotFound
		}
		return &Error{Type: errType, Message: env.Error, StatusCode: resp.StatusCode}
	}
	if resp.StatusCode >= 300 {
		return &Error{Type: ErrorTypeBackend, Message: http.StatusText(resp.StatusCode), StatusCode: resp.StatusCode}
	}

	if out == nil || len(env.Data) == 0 || string(env.Data) == "null" {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return &Error{Type: ErrorTypeDecode, Message: "decode response data", StatusCode: resp.StatusCode, Cause: err}
	}
	return nil
}

// The backend reports missing jobs and logs inside a failed envelope with a
// 200 status, e.g. "Job not found" or "Log file not found: ...".
func isNotFoundMessage(msg string) bool {
	return strings.Contains(strings.ToLower(msg), "not found")
}

func (w jobStatusWire) toStatus() shared.JobStatus {
	status := shared.JobStatus{
		ID:               w.ID,
		State:            shared.JobState(w.Status),
		ProgressPercent:  clampPercent(w.Progress),
		TransferredBytes: w.Transferred,
		TotalBytes:       w.Total,
		SourceName:       w.SourceName,
	}
	if w.StartTime > 0 {
		status.StartTime = time.Unix(w.StartTime, 0)
	}
	if w.EndTime != nil && *w.EndTime > 0 {
		end := time.Unix(*w.EndTime, 0)
		status.EndTime = &end
	}
	return status
}

func clampPercent(p float64) float64 {
	switch {
	case p < 0:
		return 0
	case p > 100:
		return 100
	default:
		return p
	}
}
