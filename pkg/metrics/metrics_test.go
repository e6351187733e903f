package metrics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"syncdeck/pkg/shared"
)

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		bytes uint64
		want  string
	}{
		{0, "0 Bytes"},
		{1, "1 Bytes"},
		{1023, "1023 Bytes"},
		{1024, "1 KB"},
		{1536, "2 KB"},
		{5*1024*1024 + 600*1024, "6 MB"},
		{1 << 30, "1 GB"},
		{3 * (1 << 29), "1.5 GB"},
		{1<<30 + 1<<20*51, "1 GB"},
		{5 * (1 << 40), "5 TB"},
		{1 << 50, "1024 TB"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatBytes(tt.bytes))
		})
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		seconds int64
		want    string
	}{
		{0, "0s"},
		{45, "45s"},
		{60, "1m"},
		{125, "2m 5s"},
		{3599, "59m 59s"},
		{3600, "1h"},
		{3700, "1h 1m"},
		{7322, "2h 2m"},
		{-5, "0s"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatDuration(tt.seconds))
		})
	}
}

func TestDeriveETA(t *testing.T) {
	start := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	now := start.Add(100*time.Second + 400*time.Millisecond)

	m := Derive(shared.JobStatus{
		State:           shared.JobStateRunning,
		ProgressPercent: 50,
		StartTime:       start,
	}, now)

	assert.Equal(t, int64(100), m.ElapsedSeconds)
	require.NotNil(t, m.RemainingSeconds)
	assert.Equal(t, int64(100), *m.RemainingSeconds)
	assert.Equal(t, "1m 40s", m.Remaining)
	assert.Equal(t, "1m 40s", m.Elapsed)
}

func TestDeriveNoETA(t *testing.T) {
	start := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	now := start.Add(100 * time.Second)

	tests := []struct {
		name   string
		status shared.JobStatus
	}{
		{"zero progress", shared.JobStatus{State: shared.JobStateRunning, ProgressPercent: 0, StartTime: start}},
		{"starting", shared.JobStatus{State: shared.JobStateStarting, ProgressPercent: 10, StartTime: start}},
		{"completed", shared.JobStatus{State: shared.JobStateCompleted, ProgressPercent: 100, StartTime: start}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := Derive(tt.status, now)
			assert.Nil(t, m.RemainingSeconds)
			assert.Empty(t, m.Remaining)
			assert.Equal(t, int64(100), m.ElapsedSeconds)
		})
	}
}

func TestDeriveFinishedRemainingIsZero(t *testing.T) {
	start := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	m := Derive(shared.JobStatus{State: shared.JobStateRunning, ProgressPercent: 100, StartTime: start}, start.Add(30*time.Second))

	require.NotNil(t, m.RemainingSeconds)
	assert.Equal(t, int64(0), *m.RemainingSeconds)
}

func TestDeriveFormatsBytes(t *testing.T) {
	m := Derive(shared.JobStatus{TransferredBytes: 1536, TotalBytes: 3 * (1 << 29)}, time.Now())

	assert.Equal(t, "2 KB", m.Transferred)
	assert.Equal(t, "1.5 GB", m.Total)
	assert.Equal(t, int64(0), m.ElapsedSeconds)
}

func TestSuggestPerformanceHint(t *testing.T) {
	tests := []struct {
		path string
		hint string
	}{
		{"/mnt/home/Holiday.MKV", "32M"},
		{"/mnt/home/my-video-folder", "32M"},
		{"/mnt/home/ubuntu.iso", "64M"},
		{"/mnt/home/backup.tar.gz", "64M"},
		{"/mnt/home/notes.txt", DefaultPerformanceHint},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			s := SuggestPerformanceHint(tt.path)
			assert.Equal(t, tt.hint, s.Hint)
			if tt.hint == DefaultPerformanceHint {
				assert.Empty(t, s.Reason)
			} else {
				assert.NotEmpty(t, s.Reason)
			}
		})
	}
}
