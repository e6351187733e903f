package metrics

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"syncdeck/pkg/shared"
)

var byteUnits = []string{"Bytes", "KB", "MB", "GB", "TB"}

// Metrics is what a progress view shows next to the raw snapshot.
type Metrics struct {
	ElapsedSeconds int64
	// RemainingSeconds is nil when no estimate can be made.
	RemainingSeconds *int64
	Transferred      string
	Total            string
	Elapsed          string
	Remaining        string
}

// Derive computes elapsed time and ETA for a snapshot at now.
func Derive(status shared.JobStatus, now time.Time) Metrics {
	elapsed := int64(0)
	if !status.StartTime.IsZero() {
		elapsed = int64(math.Floor(now.Sub(status.StartTime).Seconds()))
		if elapsed < 0 {
			elapsed = 0
		}
	}

	m := Metrics{
		ElapsedSeconds: elapsed,
		Transferred:    FormatBytes(status.TransferredBytes),
		Total:          FormatBytes(status.TotalBytes),
		Elapsed:        FormatDuration(elapsed),
	}

	if status.State == shared.JobStateRunning && status.ProgressPercent > 0 {
		estimatedTotal := float64(elapsed) / (status.ProgressPercent / 100)
		remaining := int64(math.Max(0, math.Round(estimatedTotal-float64(elapsed))))
		m.RemainingSeconds = &remaining
		m.Remaining = FormatDuration(remaining)
	}

	return m
}

// FormatBytes renders a size with base-1024 units. Sizes below GB are whole
// numbers; GB and TB keep one decimal.
func FormatBytes(bytes uint64) string {
	if bytes == 0 {
		return "0 Bytes"
	}

	// floor(log1024(bytes)) in integer steps; the float division drifts
	// below whole numbers on exact powers of 1024.
	i := 0
	for scaled := bytes; scaled >= 1024 && i < len(byteUnits)-1; scaled /= 1024 {
		i++
	}
	value := float64(bytes) / math.Pow(1024, float64(i))

	var num string
	if i >= 3 {
		num = strconv.FormatFloat(math.Round(value*10)/10, 'f', 1, 64)
		num = strings.TrimSuffix(num, ".0")
	} else {
		num = strconv.FormatFloat(math.Round(value), 'f', 0, 64)
	}
	return num + " " + byteUnits[i]
}

func FormatDuration(seconds int64) string {
	if seconds < 0 {
		seconds = 0
	}

	switch {
	case seconds < 60:
		return fmt.Sprintf("%ds", seconds)
	case seconds < 3600:
		m, s := seconds/60, seconds%60
		if s == 0 {
			return fmt.Sprintf("%dm", m)
		}
		return fmt.Sprintf("%dm %ds", m, s)
	default:
		h, m := seconds/3600, (seconds%3600)/60
		if m == 0 {
			return fmt.Sprintf("%dh", h)
		}
		return fmt.Sprintf("%dh %dm", h, m)
	}
}
