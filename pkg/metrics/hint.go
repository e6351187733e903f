package metrics

import (
	"path"
	"strings"
)

const DefaultPerformanceHint = "8M"

// Suggestion is a chunk-size hint for a sync source and the reason shown to
// the user. Reason is empty for the default.
type Suggestion struct {
	Hint   string
	Reason string
}

// SuggestPerformanceHint picks a chunk size from the source file name:
// larger chunks for video and archives, the default otherwise.
func SuggestPerformanceHint(sourcePath string) Suggestion {
	name := strings.ToLower(path.Base(sourcePath))

	switch {
	case containsAny(name, "video", ".mp4", ".avi", ".mkv"):
		return Suggestion{Hint: "32M", Reason: "video file detected: 32M chunks recommended"}
	case containsAny(name, "iso", ".zip", ".tar"):
		return Suggestion{Hint: "64M", Reason: "large archive detected: 64M chunks recommended"}
	default:
		return Suggestion{Hint: DefaultPerformanceHint}
	}
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
