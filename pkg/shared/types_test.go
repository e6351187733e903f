package shared

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestJobStateIsTerminal(t *testing.T) {
	tests := []struct {
		state    JobState
		terminal bool
	}{
		{JobStateStarting, false},
		{JobStateRunning, false},
		{JobStateCompleted, true},
		{JobStateFailed, true},
		{"Error: Could not capture rclone output", true},
		{"rclone error: exit status 1", true},
		{"Failed to spawn rclone process: not found", true},
		{"Queued", true},
		{"Cancelled", true},
		{"Stopped", true},
		{"Completed successfully", true},
		{"running", true},
	}

	for _, tt := range tests {
		t.Run(string(tt.state), func(t *testing.T) {
			assert.Equal(t, tt.terminal, tt.state.IsTerminal())
		})
	}
}
