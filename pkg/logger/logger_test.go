package logger

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLoggerWritesLogfmt(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf).With("browser")

	l.Info("listing loaded", map[string]any{"remote": "nas", "path": "/media"})

	line := buf.String()
	assert.Contains(t, line, "level=info")
	assert.Contains(t, line, "component=browser")
	assert.Contains(t, line, `msg="listing loaded"`)
	assert.True(t, strings.Index(line, "path=/media") < strings.Index(line, "remote=nas"))
}

func TestLoggerLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf)
	l.SetLevel(LevelWarn)

	l.Debug("hidden", nil)
	l.Info("hidden", nil)
	assert.Empty(t, buf.String())

	l.Error("poll failed", errors.New("connection refused"), map[string]any{"job_id": "j1"})
	assert.Contains(t, buf.String(), `error="connection refused"`)
	assert.Contains(t, buf.String(), "job_id=j1")
}

func TestErrorDoesNotMutateFields(t *testing.T) {
	var buf bytes.Buffer
	fields := map[string]any{"job_id": "j1"}

	New(&buf).Error("poll failed", errors.New("boom"), fields)

	assert.Len(t, fields, 1)
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, LevelWarn, ParseLevel("warn"))
	assert.Equal(t, LevelInfo, ParseLevel("bogus"))
}
