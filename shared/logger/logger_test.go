package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeLines(t *testing.T, output *bytes.Buffer) []map[string]any {
	t.Helper()

	var entries []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(output.String()), "\n") {
		if line == "" {
			continue
		}
		var entry map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &entry))
		entries = append(entries, entry)
	}
	return entries
}

func TestNew_JSONLevels(t *testing.T) {
	tests := []struct {
		name      string
		level     string
		wantLevel string
		wantMsgs  []string
	}{
		{name: "debug", level: "debug", wantLevel: "DEBUG", wantMsgs: []string{"debug", "info", "warn", "error"}},
		{name: "info", level: "info", wantLevel: "INFO", wantMsgs: []string{"info", "warn", "error"}},
		{name: "warn", level: "warn", wantLevel: "WARN", wantMsgs: []string{"warn", "error"}},
		{name: "error", level: "error", wantLevel: "ERROR", wantMsgs: []string{"error"}},
		{name: "upper case", level: "WARN", wantLevel: "WARN", wantMsgs: []string{"warn", "error"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			output := &bytes.Buffer{}
			logger, err := New(&Config{Level: tt.level, Format: "json", writer: output})
			require.NoError(t, err)

			logger.Debug("debug")
			logger.Info("info")
			logger.Warn("warn")
			logger.Error("error", slog.String("job_id", "job-1"))

			entries := decodeLines(t, output)
			require.Len(t, entries, len(tt.wantMsgs))

			msgs := make([]string, len(entries))
			for i, e := range entries {
				msgs[i] = e["msg"].(string)
			}
			assert.Equal(t, tt.wantMsgs, msgs)
			assert.Equal(t, tt.wantLevel, entries[0]["level"])
			assert.Equal(t, "job-1", entries[len(entries)-1]["job_id"])
		})
	}
}

func TestNew_Console(t *testing.T) {
	output := &bytes.Buffer{}
	logger, err := New(&Config{
		Level:      "info",
		Format:     "console",
		TimeFormat: time.RFC3339,
		writer:     output,
	})
	require.NoError(t, err)

	logger.Info("console test")

	// tint abbreviates levels
	assert.Contains(t, output.String(), "INF")
	assert.Contains(t, output.String(), "console test")
}

func TestNew_Source(t *testing.T) {
	output := &bytes.Buffer{}
	logger, err := New(&Config{Format: "json", EnableSource: true, writer: output})
	require.NoError(t, err)

	logger.Info("message with source")

	entries := decodeLines(t, output)
	require.Len(t, entries, 1)
	source, ok := entries[0]["source"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, source, "file")
	assert.Contains(t, source, "line")
}

func TestNew_FileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "worker.log")

	logger, err := New(&Config{Level: "info", Format: "json", Output: path})
	require.NoError(t, err)

	logger.Info("written to file", slog.String("job_id", "job-1"))
	require.NoError(t, logger.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"written to file"`)
	assert.Contains(t, string(data), `"job_id":"job-1"`)
}

func TestNewDefault(t *testing.T) {
	logger := NewDefault()
	require.NotNil(t, logger)
	assert.NotNil(t, logger.Logger)
	assert.NoError(t, logger.Close())
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		level    string
		expected slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{" error ", slog.LevelError},
		{"invalid", slog.LevelInfo},
		{"", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			assert.Equal(t, tt.expected, ParseLevel(tt.level))
		})
	}
}

func TestLogger_Derived(t *testing.T) {
	output := &bytes.Buffer{}
	logger, err := New(&Config{Format: "json", writer: output})
	require.NoError(t, err)

	logger.WithGroup("import").Info("grouped", slog.String("key", "value"))
	logger.WithAttrs(slog.String("worker_id", "w-1")).Info("with attrs")
	logger.Component("processor").Info("component")

	entries := decodeLines(t, output)
	require.Len(t, entries, 3)

	group, ok := entries[0]["import"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "value", group["key"])
	assert.Equal(t, "w-1", entries[1]["worker_id"])
	assert.Equal(t, "processor", entries[2]["component"])
}
