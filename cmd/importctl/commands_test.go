package main

import (
	"bytes"
	"flag"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJobIDArg(t *testing.T) {
	tests := []struct {
		name   string
		args   []string
		want   string
		wantOK bool
	}{
		{name: "valid id", args: []string{"0b7c5a8e-3c1d-4f7a-9e2b-6d1f0a9c4e55"}, want: "0b7c5a8e-3c1d-4f7a-9e2b-6d1f0a9c4e55", wantOK: true},
		{name: "upper case id is normalized", args: []string{"0B7C5A8E-3C1D-4F7A-9E2B-6D1F0A9C4E55"}, want: "0b7c5a8e-3c1d-4f7a-9e2b-6d1f0a9c4e55", wantOK: true},
		{name: "missing id", args: nil},
		{name: "too many ids", args: []string{"a", "b"}},
		{name: "not a uuid", args: []string{"job-1"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := flag.NewFlagSet("process", flag.ContinueOnError)
			require.NoError(t, f.Parse(tt.args))

			got, ok := jobIDArg(f)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPrintJob(t *testing.T) {
	completed := time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)
	message := "line 3: User (id=7) not found."

	var buf bytes.Buffer
	printJob(&buf, jobView{
		JobID:       "job-1",
		FilePath:    "job-1.csv",
		Status:      "FAILED",
		Attempts:    1,
		CompletedAt: &completed,
		Errors:      &message,
	})

	out := buf.String()
	assert.Contains(t, out, "status:    FAILED")
	assert.Contains(t, out, "completed: 2026-10-18T12:00:00Z")
	assert.Contains(t, out, "errors:    line 3: User (id=7) not found.")

	buf.Reset()
	printJob(&buf, jobView{JobID: "job-2", Status: "NEW"})
	assert.NotContains(t, buf.String(), "completed:")
	assert.NotContains(t, buf.String(), "errors:")
}

func TestSubmitFlags(t *testing.T) {
	t.Setenv("WORKER_SERVICE_CONFIG_PATH", "")

	cmd := &submitCmd{}
	f := flag.NewFlagSet("submit", flag.ContinueOnError)
	cmd.SetFlags(f)

	require.NoError(t, f.Parse([]string{"-file", "orders.csv", "-user", "7"}))
	assert.Equal(t, "orders.csv", cmd.file)
	assert.Equal(t, int64(7), cmd.userID)
	assert.Equal(t, "configs/worker-service/config.yaml", cmd.configPath)
}
