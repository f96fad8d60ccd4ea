package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func logLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	return entry
}

func TestJSONOutput(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: "info", Format: "json", Output: &buf})

	log.Info("scan completed", "scan_id", "abc", "findings", 3)

	entry := logLine(t, &buf)
	assert.Equal(t, "scan completed", entry["msg"])
	assert.Equal(t, "INFO", entry["level"])
	assert.Equal(t, "abc", entry["scan_id"])
	assert.Equal(t, float64(3), entry["findings"])
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: "warn", Format: "json", Output: &buf})

	log.Info("ignored")
	assert.Zero(t, buf.Len())

	log.Warn("kept")
	assert.NotZero(t, buf.Len())
}

func TestSensitiveAttrsRedacted(t *testing.T) {
	tests := []struct {
		name string
		key  string
	}{
		{"exact match", "password"},
		{"exact match api key", "api_key"},
		{"partial match", "jwt_secret"},
		{"partial match stripe", "stripe_key_live"},
		{"case insensitive", "Authorization"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			log := New(Config{Level: "info", Format: "json", Output: &buf})

			log.Info("event", tt.key, "hunter2")

			entry := logLine(t, &buf)
			assert.Equal(t, "[REDACTED]", entry[tt.key])
			assert.NotContains(t, buf.String(), "hunter2")
		})
	}
}

func TestBenignAttrsUntouched(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: "info", Format: "json", Output: &buf})

	log.Info("event", "project_name", "my-app")

	entry := logLine(t, &buf)
	assert.Equal(t, "my-app", entry["project_name"])
}

func TestWithContext(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: "info", Format: "json", Output: &buf})

	ctx := context.WithValue(context.Background(), ContextKeyRequestID, "req-1")
	ctx = context.WithValue(ctx, ContextKeyUserID, "user-9")

	log.WithContext(ctx).Info("handled")

	entry := logLine(t, &buf)
	assert.Equal(t, "req-1", entry["request_id"])
	assert.Equal(t, "user-9", entry["user_id"])
}

func TestWithContextEmpty(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: "info", Format: "json", Output: &buf})

	log.WithContext(context.Background()).Info("handled")

	entry := logLine(t, &buf)
	assert.NotContains(t, entry, "request_id")
	assert.NotContains(t, entry, "user_id")
}

func TestWithError(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: "info", Format: "json", Output: &buf})

	log.WithError(errors.New("boom")).Error("scan failed")

	entry := logLine(t, &buf)
	assert.Equal(t, "boom", entry["error"])
}

func TestTextFormat(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: "debug", Format: "text", Output: &buf})

	log.Debug("starting")
	assert.Contains(t, buf.String(), "msg=starting")
}

func TestNopDiscards(t *testing.T) {
	assert.NotPanics(t, func() {
		NewNop().Info("dropped")
	})
}
