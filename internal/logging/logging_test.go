package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"Warn", slog.LevelWarn},
		{"", slog.LevelWarn},
		{"error", slog.LevelError},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseLevel(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}

	_, err := ParseLevel("verbose")
	assert.Error(t, err)
}

func TestSetupJSON(t *testing.T) {
	var buf bytes.Buffer
	logger, err := Setup(&buf, "info", "json")
	require.NoError(t, err)

	logger.Debug("hidden")
	logger.Info("skipped site", "file", "A.java", "position", "3:9")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)

	var record map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &record))
	assert.Equal(t, "skipped site", record["msg"])
	assert.Equal(t, "A.java", record["file"])
}

func TestSetupText(t *testing.T) {
	var buf bytes.Buffer
	logger, err := Setup(&buf, "warn", "text")
	require.NoError(t, err)

	logger.Info("hidden")
	logger.Warn("visible")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "msg=visible")
}

func TestSetupRejectsUnknownFormat(t *testing.T) {
	_, err := Setup(&bytes.Buffer{}, "info", "xml")
	assert.Error(t, err)

	_, err = Setup(&bytes.Buffer{}, "loud", "text")
	assert.Error(t, err)
}

func TestDiscard(t *testing.T) {
	assert.NotPanics(t, func() { Discard().Error("dropped") })
}
