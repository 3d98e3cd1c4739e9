package logging

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want zerolog.Level
	}{
		{"trace", zerolog.TraceLevel},
		{"DEBUG", zerolog.DebugLevel},
		{"info", zerolog.InfoLevel},
		{"Warn", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"bogus", zerolog.InfoLevel},
		{"", zerolog.InfoLevel},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, parseLevel(tt.in))
		})
	}
}

func TestNew_WritesToFile(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Options{Level: "debug", File: &buf})

	logger.Info().Str("component", "test").Msg("hello from test")

	out := buf.String()
	require.NotEmpty(t, out)
	assert.Contains(t, out, "hello from test")
	assert.Contains(t, out, "component")
}

func TestNew_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Options{Level: "warn", File: &buf})

	logger.Debug().Msg("should not appear")
	logger.Warn().Msg("should appear")

	out := buf.String()
	assert.NotContains(t, out, "should not appear")
	assert.Contains(t, out, "should appear")
}

func TestLogFilePath(t *testing.T) {
	start := time.Date(2025, 3, 14, 15, 9, 26, 0, time.UTC)
	path := LogFilePath("/var/log/lab", start)

	assert.True(t, strings.HasSuffix(path, "labserver.20250314_150926.log"))
	assert.True(t, strings.HasPrefix(path, "/var/log/lab"))
}
