package internal

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		in   string
		want LogLevel
	}{
		{"ERROR", LogLevelError},
		{"warn", LogLevelWarn},
		{"Warning", LogLevelWarn},
		{"INFO", LogLevelInfo},
		{"debug", LogLevelDebug},
		{"TRACE", LogLevelDebug},
		{"", LogLevelInfo},
		{"verbose", LogLevelInfo},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseLogLevel(tt.in))
		})
	}
}

func TestLoggerWithKeepsLevel(t *testing.T) {
	l := NewLogger(LogLevelWarn, "console")
	child := l.With("component", "test")

	assert.Equal(t, LogLevelWarn, child.GetLevel())
	assert.NotNil(t, child.Zap())
}
