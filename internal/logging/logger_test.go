package logging

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLoggerDefaultConfig(t *testing.T) {
	logger := NewLogger(nil)
	require.NotNil(t, logger)
	assert.Equal(t, LevelInfo, logger.level)
}

func TestLoggerLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&Config{Level: LevelWarn, Output: &buf})

	logger.Debug("should not appear")
	logger.Info("should not appear either")
	assert.Empty(t, buf.String())

	logger.Warn("visible warning")
	assert.Contains(t, buf.String(), "[WARN] visible warning")
}

func TestLoggerArgFormatting(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&Config{Level: LevelDebug, Output: &buf})

	logger.Debug("queueing op", "opcode", "pread", "tag", 3)
	assert.Contains(t, buf.String(), "opcode=pread tag=3")
}

func TestLoggerPrintfCompat(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&Config{Level: LevelInfo, Output: &buf})

	logger.Printf("submitted %d ops", 5)
	assert.Contains(t, buf.String(), "[INFO] submitted 5 ops")
}

func TestDefaultAndSetDefault(t *testing.T) {
	var buf bytes.Buffer
	SetDefault(NewLogger(&Config{Level: LevelDebug, Output: &buf}))
	defer SetDefault(NewLogger(nil))

	Debug("hello", "k", "v")
	assert.Contains(t, buf.String(), "hello k=v")
}
