package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, slog.LevelInfo, FormatJSON)

	LogError(logger, "trip query failed", errors.New("boom"), slog.String("trip_id", "voe:1"))

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "ERROR", record["level"])
	assert.Equal(t, "trip query failed", record["msg"])
	assert.Equal(t, "boom", record["error"])
	assert.Equal(t, "voe:1", record["trip_id"])
}

func TestNew_TextLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, slog.LevelWarn, FormatText)

	logger.Info("hidden")
	logger.Warn("shown")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
}

func TestLogOperation_SkipsZeroDuration(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, slog.LevelInfo, FormatJSON)

	LogOperation(logger, "line done", slog.Duration("duration", 0), slog.Int("edges", 3))

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	_, hasDuration := record["duration"]
	assert.False(t, hasDuration)
	assert.EqualValues(t, 3, record["edges"])

	buf.Reset()
	LogOperation(logger, "line done", slog.Duration("duration", time.Second))
	assert.Contains(t, buf.String(), "duration")
}

func TestNilLoggerIsSafe(t *testing.T) {
	LogError(nil, "msg", errors.New("x"))
	LogOperation(nil, "msg")
}

func TestContextLogger(t *testing.T) {
	logger := Discard()
	ctx := WithLogger(context.Background(), logger)
	assert.Same(t, logger, FromContext(ctx))
	assert.NotNil(t, FromContext(context.Background()))
}
