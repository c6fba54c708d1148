package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoggerAddsRunID(t *testing.T) {
	var buf bytes.Buffer
	logger := InitLogger(&buf, true)
	id := NewRunID()
	ctx := WithRunID(context.Background(), id)

	logger.InfoContext(ctx, "chunk done", "index", 3)

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, id, line["run_id"])
	assert.Equal(t, "chunk done", line["msg"])
	assert.NotContains(t, line, "trace_id")
}

func TestLoggerLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := InitLogger(&buf, false)
	logger.Info("hidden")
	assert.Empty(t, buf.String())
	logger.Warn("shown")
	assert.Contains(t, buf.String(), "shown")
}

func TestRunIDMissing(t *testing.T) {
	assert.Empty(t, RunID(context.Background()))
	assert.Len(t, NewRunID(), 26)
}
