package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]interface{} {
	t.Helper()
	var out []map[string]interface{}
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		entry := map[string]interface{}{}
		require.NoError(t, json.Unmarshal([]byte(line), &entry))
		out = append(out, entry)
	}
	return out
}

func TestZapLogger(t *testing.T) {
	t.Run("Level Filtering", func(t *testing.T) {
		var buf bytes.Buffer
		logger, err := NewZapLogger(Config{Level: WarnLevel, Format: "json", Output: &buf})
		require.NoError(t, err)

		logger.Info("dropped")
		logger.Warn("kept", String("document_id", "1"))

		entries := decodeLines(t, &buf)
		require.Len(t, entries, 1)
		assert.Equal(t, "kept", entries[0]["message"])
		assert.Equal(t, "1", entries[0]["document_id"])
	})

	t.Run("With Fields Are Not Shared", func(t *testing.T) {
		var buf bytes.Buffer
		logger, err := NewZapLogger(Config{Level: DebugLevel, Format: "json", Output: &buf})
		require.NoError(t, err)

		child := logger.With(String("component", "viewer"))
		child.Info("child")
		logger.Info("parent")

		entries := decodeLines(t, &buf)
		require.Len(t, entries, 2)
		assert.Equal(t, "viewer", entries[0]["component"])
		_, ok := entries[1]["component"]
		assert.False(t, ok)
	})

	t.Run("Context Correlation", func(t *testing.T) {
		var buf bytes.Buffer
		logger, err := NewZapLogger(Config{Level: DebugLevel, Format: "json", Output: &buf})
		require.NoError(t, err)

		ctx := WithRequestID(WithSessionID(context.Background(), "s-1"), "r-9")
		logger.WithContext(ctx).Error("failed", Err(errors.New("boom")))

		entries := decodeLines(t, &buf)
		require.Len(t, entries, 1)
		assert.Equal(t, "s-1", entries[0]["session_id"])
		assert.Equal(t, "r-9", entries[0]["request_id"])
		assert.Equal(t, "boom", entries[0]["error"])
	})
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, DebugLevel, ParseLevel("debug"))
	assert.Equal(t, WarnLevel, ParseLevel("warning"))
	assert.Equal(t, ErrorLevel, ParseLevel("error"))
	assert.Equal(t, InfoLevel, ParseLevel("nonsense"))
}
