package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eventreg/internal/platform/config"
)

func TestNewHandlerJSON(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(NewHandler(&buf, config.Log{Format: "json", Level: slog.LevelInfo}))

	log.Debug("hidden")
	log.Info("registration accepted", "sequence", 3)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "registration accepted", entry["msg"])
	assert.EqualValues(t, 3, entry["sequence"])
}

func TestNewHandlerText(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(NewHandler(&buf, config.Log{Format: "text", Level: slog.LevelDebug}))

	log.Debug("visible")
	assert.Contains(t, buf.String(), "visible")
}
