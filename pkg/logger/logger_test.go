package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decode(t *testing.T, buf *bytes.Buffer) map[string]interface{} {
	t.Helper()
	var line map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line), buf.String())
	return line
}

func TestWithBotScopesFields(t *testing.T) {
	zerolog.SetGlobalLevel(zerolog.DebugLevel)
	var buf bytes.Buffer

	NewWriter(&buf).WithBot("bot-1", "run-1").WithField("event", "started").Info("Bot event")

	line := decode(t, &buf)
	assert.Equal(t, "bot-1", line["bot_id"])
	assert.Equal(t, "run-1", line["run_id"])
	assert.Equal(t, "started", line["event"])
	assert.Equal(t, "info", line["level"])
	assert.Equal(t, "Bot event", line["message"])
}

func TestWithBotOmitsEmptyRun(t *testing.T) {
	zerolog.SetGlobalLevel(zerolog.DebugLevel)
	var buf bytes.Buffer

	NewWriter(&buf).WithBot("bot-1", "").Warn("no run")

	line := decode(t, &buf)
	assert.Equal(t, "bot-1", line["bot_id"])
	assert.NotContains(t, line, "run_id")
}

func TestErrorCarriesCause(t *testing.T) {
	zerolog.SetGlobalLevel(zerolog.DebugLevel)
	var buf bytes.Buffer

	NewWriter(&buf).Error("Failed to append bot log", errors.New("boom"))

	line := decode(t, &buf)
	assert.Equal(t, "error", line["level"])
	assert.Equal(t, "boom", line["error"])
}

func TestParseLogLevel(t *testing.T) {
	assert.Equal(t, zerolog.DebugLevel, parseLogLevel("debug"))
	assert.Equal(t, zerolog.WarnLevel, parseLogLevel("warn"))
	assert.Equal(t, zerolog.InfoLevel, parseLogLevel("verbose"))
}

func TestLevelFiltersDebug(t *testing.T) {
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	t.Cleanup(func() { zerolog.SetGlobalLevel(zerolog.DebugLevel) })
	var buf bytes.Buffer

	NewWriter(&buf).Debug("hidden")
	assert.Zero(t, buf.Len())
}
