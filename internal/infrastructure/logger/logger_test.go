package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jan-server/services/chat-realtime-api/internal/config"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zerolog.InfoLevel, parseLevel(""))
	assert.Equal(t, zerolog.DebugLevel, parseLevel("DEBUG"))
	assert.Equal(t, zerolog.InfoLevel, parseLevel("loud"))
}

func TestJSONOutsideDevelopment(t *testing.T) {
	var buf bytes.Buffer
	log := newWithWriter(&config.Config{ServiceName: "chat-realtime-api", Environment: "production", LogLevel: "warn"}, &buf)

	log.Info().Msg("dropped")
	log.Warn().Str("component", "test").Msg("kept")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "kept", entry["message"])
	assert.Equal(t, "chat-realtime-api", entry["service"])
	assert.Equal(t, "production", entry["environment"])
}
