package logging_test

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jrsteele09/zhancare-client/internal/logging"
)

func TestNew_JSONOutput(t *testing.T) {
	var buf bytes.Buffer
	l := logging.Component(logging.New(logging.Config{Level: "debug", Output: &buf}), "sessions")

	l.Debug().Str("key", "user").Msg("restored")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	require.Equal(t, "debug", entry["level"])
	require.Equal(t, "sessions", entry["component"])
	require.Equal(t, "restored", entry["message"])
}

func TestNew_LevelFallback(t *testing.T) {
	var buf bytes.Buffer
	l := logging.New(logging.Config{Level: "chatty", Output: &buf})

	l.Debug().Msg("hidden")
	require.Zero(t, buf.Len())

	l.Info().Msg("shown")
	require.NotZero(t, buf.Len())
}
