package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := New("filmtopia", "debug", "json", &buf)

	logger.Debug().Str("movie", "Dune").Msg("rating stored")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	require.Equal(t, "filmtopia", entry["@tag"])
	require.Equal(t, "Dune", entry["movie"])
	require.Equal(t, "debug", entry["level"])
	caller, _ := entry["caller"].(string)
	require.True(t, strings.HasPrefix(caller, "logging/"), "caller = %q", caller)
}

func TestNewUnknownLevelFallsBackToInfo(t *testing.T) {
	var buf bytes.Buffer
	logger := New("filmtopia", "chatty", "json", &buf)

	logger.Debug().Msg("hidden")
	require.Zero(t, buf.Len())

	logger.Info().Msg("shown")
	require.Contains(t, buf.String(), "shown")
}
