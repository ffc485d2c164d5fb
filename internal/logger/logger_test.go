package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitWithWriter_JSONWithComponent(t *testing.T) {
	t.Cleanup(func() {
		Logger = zerolog.Nop()
		zerolog.SetGlobalLevel(zerolog.TraceLevel)
	})
	t.Setenv("ENV", "")

	var buf bytes.Buffer
	InitWithWriter(&buf, "debug", FormatJSON)
	buf.Reset()

	log := WithComponent("engine")
	log.Debug().Int("patients", 4).Msg("tick")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "engine", line["component"])
	assert.Equal(t, "vitalwatch", line["service"])
	assert.Equal(t, "tick", line["message"])
	assert.EqualValues(t, 4, line["patients"])
}

func TestInitWithWriter_LevelFiltering(t *testing.T) {
	t.Cleanup(func() {
		Logger = zerolog.Nop()
		zerolog.SetGlobalLevel(zerolog.TraceLevel)
	})
	t.Setenv("ENV", "")

	var buf bytes.Buffer
	InitWithWriter(&buf, "warn", FormatJSON)
	buf.Reset()

	log := WithRequestID("req-1")
	log.Info().Msg("hidden")
	assert.Zero(t, buf.Len())

	log.Warn().Msg("shown")
	assert.Contains(t, buf.String(), `"request_id":"req-1"`)
}

func TestInitWithWriter_BadLevelFallsBackToInfo(t *testing.T) {
	t.Cleanup(func() {
		Logger = zerolog.Nop()
		zerolog.SetGlobalLevel(zerolog.TraceLevel)
	})

	var buf bytes.Buffer
	InitWithWriter(&buf, "loud", FormatJSON)
	assert.Equal(t, zerolog.InfoLevel, zerolog.GlobalLevel())
}
