package observability

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitLoggerTo_JSON(t *testing.T) {
	var buf bytes.Buffer
	InitLoggerTo(&buf, "toolshed-test", "production", "debug")
	t.Cleanup(func() { zerolog.SetGlobalLevel(zerolog.InfoLevel) })

	log.Info().Str("user_id", "u-1").Msg("hello")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "toolshed-test", entry["service"])
	assert.Equal(t, "u-1", entry["user_id"])
	assert.Equal(t, "hello", entry["message"])
	assert.Equal(t, zerolog.DebugLevel, zerolog.GlobalLevel())
}

func TestInitLoggerTo_BadLevelFallsBackToInfo(t *testing.T) {
	var buf bytes.Buffer
	InitLoggerTo(&buf, "svc", "production", "loud")
	assert.Equal(t, zerolog.InfoLevel, zerolog.GlobalLevel())
}

func TestRecordHelpers_NilMetrics(t *testing.T) {
	assert.NotPanics(t, func() {
		RecordGeocode(t.Context(), nil, "resolved")
		RecordCacheHit(t.Context(), nil, "geo")
		RecordCacheMiss(t.Context(), nil, "geo")
		TrackLiveConnection(t.Context(), nil, "sse", 1)
	})
}
