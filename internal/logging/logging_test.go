package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(&buf, "info", FormatJSON)
	require.NoError(t, err)

	mirrorLog := Component(logger, "mirror")
	mirrorLog.Info().Str("event", "snapshot_applied").Int("filled", 3).Msg("applied")
	logger.Debug().Msg("hidden")

	var line map[string]interface{}
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &line))
	assert.Equal(t, "mirror", line["component"])
	assert.Equal(t, "snapshot_applied", line["event"])
	assert.Equal(t, float64(3), line["filled"])
	assert.Contains(t, line, "time")
	assert.NotContains(t, buf.String(), "hidden")
}

func TestNew_Console(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(&buf, "DEBUG", FormatConsole)
	require.NoError(t, err)

	logger.Debug().Msg("visible")
	assert.Contains(t, buf.String(), "visible")
}

func TestNew_Invalid(t *testing.T) {
	_, err := New(&bytes.Buffer{}, "loud", FormatJSON)
	assert.Error(t, err)

	_, err = New(&bytes.Buffer{}, "info", Format("xml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown log format")
}
