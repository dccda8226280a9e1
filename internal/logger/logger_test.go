package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitWithWriterJSON(t *testing.T) {
	var buf bytes.Buffer
	InitWithWriter(&buf, "info", "json")
	defer Init("warn", "console")

	Debug().Msg("hidden")
	Info().Str("step", "extracting").Msg("visible")

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.Len(t, lines, 1)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(lines[0], &entry))
	assert.Equal(t, "visible", entry["message"])
	assert.Equal(t, "extracting", entry["step"])
	assert.Equal(t, "info", entry["level"])
}

func TestInitWithWriterBadLevel(t *testing.T) {
	var buf bytes.Buffer
	InitWithWriter(&buf, "loud", "json")
	defer Init("warn", "console")

	Debug().Msg("hidden")
	assert.Empty(t, buf.String())

	l := With("job-1", "ws-1")
	l.Info().Msg("scoped")
	assert.Contains(t, buf.String(), `"job_id":"job-1"`)
	assert.Contains(t, buf.String(), `"workspace":"ws-1"`)
}
