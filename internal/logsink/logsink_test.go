package logsink_test

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dieortin/http-server/internal/logsink"
)

func TestLogWritesOneJSONLinePerCall(t *testing.T) {
	var buf bytes.Buffer
	l := logsink.New(&buf)

	l.Info("request", map[string]interface{}{"method": "GET", "code": 200})

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "INFO", decoded["level"])
	assert.Equal(t, "request", decoded["message"])
}

func TestLogDisabledWritesNothing(t *testing.T) {
	var buf bytes.Buffer
	l := logsink.New(&buf)
	l.Enabled = false

	l.Error("should not appear", nil)

	assert.Empty(t, buf.Bytes())
}

func TestLogLevelsAreDistinguishable(t *testing.T) {
	var buf bytes.Buffer
	l := logsink.New(&buf)

	l.Debug("d", nil)
	l.Warn("w", nil)

	lines := bytes.Split(bytes.TrimRight(buf.Bytes(), "\n"), []byte("\n"))
	require.Len(t, lines, 2)

	var first, second map[string]interface{}
	require.NoError(t, json.Unmarshal(lines[0], &first))
	require.NoError(t, json.Unmarshal(lines[1], &second))
	assert.Equal(t, "DEBUG", first["level"])
	assert.Equal(t, "WARN", second["level"])
}
