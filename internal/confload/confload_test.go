package confload_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dieortin/http-server/config"
	"github.com/dieortin/http-server/internal/confload"
)

type recordingLogger struct {
	warnings []string
}

func (l *recordingLogger) Warn(msg string, fields map[string]interface{}) {
	l.warnings = append(l.warnings, msg)
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	p := filepath.Join(dir, "server.cfg")
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

func TestLoadParsesRecognizedParameters(t *testing.T) {
	p := writeConfig(t, "PORT=8080\nWEBROOT=/srv/www\nNTHREADS=4\n")

	store, err := confload.Load(p, nil)
	require.NoError(t, err)

	port, err := store.GetIntOption(config.Port)
	require.NoError(t, err)
	assert.EqualValues(t, 8080, port)

	webroot, err := store.GetStringOption(config.Webroot)
	require.NoError(t, err)
	assert.Equal(t, "/srv/www", webroot)
}

func TestLoadWarnsOnUnrecognizedParameter(t *testing.T) {
	p := writeConfig(t, "PORT=8080\nSOMETHING_ELSE=1\n")

	log := &recordingLogger{}
	_, err := confload.Load(p, log)
	require.NoError(t, err)

	assert.NotEmpty(t, log.warnings)
}

func TestLoadBadIntValueIsError(t *testing.T) {
	p := writeConfig(t, "PORT=notanumber\n")

	_, err := confload.Load(p, nil)
	assert.Error(t, err)
}

func TestLoadMissingFileIsError(t *testing.T) {
	_, err := confload.Load("/nonexistent/server.cfg", nil)
	assert.Error(t, err)
}
