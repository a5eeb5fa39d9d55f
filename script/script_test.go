package script_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dieortin/http-server/script"
)

func writeScript(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	p := filepath.Join(dir, "script.sh")
	require.NoError(t, os.WriteFile(p, []byte(body), 0o755))
	return p
}

func TestRunCapturesStdout(t *testing.T) {
	p := writeScript(t, "#!/bin/sh\necho -n hello\n")

	res, err := script.Run(context.Background(), "/bin/sh", p, "", nil)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(res.Output))
}

func TestRunPipesQuerystringAndBodyToStdin(t *testing.T) {
	p := writeScript(t, "#!/bin/sh\ncat\n")

	res, err := script.Run(context.Background(), "/bin/sh", p, "a=1", []byte("payload"))
	require.NoError(t, err)
	assert.Equal(t, "a=1\r\npayload\r\n", string(res.Output))
}

func TestRunNoOutputIsExecutionError(t *testing.T) {
	p := writeScript(t, "#!/bin/sh\nexit 0\n")

	_, err := script.Run(context.Background(), "/bin/sh", p, "", nil)
	assert.ErrorIs(t, err, script.ErrExecution)
}

func TestRunTruncatesToMaxBuffer(t *testing.T) {
	p := writeScript(t, "#!/bin/sh\nyes a | tr -d '\\n' | head -c 2000\n")

	res, err := script.Run(context.Background(), "/bin/sh", p, "", nil)
	require.NoError(t, err)
	assert.LessOrEqual(t, len(res.Output), script.MaxBuffer)
}
