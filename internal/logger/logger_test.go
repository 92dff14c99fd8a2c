package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitWritesLevelFilteredFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "relay.log")
	require.NoError(t, Init(true, "warn", path, false, "json"))
	t.Cleanup(func() { _ = Init(false, "", "", false, "") })

	Infof("hidden %d", 1)
	Warnf("visible %s", "warning")
	Printer{Level: Error, Prefix: "[mqtt]"}.Println("lost", "connection")
	require.NoError(t, Sync())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	out := string(data)
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "visible warning")
	assert.Contains(t, out, "[mqtt] lost connection")
	assert.Contains(t, out, `"level":"WARN"`)
}

func TestDisabledLoggerIsSilent(t *testing.T) {
	require.NoError(t, Init(false, "debug", "", true, ""))
	Debugf("nothing %s", "here")
	Errorf("nothing %s", "here")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, Debug, parseLevel("DEBUG"))
	assert.Equal(t, Warn, parseLevel("warning"))
	assert.Equal(t, Error, parseLevel("error"))
	assert.Equal(t, Info, parseLevel("bogus"))
}

func TestCloseReleasesLogFile(t *testing.T) {
	dir := t.TempDir()
	first := filepath.Join(dir, "first.log")
	second := filepath.Join(dir, "second.log")
	t.Cleanup(func() { _ = Init(false, "", "", false, "") })

	require.NoError(t, Init(true, "info", first, false, "json"))
	f := logFile.Load()
	require.NotNil(t, f)

	require.NoError(t, Init(true, "info", second, false, "json"))
	_, err := f.Write([]byte("x"))
	assert.ErrorIs(t, err, os.ErrClosed, "re-init closes the previous file")

	Infof("into %s", "second")
	f = logFile.Load()
	require.NoError(t, Close())
	assert.Nil(t, logFile.Load())
	_, err = f.Write([]byte("x"))
	assert.ErrorIs(t, err, os.ErrClosed)

	// Logging after Close goes nowhere instead of writing to a closed file.
	Errorf("after %s", "close")
	data, err := os.ReadFile(second)
	require.NoError(t, err)
	assert.Contains(t, string(data), "into second")
	assert.NotContains(t, string(data), "after close")
	assert.NoError(t, Close())
}
