package audit

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/safeexec/internal/fileutil"
)

func TestRecorder_DisabledWithoutDirDoesNotWrite(t *testing.T) {
	r, err := NewRecorder("")
	require.NoError(t, err)
	assert.False(t, r.Enabled())

	err = r.Record("sess1", "1 + 1", "2", true, "")
	assert.NoError(t, err)
}

func TestRecorder_WritesCodeAndResultFilePair(t *testing.T) {
	dir := t.TempDir()
	r, err := NewRecorder(dir)
	require.NoError(t, err)
	require.True(t, r.Enabled())

	require.NoError(t, r.Record("sess1", "1 + 1", "2", true, ""))
	require.NoError(t, r.Close())

	entries, err := fileutil.Children(dir)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	var codeFile, resultFile string
	for _, e := range entries {
		switch filepath.Ext(e) {
		case ".code":
			codeFile = e
		case ".result":
			resultFile = e
		}
	}
	require.NotEmpty(t, codeFile)
	require.NotEmpty(t, resultFile)
	assert.Contains(t, codeFile, "sess1")
	assert.Contains(t, resultFile, "sess1")

	code, err := fileutil.ReadFile(filepath.Join(dir, codeFile))
	require.NoError(t, err)
	assert.Equal(t, "1 + 1", string(code))

	result, err := fileutil.ReadFile(filepath.Join(dir, resultFile))
	require.NoError(t, err)
	assert.Contains(t, string(result), "status: ok")
	assert.Contains(t, string(result), "2")
}

func TestRecorder_StatelessCallUsesSentinelID(t *testing.T) {
	dir := t.TempDir()
	r, err := NewRecorder(dir)
	require.NoError(t, err)

	require.NoError(t, r.Record("", "1 + 1", "2", true, ""))
	require.NoError(t, r.Close())

	entries, err := fileutil.Children(dir)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Contains(t, entries[0], "stateless")
}

func TestRecorder_FailedExecutionIncludesErrorInResult(t *testing.T) {
	dir := t.TempDir()
	r, err := NewRecorder(dir)
	require.NoError(t, err)

	require.NoError(t, r.Record("sess1", "bad code", "", false, "SecurityException: blocked"))
	require.NoError(t, r.Close())

	entries, err := fileutil.Children(dir)
	require.NoError(t, err)
	var resultPath string
	for _, e := range entries {
		if filepath.Ext(e) == ".result" {
			resultPath = filepath.Join(dir, e)
		}
	}
	require.NotEmpty(t, resultPath)

	content, err := fileutil.ReadFile(resultPath)
	require.NoError(t, err)
	assert.Contains(t, string(content), "status: error")
	assert.Contains(t, string(content), "SecurityException: blocked")
}

func TestRecorder_SequentialCallsProduceDistinctFileNames(t *testing.T) {
	dir := t.TempDir()
	r, err := NewRecorder(dir)
	require.NoError(t, err)

	require.NoError(t, r.Record("sess1", "a", "", true, ""))
	require.NoError(t, r.Record("sess1", "b", "", true, ""))
	require.NoError(t, r.Close())

	entries, err := fileutil.Children(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 4)
}

func TestRecorder_CloseIsIdempotentAndStopsRecording(t *testing.T) {
	r, err := NewRecorder(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, r.Close())
	require.NoError(t, r.Close())
	assert.NoError(t, r.Record("sess1", "a", "", true, ""))
}
