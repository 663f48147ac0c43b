package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadFile_MissingFileReturnsDefaults(t *testing.T) {
	cfg, err := LoadFile(filepath.Join(t.TempDir(), "absent.json"))
	require.NoError(t, err)
	assert.True(t, cfg.WrapCode)
	assert.True(t, cfg.SessionsEnabled)
	assert.Empty(t, cfg.RecordDir)
}

func TestLoadFile_ValuesOverrideDefaults(t *testing.T) {
	path := writeConfigFile(t, `{"record_dir": "/tmp/audit", "strict": true, "wrap_code": false}`)
	cfg, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/audit", cfg.RecordDir)
	assert.True(t, cfg.Strict)
	assert.False(t, cfg.WrapCode)
	assert.True(t, cfg.SessionsEnabled)
}

func TestLoadFile_UnknownFieldsIgnored(t *testing.T) {
	path := writeConfigFile(t, `{"no_such_field": 1, "strict": true}`)
	cfg, err := LoadFile(path)
	require.NoError(t, err)
	assert.True(t, cfg.Strict)
}

func TestLoadFile_MalformedJSONIsError(t *testing.T) {
	path := writeConfigFile(t, `{not json`)
	_, err := LoadFile(path)
	require.Error(t, err)
}

func TestApplyCLI_CLIWinsOverFile(t *testing.T) {
	path := writeConfigFile(t, `{"record_dir": "/from-file", "strict": true}`)
	cfg, err := LoadFile(path)
	require.NoError(t, err)

	record := "/from-cli"
	strict := false
	ApplyCLI(cfg, CLIOverrides{RecordDir: &record, Strict: &strict})

	assert.Equal(t, "/from-cli", cfg.RecordDir)
	assert.False(t, cfg.Strict)
}

func TestApplyCLI_UnsetFlagsLeaveFileValues(t *testing.T) {
	path := writeConfigFile(t, `{"record_dir": "/from-file", "sessions_enabled": false}`)
	cfg, err := LoadFile(path)
	require.NoError(t, err)

	ApplyCLI(cfg, CLIOverrides{})

	assert.Equal(t, "/from-file", cfg.RecordDir)
	assert.False(t, cfg.SessionsEnabled)
}

func TestApplyCLI_ChatFlagsMergeOntoFileChat(t *testing.T) {
	path := writeConfigFile(t, `{"chat": {"base_url": "http://file", "api_key": "file-key", "model": "file-model"}}`)
	cfg, err := LoadFile(path)
	require.NoError(t, err)

	model := "cli-model"
	ApplyCLI(cfg, CLIOverrides{LLMModel: &model})

	require.NotNil(t, cfg.Chat)
	assert.Equal(t, "http://file", cfg.Chat.BaseURL)
	assert.Equal(t, "cli-model", cfg.Chat.Model)
}

func TestNormalize_PartialChatDemotedToNil(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Chat = &ChatConfig{BaseURL: "http://only-url"}

	dropped, err := cfg.Normalize()
	require.NoError(t, err)
	assert.True(t, dropped)
	assert.Nil(t, cfg.Chat)
}

func TestNormalize_FullChatKept(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Chat = &ChatConfig{BaseURL: "http://x", APIKey: "k", Model: "m"}

	dropped, err := cfg.Normalize()
	require.NoError(t, err)
	assert.False(t, dropped)
	require.NotNil(t, cfg.Chat)
}

func TestNormalize_ClassifiedPathsMadeAbsolute(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ClassifiedPaths = []string{"relative/secrets", "/abs/../abs/secrets"}

	_, err := cfg.Normalize()
	require.NoError(t, err)

	for _, p := range cfg.ClassifiedPaths {
		assert.True(t, filepath.IsAbs(p), "path %q should be absolute", p)
	}
	assert.Equal(t, "/abs/secrets", cfg.ClassifiedPaths[1])
}

func TestParseClassifiedPaths(t *testing.T) {
	assert.Nil(t, ParseClassifiedPaths(""))
	assert.Nil(t, ParseClassifiedPaths("  "))
	assert.Equal(t, []string{"/a", "/b"}, ParseClassifiedPaths("/a,/b"))
	assert.Equal(t, []string{"/a", "/b"}, ParseClassifiedPaths(" /a , /b , "))
}

func TestClone_IndependentMutation(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ClassifiedPaths = []string{"/secrets"}
	cfg.Chat = &ChatConfig{BaseURL: "http://x", APIKey: "k", Model: "m"}

	clone := cfg.Clone()
	clone.ClassifiedPaths[0] = "/other"
	clone.Chat.Model = "changed"

	assert.Equal(t, "/secrets", cfg.ClassifiedPaths[0])
	assert.Equal(t, "m", cfg.Chat.Model)
}
