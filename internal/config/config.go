// Package config manages the broker's configuration: defaults, JSON file
// loading, and the CLI-flag merge where CLI values always win.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ChatConfig describes the optional remote chat endpoint the Chat primitive
// submits to. A ChatConfig is either fully populated or treated as absent;
// Config.Normalize enforces the all-or-nothing rule.
type ChatConfig struct {
	BaseURL string `json:"base_url,omitempty"`
	APIKey  string `json:"api_key,omitempty"`
	Model   string `json:"model,omitempty"`
}

// Configured reports whether all three chat fields are present.
func (c *ChatConfig) Configured() bool {
	return c != nil && c.BaseURL != "" && c.APIKey != "" && c.Model != ""
}

// Partial reports whether some but not all chat fields are present.
func (c *ChatConfig) Partial() bool {
	if c == nil {
		return false
	}
	some := c.BaseURL != "" || c.APIKey != "" || c.Model != ""
	return some && !c.Configured()
}

// Config is the broker's frozen runtime configuration. Once returned by
// LoadFile it must not be mutated; callers that need a scratch copy use Clone.
type Config struct {
	// RecordDir, when non-empty, enables the audit recorder.
	RecordDir string `json:"record_dir,omitempty"`

	// Strict blocks the fixed file-operation command set even for allowlisted
	// commands (see glossary "strict mode" in the design notes).
	Strict bool `json:"strict,omitempty"`

	// ClassifiedPaths is the set of absolute, normalized paths that capability
	// construction treats as classified.
	ClassifiedPaths []string `json:"classified_paths,omitempty"`

	// Chat is the optional remote chat endpoint descriptor.
	Chat *ChatConfig `json:"chat,omitempty"`

	// Quiet suppresses the startup banner and non-essential stderr logging.
	Quiet bool `json:"quiet,omitempty"`

	// WrapCode controls whether submitted snippets are wrapped in a
	// zero-argument function before evaluation.
	WrapCode bool `json:"wrap_code"`

	// SessionsEnabled controls whether create_session/execute_in_session/
	// delete_session/list_sessions are advertised and dispatched.
	SessionsEnabled bool `json:"sessions_enabled"`

	// Logging carries the arbor writer selection, reusing the same shape the
	// host project's own service configuration uses.
	Logging LoggingConfig `json:"logging"`
}

// LoggingConfig selects arbor writer behavior.
type LoggingConfig struct {
	Level      string   `json:"level,omitempty"`
	Format     string   `json:"format,omitempty"`
	Output     []string `json:"output,omitempty"`
	TimeFormat string   `json:"time_format,omitempty"`
	MaxSizeMB  int      `json:"max_size_mb,omitempty"`
	MaxBackups int      `json:"max_backups,omitempty"`
}

// DefaultConfig returns the configuration used when neither a config file
// nor CLI flags supply a value.
func DefaultConfig() *Config {
	return &Config{
		RecordDir:       "",
		Strict:          false,
		ClassifiedPaths: nil,
		Chat:            nil,
		Quiet:           false,
		WrapCode:        true,
		SessionsEnabled: true,
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "text",
			Output:     []string{"stdout"},
			TimeFormat: "15:04:05.000",
			MaxSizeMB:  100,
			MaxBackups: 5,
		},
	}
}

// fileConfig mirrors Config but with pointer/optional-slice fields so that
// "absent from the JSON file" is distinguishable from "present but zero".
// This merge-by-presence approach is the same one the host project's own
// settings loader uses for its CLI-overridable configuration file.
type fileConfig struct {
	RecordDir       *string          `json:"record_dir"`
	Strict          *bool            `json:"strict"`
	ClassifiedPaths []string         `json:"classified_paths"`
	Chat            *ChatConfig      `json:"chat"`
	Quiet           *bool            `json:"quiet"`
	WrapCode        *bool            `json:"wrap_code"`
	SessionsEnabled *bool            `json:"sessions_enabled"`
	Logging         *fileLoggingOpts `json:"logging"`
}

type fileLoggingOpts struct {
	Level      *string  `json:"level"`
	Format     *string  `json:"format"`
	Output     []string `json:"output"`
	TimeFormat *string  `json:"time_format"`
	MaxSizeMB  *int     `json:"max_size_mb"`
	MaxBackups *int     `json:"max_backups"`
}

// LoadFile reads a JSON config file and merges it onto DefaultConfig. A
// missing file is not an error: the defaults are returned unchanged, matching
// the "unknown fields are ignored" / permissive loading the CLI surface
// requires.
func LoadFile(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var fc fileConfig
	if err := json.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	mergeFile(cfg, &fc)
	return cfg, nil
}

func mergeFile(cfg *Config, fc *fileConfig) {
	if fc.RecordDir != nil {
		cfg.RecordDir = *fc.RecordDir
	}
	if fc.Strict != nil {
		cfg.Strict = *fc.Strict
	}
	if fc.ClassifiedPaths != nil {
		cfg.ClassifiedPaths = fc.ClassifiedPaths
	}
	if fc.Chat != nil {
		cfg.Chat = fc.Chat
	}
	if fc.Quiet != nil {
		cfg.Quiet = *fc.Quiet
	}
	if fc.WrapCode != nil {
		cfg.WrapCode = *fc.WrapCode
	}
	if fc.SessionsEnabled != nil {
		cfg.SessionsEnabled = *fc.SessionsEnabled
	}
	if fc.Logging != nil {
		if fc.Logging.Level != nil {
			cfg.Logging.Level = *fc.Logging.Level
		}
		if fc.Logging.Format != nil {
			cfg.Logging.Format = *fc.Logging.Format
		}
		if fc.Logging.Output != nil {
			cfg.Logging.Output = fc.Logging.Output
		}
		if fc.Logging.TimeFormat != nil {
			cfg.Logging.TimeFormat = *fc.Logging.TimeFormat
		}
		if fc.Logging.MaxSizeMB != nil {
			cfg.Logging.MaxSizeMB = *fc.Logging.MaxSizeMB
		}
		if fc.Logging.MaxBackups != nil {
			cfg.Logging.MaxBackups = *fc.Logging.MaxBackups
		}
	}
}

// CLIOverrides carries the flags parsed from the command line. Only fields
// whose pointer is non-nil (or whose slice is non-nil) participate in the
// merge; this is what lets CLI values win over the file without needing to
// know the file's content first.
type CLIOverrides struct {
	RecordDir       *string
	Strict          *bool
	ClassifiedPaths []string
	Quiet           *bool
	NoWrap          *bool
	NoSession       *bool
	LLMBaseURL      *string
	LLMAPIKey       *string
	LLMModel        *string
}

// ApplyCLI merges CLI overrides onto cfg, CLI winning on every conflict.
// Chat flags are merged field by field onto any chat configuration from the
// file; ApplyCLI does not check completeness. A partially specified chat
// configuration (some but not all of base-url/key/model supplied) is dropped
// later by Normalize, whose return value tells the CLI to warn.
func ApplyCLI(cfg *Config, o CLIOverrides) {
	if o.RecordDir != nil {
		cfg.RecordDir = *o.RecordDir
	}
	if o.Strict != nil {
		cfg.Strict = *o.Strict
	}
	if o.ClassifiedPaths != nil {
		cfg.ClassifiedPaths = o.ClassifiedPaths
	}
	if o.Quiet != nil {
		cfg.Quiet = *o.Quiet
	}
	if o.NoWrap != nil {
		cfg.WrapCode = !*o.NoWrap
	}
	if o.NoSession != nil {
		cfg.SessionsEnabled = !*o.NoSession
	}

	if o.LLMBaseURL != nil || o.LLMAPIKey != nil || o.LLMModel != nil {
		chat := &ChatConfig{}
		if cfg.Chat != nil {
			*chat = *cfg.Chat
		}
		if o.LLMBaseURL != nil {
			chat.BaseURL = *o.LLMBaseURL
		}
		if o.LLMAPIKey != nil {
			chat.APIKey = *o.LLMAPIKey
		}
		if o.LLMModel != nil {
			chat.Model = *o.LLMModel
		}
		cfg.Chat = chat
	}
}

// Normalize resolves ClassifiedPaths to absolute, normalized form, satisfying
// the configuration invariant that every classified path is stored that way.
// It also demotes a partial chat configuration to nil, returning true when it
// did so (the caller is expected to warn on stderr in that case).
func (c *Config) Normalize() (partialChatDropped bool, err error) {
	normalized := make([]string, 0, len(c.ClassifiedPaths))
	for _, p := range c.ClassifiedPaths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return false, fmt.Errorf("normalize classified path %q: %w", p, err)
		}
		normalized = append(normalized, filepath.Clean(abs))
	}
	c.ClassifiedPaths = normalized

	if c.Chat.Partial() {
		c.Chat = nil
		return true, nil
	}
	return false, nil
}

// Clone returns a deep copy safe for independent mutation.
func (c *Config) Clone() *Config {
	clone := *c
	if c.ClassifiedPaths != nil {
		clone.ClassifiedPaths = append([]string(nil), c.ClassifiedPaths...)
	}
	if c.Chat != nil {
		chat := *c.Chat
		clone.Chat = &chat
	}
	if c.Logging.Output != nil {
		clone.Logging.Output = append([]string(nil), c.Logging.Output...)
	}
	return &clone
}

// ParseClassifiedPaths splits the --classified-paths comma list flag value.
func ParseClassifiedPaths(v string) []string {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// WriteExample writes a commented-free example JSON config, used by the
// CLI's init-config convenience command.
func WriteExample(path string) error {
	example := DefaultConfig()
	example.RecordDir = "./audit"
	example.Logging.Output = []string{"stdout", "file"}

	data, err := json.MarshalIndent(example, "", "  ")
	if err != nil {
		return fmt.Errorf("encode example config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}
