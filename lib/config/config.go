// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"

	"github.com/bureau-foundation/agentstream/lib/streamparse"
	"github.com/bureau-foundation/agentstream/lib/transcript"
)

// EnvironmentVariable names the config file when --config is absent.
const EnvironmentVariable = "AGENTSTREAM_CONFIG"

// DefaultChunkSize is the read size used when pumping agent stdout.
const DefaultChunkSize = 32 * 1024

// Config is the complete agentstream configuration.
type Config struct {
	Parser     ParserConfig     `yaml:"parser" json:"parser"`
	Agent      AgentConfig      `yaml:"agent" json:"agent"`
	SessionLog SessionLogConfig `yaml:"session_log" json:"session_log"`
	Transcript TranscriptConfig `yaml:"transcript" json:"transcript"`
	Logging    LoggingConfig    `yaml:"logging" json:"logging"`
}

// ParserConfig tunes the stream parser.
type ParserConfig struct {
	// DecorationGlyphs replaces the default decoration prefixes. An
	// explicit empty list disables decoration detection; null keeps
	// the defaults.
	DecorationGlyphs []string `yaml:"decoration_glyphs" json:"decoration_glyphs"`

	// Ceiling is the buffer limit in bytes.
	Ceiling int `yaml:"ceiling" json:"ceiling"`

	// ExcerptLength caps error excerpts and skip previews, in runes.
	ExcerptLength int `yaml:"excerpt_length" json:"excerpt_length"`
}

// AgentConfig describes the agent process started by "agentstream run".
// Command-line arguments after "--" replace Command and Args.
type AgentConfig struct {
	Command          string            `yaml:"command" json:"command"`
	Args             []string          `yaml:"args" json:"args"`
	WorkingDirectory string            `yaml:"working_directory" json:"working_directory"`
	Environment      map[string]string `yaml:"environment" json:"environment"`

	// StrictDecode interrupts the agent on its first decode error.
	StrictDecode bool `yaml:"strict_decode" json:"strict_decode"`

	// ChunkSize is the stdout read size in bytes.
	ChunkSize int `yaml:"chunk_size" json:"chunk_size"`

	// InterruptGrace is a Go duration ("30s"). After an interrupt the
	// agent is killed if still running this long. Empty or "0" waits
	// for a second signal instead.
	InterruptGrace string `yaml:"interrupt_grace" json:"interrupt_grace"`
}

// InterruptGraceDuration parses InterruptGrace.
func (a AgentConfig) InterruptGraceDuration() (time.Duration, error) {
	if a.InterruptGrace == "" {
		return 0, nil
	}
	duration, err := time.ParseDuration(a.InterruptGrace)
	if err != nil {
		return 0, err
	}
	if duration < 0 {
		return 0, fmt.Errorf("negative duration %s", a.InterruptGrace)
	}
	return duration, nil
}

// SessionLogConfig controls the JSONL event log. An empty Path
// disables it; a path ending in .zst is zstd-compressed.
type SessionLogConfig struct {
	Path string `yaml:"path" json:"path"`
}

// TranscriptConfig controls raw chunk recording. An empty Path
// disables recording.
type TranscriptConfig struct {
	Path string `yaml:"path" json:"path"`

	// Compression is none, lz4, or zstd.
	Compression string `yaml:"compression" json:"compression"`
}

// LoggingConfig sets the diagnostic log level: debug, info, warn, or
// error.
type LoggingConfig struct {
	Level string `yaml:"level" json:"level"`
}

// Defaults returns the configuration used when no file is given. Its
// parser section matches streamparse.DefaultConfig.
func Defaults() *Config {
	parser := streamparse.DefaultConfig()
	return &Config{
		Parser: ParserConfig{
			DecorationGlyphs: parser.DecorationGlyphs,
			Ceiling:          parser.Ceiling,
			ExcerptLength:    parser.ExcerptLength,
		},
		Agent: AgentConfig{
			ChunkSize: DefaultChunkSize,
		},
		Transcript: TranscriptConfig{
			Compression: "zstd",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Resolve picks the config file: flagPath if set, otherwise
// $AGENTSTREAM_CONFIG, otherwise none, in which case it returns
// Defaults. The result is validated.
func Resolve(flagPath string) (*Config, error) {
	if flagPath != "" {
		return LoadFile(flagPath)
	}
	if os.Getenv(EnvironmentVariable) != "" {
		return Load()
	}
	return Defaults(), nil
}

// Load loads the file named by $AGENTSTREAM_CONFIG. It fails when the
// variable is unset.
func Load() (*Config, error) {
	path := os.Getenv(EnvironmentVariable)
	if path == "" {
		return nil, fmt.Errorf("%s environment variable not set; "+
			"set it to the path of your agentstream config file, or use --config", EnvironmentVariable)
	}
	return LoadFile(path)
}

// LoadFile loads, expands, and validates the config file at path.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	cfg := Defaults()
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".jsonc":
		if err := json.Unmarshal(jsonc.ToJSON(data), cfg); err != nil {
			return nil, fmt.Errorf("parsing config %s: %w", path, err)
		}
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config %s: %w", path, err)
		}
	}

	cfg.expandVariables()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate reports every invalid field at once.
func (c *Config) Validate() error {
	var errs []error

	if c.Parser.Ceiling <= 0 {
		errs = append(errs, fmt.Errorf("parser.ceiling must be positive, got %d", c.Parser.Ceiling))
	}
	if c.Parser.ExcerptLength <= 0 {
		errs = append(errs, fmt.Errorf("parser.excerpt_length must be positive, got %d", c.Parser.ExcerptLength))
	}
	for index, glyph := range c.Parser.DecorationGlyphs {
		if glyph == "" {
			errs = append(errs, fmt.Errorf("parser.decoration_glyphs[%d] is empty", index))
		}
	}
	if c.Agent.ChunkSize <= 0 {
		errs = append(errs, fmt.Errorf("agent.chunk_size must be positive, got %d", c.Agent.ChunkSize))
	}
	if _, err := c.Agent.InterruptGraceDuration(); err != nil {
		errs = append(errs, fmt.Errorf("agent.interrupt_grace: %w", err))
	}
	if _, err := transcript.ParseCompression(c.Transcript.Compression); err != nil {
		errs = append(errs, fmt.Errorf("transcript.compression: %w", err))
	}
	if _, err := c.Logging.SlogLevel(); err != nil {
		errs = append(errs, fmt.Errorf("logging.level: %w", err))
	}

	return errors.Join(errs...)
}

// StreamParse converts the parser section into a streamparse.Config
// that logs to logger.
func (p ParserConfig) StreamParse(logger *slog.Logger) streamparse.Config {
	return streamparse.Config{
		DecorationGlyphs: p.DecorationGlyphs,
		Ceiling:          p.Ceiling,
		ExcerptLength:    p.ExcerptLength,
		Logger:           logger,
	}
}

// TranscriptCompression returns the parsed transcript compression.
// Validate has already rejected unknown names.
func (c *Config) TranscriptCompression() transcript.Compression {
	compression, _ := transcript.ParseCompression(c.Transcript.Compression)
	return compression
}

// SlogLevel parses Level.
func (l LoggingConfig) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(l.Level)); err != nil {
		return 0, fmt.Errorf("unknown level %q (want debug, info, warn, or error)", l.Level)
	}
	return level, nil
}

func (c *Config) expandVariables() {
	c.SessionLog.Path = expandVars(c.SessionLog.Path)
	c.Transcript.Path = expandVars(c.Transcript.Path)
	c.Agent.WorkingDirectory = expandVars(c.Agent.WorkingDirectory)
}

// varPattern matches ${VAR} and ${VAR:-default}.
var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

func expandVars(s string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if value := os.Getenv(parts[1]); value != "" {
			return value
		}
		return parts[2]
	})
}
