// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/bureau-foundation/agentstream/lib/streamparse"
	"github.com/bureau-foundation/agentstream/lib/transcript"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	return path
}

func TestDefaultsMatchParserDefaults(t *testing.T) {
	t.Parallel()

	cfg := Defaults()
	parser := streamparse.DefaultConfig()
	if cfg.Parser.Ceiling != parser.Ceiling || cfg.Parser.ExcerptLength != parser.ExcerptLength {
		t.Errorf("parser section = %+v, want ceiling %d excerpt %d", cfg.Parser, parser.Ceiling, parser.ExcerptLength)
	}
	if !slices.Equal(cfg.Parser.DecorationGlyphs, parser.DecorationGlyphs) {
		t.Errorf("glyphs = %v, want %v", cfg.Parser.DecorationGlyphs, parser.DecorationGlyphs)
	}
	if cfg.Agent.ChunkSize != DefaultChunkSize {
		t.Errorf("chunk size = %d", cfg.Agent.ChunkSize)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Defaults() does not validate: %v", err)
	}
}

func TestLoadFileYAML(t *testing.T) {
	t.Setenv("AGENTSTREAM_TEST_LOGS", "/var/log/agents")

	path := writeConfig(t, "agentstream.yaml", `
parser:
  decoration_glyphs: ["▶", "▪"]
  ceiling: 4096
agent:
  command: opencode
  args: [run, --format, json]
  environment:
    NO_COLOR: "1"
  strict_decode: true
  interrupt_grace: 30s
session_log:
  path: ${AGENTSTREAM_TEST_LOGS}/session.jsonl.zst
transcript:
  path: ${AGENTSTREAM_TEST_UNSET:-/tmp}/session.astr
  compression: lz4
logging:
  level: debug
`)

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if !slices.Equal(cfg.Parser.DecorationGlyphs, []string{"▶", "▪"}) {
		t.Errorf("glyphs = %v", cfg.Parser.DecorationGlyphs)
	}
	if cfg.Parser.Ceiling != 4096 {
		t.Errorf("ceiling = %d, want 4096", cfg.Parser.Ceiling)
	}
	if cfg.Parser.ExcerptLength != streamparse.DefaultExcerptLength {
		t.Errorf("excerpt length = %d, want the default", cfg.Parser.ExcerptLength)
	}
	if cfg.Agent.Command != "opencode" || len(cfg.Agent.Args) != 3 || !cfg.Agent.StrictDecode {
		t.Errorf("agent = %+v", cfg.Agent)
	}
	if grace, _ := cfg.Agent.InterruptGraceDuration(); grace != 30*time.Second {
		t.Errorf("interrupt grace = %v, want 30s", grace)
	}
	if cfg.Agent.Environment["NO_COLOR"] != "1" {
		t.Errorf("environment = %v", cfg.Agent.Environment)
	}
	if cfg.SessionLog.Path != "/var/log/agents/session.jsonl.zst" {
		t.Errorf("session log path = %q", cfg.SessionLog.Path)
	}
	if cfg.Transcript.Path != "/tmp/session.astr" {
		t.Errorf("transcript path = %q", cfg.Transcript.Path)
	}
	if cfg.TranscriptCompression() != transcript.CompressionLZ4 {
		t.Errorf("compression = %v", cfg.TranscriptCompression())
	}
	if level, _ := cfg.Logging.SlogLevel(); level != slog.LevelDebug {
		t.Errorf("level = %v", level)
	}
}

func TestLoadFileJSONC(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, "agentstream.jsonc", `{
  // Disable decoration detection entirely.
  "parser": {"decoration_glyphs": [], "excerpt_length": 20,},
  "agent": {"chunk_size": 512},
}`)

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if cfg.Parser.DecorationGlyphs == nil || len(cfg.Parser.DecorationGlyphs) != 0 {
		t.Errorf("glyphs = %#v, want an empty non-nil list", cfg.Parser.DecorationGlyphs)
	}
	if cfg.Parser.ExcerptLength != 20 || cfg.Agent.ChunkSize != 512 {
		t.Errorf("parser = %+v agent = %+v", cfg.Parser, cfg.Agent)
	}

	parser := streamparse.New(cfg.Parser.StreamParse(nil))
	var skipped int
	parser.Subscribe(func(outcome streamparse.Outcome) {
		if outcome.Kind == streamparse.OutcomeSkipped {
			skipped++
		}
	})
	parser.Feed("│ not decoration any more\n")
	if skipped != 1 || parser.Stats().Decorations != 0 {
		t.Errorf("with glyphs disabled: skipped=%d decorations=%d", skipped, parser.Stats().Decorations)
	}
}

func TestLoadFileValidation(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, "bad.yaml", `
parser:
  ceiling: 0
  excerpt_length: -1
  decoration_glyphs: ["│", ""]
agent:
  chunk_size: -5
  interrupt_grace: soon
transcript:
  compression: gzip
logging:
  level: loud
`)

	_, err := LoadFile(path)
	if err == nil {
		t.Fatal("LoadFile accepted an invalid config")
	}
	for _, want := range []string{
		"parser.ceiling",
		"parser.excerpt_length",
		"parser.decoration_glyphs[1]",
		"agent.chunk_size",
		"agent.interrupt_grace",
		"transcript.compression",
		"logging.level",
	} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error does not mention %s: %v", want, err)
		}
	}
}

func TestLoadFileErrors(t *testing.T) {
	t.Parallel()

	if _, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("missing file loaded")
	}
	if _, err := LoadFile(writeConfig(t, "broken.yaml", "parser: [unclosed")); err == nil {
		t.Error("malformed YAML loaded")
	}
	if _, err := LoadFile(writeConfig(t, "broken.json", `{"parser": }`)); err == nil {
		t.Error("malformed JSON loaded")
	}
}

func TestResolve(t *testing.T) {
	flagPath := writeConfig(t, "flag.yaml", "parser:\n  ceiling: 111\n")
	envPath := writeConfig(t, "env.yaml", "parser:\n  ceiling: 222\n")

	t.Setenv(EnvironmentVariable, envPath)
	cfg, err := Resolve(flagPath)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Parser.Ceiling != 111 {
		t.Errorf("flag path not preferred: ceiling = %d", cfg.Parser.Ceiling)
	}

	cfg, err = Resolve("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Parser.Ceiling != 222 {
		t.Errorf("environment path not used: ceiling = %d", cfg.Parser.Ceiling)
	}

	t.Setenv(EnvironmentVariable, "")
	cfg, err = Resolve("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Parser.Ceiling != streamparse.DefaultCeiling {
		t.Errorf("no file: ceiling = %d, want default", cfg.Parser.Ceiling)
	}
}

func TestLoadRequiresEnvironment(t *testing.T) {
	t.Setenv(EnvironmentVariable, "")

	_, err := Load()
	if err == nil || !strings.Contains(err.Error(), EnvironmentVariable) {
		t.Fatalf("Load() error = %v, want one naming %s", err, EnvironmentVariable)
	}
}
