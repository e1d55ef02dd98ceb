// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package streamparse

import (
	"log/slog"
)

const (
	// DefaultCeiling is the maximum number of unconsumed bytes a Parser
	// holds before the guard discards the oldest half.
	DefaultCeiling = 10 * 1024 * 1024

	// DefaultExcerptLength is the maximum number of runes of offending
	// input carried in a ParseError or a skip preview.
	DefaultExcerptLength = 100
)

// DefaultDecorationGlyphs returns the prefixes that mark a line as
// terminal decoration: the box-drawing and bullet glyphs agent CLIs use
// to render interactive prompts and spinners.
func DefaultDecorationGlyphs() []string {
	return []string{
		"│", "┌", "┐", "└", "┘", "├", "┤", "┬", "┴", "┼", "─",
		"◆", "●", "○", "◇",
	}
}

// Config holds the tunables of a Parser. The zero value of each field
// selects its default.
type Config struct {
	// DecorationGlyphs lists the prefixes that classify a trimmed line
	// as decoration. Nil selects DefaultDecorationGlyphs. A non-nil
	// empty slice disables decoration detection. Empty entries are
	// ignored.
	DecorationGlyphs []string

	// Ceiling is the maximum buffer length in bytes. When a feed pushes
	// the buffer past Ceiling, the oldest bytes are discarded so that
	// at most Ceiling/2 remain.
	Ceiling int

	// ExcerptLength caps, in runes, the offending text attached to
	// errors and the preview attached to skipped lines.
	ExcerptLength int

	// Logger receives skip records at debug level and error records at
	// warn level. Nil discards all log output.
	Logger *slog.Logger
}

// DefaultConfig returns a Config with every field set to its default.
func DefaultConfig() Config {
	return Config{
		DecorationGlyphs: DefaultDecorationGlyphs(),
		Ceiling:          DefaultCeiling,
		ExcerptLength:    DefaultExcerptLength,
	}
}

// withDefaults fills zero-valued fields.
func (config Config) withDefaults() Config {
	if config.DecorationGlyphs == nil {
		config.DecorationGlyphs = DefaultDecorationGlyphs()
	}
	if config.Ceiling <= 0 {
		config.Ceiling = DefaultCeiling
	}
	if config.ExcerptLength <= 0 {
		config.ExcerptLength = DefaultExcerptLength
	}
	if config.Logger == nil {
		config.Logger = slog.New(slog.DiscardHandler)
	}
	return config
}
