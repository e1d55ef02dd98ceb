// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package streamparse

import (
	"bytes"
	"fmt"

	"github.com/charmbracelet/x/ansi"
)

// LineClass is the category the classifier assigns to a complete line.
type LineClass int

const (
	// LineEmpty is an empty or whitespace-only line. It is dropped
	// without producing an outcome.
	LineEmpty LineClass = iota

	// LineDecoration starts with a configured decoration glyph.
	LineDecoration

	// LineControlSequence starts with a C0 control character or DEL.
	LineControlSequence

	// LineText is any other line that does not start with '{'.
	LineText

	// LineJSONCandidate starts with '{' and goes to the decoder.
	LineJSONCandidate
)

func (class LineClass) String() string {
	switch class {
	case LineEmpty:
		return "empty"
	case LineDecoration:
		return "decoration"
	case LineControlSequence:
		return "control_sequence"
	case LineText:
		return "text"
	case LineJSONCandidate:
		return "json_candidate"
	default:
		return fmt.Sprintf("unknown(%d)", int(class))
	}
}

// skipReason maps the noise classes to the reason recorded on their
// OutcomeSkipped. Empty and JSON candidate lines have no reason.
func (class LineClass) skipReason() SkipReason {
	switch class {
	case LineDecoration:
		return SkipDecoration
	case LineControlSequence:
		return SkipControlSequence
	case LineText:
		return SkipText
	default:
		return ""
	}
}

// classifier assigns a LineClass to trimmed lines. Decoration wins over
// control sequences, which win over text.
type classifier struct {
	glyphs [][]byte
}

func newClassifier(glyphs []string) classifier {
	var prefixes [][]byte
	for _, glyph := range glyphs {
		if glyph == "" {
			continue
		}
		prefixes = append(prefixes, []byte(glyph))
	}
	return classifier{glyphs: prefixes}
}

// classify trims surrounding whitespace from line and returns its class
// together with the trimmed bytes, which alias line.
func (classifier classifier) classify(line []byte) (LineClass, []byte) {
	trimmed := bytes.TrimSpace(line)
	if len(trimmed) == 0 {
		return LineEmpty, trimmed
	}
	for _, glyph := range classifier.glyphs {
		if bytes.HasPrefix(trimmed, glyph) {
			return LineDecoration, trimmed
		}
	}
	if isControl(trimmed[0]) {
		return LineControlSequence, trimmed
	}
	if trimmed[0] != '{' {
		return LineText, trimmed
	}
	return LineJSONCandidate, trimmed
}

// isControl reports whether b is a C0 control character (which includes
// ESC, the introducer of ANSI escape sequences) or DEL.
func isControl(b byte) bool {
	return b < 0x20 || b == 0x7f
}

// preview renders a skipped line for logs and listeners: escape
// sequences stripped, invalid UTF-8 replaced, cut to width cells.
func preview(line []byte, width int) string {
	text := ansi.Strip(string(bytes.ToValidUTF8(line, []byte("�"))))
	return ansi.Truncate(text, width, "…")
}
