// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package streamparse

import (
	"encoding/json"
	"fmt"
)

// OutcomeKind classifies the result of processing one line (or one
// overflow) of the stream.
type OutcomeKind int

const (
	// OutcomeMessage carries a decoded Message.
	OutcomeMessage OutcomeKind = iota + 1

	// OutcomeSkipped marks a noise line that was intentionally ignored.
	OutcomeSkipped

	// OutcomeError reports a recoverable failure. The stream continues.
	OutcomeError
)

func (kind OutcomeKind) String() string {
	switch kind {
	case OutcomeMessage:
		return "message"
	case OutcomeSkipped:
		return "skipped"
	case OutcomeError:
		return "error"
	default:
		return fmt.Sprintf("unknown(%d)", int(kind))
	}
}

// SkipReason records why a line never reached the decoder.
type SkipReason string

const (
	// SkipDecoration is a line starting with a configured decoration glyph.
	SkipDecoration SkipReason = "decoration"

	// SkipControlSequence is a line starting with a C0 control character
	// or DEL, including ANSI escape sequences (ESC '[').
	SkipControlSequence SkipReason = "control_sequence"

	// SkipText is a non-empty line that does not start with '{'.
	SkipText SkipReason = "text"
)

// ErrorKind classifies a ParseError.
type ErrorKind string

const (
	// ErrorDecode is a line starting with '{' that is not valid JSON.
	ErrorDecode ErrorKind = "decode"

	// ErrorShape is a valid JSON object without a non-empty string
	// "type" field.
	ErrorShape ErrorKind = "shape"

	// ErrorOverflow reports that the buffer ceiling was exceeded and
	// the oldest buffered bytes were discarded.
	ErrorOverflow ErrorKind = "overflow"
)

// Message is a decoded record from the stream.
type Message struct {
	// Type is the record's "type" discriminator.
	Type string `json:"type"`

	// Payload is the complete record exactly as it appeared on the
	// line, unknown fields included. The slice is owned by the
	// Message; the parser never touches it after emission.
	Payload json.RawMessage `json:"payload"`
}

// Decode unmarshals the payload into target.
func (message Message) Decode(target any) error {
	if err := json.Unmarshal(message.Payload, target); err != nil {
		return fmt.Errorf("decoding %q message: %w", message.Type, err)
	}
	return nil
}

// ParseError describes a recoverable failure reported through an
// OutcomeError.
type ParseError struct {
	// Kind classifies the failure.
	Kind ErrorKind `json:"kind"`

	// Reason is a human-readable diagnostic.
	Reason string `json:"reason"`

	// Excerpt is the beginning of the offending text, capped at the
	// configured excerpt length. For overflows it is the beginning of
	// the discarded bytes.
	Excerpt string `json:"excerpt,omitempty"`
}

func (parseError *ParseError) Error() string {
	if parseError.Excerpt == "" {
		return fmt.Sprintf("%s: %s", parseError.Kind, parseError.Reason)
	}
	return fmt.Sprintf("%s: %s: %q", parseError.Kind, parseError.Reason, parseError.Excerpt)
}

// Outcome is the result of processing one line, or of one buffer
// overflow. Exactly one of Message, Skip, Err is meaningful, selected
// by Kind.
type Outcome struct {
	Kind OutcomeKind

	// Line is the 1-based number of the source line within the current
	// stream. Zero for overflow errors, which are not tied to a line.
	Line int

	// Message is set for OutcomeMessage.
	Message *Message

	// Skip is set for OutcomeSkipped.
	Skip SkipReason

	// Preview is a display-safe rendering of a skipped line: escape
	// sequences removed, truncated to the excerpt length.
	Preview string

	// Err is set for OutcomeError.
	Err *ParseError
}

// Listener receives outcomes. Listeners run synchronously inside Feed
// and Flush and must not call Feed or Flush on the same Parser.
type Listener func(Outcome)
