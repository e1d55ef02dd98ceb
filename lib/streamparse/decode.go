// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package streamparse

import (
	"encoding/json"
	"strings"
	"unicode/utf8"
)

// decodeRecord decodes a JSON candidate line into a Message. The line
// must hold exactly one JSON object whose "type" field is a non-empty
// string. The returned Message owns a copy of line.
func decodeRecord(line []byte, excerptLength int) (*Message, *ParseError) {
	// Only the top-level keys are decoded; values stay raw so that
	// large tool payloads are validated but not materialized.
	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(line, &envelope); err != nil {
		return nil, &ParseError{
			Kind:    ErrorDecode,
			Reason:  err.Error(),
			Excerpt: excerpt(line, excerptLength),
		}
	}

	rawType, ok := envelope["type"]
	if !ok {
		return nil, &ParseError{
			Kind:    ErrorShape,
			Reason:  `missing "type" field`,
			Excerpt: excerpt(line, excerptLength),
		}
	}
	var messageType string
	if err := json.Unmarshal(rawType, &messageType); err != nil {
		return nil, &ParseError{
			Kind:    ErrorShape,
			Reason:  `"type" field is not a string`,
			Excerpt: excerpt(line, excerptLength),
		}
	}
	if messageType == "" {
		return nil, &ParseError{
			Kind:    ErrorShape,
			Reason:  `"type" field is empty`,
			Excerpt: excerpt(line, excerptLength),
		}
	}

	return &Message{
		Type:    messageType,
		Payload: json.RawMessage(append([]byte(nil), line...)),
	}, nil
}

// excerpt returns at most limit runes from the start of text, with a
// trailing ellipsis when anything was cut. Invalid UTF-8 is replaced so
// the result is always printable as a string.
func excerpt(text []byte, limit int) string {
	// Never convert more than limit runes' worth of bytes; overflow
	// excerpts are taken from megabytes of discarded input.
	cut := false
	if maxBytes := limit * utf8.UTFMax; len(text) > maxBytes {
		text = text[:maxBytes]
		cut = true
	}
	valid := strings.ToValidUTF8(string(text), "�")
	if utf8.RuneCountInString(valid) <= limit {
		if cut {
			return valid + "…"
		}
		return valid
	}
	count := 0
	for index := range valid {
		if count == limit {
			return valid[:index] + "…"
		}
		count++
	}
	return valid
}
