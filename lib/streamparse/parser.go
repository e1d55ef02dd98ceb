// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package streamparse

import (
	"log/slog"
)

// Stats are cumulative counters over the lifetime of a Parser. Reset
// does not clear them.
type Stats struct {
	Lines            int64 `json:"lines"`
	EmptyLines       int64 `json:"empty_lines"`
	Messages         int64 `json:"messages"`
	Decorations      int64 `json:"decorations"`
	ControlSequences int64 `json:"control_sequences"`
	TextLines        int64 `json:"text_lines"`
	DecodeErrors     int64 `json:"decode_errors"`
	ShapeErrors      int64 `json:"shape_errors"`
	Overflows        int64 `json:"overflows"`
	DiscardedBytes   int64 `json:"discarded_bytes"`
}

// Parser is the stream controller: it buffers chunks, enforces the
// ceiling, splits complete lines, classifies and decodes them, and
// delivers one Outcome per non-empty line to its listeners.
//
// A Parser is not safe for concurrent use.
type Parser struct {
	config     Config
	classifier classifier
	logger     *slog.Logger

	buffer lineBuffer

	listeners      []subscription
	nextListenerID int

	// line is the number of lines processed in the current stream.
	line int

	// generation changes on every Reset. Feed stops delivering the
	// lines of a chunk when a listener resets the parser mid-chunk.
	generation uint64

	// dispatching is set while listeners run.
	dispatching bool

	stats Stats
}

type subscription struct {
	id       int
	listener Listener
}

// New creates a Parser. Zero fields of config take their defaults.
func New(config Config) *Parser {
	config = config.withDefaults()
	return &Parser{
		config:     config,
		classifier: newClassifier(config.DecorationGlyphs),
		logger:     config.Logger,
	}
}

// Subscribe registers listener for every outcome. The returned function
// removes the registration; calling it more than once is harmless.
func (parser *Parser) Subscribe(listener Listener) (unsubscribe func()) {
	parser.nextListenerID++
	id := parser.nextListenerID
	parser.listeners = append(parser.listeners, subscription{id: id, listener: listener})
	return func() {
		for index, entry := range parser.listeners {
			if entry.id == id {
				parser.listeners = append(parser.listeners[:index:index], parser.listeners[index+1:]...)
				return
			}
		}
	}
}

// OnMessage registers handler for decoded messages only.
func (parser *Parser) OnMessage(handler func(Message)) (unsubscribe func()) {
	return parser.Subscribe(func(outcome Outcome) {
		if outcome.Kind == OutcomeMessage {
			handler(*outcome.Message)
		}
	})
}

// OnError registers handler for decode, shape, and overflow errors
// only.
func (parser *Parser) OnError(handler func(*ParseError)) (unsubscribe func()) {
	return parser.Subscribe(func(outcome Outcome) {
		if outcome.Kind == OutcomeError {
			handler(outcome.Err)
		}
	})
}

// Feed appends chunk to the buffer and processes every line it
// completes. Outcomes are delivered before Feed returns, in line order.
// Feed never fails: malformed input surfaces as error outcomes.
func (parser *Parser) Feed(chunk string) {
	parser.feed([]byte(chunk))
}

// Write feeds p to the parser, making a Parser usable as the
// destination of io.Copy or an io.MultiWriter. It always consumes all
// of p and returns a nil error.
func (parser *Parser) Write(p []byte) (int, error) {
	parser.feed(p)
	return len(p), nil
}

func (parser *Parser) feed(chunk []byte) {
	parser.checkReentry("Feed")

	parser.buffer.append(chunk)
	if overflow, dropped := enforceCeiling(&parser.buffer, parser.config.Ceiling, parser.config.ExcerptLength); overflow != nil {
		parser.stats.Overflows++
		parser.stats.DiscardedBytes += int64(dropped)
		parser.emit(Outcome{Kind: OutcomeError, Err: overflow})
	}

	generation := parser.generation
	lines, consumed := parser.buffer.splitLines()
	for _, line := range lines {
		parser.processLine(line)
		if parser.generation != generation {
			return
		}
	}
	parser.buffer.discard(consumed)
}

// Flush processes the unterminated trailing fragment, if any, as a
// final line and empties the buffer. A second Flush with no Feed in
// between does nothing.
func (parser *Parser) Flush() {
	parser.checkReentry("Flush")

	if parser.buffer.len() == 0 {
		return
	}
	// Every Feed segments completely, so the residue holds no
	// terminator and is exactly one (possibly partial) line.
	parser.processLine(parser.buffer.data)
	parser.buffer.reset()
}

// Reset discards all buffered input and restarts line numbering without
// emitting anything. Call it when a new subprocess stream attaches to
// an existing Parser. Reset may be called from a listener, in which
// case the remaining lines of the chunk being fed are dropped.
func (parser *Parser) Reset() {
	parser.buffer.reset()
	parser.line = 0
	parser.generation++
}

// Buffered returns the number of unconsumed bytes held by the parser.
func (parser *Parser) Buffered() int {
	return parser.buffer.len()
}

// Stats returns a snapshot of the parser's counters.
func (parser *Parser) Stats() Stats {
	return parser.stats
}

// checkReentry panics when a listener calls back into Feed or Flush,
// which would interleave the nested chunk's lines with the lines still
// being delivered.
func (parser *Parser) checkReentry(operation string) {
	if parser.dispatching {
		panic("streamparse: " + operation + " called from a listener")
	}
}

// processLine classifies one complete line and emits its outcome.
func (parser *Parser) processLine(line []byte) {
	parser.line++
	parser.stats.Lines++

	class, trimmed := parser.classifier.classify(line)
	switch class {
	case LineEmpty:
		parser.stats.EmptyLines++
		return

	case LineJSONCandidate:
		message, parseError := decodeRecord(trimmed, parser.config.ExcerptLength)
		if parseError != nil {
			if parseError.Kind == ErrorShape {
				parser.stats.ShapeErrors++
			} else {
				parser.stats.DecodeErrors++
			}
			parser.emit(Outcome{Kind: OutcomeError, Line: parser.line, Err: parseError})
			return
		}
		parser.stats.Messages++
		parser.emit(Outcome{Kind: OutcomeMessage, Line: parser.line, Message: message})

	default:
		switch class {
		case LineDecoration:
			parser.stats.Decorations++
		case LineControlSequence:
			parser.stats.ControlSequences++
		case LineText:
			parser.stats.TextLines++
		}
		parser.emit(Outcome{
			Kind:    OutcomeSkipped,
			Line:    parser.line,
			Skip:    class.skipReason(),
			Preview: preview(trimmed, parser.config.ExcerptLength),
		})
	}
}

// emit logs an outcome and delivers it to every listener registered at
// the time of the call.
func (parser *Parser) emit(outcome Outcome) {
	switch outcome.Kind {
	case OutcomeSkipped:
		parser.logger.Debug("skipping noise line",
			"line", outcome.Line,
			"reason", outcome.Skip,
			"preview", outcome.Preview,
		)
	case OutcomeError:
		parser.logger.Warn("stream parse error",
			"line", outcome.Line,
			"kind", outcome.Err.Kind,
			"reason", outcome.Err.Reason,
			"excerpt", outcome.Err.Excerpt,
		)
	}

	if len(parser.listeners) == 0 {
		return
	}
	// Unsubscribe copies rather than edits in place, so this snapshot
	// is stable while listeners run.
	listeners := parser.listeners
	parser.dispatching = true
	defer func() { parser.dispatching = false }()
	for _, entry := range listeners {
		entry.listener(outcome)
	}
}
