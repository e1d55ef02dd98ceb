// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package agentstream

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"

	"github.com/bureau-foundation/agentstream/lib/clock"
)

// SessionLogWriter writes events as JSONL. A path ending in .zst gets a
// zstd stream; each event is flushed as its own block so a crashed
// session still leaves a readable prefix. It is safe for concurrent
// use.
type SessionLogWriter struct {
	file       *os.File
	compressor *zstd.Encoder
	encoder    *json.Encoder
	mutex      sync.Mutex
	closed     bool
}

// NewSessionLogWriter creates (or truncates) the log at path.
func NewSessionLogWriter(path string) (*SessionLogWriter, error) {
	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("creating session log %q: %w", path, err)
	}

	writer := &SessionLogWriter{file: file}
	var destination io.Writer = file
	if strings.HasSuffix(path, ".zst") {
		writer.compressor, err = zstd.NewWriter(file)
		if err != nil {
			file.Close()
			return nil, fmt.Errorf("creating zstd stream for %q: %w", path, err)
		}
		destination = writer.compressor
	}
	writer.encoder = json.NewEncoder(destination)
	writer.encoder.SetEscapeHTML(false)
	return writer, nil
}

// Write appends event and syncs the file.
func (writer *SessionLogWriter) Write(event Event) error {
	writer.mutex.Lock()
	defer writer.mutex.Unlock()

	if writer.closed {
		return fmt.Errorf("session log is closed")
	}
	if err := writer.encoder.Encode(event); err != nil {
		return fmt.Errorf("encoding session log event: %w", err)
	}
	if writer.compressor != nil {
		if err := writer.compressor.Flush(); err != nil {
			return fmt.Errorf("flushing session log: %w", err)
		}
	}
	if err := writer.file.Sync(); err != nil {
		return fmt.Errorf("syncing session log: %w", err)
	}
	return nil
}

// Close finishes the zstd stream, if any, and closes the file. Calling
// Close more than once returns nil.
func (writer *SessionLogWriter) Close() error {
	writer.mutex.Lock()
	defer writer.mutex.Unlock()
	if writer.closed {
		return nil
	}
	writer.closed = true

	var compressorError error
	if writer.compressor != nil {
		compressorError = writer.compressor.Close()
	}
	return errors.Join(compressorError, writer.file.Close())
}

// ReadSessionLog reads back a log written by SessionLogWriter,
// decompressing it when the path ends in .zst.
func ReadSessionLog(path string) ([]Event, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening session log %q: %w", path, err)
	}
	defer file.Close()

	var source io.Reader = file
	if strings.HasSuffix(path, ".zst") {
		decompressor, err := zstd.NewReader(file)
		if err != nil {
			return nil, fmt.Errorf("opening zstd stream %q: %w", path, err)
		}
		defer decompressor.Close()
		source = decompressor
	}

	var events []Event
	decoder := json.NewDecoder(bufio.NewReader(source))
	for {
		var event Event
		err := decoder.Decode(&event)
		if errors.Is(err, io.EOF) {
			return events, nil
		}
		if err != nil {
			return events, fmt.Errorf("decoding session log %q event %d: %w", path, len(events)+1, err)
		}
		events = append(events, event)
	}
}

// SessionSummary aggregates a session's events.
type SessionSummary struct {
	EventCount       int64         `json:"event_count"`
	InputTokens      int64         `json:"input_tokens"`
	OutputTokens     int64         `json:"output_tokens"`
	CacheReadTokens  int64         `json:"cache_read_tokens"`
	CacheWriteTokens int64         `json:"cache_write_tokens"`
	CostUSD          float64       `json:"cost_usd"`
	ToolCallCount    int64         `json:"tool_call_count"`
	ErrorCount       int64         `json:"error_count"`
	TurnCount        int64         `json:"turn_count"`
	Duration         time.Duration `json:"duration"`
}

// tally accumulates a SessionSummary. Per-step metrics are summed;
// when the agent also reports session totals, the totals win so steps
// are not counted twice. Not safe for concurrent use.
type tally struct {
	clock   clock.Clock
	start   time.Time
	counts  SessionSummary
	steps   MetricEvent
	session *MetricEvent
}

func newTally(clock clock.Clock) tally {
	return tally{clock: clock, start: clock.Now()}
}

func (tally *tally) add(event Event) {
	tally.counts.EventCount++
	switch event.Type {
	case EventTypeToolCall:
		tally.counts.ToolCallCount++
	case EventTypeError:
		tally.counts.ErrorCount++
	case EventTypeMetric:
		if event.Metric == nil {
			return
		}
		if event.Metric.Session {
			session := *event.Metric
			tally.session = &session
			return
		}
		tally.steps.InputTokens += event.Metric.InputTokens
		tally.steps.OutputTokens += event.Metric.OutputTokens
		tally.steps.CacheReadTokens += event.Metric.CacheReadTokens
		tally.steps.CacheWriteTokens += event.Metric.CacheWriteTokens
		tally.steps.CostUSD += event.Metric.CostUSD
		tally.steps.TurnCount += event.Metric.TurnCount
	}
}

func (tally *tally) summary() SessionSummary {
	summary := tally.counts
	metrics := tally.steps
	if tally.session != nil {
		metrics = *tally.session
	}
	summary.InputTokens = metrics.InputTokens
	summary.OutputTokens = metrics.OutputTokens
	summary.CacheReadTokens = metrics.CacheReadTokens
	summary.CacheWriteTokens = metrics.CacheWriteTokens
	summary.CostUSD = metrics.CostUSD
	summary.TurnCount = metrics.TurnCount
	summary.Duration = tally.clock.Now().Sub(tally.start)
	return summary
}
