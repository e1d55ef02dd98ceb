// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package agentstream

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/bureau-foundation/agentstream/lib/clock"
)

func sampleEvents() []Event {
	return []Event{
		{Timestamp: epoch, Type: EventTypeSystem, System: &SystemEvent{Subtype: "step_start"}},
		{Timestamp: epoch, Type: EventTypeToolCall, ToolCall: &ToolCallEvent{ID: "c1", Name: "bash"}},
		{Timestamp: epoch, Type: EventTypeToolResult, ToolResult: &ToolResultEvent{ID: "c1", Output: "ok"}},
		{Timestamp: epoch, Type: EventTypeMetric, Metric: &MetricEvent{InputTokens: 10, OutputTokens: 2, CostUSD: 0.25, TurnCount: 1}},
		{Timestamp: epoch, Type: EventTypeError, Error: &ErrorEvent{Message: "decode: bad", Kind: "decode"}},
		{Timestamp: epoch, Type: EventTypeMetric, Metric: &MetricEvent{InputTokens: 5, OutputTokens: 1, CostUSD: 0.5, TurnCount: 1}},
	}
}

func TestSessionLogRoundTrip(t *testing.T) {
	t.Parallel()

	for _, name := range []string{"session.jsonl", "session.jsonl.zst"} {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			path := filepath.Join(t.TempDir(), name)
			writer, err := NewSessionLogWriter(path)
			if err != nil {
				t.Fatal(err)
			}
			for _, event := range sampleEvents() {
				if err := writer.Write(event); err != nil {
					t.Fatalf("Write: %v", err)
				}
			}
			if err := writer.Close(); err != nil {
				t.Fatalf("Close: %v", err)
			}
			if err := writer.Close(); err != nil {
				t.Fatalf("second Close: %v", err)
			}

			events, err := ReadSessionLog(path)
			if err != nil {
				t.Fatalf("ReadSessionLog: %v", err)
			}
			if len(events) != len(sampleEvents()) {
				t.Fatalf("read %d events, want %d", len(events), len(sampleEvents()))
			}
			if events[1].ToolCall == nil || events[1].ToolCall.Name != "bash" {
				t.Errorf("event 1 = %+v", events[1])
			}
			if events[4].Error == nil || events[4].Error.Kind != "decode" {
				t.Errorf("event 4 = %+v", events[4])
			}
		})
	}
}

func TestSessionLogZstdIsCompressed(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "session.jsonl.zst")
	writer, err := NewSessionLogWriter(path)
	if err != nil {
		t.Fatal(err)
	}
	writer.Write(sampleEvents()[0])
	writer.Close()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	zstdMagic := []byte{0x28, 0xb5, 0x2f, 0xfd}
	if !bytes.HasPrefix(data, zstdMagic) {
		t.Fatalf("file starts with %x, want the zstd frame magic", data[:min(4, len(data))])
	}
}

func TestTallySumsSteps(t *testing.T) {
	t.Parallel()

	fake := clock.Fake(epoch)
	counter := newTally(fake)
	for _, event := range sampleEvents() {
		counter.add(event)
	}
	fake.Advance(90 * time.Second)

	summary := counter.summary()
	want := SessionSummary{
		EventCount:    6,
		InputTokens:   15,
		OutputTokens:  3,
		CostUSD:       0.75,
		ToolCallCount: 1,
		ErrorCount:    1,
		TurnCount:     2,
		Duration:      90 * time.Second,
	}
	if summary != want {
		t.Errorf("summary() = %+v\nwant          %+v", summary, want)
	}
}

func TestSessionTotalsReplaceStepSums(t *testing.T) {
	t.Parallel()

	counter := newTally(clock.Fake(epoch))
	for _, event := range sampleEvents() {
		counter.add(event)
	}
	counter.add(Event{Type: EventTypeMetric, Metric: &MetricEvent{
		Session: true, InputTokens: 20, OutputTokens: 4, CostUSD: 1, TurnCount: 2,
	}})

	summary := counter.summary()
	if summary.InputTokens != 20 || summary.OutputTokens != 4 || summary.CostUSD != 1 || summary.TurnCount != 2 {
		t.Errorf("summary = %+v, want the session totals", summary)
	}
	if summary.EventCount != 7 {
		t.Errorf("EventCount = %d, want 7", summary.EventCount)
	}
}

func TestSessionLogWriteAfterClose(t *testing.T) {
	t.Parallel()

	writer, err := NewSessionLogWriter(filepath.Join(t.TempDir(), "session.jsonl"))
	if err != nil {
		t.Fatal(err)
	}
	writer.Close()
	if err := writer.Write(sampleEvents()[0]); err == nil {
		t.Fatal("Write after Close succeeded")
	}
}

func TestNewSessionLogWriterBadPath(t *testing.T) {
	t.Parallel()

	_, err := NewSessionLogWriter(filepath.Join(t.TempDir(), "missing", "session.jsonl"))
	if err == nil {
		t.Fatal("created a session log in a missing directory")
	}
}
