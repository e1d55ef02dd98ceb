// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/bureau-foundation/agentstream/lib/agentstream"
)

const scenario = `{"type":"tool_call","part":{"tool":"browser"}}` + "\n" +
	"│ spinner\n" +
	`{"type":"tool_result","part":{}}` + "\n" +
	"{bad json}\n" +
	"\n" +
	`{"type":"x"}`

// quietConfig writes a config that keeps log output to errors only.
func quietConfig(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "agentstream.yaml")
	if err := os.WriteFile(path, []byte("logging:\n  level: error\n"), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func runCommand(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	err := run(args, strings.NewReader(stdin), &stdout, &stderr)
	return stdout.String(), stderr.String(), err
}

func decodeRecords(t *testing.T, output string) []outcomeRecord {
	t.Helper()
	var records []outcomeRecord
	scanner := bufio.NewScanner(strings.NewReader(output))
	for scanner.Scan() {
		var record outcomeRecord
		if err := json.Unmarshal(scanner.Bytes(), &record); err != nil {
			t.Fatalf("output line %q is not JSON: %v", scanner.Text(), err)
		}
		records = append(records, record)
	}
	return records
}

func describeRecords(records []outcomeRecord) string {
	parts := make([]string, len(records))
	for index, record := range records {
		switch record.Kind {
		case "message":
			parts[index] = "message(" + record.Type + ")"
		case "skipped":
			parts[index] = "skipped(" + record.Reason + ")"
		default:
			parts[index] = record.Kind + "(" + record.ErrorKind + ")"
		}
	}
	return strings.Join(parts, " ")
}

func TestParseFileJSONL(t *testing.T) {
	t.Parallel()

	input := filepath.Join(t.TempDir(), "stdout.log")
	if err := os.WriteFile(input, []byte(scenario), 0644); err != nil {
		t.Fatal(err)
	}

	stdout, _, err := runCommand(t, "", "parse", "--config", quietConfig(t), "--format", "jsonl", "--chunk-size", "5", input)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	records := decodeRecords(t, stdout)
	want := "message(tool_call) skipped(decoration) message(tool_result) error(decode) message(x)"
	if got := describeRecords(records); got != want {
		t.Fatalf("outcomes = %s\nwant       %s", got, want)
	}
	if records[0].Line != 1 || records[4].Line != 6 {
		t.Errorf("line numbers = %d, %d; want 1, 6", records[0].Line, records[4].Line)
	}
	if string(records[0].Payload) != `{"type":"tool_call","part":{"tool":"browser"}}` {
		t.Errorf("payload = %s", records[0].Payload)
	}
	if records[1].Preview != "│ spinner" {
		t.Errorf("preview = %q", records[1].Preview)
	}
	if records[3].Excerpt != "{bad json}" {
		t.Errorf("excerpt = %q", records[3].Excerpt)
	}
}

func TestParseStdinPretty(t *testing.T) {
	t.Parallel()

	stdout, _, err := runCommand(t, scenario, "parse", "--config", quietConfig(t), "--format", "pretty", "-")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	lines := strings.Split(strings.TrimRight(stdout, "\n"), "\n")
	if len(lines) != 5 {
		t.Fatalf("pretty output has %d lines, want 5:\n%s", len(lines), stdout)
	}
	for index, want := range []string{"tool_call", "decoration", "tool_result", "decode", "x"} {
		if !strings.Contains(lines[index], want) {
			t.Errorf("line %d = %q, want it to mention %q", index, lines[index], want)
		}
	}
	if strings.Contains(stdout, "\x1b[") {
		t.Errorf("pretty output to a non-terminal contains escape sequences: %q", stdout)
	}
}

func TestParseStrict(t *testing.T) {
	t.Parallel()

	_, _, err := runCommand(t, scenario, "parse", "--config", quietConfig(t), "--format", "jsonl", "--strict")
	if err == nil || err.Error() != "1 line failed to decode" {
		t.Fatalf("parse --strict error = %v", err)
	}
	if _, _, err := runCommand(t, `{"type":"ok"}`+"\n", "parse", "--config", quietConfig(t), "--strict"); err != nil {
		t.Fatalf("parse --strict on clean input: %v", err)
	}
}

func TestRecordThenReplay(t *testing.T) {
	t.Parallel()

	configPath := quietConfig(t)
	transcriptPath := filepath.Join(t.TempDir(), "session.astr")

	parsed, _, err := runCommand(t, scenario, "parse", "--config", configPath, "--format", "jsonl", "--chunk-size", "3", "--record", transcriptPath)
	if err != nil {
		t.Fatalf("parse --record: %v", err)
	}
	replayed, _, err := runCommand(t, "", "replay", "--config", configPath, "--format", "jsonl", transcriptPath)
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if parsed != replayed {
		t.Fatalf("replay output differs from the live parse:\nparse:  %s\nreplay: %s", parsed, replayed)
	}
}

func TestRunAgent(t *testing.T) {
	t.Parallel()
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}

	sessionLog := filepath.Join(t.TempDir(), "session.jsonl")
	script := `printf '│ booting\n{"type":"text","part":{"text":"hi"}}\n{"type":"step_finish","part":{"tokens":{"input":3,"output":1}}}'`
	stdout, _, err := runCommand(t, "", "run", "--config", quietConfig(t), "--format", "jsonl", "--session-log", sessionLog, "--", "sh", "-c", script)
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	want := "skipped(decoration) message(text) message(step_finish)"
	if got := describeRecords(decodeRecords(t, stdout)); got != want {
		t.Errorf("outcomes = %s, want %s", got, want)
	}
	events, err := agentstream.ReadSessionLog(sessionLog)
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 2 || events[0].Type != agentstream.EventTypeResponse || events[1].Metric.InputTokens != 3 {
		t.Errorf("session log = %+v", events)
	}
}

func TestRunAgentExitStatus(t *testing.T) {
	t.Parallel()
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}

	_, _, err := runCommand(t, "", "run", "--config", quietConfig(t), "--format", "jsonl", "--", "sh", "-c", "exit 3")
	if err == nil || !strings.Contains(err.Error(), "exit status 3") {
		t.Fatalf("run error = %v, want the exit status", err)
	}
}

func TestUsageErrors(t *testing.T) {
	t.Parallel()

	configPath := quietConfig(t)
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"no subcommand", nil, "missing subcommand"},
		{"unknown subcommand", []string{"frobnicate"}, "unknown subcommand"},
		{"bad format", []string{"parse", "--config", configPath, "--format", "xml"}, "unknown --format"},
		{"negative chunk size", []string{"parse", "--config", configPath, "--chunk-size", "-1"}, "--chunk-size"},
		{"two files", []string{"parse", "a", "b"}, "at most one file"},
		{"replay without file", []string{"replay", "--config", configPath}, "exactly one transcript"},
		{"run without command", []string{"run", "--config", configPath}, "no agent command"},
		{"missing config", []string{"parse", "--config", "/nonexistent/agentstream.yaml"}, "reading config"},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()

			_, _, err := runCommand(t, "", test.args...)
			if err == nil || !strings.Contains(err.Error(), test.want) {
				t.Fatalf("error = %v, want it to contain %q", err, test.want)
			}
		})
	}
}

func TestHelp(t *testing.T) {
	t.Parallel()

	stdout, _, err := runCommand(t, "", "help")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(stdout, "agentstream parse") {
		t.Errorf("help output = %q", stdout)
	}
	if _, _, err := runCommand(t, "", "parse", "--help"); err != nil {
		t.Errorf("parse --help: %v", err)
	}
}
