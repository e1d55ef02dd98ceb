// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// agentstream parses the stdout of agent CLIs into typed messages.
//
// Three subcommands share one parser configuration:
//
// parse reads a file (or stdin) and prints every outcome: messages,
// skipped noise lines, and decode errors.
//
// run spawns an agent, pumps its stdout through the parser, writes a
// JSONL session log, and optionally records the raw chunks to a
// transcript file.
//
// replay feeds a recorded transcript back through the parser with the
// original chunk boundaries.
package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/pflag"
	"golang.org/x/term"

	"github.com/bureau-foundation/agentstream/lib/agentstream"
	"github.com/bureau-foundation/agentstream/lib/clock"
	"github.com/bureau-foundation/agentstream/lib/config"
	"github.com/bureau-foundation/agentstream/lib/streamparse"
	"github.com/bureau-foundation/agentstream/lib/transcript"
)

func main() {
	if err := run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// streams are the process's standard streams, replaced in tests.
type streams struct {
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	std := streams{stdin: stdin, stdout: stdout, stderr: stderr}
	if len(args) == 0 {
		printHelp(stderr)
		return fmt.Errorf("missing subcommand")
	}

	switch args[0] {
	case "parse":
		return runParse(args[1:], std)
	case "run":
		return runAgent(args[1:], std)
	case "replay":
		return runReplay(args[1:], std)
	case "help", "-h", "--help":
		printHelp(stdout)
		return nil
	default:
		printHelp(stderr)
		return fmt.Errorf("unknown subcommand %q", args[0])
	}
}

func printHelp(w io.Writer) {
	fmt.Fprint(w, `agentstream: recover typed messages from agent CLI stdout.

Usage:
  agentstream parse [flags] [file]        parse a file, or stdin when omitted or "-"
  agentstream run [flags] -- command...   run an agent and parse its stdout
  agentstream replay [flags] transcript   replay a recorded transcript

Every subcommand accepts:
  --config path       config file (default: $AGENTSTREAM_CONFIG, else built-in defaults)
  --format format     jsonl, pretty, or auto (pretty on a terminal)
  --chunk-size bytes  read size (default from config)

Run "agentstream <subcommand> --help" for subcommand flags.
`)
}

// commonFlags are shared by every subcommand.
type commonFlags struct {
	configPath string
	format     string
	chunkSize  int
}

func newFlagSet(name string, common *commonFlags) *pflag.FlagSet {
	flagSet := pflag.NewFlagSet("agentstream "+name, pflag.ContinueOnError)
	flagSet.StringVar(&common.configPath, "config", "", "config file (YAML, or JSON with comments for .json/.jsonc)")
	flagSet.StringVar(&common.format, "format", "auto", "output format: jsonl, pretty, or auto")
	flagSet.IntVar(&common.chunkSize, "chunk-size", 0, "read size in bytes (0: use config)")
	return flagSet
}

// parseFlags parses args, printing usage for --help. It returns
// handled=true when the command should exit without doing anything.
func parseFlags(flagSet *pflag.FlagSet, args []string, stderr io.Writer) (handled bool, err error) {
	flagSet.SetOutput(stderr)
	if err := flagSet.Parse(args); err != nil {
		if err == pflag.ErrHelp {
			return true, nil
		}
		return false, err
	}
	return false, nil
}

// setup resolves configuration, the logger, and the outcome renderer
// for a subcommand.
func (common *commonFlags) setup(std streams) (*config.Config, *slog.Logger, renderer, error) {
	cfg, err := config.Resolve(common.configPath)
	if err != nil {
		return nil, nil, nil, err
	}
	if common.chunkSize < 0 {
		return nil, nil, nil, fmt.Errorf("--chunk-size must not be negative")
	}
	if common.chunkSize > 0 {
		cfg.Agent.ChunkSize = common.chunkSize
	}
	level, _ := cfg.Logging.SlogLevel()
	logger := newLogger(std.stderr, level)

	output, err := newRenderer(common.format, std.stdout)
	if err != nil {
		return nil, nil, nil, err
	}
	return cfg, logger, output, nil
}

// newLogger writes text records on a terminal and JSON records
// otherwise.
func newLogger(w io.Writer, level slog.Level) *slog.Logger {
	options := &slog.HandlerOptions{Level: level}
	if isTerminal(w) {
		return slog.New(slog.NewTextHandler(w, options))
	}
	return slog.New(slog.NewJSONHandler(w, options))
}

func isTerminal(w io.Writer) bool {
	file, ok := w.(*os.File)
	return ok && term.IsTerminal(int(file.Fd()))
}

func runParse(args []string, std streams) error {
	var common commonFlags
	var recordPath string
	var strict bool
	flagSet := newFlagSet("parse", &common)
	flagSet.StringVar(&recordPath, "record", "", "save the raw chunks read to this transcript file")
	flagSet.BoolVar(&strict, "strict", false, "exit with an error if any line fails to decode")
	if handled, err := parseFlags(flagSet, args, std.stderr); handled || err != nil {
		return err
	}

	rest := flagSet.Args()
	if len(rest) > 1 {
		return fmt.Errorf("parse takes at most one file, got %d arguments", len(rest))
	}
	cfg, logger, output, err := common.setup(std)
	if err != nil {
		return err
	}

	input := std.stdin
	source := "stdin"
	if len(rest) == 1 && rest[0] != "-" {
		file, err := os.Open(rest[0])
		if err != nil {
			return fmt.Errorf("opening input: %w", err)
		}
		defer file.Close()
		input, source = file, rest[0]
	}

	var recorder *transcript.Recorder
	if recordPath != "" {
		recorder = transcript.NewRecorder(clock.Real())
		input = io.TeeReader(input, recorder)
	}

	parser := streamparse.New(cfg.Parser.StreamParse(logger))
	parser.Subscribe(output.render)
	pumpError := agentstream.Pump(context.Background(), input, parser, cfg.Agent.ChunkSize)
	if err := output.err(); err != nil {
		return fmt.Errorf("writing output: %w", err)
	}

	if recorder != nil {
		if err := saveTranscript(recordPath, recorder, cfg, logger); err != nil {
			return err
		}
	}
	if pumpError != nil {
		return pumpError
	}

	stats := parser.Stats()
	logger.Info("parse complete", "source", source, "stats", stats)
	return checkStrict(strict, stats)
}

func runAgent(args []string, std streams) error {
	var common commonFlags
	var recordPath, sessionLogPath string
	var strict bool
	flagSet := newFlagSet("run", &common)
	flagSet.StringVar(&recordPath, "record", "", "save raw agent stdout to this transcript file (default from config)")
	flagSet.StringVar(&sessionLogPath, "session-log", "", "write JSONL session events here; .zst compresses (default from config)")
	flagSet.BoolVar(&strict, "strict", false, "interrupt the agent on the first decode error")
	if handled, err := parseFlags(flagSet, args, std.stderr); handled || err != nil {
		return err
	}
	cfg, logger, output, err := common.setup(std)
	if err != nil {
		return err
	}

	command, commandArgs := cfg.Agent.Command, cfg.Agent.Args
	if rest := flagSet.Args(); len(rest) > 0 {
		command, commandArgs = rest[0], rest[1:]
	}
	if command == "" {
		return fmt.Errorf("no agent command: pass one after -- or set agent.command in the config")
	}
	if recordPath == "" {
		recordPath = cfg.Transcript.Path
	}
	if sessionLogPath == "" {
		sessionLogPath = cfg.SessionLog.Path
	}

	var recorder *transcript.Recorder
	if recordPath != "" {
		recorder = transcript.NewRecorder(clock.Real())
	}
	grace, _ := cfg.Agent.InterruptGraceDuration()

	summary, runError := agentstream.Run(context.Background(), &agentstream.CommandDriver{Stderr: std.stderr}, agentstream.RunConfig{
		Command:          command,
		Args:             commandArgs,
		WorkingDirectory: cfg.Agent.WorkingDirectory,
		Environment:      cfg.Agent.Environment,
		Parser:           cfg.Parser.StreamParse(logger),
		ChunkSize:        cfg.Agent.ChunkSize,
		SessionLogPath:   sessionLogPath,
		Recorder:         recorder,
		StrictDecode:     strict || cfg.Agent.StrictDecode,
		InterruptGrace:   grace,
		OnOutcome:        output.render,
		Logger:           logger,
	})
	if err := output.err(); err != nil {
		return fmt.Errorf("writing output: %w", err)
	}
	if recorder != nil {
		if err := saveTranscript(recordPath, recorder, cfg, logger); err != nil {
			return err
		}
	}
	if runError != nil {
		return runError
	}
	if summary.Interrupted {
		return fmt.Errorf("agent was interrupted")
	}
	return nil
}

func runReplay(args []string, std streams) error {
	var common commonFlags
	var strict bool
	flagSet := newFlagSet("replay", &common)
	flagSet.BoolVar(&strict, "strict", false, "exit with an error if any line fails to decode")
	if handled, err := parseFlags(flagSet, args, std.stderr); handled || err != nil {
		return err
	}
	rest := flagSet.Args()
	if len(rest) != 1 {
		return fmt.Errorf("replay takes exactly one transcript file")
	}
	cfg, logger, output, err := common.setup(std)
	if err != nil {
		return err
	}

	recorded, err := transcript.ReadFile(rest[0])
	if err != nil {
		return err
	}
	digest := recorded.Digest()
	logger.Info("replaying transcript",
		"path", rest[0],
		"chunks", len(recorded.Chunks),
		"bytes", recorded.Size(),
		"blake3", hex.EncodeToString(digest[:]),
	)

	parser := streamparse.New(cfg.Parser.StreamParse(logger))
	parser.Subscribe(output.render)
	transcript.Replay(recorded, parser)
	if err := output.err(); err != nil {
		return fmt.Errorf("writing output: %w", err)
	}

	stats := parser.Stats()
	logger.Info("replay complete", "stats", stats)
	return checkStrict(strict, stats)
}

func saveTranscript(path string, recorder *transcript.Recorder, cfg *config.Config, logger *slog.Logger) error {
	recorded := recorder.Transcript()
	if err := transcript.WriteFile(path, recorded, cfg.TranscriptCompression()); err != nil {
		return err
	}
	logger.Info("transcript saved", "path", path, "chunks", len(recorded.Chunks), "bytes", recorded.Size())
	return nil
}

func checkStrict(strict bool, stats streamparse.Stats) error {
	if !strict {
		return nil
	}
	if failed := stats.DecodeErrors + stats.ShapeErrors; failed > 0 {
		noun := "lines"
		if failed == 1 {
			noun = "line"
		}
		return fmt.Errorf("%d %s failed to decode", failed, noun)
	}
	return nil
}
