// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package agentstream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"sync"
	"syscall"
	"time"

	"github.com/bureau-foundation/agentstream/lib/clock"
	"github.com/bureau-foundation/agentstream/lib/streamparse"
	"github.com/bureau-foundation/agentstream/lib/transcript"
)

// RunConfig configures one agent session.
type RunConfig struct {
	Command          string
	Args             []string
	WorkingDirectory string
	Environment      map[string]string

	// Parser configures the stream parser. A nil Parser.Logger inherits
	// Logger.
	Parser streamparse.Config

	// ChunkSize is the stdout read size. Zero selects DefaultChunkSize.
	ChunkSize int

	// SessionLogPath enables the JSONL session log.
	SessionLogPath string

	// Recorder, when set, receives every raw stdout chunk.
	Recorder *transcript.Recorder

	// StrictDecode interrupts the agent on the first line that fails
	// to decode, whether as malformed JSON or as a record without a
	// type. Overflow errors do not count.
	StrictDecode bool

	// OnOutcome observes every parser outcome, including skips.
	OnOutcome streamparse.Listener

	// OnEvent observes every session event.
	OnEvent func(Event)

	// InterruptGrace is how long the agent has to exit after an
	// interrupt before it is killed. Zero waits for a second signal.
	InterruptGrace time.Duration

	// Signals replaces SIGINT/SIGTERM delivery. The first value
	// interrupts the agent, the second kills it. Nil installs a
	// signal.Notify handler.
	Signals <-chan os.Signal

	Clock  clock.Clock
	Logger *slog.Logger
}

// RunSummary reports what a session produced.
type RunSummary struct {
	Session SessionSummary    `json:"session"`
	Parser  streamparse.Stats `json:"parser"`

	// Interrupted is set when a signal or strict decode stopped the
	// agent.
	Interrupted bool `json:"interrupted"`
}

// Run starts the agent via driver and pumps its stdout through a
// stream parser until EOF:
//  1. Opens the session log, if configured.
//  2. Starts the agent and subscribes event mapping to the parser.
//  3. Forwards signals: the first interrupts, the second kills. With
//     InterruptGrace set, the kill also follows the interrupt after
//     that long.
//  4. Pumps stdout (teeing raw chunks to the recorder) and flushes at
//     EOF.
//  5. Waits for the agent, still forwarding signals, and returns the
//     summary.
//
// The returned summary is valid even when the error is not nil.
func Run(ctx context.Context, driver Driver, config RunConfig) (RunSummary, error) {
	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, nil))
	}
	clk := config.Clock
	if clk == nil {
		clk = clock.Real()
	}
	parserConfig := config.Parser
	if parserConfig.Logger == nil {
		parserConfig.Logger = logger
	}

	var sessionLog *SessionLogWriter
	if config.SessionLogPath != "" {
		var err error
		sessionLog, err = NewSessionLogWriter(config.SessionLogPath)
		if err != nil {
			return RunSummary{}, fmt.Errorf("creating session log: %w", err)
		}
		defer sessionLog.Close()
		logger.Info("session log opened", "path", config.SessionLogPath)
	}
	counter := newTally(clk)

	logger.Info("starting agent process", "command", config.Command, "args", config.Args)
	process, stdout, err := driver.Start(ctx, DriverConfig{
		Command:          config.Command,
		Args:             config.Args,
		WorkingDirectory: config.WorkingDirectory,
		ExtraEnv:         environmentList(config.Environment),
	})
	if err != nil {
		return RunSummary{}, fmt.Errorf("starting agent process: %w", err)
	}
	defer stdout.Close()

	shutdown := newStopper(driver, process, logger)

	record := func(event Event) {
		counter.add(event)
		if sessionLog != nil {
			if writeError := sessionLog.Write(event); writeError != nil {
				logger.Warn("writing session log event", "error", writeError)
			}
		}
		if config.OnEvent != nil {
			config.OnEvent(event)
		}
	}

	parser := streamparse.New(parserConfig)
	if config.OnOutcome != nil {
		parser.Subscribe(config.OnOutcome)
	}
	parser.Subscribe(func(outcome streamparse.Outcome) {
		switch outcome.Kind {
		case streamparse.OutcomeMessage:
			record(EventFromMessage(clk.Now(), outcome.Line, *outcome.Message))
		case streamparse.OutcomeError:
			record(EventFromParseError(clk.Now(), outcome.Line, outcome.Err))
			if config.StrictDecode && outcome.Err.Kind != streamparse.ErrorOverflow {
				shutdown.interrupt("strict decode: " + outcome.Err.Error())
			}
		}
	})

	signals := config.Signals
	if signals == nil {
		notified := make(chan os.Signal, 2)
		signal.Notify(notified, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(notified)
		signals = notified
	}
	// Signals and the grace timer stay live until the agent exits, not
	// just until its stdout closes.
	processDone := make(chan struct{})
	signalsDone := make(chan struct{})
	go func() {
		defer close(signalsDone)
		interrupted := shutdown.interrupted
		var deadline <-chan time.Time
		for {
			select {
			case received := <-signals:
				shutdown.escalate("received " + received.String())
			case <-interrupted:
				interrupted = nil
				if config.InterruptGrace > 0 {
					deadline = clk.After(config.InterruptGrace)
				}
			case <-deadline:
				deadline = nil
				shutdown.escalate("agent still running after interrupt grace period")
			case <-processDone:
				return
			}
		}
	}()

	var source io.Reader = stdout
	if config.Recorder != nil {
		source = io.TeeReader(stdout, config.Recorder)
	}
	pumpError := Pump(ctx, source, parser, config.ChunkSize)
	processError := process.Wait()
	close(processDone)
	<-signalsDone

	summary := RunSummary{
		Session:     counter.summary(),
		Parser:      parser.Stats(),
		Interrupted: shutdown.stopped(),
	}
	logger.Info("agent session complete",
		"events", summary.Session.EventCount,
		"messages", summary.Parser.Messages,
		"parse_errors", summary.Parser.DecodeErrors+summary.Parser.ShapeErrors+summary.Parser.Overflows,
		"tool_calls", summary.Session.ToolCallCount,
		"input_tokens", summary.Session.InputTokens,
		"output_tokens", summary.Session.OutputTokens,
		"cost_usd", summary.Session.CostUSD,
		"duration", summary.Session.Duration,
	)

	var errs []error
	if pumpError != nil {
		errs = append(errs, fmt.Errorf("pumping agent output: %w", pumpError))
	}
	if processError != nil {
		errs = append(errs, fmt.Errorf("agent process exited: %w", processError))
	}
	return summary, errors.Join(errs...)
}

// stopper tracks how far shutdown has escalated. The signal goroutine
// and the parser listener (strict decode) both drive it.
type stopper struct {
	driver  Driver
	process Process
	logger  *slog.Logger

	// interrupted is closed by the first stop request.
	interrupted chan struct{}

	mutex sync.Mutex
	count int
}

func newStopper(driver Driver, process Process, logger *slog.Logger) *stopper {
	return &stopper{
		driver:      driver,
		process:     process,
		logger:      logger,
		interrupted: make(chan struct{}),
	}
}

// interrupt asks the agent to stop if nothing has yet.
func (stopper *stopper) interrupt(reason string) {
	stopper.mutex.Lock()
	defer stopper.mutex.Unlock()
	if stopper.count == 0 {
		stopper.stopLocked(reason)
	}
}

// escalate interrupts on the first stop request and kills on any
// later one.
func (stopper *stopper) escalate(reason string) {
	stopper.mutex.Lock()
	defer stopper.mutex.Unlock()
	stopper.stopLocked(reason)
}

func (stopper *stopper) stopLocked(reason string) {
	stopper.count++
	if stopper.count == 1 {
		close(stopper.interrupted)
		stopper.logger.Info("interrupting agent", "reason", reason)
		if err := stopper.driver.Interrupt(stopper.process); err != nil {
			stopper.logger.Warn("interrupting agent", "error", err)
		}
		return
	}
	stopper.logger.Info("killing agent", "reason", reason)
	if err := stopper.process.Signal(syscall.SIGKILL); err != nil {
		stopper.logger.Warn("killing agent", "error", err)
	}
}

func (stopper *stopper) stopped() bool {
	stopper.mutex.Lock()
	defer stopper.mutex.Unlock()
	return stopper.count > 0
}

// environmentList renders environment as sorted KEY=VALUE entries.
func environmentList(environment map[string]string) []string {
	if len(environment) == 0 {
		return nil
	}
	list := make([]string, 0, len(environment))
	for name, value := range environment {
		list = append(list, name+"="+value)
	}
	sort.Strings(list)
	return list
}
