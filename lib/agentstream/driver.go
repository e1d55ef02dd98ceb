// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package agentstream

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"syscall"

	"golang.org/x/sys/unix"
)

// Process is a running agent.
type Process interface {
	// Wait blocks until the process exits. The caller reads stdout to
	// EOF first.
	Wait() error

	// Signal delivers signal to the agent.
	Signal(signal os.Signal) error
}

// DriverConfig describes the agent process to start.
type DriverConfig struct {
	Command string
	Args    []string

	// WorkingDirectory defaults to the caller's directory when empty.
	WorkingDirectory string

	// ExtraEnv is appended to the inherited environment, in KEY=VALUE
	// form.
	ExtraEnv []string
}

// Driver abstracts how an agent runtime is started and stopped. The
// output format is not the driver's concern: every agent's stdout goes
// through the same stream parser.
type Driver interface {
	// Start spawns the agent and returns its stdout. The caller must
	// read stdout to EOF before calling Process.Wait.
	Start(ctx context.Context, config DriverConfig) (Process, io.ReadCloser, error)

	// Interrupt asks the agent to stop gracefully.
	Interrupt(process Process) error
}

// CommandDriver runs an arbitrary command in its own process group.
// Signals go to the whole group, so a wrapper script and the agent it
// launches stop together.
type CommandDriver struct {
	// Stderr receives the agent's stderr. Nil discards it.
	Stderr io.Writer
}

// commandProcess implements Process for an exec.Cmd started with
// Setpgid.
type commandProcess struct {
	command *exec.Cmd
}

func (process *commandProcess) Wait() error {
	return process.command.Wait()
}

// Signal delivers signal to the process group. Signals that are not
// syscall.Signal values go to the leader only.
func (process *commandProcess) Signal(signal os.Signal) error {
	if process.command.Process == nil {
		return fmt.Errorf("process not started")
	}
	number, ok := signal.(syscall.Signal)
	if !ok {
		return process.command.Process.Signal(signal)
	}
	return unix.Kill(-process.command.Process.Pid, number)
}

// Start spawns config.Command. Cancelling ctx kills the process group.
func (driver *CommandDriver) Start(ctx context.Context, config DriverConfig) (Process, io.ReadCloser, error) {
	if config.Command == "" {
		return nil, nil, fmt.Errorf("no agent command configured")
	}

	command := exec.CommandContext(ctx, config.Command, config.Args...)
	command.Dir = config.WorkingDirectory
	command.Stderr = driver.Stderr
	if len(config.ExtraEnv) > 0 {
		command.Env = append(os.Environ(), config.ExtraEnv...)
	}
	command.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	command.Cancel = func() error {
		return unix.Kill(-command.Process.Pid, unix.SIGKILL)
	}

	stdout, err := command.StdoutPipe()
	if err != nil {
		return nil, nil, fmt.Errorf("creating stdout pipe: %w", err)
	}
	if err := command.Start(); err != nil {
		return nil, nil, fmt.Errorf("starting %s: %w", config.Command, err)
	}
	return &commandProcess{command: command}, stdout, nil
}

// Interrupt sends SIGINT to the agent's process group.
func (driver *CommandDriver) Interrupt(process Process) error {
	return process.Signal(unix.SIGINT)
}
