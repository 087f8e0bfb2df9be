// Copyright 2026 The RoboJail Authors
// SPDX-License-Identifier: Apache-2.0

// Package supervisor runs one sandboxed process on behalf of a jail
// and keeps the registry's view of the jail truthful around it:
// Running with the live pid while the process exists, Stopped with the
// exit code afterwards.
package supervisor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"os/signal"
	"syscall"

	"github.com/robojail/robojail/lib/registry"
	"github.com/robojail/robojail/sandbox"
)

// Commander builds the confined command for one invocation.
// *sandbox.Sandbox is the production implementation. A nil monitor
// means every exit status belongs to the command itself.
type Commander interface {
	Command(ctx context.Context, argv []string) (*exec.Cmd, *sandbox.ExecMonitor, error)
}

// Supervisor ties sandbox execution to registry state.
type Supervisor struct {
	// Registry records the jail's state transitions.
	Registry *registry.Store

	// Logger defaults to slog.Default.
	Logger *slog.Logger
}

func (s *Supervisor) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}

// Run executes argv inside the jail's sandbox and returns the exit
// status: the command's own code for normal exits, 128 plus the signal
// number for signal deaths. Interactive runs inherit the caller's
// terminal. SIGINT and SIGTERM received while the jail runs are
// forwarded to the child instead of killing the supervisor.
//
// Registry failures after the process has exited are logged, not
// returned: the command's outcome is the caller's primary result.
func (s *Supervisor) Run(ctx context.Context, jail registry.Jail, commander Commander, argv []string) (int, error) {
	cmd, monitor, err := commander.Command(ctx, argv)
	if err != nil {
		return 0, err
	}
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Start(); err != nil {
		if monitor != nil {
			monitor.Close()
		}
		return 0, sandbox.ClassifyStartError(err)
	}
	pid := cmd.Process.Pid

	if err := s.Registry.UpdateState(jail.Name, registry.StateRunning, pid); err != nil {
		s.logger().Warn("marking jail running failed", "jail", jail.Name, "error", err)
	}
	s.logger().Info("jail process started", "jail", jail.Name, "pid", pid, "argv", argv)

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
	done := make(chan struct{})
	go func() {
		for {
			select {
			case sig := <-signals:
				_ = cmd.Process.Signal(sig)
			case <-done:
				return
			}
		}
	}()

	waitErr := cmd.Wait()
	close(done)
	signal.Stop(signals)

	code, err := exitStatus(waitErr)
	if err != nil {
		if monitor != nil {
			monitor.Close()
		}
		s.markStopped(jail.Name, code)
		return code, err
	}

	// Init exit statuses overlap codes a command can legitimately
	// return (127 is any shell's "command not found"), so they only
	// become sandbox errors when the handshake shows the command never
	// started.
	commandRan := monitor == nil || monitor.CommandRan()
	if !commandRan {
		if initErr, ok := sandbox.FromInitExit(code); ok {
			s.markStopped(jail.Name, code)
			return code, initErr
		}
	}

	s.markStopped(jail.Name, code)
	s.logger().Info("jail process exited", "jail", jail.Name, "pid", pid, "code", code)
	return code, nil
}

func (s *Supervisor) markStopped(name string, code int) {
	if err := s.Registry.SetExit(name, code); err != nil {
		s.logger().Warn("marking jail stopped failed", "jail", name, "error", err)
	}
}

// exitStatus translates Wait's error into a numeric status. Signal
// deaths use the shell convention of 128 plus the signal number.
func exitStatus(waitErr error) (int, error) {
	if waitErr == nil {
		return 0, nil
	}
	var exitErr *exec.ExitError
	if !errors.As(waitErr, &exitErr) {
		return 0, fmt.Errorf("waiting for jail process: %w", waitErr)
	}
	status, ok := exitErr.Sys().(syscall.WaitStatus)
	if ok && status.Signaled() {
		return 128 + int(status.Signal()), nil
	}
	return exitErr.ExitCode(), nil
}
