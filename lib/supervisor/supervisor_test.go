// Copyright 2026 The RoboJail Authors
// SPDX-License-Identifier: Apache-2.0

package supervisor

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"testing"
	"time"

	"github.com/robojail/robojail/lib/registry"
	"github.com/robojail/robojail/sandbox"
)

// plainCommander runs commands without namespaces so supervision logic
// is testable on any kernel.
type plainCommander struct{}

func (plainCommander) Command(ctx context.Context, argv []string) (*exec.Cmd, *sandbox.ExecMonitor, error) {
	return exec.CommandContext(ctx, argv[0], argv[1:]...), nil, nil
}

// monitorCommander runs plain commands but hands the supervisor a
// prebuilt exec monitor, standing in for the sandbox handshake.
type monitorCommander struct {
	monitor *sandbox.ExecMonitor
}

func (c monitorCommander) Command(ctx context.Context, argv []string) (*exec.Cmd, *sandbox.ExecMonitor, error) {
	return exec.CommandContext(ctx, argv[0], argv[1:]...), c.monitor, nil
}

func newMonitor(t *testing.T) (*sandbox.ExecMonitor, *os.File) {
	t.Helper()
	read, write, err := os.Pipe()
	if err != nil {
		t.Fatalf("pipe: %v", err)
	}
	return sandbox.NewExecMonitor(read, write), write
}

func newSupervisor(t *testing.T) (*Supervisor, *registry.Store) {
	t.Helper()
	store, err := registry.Open(t.TempDir(), nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return &Supervisor{Registry: store}, store
}

func registerJail(t *testing.T, store *registry.Store, name string) registry.Jail {
	t.Helper()
	jail := registry.NewJail(name, "/repo")
	jail.WorktreePath = "/jails/" + name
	if err := store.Register(jail); err != nil {
		t.Fatalf("Register: %v", err)
	}
	return jail
}

func TestRun_ZeroExit(t *testing.T) {
	t.Parallel()

	supervisor, store := newSupervisor(t)
	jail := registerJail(t, store, "demo")

	code, err := supervisor.Run(context.Background(), jail, plainCommander{}, []string{"true"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if code != 0 {
		t.Errorf("exit code = %d, want 0", code)
	}

	got, err := store.Lookup("demo")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if got.State != registry.StateStopped {
		t.Errorf("state = %q, want stopped", got.State)
	}
	if got.ExitCode == nil || *got.ExitCode != 0 {
		t.Errorf("ExitCode = %v, want 0", got.ExitCode)
	}
}

func TestRun_PropagatesExitCode(t *testing.T) {
	t.Parallel()

	supervisor, store := newSupervisor(t)
	jail := registerJail(t, store, "demo")

	code, err := supervisor.Run(context.Background(), jail, plainCommander{},
		[]string{"/bin/sh", "-c", "exit 42"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if code != 42 {
		t.Errorf("exit code = %d, want 42", code)
	}

	got, _ := store.Lookup("demo")
	if got.ExitCode == nil || *got.ExitCode != 42 {
		t.Errorf("recorded ExitCode = %v, want 42", got.ExitCode)
	}
}

func TestRun_SignalDeathMapsTo128Plus(t *testing.T) {
	t.Parallel()

	supervisor, store := newSupervisor(t)
	jail := registerJail(t, store, "demo")

	// The process kills itself with SIGKILL (9).
	code, err := supervisor.Run(context.Background(), jail, plainCommander{},
		[]string{"/bin/sh", "-c", "kill -9 $$"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if code != 137 {
		t.Errorf("exit code = %d, want 137", code)
	}
}

func TestRun_MarksRunningWhileAlive(t *testing.T) {
	t.Parallel()

	supervisor, store := newSupervisor(t)
	jail := registerJail(t, store, "demo")

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = supervisor.Run(context.Background(), jail, plainCommander{},
			[]string{"/bin/sh", "-c", "sleep 2"})
	}()

	// Poll until the supervisor has marked the jail running.
	deadline := time.Now().Add(time.Second)
	for {
		got, err := store.Lookup("demo")
		if err == nil && got.State == registry.StateRunning && got.PID > 0 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("jail never became running; last state %+v", got)
		}
		time.Sleep(10 * time.Millisecond)
	}

	<-done
	got, err := store.Lookup("demo")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if got.State != registry.StateStopped || got.PID != 0 {
		t.Errorf("after exit: state=%q pid=%d, want stopped/0", got.State, got.PID)
	}
}

func TestRun_ContextCancelKillsProcess(t *testing.T) {
	t.Parallel()

	supervisor, store := newSupervisor(t)
	jail := registerJail(t, store, "demo")

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(100 * time.Millisecond)
		cancel()
	}()

	// sleep is executed directly: a shell in between would leave an
	// orphaned grandchild holding the test binary's stdout open after
	// the shell is killed.
	start := time.Now()
	code, err := supervisor.Run(ctx, jail, plainCommander{},
		[]string{"sleep", "30"})
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Fatalf("Run took %v, cancellation did not kill the process", elapsed)
	}
	// exec kills with SIGKILL on context cancellation.
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if code != 137 {
		t.Errorf("exit code = %d, want 137", code)
	}

	got, _ := store.Lookup("demo")
	if got.State != registry.StateStopped {
		t.Errorf("state = %q, want stopped", got.State)
	}
}

func TestRun_CommandExit127IsItsOwnStatus(t *testing.T) {
	t.Parallel()

	supervisor, store := newSupervisor(t)
	jail := registerJail(t, store, "demo")

	// The handshake pipe is never written to, so closing it reads as
	// "the command started"; 127 here is the shell's own status and
	// must come back verbatim, not as a sandbox error.
	monitor, _ := newMonitor(t)
	code, err := supervisor.Run(context.Background(), jail, monitorCommander{monitor: monitor},
		[]string{"/bin/sh", "-c", "exit 127"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if code != 127 {
		t.Errorf("exit code = %d, want 127", code)
	}

	got, _ := store.Lookup("demo")
	if got.ExitCode == nil || *got.ExitCode != 127 {
		t.Errorf("recorded ExitCode = %v, want 127", got.ExitCode)
	}
}

func TestRun_InitFailureMapsToSandboxError(t *testing.T) {
	t.Parallel()

	supervisor, store := newSupervisor(t)
	jail := registerJail(t, store, "demo")

	// A marker byte on the handshake pipe means setup died before the
	// command; the same 127 now surfaces as an exec failure.
	monitor, write := newMonitor(t)
	if _, err := write.Write([]byte{1}); err != nil {
		t.Fatalf("writing handshake marker: %v", err)
	}
	code, err := supervisor.Run(context.Background(), jail, monitorCommander{monitor: monitor},
		[]string{"/bin/sh", "-c", "exit 127"})
	if !errors.Is(err, sandbox.ErrExecFailed) {
		t.Fatalf("Run error = %v, want ErrExecFailed", err)
	}
	if code != 127 {
		t.Errorf("exit code = %d, want 127", code)
	}
}
