// Copyright 2026 The RoboJail Authors
// SPDX-License-Identifier: Apache-2.0

package sandbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"syscall"

	"golang.org/x/sys/unix"
)

// InitStageCommand is the hidden first argument that routes a robojail
// process into the in-namespace init stage instead of the CLI.
const InitStageCommand = "__sandbox-init"

// initSpec is the setup contract shipped from the parent to the init
// stage as JSON on an inherited pipe.
type initSpec struct {
	Hostname string    `json:"hostname"`
	Workdir  string    `json:"workdir"`
	Plan     MountPlan `json:"plan"`
	Env      []string  `json:"env"`
	Argv     []string  `json:"argv"`
}

// Sandbox builds confined commands for one jail.
type Sandbox struct {
	jailName string
	worktree string
	config   Config
	logger   *slog.Logger
}

// New creates a Sandbox for a jail. worktree must exist; config must
// already be validated by the loader, but cheap invariants are checked
// again here.
func New(jailName, worktree string, config Config, logger *slog.Logger) (*Sandbox, error) {
	if jailName == "" {
		return nil, fmt.Errorf("jail name is required")
	}
	absWorktree, err := filepath.Abs(worktree)
	if err != nil {
		return nil, fmt.Errorf("resolving worktree path: %w", err)
	}
	if info, err := os.Stat(absWorktree); err != nil || !info.IsDir() {
		return nil, fmt.Errorf("worktree %s is not a directory", absWorktree)
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Sandbox{
		jailName: jailName,
		worktree: absWorktree,
		config:   config,
		logger:   logger,
	}, nil
}

// Worktree returns the jail's root directory on the host.
func (s *Sandbox) Worktree() string {
	return s.worktree
}

// Command builds the re-exec command that enters the jail and runs
// argv. The returned command has namespaces configured on SysProcAttr
// and the init specification queued on an inherited pipe; the caller
// wires stdio and starts it. The jailed process appears as root inside
// but carries only the invoking user's privilege on the host. The
// returned ExecMonitor tells the caller, after the process exits,
// whether argv actually started or the init stage died first.
func (s *Sandbox) Command(ctx context.Context, argv []string) (*exec.Cmd, *ExecMonitor, error) {
	if len(argv) == 0 {
		return nil, nil, fmt.Errorf("no command specified")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return nil, nil, fmt.Errorf("resolving home directory: %w", err)
	}
	plan, err := BuildPlan(s.worktree, home, argv[0], s.config)
	if err != nil {
		return nil, nil, err
	}

	spec := initSpec{
		Hostname: s.jailName,
		Workdir:  "/",
		Plan:     *plan,
		Env: buildEnv(s.config.EnvPassthrough, func(name string) (string, bool) {
			return os.LookupEnv(name)
		}),
		Argv: argv,
	}
	specJSON, err := json.Marshal(spec)
	if err != nil {
		return nil, nil, fmt.Errorf("encoding init spec: %w", err)
	}

	// The spec travels on a pipe rather than argv or the environment
	// so it never shows up in /proc/<pid>/cmdline or environ. It is
	// far below the pipe buffer size, so writing before the child
	// starts cannot block.
	readEnd, writeEnd, err := os.Pipe()
	if err != nil {
		return nil, nil, fmt.Errorf("creating init spec pipe: %w", err)
	}
	if _, err := writeEnd.Write(specJSON); err != nil {
		readEnd.Close()
		writeEnd.Close()
		return nil, nil, fmt.Errorf("writing init spec: %w", err)
	}
	writeEnd.Close()

	execRead, execWrite, err := os.Pipe()
	if err != nil {
		readEnd.Close()
		return nil, nil, fmt.Errorf("creating exec handshake pipe: %w", err)
	}

	cmd := exec.CommandContext(ctx, "/proc/self/exe", InitStageCommand)
	// fd 3 in the child carries the spec, fd 4 the exec handshake.
	cmd.ExtraFiles = []*os.File{readEnd, execWrite}

	// Minimal parent-side environment: the init stage replaces it
	// wholesale, but anything set here is visible in the child's
	// /proc/<pid>/environ until exec, so nothing sensitive goes in.
	cmd.Env = []string{"PATH=" + jailPath}

	flags := syscall.CLONE_NEWUSER |
		syscall.CLONE_NEWNS |
		syscall.CLONE_NEWIPC |
		syscall.CLONE_NEWUTS
	if !s.config.NetworkEnabled {
		flags |= syscall.CLONE_NEWNET
	}
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Cloneflags: uintptr(flags),
		UidMappings: []syscall.SysProcIDMap{
			{ContainerID: 0, HostID: os.Getuid(), Size: 1},
		},
		GidMappings: []syscall.SysProcIDMap{
			{ContainerID: 0, HostID: os.Getgid(), Size: 1},
		},
		// Writing "deny" to setgroups is mandatory before an
		// unprivileged gid_map write.
		GidMappingsEnableSetgroups: false,
	}

	s.logger.Debug("built sandbox command",
		"jail", s.jailName,
		"worktree", s.worktree,
		"network", s.config.NetworkEnabled,
		"mounts", len(plan.Entries),
		"argv", argv,
	)
	return cmd, NewExecMonitor(execRead, execWrite), nil
}

// ClassifyStartError translates a Start failure into the sandbox error
// taxonomy. EPERM, EINVAL, and ENOSYS from clone mean the kernel
// refused the requested namespaces.
func ClassifyStartError(err error) error {
	if err == nil {
		return nil
	}
	for _, errno := range []syscall.Errno{unix.EPERM, unix.EINVAL, unix.ENOSYS, unix.EUSERS} {
		if errors.Is(err, errno) {
			return fmt.Errorf("%w: %v", ErrNamespaceUnavailable, err)
		}
	}
	return fmt.Errorf("starting sandbox: %w", err)
}
