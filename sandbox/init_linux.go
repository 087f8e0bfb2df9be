// Copyright 2026 The RoboJail Authors
// SPDX-License-Identifier: Apache-2.0

package sandbox

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sys/unix"
)

// specFd is where the parent's init spec pipe lands in the child:
// the first ExtraFiles entry after stdin/stdout/stderr.
const specFd = 3

// execFd is the write end of the parent's ExecMonitor pipe. Reaching
// exec closes it via close-on-exec; initFail writes a marker byte
// first so the parent can tell a setup failure from the command's own
// exit status.
const execFd = 4

// InitStage is the in-namespace half of sandbox construction. It runs
// when the binary is re-executed with InitStageCommand, already inside
// the namespaces the parent requested: it reads the init spec from the
// inherited pipe, applies hostname, mounts, and security hardening,
// and execs the target command. It never returns; on failure it exits
// with a status encoding the failure class for the parent.
func InitStage() {
	// Inherited fds arrive with close-on-exec cleared; restore it on
	// the handshake fd so a successful exec closes it silently.
	_, _ = unix.FcntlInt(uintptr(execFd), unix.F_SETFD, unix.FD_CLOEXEC)

	spec, err := readSpec()
	if err != nil {
		initFail(initExitSetup, err)
	}

	if err := unix.Sethostname([]byte(spec.Hostname)); err != nil {
		// UTS namespace is unshared, so this cannot leak to the host;
		// a refusal just leaves the host name visible.
		fmt.Fprintf(os.Stderr, "robojail: sethostname: %v\n", err)
	}

	if err := applyMountPlan(&spec.Plan); err != nil {
		initFail(initExitMount, err)
	}
	if err := applySecurity(); err != nil {
		initFail(initExitSetup, err)
	}
	if err := os.Chdir(spec.Workdir); err != nil {
		initFail(initExitSetup, fmt.Errorf("entering workdir %s: %w", spec.Workdir, err))
	}

	program, err := lookPath(spec.Argv[0], spec.Env)
	if err != nil {
		initFail(initExitExecNotFound, err)
	}
	if err := unix.Exec(program, spec.Argv, spec.Env); err != nil {
		initFail(initExitSetup, fmt.Errorf("exec %s: %w", program, err))
	}
}

// readSpec decodes the init spec from the inherited pipe.
func readSpec() (*initSpec, error) {
	pipe := os.NewFile(specFd, "init-spec")
	if pipe == nil {
		return nil, fmt.Errorf("init spec pipe not inherited")
	}
	defer pipe.Close()

	data, err := io.ReadAll(pipe)
	if err != nil {
		return nil, fmt.Errorf("reading init spec: %w", err)
	}
	spec := &initSpec{}
	if err := json.Unmarshal(data, spec); err != nil {
		return nil, fmt.Errorf("decoding init spec: %w", err)
	}
	if len(spec.Argv) == 0 {
		return nil, fmt.Errorf("init spec has no command")
	}
	return spec, nil
}

// lookPath resolves a program against the PATH of the jail
// environment. os/exec's LookPath consults the process environment,
// which is not the environment the jailed command will see.
func lookPath(program string, env []string) (string, error) {
	if strings.Contains(program, "/") {
		if err := checkExecutable(program); err != nil {
			return "", err
		}
		return program, nil
	}

	var pathEnv string
	for _, kv := range env {
		if value, ok := strings.CutPrefix(kv, "PATH="); ok {
			pathEnv = value
		}
	}
	for _, dir := range strings.Split(pathEnv, ":") {
		if dir == "" {
			continue
		}
		candidate := filepath.Join(dir, program)
		if err := checkExecutable(candidate); err == nil {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("%s: command not found", program)
}

// checkExecutable reports whether path is an executable regular file.
func checkExecutable(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if info.IsDir() || info.Mode()&0o111 == 0 {
		return fmt.Errorf("%s is not executable", path)
	}
	return nil
}

// initFail reports a setup failure on stderr, signals the exec
// handshake, and exits with the status the parent maps back to a
// sandbox error.
func initFail(code int, err error) {
	fmt.Fprintf(os.Stderr, "robojail: sandbox setup: %v\n", err)
	_, _ = unix.Write(execFd, []byte{1})
	os.Exit(code)
}
