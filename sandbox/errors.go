// Copyright 2026 The RoboJail Authors
// SPDX-License-Identifier: Apache-2.0

package sandbox

import "errors"

// Sentinel sandbox failures. Callers match them with errors.Is; the
// CLI maps them to stable exit codes.
var (
	// ErrNamespaceUnavailable means the kernel refused unprivileged
	// namespace creation (disabled sysctl, EPERM, or missing support).
	ErrNamespaceUnavailable = errors.New("user namespaces unavailable")
	// ErrMountFailed means a step of the mount plan could not be
	// applied. The failed setup dies with its namespaces; nothing
	// reaches the host mount table.
	ErrMountFailed = errors.New("sandbox mount failed")
	// ErrExecFailed means the jail environment was built but the
	// target command could not be executed.
	ErrExecFailed = errors.New("sandbox exec failed")
)

// Init-stage exit codes. The init stage cannot return an error to the
// parent through memory, so it encodes the failure class in its exit
// status; FromInitExit recovers the sentinel on the parent side. A
// jailed command can exit with the same values (127 is any shell's
// "command not found"), so callers consult the ExecMonitor handshake
// before treating a status as an init failure.
const (
	initExitMount        = 125
	initExitSetup        = 126
	initExitExecNotFound = 127
)

// FromInitExit maps an init-stage exit status back to the sandbox
// error it encodes. ok is false for statuses outside the init range.
// The mapping says nothing about provenance; only the ExecMonitor can
// tell whose status it was.
func FromInitExit(code int) (err error, ok bool) {
	switch code {
	case initExitMount:
		return ErrMountFailed, true
	case initExitSetup:
		return ErrExecFailed, true
	case initExitExecNotFound:
		return ErrExecFailed, true
	default:
		return nil, false
	}
}
