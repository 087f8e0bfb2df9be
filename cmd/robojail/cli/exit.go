// Copyright 2026 The RoboJail Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"errors"
	"fmt"

	"github.com/robojail/robojail/lib/registry"
	"github.com/robojail/robojail/lib/worktree"
	"github.com/robojail/robojail/sandbox"
)

// Stable process exit codes. Scripts drive robojail, so each failure
// class keeps its code across releases.
const (
	ExitOK      = 0
	ExitFailure = 1
	ExitUsage   = 2

	ExitNotFound             = 3
	ExitDuplicateName        = 4
	ExitNamespaceUnavailable = 5
	ExitDirtyWorktree        = 6
	ExitMountFailed          = 7
)

// ExitError signals a specific exit code without printing an extra
// error message. When a command handler returns an ExitError, main
// exits with the code without printing the error string; the command
// is expected to have already written its own output. `run` uses this
// to propagate the jailed command's own exit status verbatim.
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("exit code %d", e.Code)
}

// ExitCode returns the exit code. main checks for this interface on
// returned errors to distinguish "handled non-zero exit" from
// "unexpected error to display".
func (e *ExitError) ExitCode() int {
	return e.Code
}

// ExitCodeFor maps an error to its stable exit code. Errors carrying
// their own ExitCode (like *ExitError) win; known failure sentinels
// map to their reserved codes; everything else is a generic failure.
func ExitCodeFor(err error) int {
	if err == nil {
		return ExitOK
	}
	if coder, ok := err.(interface{ ExitCode() int }); ok {
		return coder.ExitCode()
	}
	switch {
	case errors.Is(err, registry.ErrNotFound):
		return ExitNotFound
	case errors.Is(err, registry.ErrDuplicateName):
		return ExitDuplicateName
	case errors.Is(err, registry.ErrInvalidName):
		return ExitUsage
	case errors.Is(err, sandbox.ErrNamespaceUnavailable):
		return ExitNamespaceUnavailable
	case errors.Is(err, worktree.ErrDirtyWorktree):
		return ExitDirtyWorktree
	case errors.Is(err, sandbox.ErrMountFailed):
		return ExitMountFailed
	}
	return ExitFailure
}
