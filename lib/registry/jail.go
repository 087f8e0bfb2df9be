// Copyright 2026 The RoboJail Authors
// SPDX-License-Identifier: Apache-2.0

// Package registry tracks jail records in a durable on-disk store.
//
// The store is a single JSON file guarded by a sibling flock file.
// Every mutation holds the exclusive lock for the full
// read-modify-write and commits via a temp file plus atomic rename, so
// a crash at any point leaves the previous committed state intact.
package registry

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// State is the lifecycle state of a jail.
type State string

const (
	// StateCreated means the jail exists but no process has run in it.
	StateCreated State = "created"
	// StateRunning means a supervised process is active inside the jail.
	StateRunning State = "running"
	// StateStopped means the last supervised process has exited.
	StateStopped State = "stopped"
)

// Sentinel errors returned by store operations. Callers match them
// with errors.Is; the CLI maps them to stable exit codes.
var (
	ErrNotFound      = errors.New("jail not found")
	ErrDuplicateName = errors.New("jail name already in use")
	ErrJailRunning   = errors.New("jail is running")
	ErrInvalidName   = errors.New("invalid jail name")
)

// Jail is one registry record. Records are written as JSON with
// RFC3339 timestamps; unknown fields in the store are ignored on load
// so newer binaries can extend the record without breaking older ones.
type Jail struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	RepoPath     string    `json:"repo_path"`
	WorktreePath string    `json:"worktree_path"`
	Branch       string    `json:"branch"`
	BaseCommit   string    `json:"base_commit"`
	CreatedAt    time.Time `json:"created_at"`
	State        State     `json:"state"`
	PID          int       `json:"pid,omitempty"`
	ExitCode     *int      `json:"exit_code,omitempty"`
}

// NewJail returns a record in StateCreated with a fresh unique ID and
// the creation time stamped. The caller fills in the worktree fields
// once provisioning succeeds, then registers the record.
func NewJail(name, repoPath string) Jail {
	return Jail{
		ID:        uuid.NewString(),
		Name:      name,
		RepoPath:  repoPath,
		CreatedAt: Now(),
		State:     StateCreated,
	}
}

// Now returns the timestamp used for CreatedAt, truncated to whole
// seconds so records compare equal after a round-trip through RFC3339.
func Now() time.Time {
	return time.Now().UTC().Truncate(time.Second)
}

// ValidateName checks a user-supplied jail name: 1 to 64 characters
// from [A-Za-z0-9_-], and the first character must not be a dash so
// names never parse as flags.
func ValidateName(name string) error {
	if len(name) == 0 {
		return fmt.Errorf("%w: name is empty", ErrInvalidName)
	}
	if len(name) > 64 {
		return fmt.Errorf("%w: %q exceeds 64 characters", ErrInvalidName, name)
	}
	if name[0] == '-' {
		return fmt.Errorf("%w: %q starts with a dash", ErrInvalidName, name)
	}
	for i := 0; i < len(name); i++ {
		c := name[i]
		switch {
		case c >= 'a' && c <= 'z':
		case c >= 'A' && c <= 'Z':
		case c >= '0' && c <= '9':
		case c == '_' || c == '-':
		default:
			return fmt.Errorf("%w: %q contains %q (allowed: letters, digits, _ and -)",
				ErrInvalidName, name, string(c))
		}
	}
	return nil
}
