// Copyright 2026 The RoboJail Authors
// SPDX-License-Identifier: Apache-2.0

package registry

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"golang.org/x/sys/unix"
)

const (
	storeFile = "jails.json"
	lockFile  = "jails.lock"

	// storeVersion is written into every committed state file. Loads
	// accept any version at or below the current one.
	storeVersion = 1
)

// stateFile is the on-disk envelope.
type stateFile struct {
	Version int    `json:"version"`
	Jails   []Jail `json:"jails"`
}

// Store is the durable jail registry rooted at one directory. All
// operations take an exclusive flock on a sibling lock file for the
// full read-modify-write, so concurrent robojail processes serialize
// cleanly. Reads hold the lock too: a List snapshot is never torn.
type Store struct {
	dir    string
	logger *slog.Logger
}

// Open returns a Store rooted at dir, creating the directory if
// needed. The state file itself is created lazily on first mutation.
func Open(dir string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("creating registry dir: %w", err)
	}
	return &Store{dir: dir, logger: logger}, nil
}

// Dir returns the registry root directory.
func (s *Store) Dir() string {
	return s.dir
}

// Register adds a new jail record. The name must be valid and unused.
func (s *Store) Register(jail Jail) error {
	if err := ValidateName(jail.Name); err != nil {
		return err
	}
	return s.mutate(func(state *stateFile) error {
		for _, existing := range state.Jails {
			if existing.Name == jail.Name {
				return fmt.Errorf("%w: %q", ErrDuplicateName, jail.Name)
			}
		}
		state.Jails = append(state.Jails, jail)
		return nil
	})
}

// Lookup returns the record for name.
func (s *Store) Lookup(name string) (Jail, error) {
	var found Jail
	err := s.view(func(state *stateFile) error {
		for _, jail := range state.Jails {
			if jail.Name == name {
				found = jail
				return nil
			}
		}
		return fmt.Errorf("%w: %q", ErrNotFound, name)
	})
	return found, err
}

// UpdateState transitions a jail to state. For StateRunning, pid is
// the supervised process; for other states pid is cleared.
func (s *Store) UpdateState(name string, state State, pid int) error {
	return s.mutate(func(file *stateFile) error {
		for i := range file.Jails {
			if file.Jails[i].Name != name {
				continue
			}
			file.Jails[i].State = state
			if state == StateRunning {
				file.Jails[i].PID = pid
				file.Jails[i].ExitCode = nil
			} else {
				file.Jails[i].PID = 0
			}
			return nil
		}
		return fmt.Errorf("%w: %q", ErrNotFound, name)
	})
}

// SetExit records the exit code of the last supervised process and
// transitions the jail to StateStopped.
func (s *Store) SetExit(name string, code int) error {
	return s.mutate(func(file *stateFile) error {
		for i := range file.Jails {
			if file.Jails[i].Name != name {
				continue
			}
			file.Jails[i].State = StateStopped
			file.Jails[i].PID = 0
			exitCode := code
			file.Jails[i].ExitCode = &exitCode
			return nil
		}
		return fmt.Errorf("%w: %q", ErrNotFound, name)
	})
}

// Remove deletes a jail record. A running jail is refused unless force
// is set.
func (s *Store) Remove(name string, force bool) error {
	return s.mutate(func(state *stateFile) error {
		for i, jail := range state.Jails {
			if jail.Name != name {
				continue
			}
			if jail.State == StateRunning && !force {
				return fmt.Errorf("%w: %q (pid %d)", ErrJailRunning, name, jail.PID)
			}
			state.Jails = append(state.Jails[:i], state.Jails[i+1:]...)
			return nil
		}
		return fmt.Errorf("%w: %q", ErrNotFound, name)
	})
}

// List returns all jail records ordered by creation time.
func (s *Store) List() ([]Jail, error) {
	var jails []Jail
	err := s.view(func(state *stateFile) error {
		jails = append(jails, state.Jails...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(jails, func(i, j int) bool {
		return jails[i].CreatedAt.Before(jails[j].CreatedAt)
	})
	return jails, nil
}

// mutate runs fn under the exclusive lock and commits the result
// atomically if fn succeeds.
func (s *Store) mutate(fn func(*stateFile) error) error {
	return s.withLock(func() error {
		state, err := s.load()
		if err != nil {
			return err
		}
		if err := fn(state); err != nil {
			return err
		}
		return s.commit(state)
	})
}

// view runs fn under the exclusive lock without committing. The lock
// still serializes against writers so the snapshot is consistent.
func (s *Store) view(fn func(*stateFile) error) error {
	return s.withLock(func() error {
		state, err := s.load()
		if err != nil {
			return err
		}
		return fn(state)
	})
}

// withLock holds an exclusive flock on the lock file around fn. The
// lock file is separate from the state file so the atomic rename never
// replaces the inode being locked.
func (s *Store) withLock(fn func() error) error {
	lockPath := filepath.Join(s.dir, lockFile)
	lock, err := os.OpenFile(lockPath, os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return fmt.Errorf("opening registry lock: %w", err)
	}
	defer lock.Close()

	if err := unix.Flock(int(lock.Fd()), unix.LOCK_EX); err != nil {
		return fmt.Errorf("locking registry: %w", err)
	}
	defer func() {
		_ = unix.Flock(int(lock.Fd()), unix.LOCK_UN)
	}()

	return fn()
}

// load reads the committed state. A missing file is an empty registry.
// Records marked Running whose process no longer exists are
// reconciled to Stopped in memory; the next mutation persists the
// correction.
func (s *Store) load() (*stateFile, error) {
	state := &stateFile{Version: storeVersion}

	data, err := os.ReadFile(filepath.Join(s.dir, storeFile))
	if errors.Is(err, os.ErrNotExist) {
		return state, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading registry: %w", err)
	}
	if err := json.Unmarshal(data, state); err != nil {
		return nil, fmt.Errorf("corrupt registry %s: %w", filepath.Join(s.dir, storeFile), err)
	}
	if state.Version > storeVersion {
		return nil, fmt.Errorf("registry version %d is newer than supported %d", state.Version, storeVersion)
	}

	for i := range state.Jails {
		jail := &state.Jails[i]
		if jail.State != StateRunning || jail.PID <= 0 {
			continue
		}
		if !processAlive(jail.PID) {
			s.logger.Debug("reconciling dead jail process",
				"jail", jail.Name, "pid", jail.PID)
			jail.State = StateStopped
			jail.PID = 0
		}
	}
	return state, nil
}

// commit writes the state to a temp file in the registry directory,
// fsyncs it, and renames it over the store. Rename within one
// directory is atomic; readers see either the old or the new file.
func (s *Store) commit(state *stateFile) error {
	state.Version = storeVersion

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding registry: %w", err)
	}
	data = append(data, '\n')

	temp, err := os.CreateTemp(s.dir, storeFile+".tmp-*")
	if err != nil {
		return fmt.Errorf("creating registry temp file: %w", err)
	}
	tempPath := temp.Name()
	defer os.Remove(tempPath)

	if _, err := temp.Write(data); err != nil {
		temp.Close()
		return fmt.Errorf("writing registry temp file: %w", err)
	}
	if err := temp.Sync(); err != nil {
		temp.Close()
		return fmt.Errorf("syncing registry temp file: %w", err)
	}
	if err := temp.Close(); err != nil {
		return fmt.Errorf("closing registry temp file: %w", err)
	}
	if err := os.Rename(tempPath, filepath.Join(s.dir, storeFile)); err != nil {
		return fmt.Errorf("committing registry: %w", err)
	}
	return syncDir(s.dir)
}

// syncDir fsyncs a directory so a committed rename survives power loss.
func syncDir(dir string) error {
	handle, err := os.Open(dir)
	if err != nil {
		return fmt.Errorf("opening registry dir for sync: %w", err)
	}
	defer handle.Close()
	if err := handle.Sync(); err != nil {
		return fmt.Errorf("syncing registry dir: %w", err)
	}
	return nil
}

// processAlive reports whether pid exists. Signal 0 probes without
// delivering; EPERM still means the process is there.
func processAlive(pid int) bool {
	err := unix.Kill(pid, 0)
	return err == nil || errors.Is(err, unix.EPERM)
}

