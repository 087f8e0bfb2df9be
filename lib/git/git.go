// Copyright 2026 The RoboJail Authors
// SPDX-License-Identifier: Apache-2.0

// Package git provides typed access to the git CLI for the narrow set
// of repository operations RoboJail needs: worktree management and
// read-only status/diff queries. All commands target a specific
// directory via the -C flag, which is automatically injected by all
// Repository methods. The jail registry and worktree provisioner
// depend on this interface rather than on ad hoc git invocations.
package git

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// Client is the git surface the rest of RoboJail depends on. Tests
// substitute a fake; production code uses [Repository].
type Client interface {
	// Toplevel resolves the root of the working tree containing dir.
	Toplevel(ctx context.Context, dir string) (string, error)
	// WorktreeAdd creates a worktree at path on a new branch based on ref.
	WorktreeAdd(ctx context.Context, path, branch, ref string) error
	// WorktreeRemove removes the worktree at path.
	WorktreeRemove(ctx context.Context, path string, force bool) error
	// WorktreePrune drops stale worktree metadata from the repository.
	WorktreePrune(ctx context.Context) error
	// RevParse resolves a ref to a full commit hash.
	RevParse(ctx context.Context, ref string) (string, error)
	// StatusPorcelain returns `git status --porcelain` output for dir.
	StatusPorcelain(ctx context.Context, dir string) (string, error)
	// DiffStat returns `git diff --stat` output for dir.
	DiffStat(ctx context.Context, dir string) (string, error)
	// Diff returns the full unstaged diff for dir.
	Diff(ctx context.Context, dir string) (string, error)
}

// Repository represents a git repository at a specific directory. All
// operations target this directory via "git -C <dir>". There is no
// default directory; callers must always specify which repository
// they mean.
type Repository struct {
	dir string
}

var _ Client = (*Repository)(nil)

// NewRepository returns a Repository targeting the given directory.
func NewRepository(dir string) *Repository {
	return &Repository{dir: dir}
}

// Dir returns the repository directory.
func (r *Repository) Dir() string {
	return r.dir
}

// Run executes a git command targeting this repository and returns
// stdout. Stderr is captured separately and included in error messages
// on failure.
func (r *Repository) Run(ctx context.Context, args ...string) (string, error) {
	return runGit(ctx, r.dir, args...)
}

// Command returns an *exec.Cmd for a git command without running it.
// The caller gets full control over Stdin, Stdout, Stderr, and
// SysProcAttr before starting the process. The -C flag targeting
// this repository is automatically prepended.
func (r *Repository) Command(ctx context.Context, args ...string) *exec.Cmd {
	fullArgs := append([]string{"-C", r.dir}, args...)
	return exec.CommandContext(ctx, "git", fullArgs...)
}

// Toplevel resolves the root of the working tree containing dir. The
// query runs against dir itself, not the Repository directory, so it
// can validate arbitrary user-supplied paths.
func (r *Repository) Toplevel(ctx context.Context, dir string) (string, error) {
	out, err := runGit(ctx, dir, "rev-parse", "--show-toplevel")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

// WorktreeAdd creates a worktree at path on a new branch based on ref.
func (r *Repository) WorktreeAdd(ctx context.Context, path, branch, ref string) error {
	_, err := r.Run(ctx, "worktree", "add", "-b", branch, path, ref)
	return err
}

// WorktreeRemove removes the worktree at path. With force, git discards
// uncommitted changes and untracked files in the worktree.
func (r *Repository) WorktreeRemove(ctx context.Context, path string, force bool) error {
	args := []string{"worktree", "remove"}
	if force {
		args = append(args, "--force")
	}
	args = append(args, path)
	_, err := r.Run(ctx, args...)
	return err
}

// WorktreePrune drops stale worktree metadata from the repository.
func (r *Repository) WorktreePrune(ctx context.Context) error {
	_, err := r.Run(ctx, "worktree", "prune")
	return err
}

// RevParse resolves a ref to a full commit hash.
func (r *Repository) RevParse(ctx context.Context, ref string) (string, error) {
	out, err := r.Run(ctx, "rev-parse", ref)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

// StatusPorcelain returns `git status --porcelain` output for dir.
// dir is the worktree being inspected, which is distinct from the
// Repository directory when supervising a jail.
func (r *Repository) StatusPorcelain(ctx context.Context, dir string) (string, error) {
	return runGit(ctx, dir, "status", "--porcelain")
}

// DiffStat returns `git diff --stat` output for dir. The stat width is
// pinned so filenames are never truncated before parsing.
func (r *Repository) DiffStat(ctx context.Context, dir string) (string, error) {
	return runGit(ctx, dir, "diff", "--stat", "--stat-width=1000")
}

// Diff returns the full unstaged diff for dir.
func (r *Repository) Diff(ctx context.Context, dir string) (string, error) {
	return runGit(ctx, dir, "diff")
}

// runGit executes one git command in dir and returns stdout.
func runGit(ctx context.Context, dir string, args ...string) (string, error) {
	fullArgs := append([]string{"-C", dir}, args...)
	var stdout, stderr bytes.Buffer
	command := exec.CommandContext(ctx, "git", fullArgs...)
	command.Stdout = &stdout
	command.Stderr = &stderr

	if err := command.Run(); err != nil {
		return "", fmt.Errorf("git %s in %s: %w (stderr: %s)",
			strings.Join(args, " "), dir, err, strings.TrimSpace(stderr.String()))
	}
	return stdout.String(), nil
}
