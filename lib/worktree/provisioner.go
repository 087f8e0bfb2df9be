// Copyright 2026 The RoboJail Authors
// SPDX-License-Identifier: Apache-2.0

// Package worktree maps jails onto isolated git worktrees. Each jail
// gets its own worktree directory under the jails root, checked out on
// a dedicated branch, so edits in one jail are invisible in every
// other and in the source repository's own working tree.
package worktree

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/zeebo/blake3"

	"github.com/robojail/robojail/lib/git"
)

// Sentinel provisioner failures, matched with errors.Is.
var (
	ErrNotAGitRepo      = errors.New("not inside a git working tree")
	ErrDirtyWorktree    = errors.New("worktree has uncommitted changes")
	ErrWorktreeConflict = errors.New("worktree path already exists")
)

// branchPrefix namespaces all jail branches in the source repository.
const branchPrefix = "robojail/"

// Provisioner creates and destroys jail worktrees under one root
// directory.
type Provisioner struct {
	// Root is the jails data root; each jail's worktree lives at
	// Root/<name>.
	Root string

	// Logger defaults to slog.Default.
	Logger *slog.Logger
}

// Provisioned describes a successfully created worktree.
type Provisioned struct {
	// RepoPath is the resolved top level of the source repository.
	RepoPath string
	// WorktreePath is the jail's working directory.
	WorktreePath string
	// Branch is the dedicated branch the worktree is checked out on.
	Branch string
	// BaseCommit is the commit the branch started from.
	BaseCommit string
}

func (p *Provisioner) logger() *slog.Logger {
	if p.Logger != nil {
		return p.Logger
	}
	return slog.Default()
}

// WorktreePath returns where a jail's worktree lives under the root.
func (p *Provisioner) WorktreePath(name string) string {
	return filepath.Join(p.Root, name)
}

// Create provisions a worktree for a new jail. repoPath may be any
// directory inside a git working tree; it is resolved to the tree's
// top level. baseRef defaults to HEAD. A failed creation removes the
// partially created directory.
func (p *Provisioner) Create(ctx context.Context, repoPath, name, baseRef string) (*Provisioned, error) {
	repo := git.NewRepository(repoPath)
	top, err := repo.Toplevel(ctx, repoPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrNotAGitRepo, repoPath)
	}
	repo = git.NewRepository(top)

	if baseRef == "" {
		baseRef = "HEAD"
	}
	baseCommit, err := repo.RevParse(ctx, baseRef)
	if err != nil {
		return nil, fmt.Errorf("resolving base ref %q: %w", baseRef, err)
	}

	worktreePath := p.WorktreePath(name)
	if _, err := os.Stat(worktreePath); err == nil {
		return nil, fmt.Errorf("%w: %s", ErrWorktreeConflict, worktreePath)
	}
	if err := os.MkdirAll(p.Root, 0o755); err != nil {
		return nil, fmt.Errorf("creating jails root: %w", err)
	}

	branch := BranchName(name, top, time.Now())
	if err := repo.WorktreeAdd(ctx, worktreePath, branch, baseRef); err != nil {
		os.RemoveAll(worktreePath)
		return nil, fmt.Errorf("adding worktree: %w", err)
	}

	p.logger().Info("provisioned worktree",
		"jail", name,
		"repo", top,
		"path", worktreePath,
		"branch", branch,
		"base", baseCommit,
	)
	return &Provisioned{
		RepoPath:     top,
		WorktreePath: worktreePath,
		Branch:       branch,
		BaseCommit:   baseCommit,
	}, nil
}

// Destroy removes a jail's worktree. Uncommitted changes block the
// removal unless force is set; with force the directory is always gone
// afterwards. Stale worktree metadata is pruned from the repository
// either way.
func (p *Provisioner) Destroy(ctx context.Context, repoPath, worktreePath string, force bool) error {
	repo := git.NewRepository(repoPath)

	if _, err := os.Stat(worktreePath); err == nil {
		if !force {
			status, err := repo.StatusPorcelain(ctx, worktreePath)
			if err != nil {
				return fmt.Errorf("checking worktree state: %w", err)
			}
			if strings.TrimSpace(status) != "" {
				return fmt.Errorf("%w: %s", ErrDirtyWorktree, worktreePath)
			}
		}
		if err := repo.WorktreeRemove(ctx, worktreePath, force); err != nil {
			if !force {
				return fmt.Errorf("removing worktree: %w", err)
			}
			// Forced destroys fall back to plain removal so a broken
			// worktree cannot wedge the jail.
			p.logger().Warn("git worktree remove failed, deleting directory",
				"path", worktreePath, "error", err)
		}
	}
	if err := os.RemoveAll(worktreePath); err != nil {
		return fmt.Errorf("removing worktree directory: %w", err)
	}

	if err := repo.WorktreePrune(ctx); err != nil {
		p.logger().Warn("pruning worktree metadata failed", "repo", repoPath, "error", err)
	}
	return nil
}

// BranchName derives the dedicated branch for a jail:
// robojail/<name>-<8 hex chars>. The suffix hashes name, repository,
// and creation time, so recreating a destroyed jail never collides
// with a branch left behind by an earlier incarnation.
func BranchName(name, repoPath string, createdAt time.Time) string {
	hasher := blake3.New()
	hasher.Write([]byte(name))
	hasher.Write([]byte{0})
	hasher.Write([]byte(repoPath))
	hasher.Write([]byte{0})
	hasher.Write([]byte(strconv.FormatInt(createdAt.UnixNano(), 10)))
	sum := hasher.Sum(nil)
	return branchPrefix + name + "-" + hex.EncodeToString(sum[:4])
}
