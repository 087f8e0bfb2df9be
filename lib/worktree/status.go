// Copyright 2026 The RoboJail Authors
// SPDX-License-Identifier: Apache-2.0

package worktree

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/robojail/robojail/lib/git"
)

// DiffStats summarizes the worktree's unstaged diff.
type DiffStats struct {
	FilesChanged int `json:"files_changed"`
	Insertions   int `json:"insertions"`
	Deletions    int `json:"deletions"`
}

// Status is the host-side supervision view of a jail's worktree:
// what the jailed agent has changed, observed without entering the
// sandbox.
type Status struct {
	Modified []string  `json:"modified"`
	Added    []string  `json:"added"`
	Deleted  []string  `json:"deleted"`
	Stats    DiffStats `json:"stats"`
}

// Clean reports whether the worktree has no changes.
func (s *Status) Clean() bool {
	return len(s.Modified) == 0 && len(s.Added) == 0 && len(s.Deleted) == 0
}

// Status inspects a jail's worktree from the host.
func (p *Provisioner) Status(ctx context.Context, worktreePath string) (*Status, error) {
	repo := git.NewRepository(worktreePath)

	porcelain, err := repo.StatusPorcelain(ctx, worktreePath)
	if err != nil {
		return nil, fmt.Errorf("reading worktree status: %w", err)
	}
	status := parsePorcelain(porcelain)

	statOutput, err := repo.DiffStat(ctx, worktreePath)
	if err != nil {
		return nil, fmt.Errorf("reading worktree diff stats: %w", err)
	}
	status.Stats = parseDiffStats(statOutput)
	return status, nil
}

// Diff returns the worktree's unstaged diff. With newFiles, the
// contents of untracked files are appended, since git diff does not
// show them.
func (p *Provisioner) Diff(ctx context.Context, worktreePath string, newFiles bool) (string, error) {
	repo := git.NewRepository(worktreePath)

	diff, err := repo.Diff(ctx, worktreePath)
	if err != nil {
		return "", fmt.Errorf("reading worktree diff: %w", err)
	}
	if !newFiles {
		return diff, nil
	}

	status := parsePorcelain(mustPorcelain(ctx, repo, worktreePath))
	var out strings.Builder
	out.WriteString(diff)
	for _, name := range status.Added {
		content, err := os.ReadFile(filepath.Join(worktreePath, name))
		if err != nil {
			continue
		}
		fmt.Fprintf(&out, "=== %s ===\n%s", name, content)
		if len(content) > 0 && content[len(content)-1] != '\n' {
			out.WriteByte('\n')
		}
	}
	return out.String(), nil
}

func mustPorcelain(ctx context.Context, repo *git.Repository, dir string) string {
	porcelain, err := repo.StatusPorcelain(ctx, dir)
	if err != nil {
		return ""
	}
	return porcelain
}

// parsePorcelain buckets `git status --porcelain` lines. Untracked
// files count as added; renames report the new name as modified;
// unrecognized codes fall back to modified so nothing is silently
// dropped.
func parsePorcelain(output string) *Status {
	status := &Status{
		Modified: []string{},
		Added:    []string{},
		Deleted:  []string{},
	}
	for _, line := range strings.Split(output, "\n") {
		if len(line) < 4 {
			continue
		}
		code := strings.TrimSpace(line[0:2])
		name := strings.TrimSpace(line[3:])

		switch code {
		case "M", "MM", "AM":
			status.Modified = append(status.Modified, name)
		case "A", "??":
			status.Added = append(status.Added, name)
		case "D":
			status.Deleted = append(status.Deleted, name)
		case "R":
			if _, newName, ok := strings.Cut(name, " -> "); ok {
				status.Modified = append(status.Modified, newName)
			} else {
				status.Modified = append(status.Modified, name)
			}
		default:
			if name != "" {
				status.Modified = append(status.Modified, name)
			}
		}
	}
	return status
}

// parseDiffStats extracts counts from the summary line of
// `git diff --stat`, shaped like:
//
//	3 files changed, 42 insertions(+), 10 deletions(-)
//
// Empty diffs have no summary line and parse to zero.
func parseDiffStats(output string) DiffStats {
	lines := strings.Split(strings.TrimRight(output, "\n"), "\n")
	summary := lines[len(lines)-1]
	if !strings.Contains(summary, "changed") {
		return DiffStats{}
	}

	stats := DiffStats{}
	for _, part := range strings.Split(summary, ",") {
		fields := strings.Fields(part)
		if len(fields) < 2 {
			continue
		}
		count, err := strconv.Atoi(fields[0])
		if err != nil {
			continue
		}
		switch {
		case strings.HasPrefix(fields[1], "file"):
			stats.FilesChanged = count
		case strings.HasPrefix(fields[1], "insertion"):
			stats.Insertions = count
		case strings.HasPrefix(fields[1], "deletion"):
			stats.Deletions = count
		}
	}
	return stats
}
