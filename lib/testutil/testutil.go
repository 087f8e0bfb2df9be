// Copyright 2026 The RoboJail Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil provides shared test helpers for RoboJail packages.
package testutil

import (
	"os"
	"os/exec"
	"path/filepath"
	"testing"
)

// GitRepo creates a non-bare git repository with one initial commit and
// returns its path. Worktree operations need at least one commit to
// branch from, so the fixture writes and commits a README.
//
// Author and committer identity come from the environment rather than
// git config so the fixture works in clean CI homes.
func GitRepo(t *testing.T) string {
	t.Helper()

	dir := t.TempDir()
	git(t, dir, "init", "--initial-branch=main", ".")

	readmePath := filepath.Join(dir, "README")
	if err := os.WriteFile(readmePath, []byte("test\n"), 0o644); err != nil {
		t.Fatalf("write README: %v", err)
	}
	git(t, dir, "add", "README")
	git(t, dir, "commit", "-m", "initial", "--author", "Test <test@test.local>")

	return dir
}

// CommitFile writes content to name inside the repository and commits it.
func CommitFile(t *testing.T, repo, name, content string) {
	t.Helper()

	path := filepath.Join(repo, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", name, err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	git(t, repo, "add", name)
	git(t, repo, "commit", "-m", "add "+name, "--author", "Test <test@test.local>")
}

// git runs one git command in dir, failing the test on error.
func git(t *testing.T, dir string, args ...string) {
	t.Helper()

	command := exec.Command("git", append([]string{"-C", dir}, args...)...)
	command.Env = append(os.Environ(),
		"GIT_COMMITTER_NAME=Test",
		"GIT_COMMITTER_EMAIL=test@test.local",
		"GIT_AUTHOR_NAME=Test",
		"GIT_AUTHOR_EMAIL=test@test.local",
	)
	if output, err := command.CombinedOutput(); err != nil {
		t.Fatalf("git %v: %v\n%s", args, err, output)
	}
}
