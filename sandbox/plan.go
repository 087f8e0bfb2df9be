// Copyright 2026 The RoboJail Authors
// SPDX-License-Identifier: Apache-2.0

package sandbox

import (
	"fmt"
	"path/filepath"
	"strings"
)

// MountMode selects how a MountEntry is applied.
type MountMode string

const (
	// ModeReadOnly bind-mounts Source at Target and remounts it
	// read-only.
	ModeReadOnly MountMode = "ro"
	// ModeReadWrite bind-mounts Source at Target writable.
	ModeReadWrite MountMode = "rw"
	// ModeTmpfs mounts a fresh tmpfs at Target. Source is unused.
	ModeTmpfs MountMode = "tmpfs"
	// ModeHidden masks Target with an empty read-only mount so the
	// underlying content is inaccessible. Source is unused.
	ModeHidden MountMode = "hidden"
)

// MountEntry is one step of a MountPlan. Target is the absolute path
// inside the jail.
type MountEntry struct {
	Source   string    `json:"source,omitempty"`
	Target   string    `json:"target"`
	Mode     MountMode `json:"mode"`
	// Optional entries are skipped when Source (or, for hidden masks,
	// Target) does not exist rather than failing the whole setup.
	Optional bool `json:"optional,omitempty"`
}

// MountPlan is the ordered mount sequence applied by the init stage.
// Order is the plan's contract: a path's parent always appears before
// the path itself, and hidden masks come after every bind, so a mask
// is the topmost mount at its target and cannot be shadowed by a later
// entry.
type MountPlan struct {
	Entries []MountEntry `json:"entries"`
}

// systemDirs are the host directories exposed read-only so jailed
// processes can run normal toolchains.
var systemDirs = []string{"/usr", "/bin", "/lib", "/lib64", "/sbin"}

// BuildPlan assembles the mount sequence for one jail invocation.
// worktree becomes the jail's root filesystem (read-write); system
// directories are overlaid read-only; /etc, /dev, and /tmp are fresh
// tmpfs instances populated by the init stage; extra binds follow the
// defaults; hidden masks, resolved against home, are appended last so
// they always win over overlapping binds.
//
// entrypoint, when it names an absolute path outside the system
// directories, is bound read-only at the same path so commands
// installed outside /usr and friends run without extra configuration.
// Pass "" when the command resolves through the jail's PATH.
func BuildPlan(worktree, home, entrypoint string, config Config) (*MountPlan, error) {
	if !filepath.IsAbs(worktree) {
		return nil, fmt.Errorf("worktree path %q is not absolute", worktree)
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	plan := &MountPlan{}
	add := func(entry MountEntry) {
		plan.Entries = append(plan.Entries, entry)
	}

	add(MountEntry{Source: worktree, Target: "/", Mode: ModeReadWrite})
	for _, dir := range systemDirs {
		add(MountEntry{Source: dir, Target: dir, Mode: ModeReadOnly, Optional: true})
	}
	add(MountEntry{Target: "/etc", Mode: ModeTmpfs})
	add(MountEntry{Source: "/etc/ssl", Target: "/etc/ssl", Mode: ModeReadOnly, Optional: true})
	add(MountEntry{Source: "/etc/ca-certificates", Target: "/etc/ca-certificates", Mode: ModeReadOnly, Optional: true})
	add(MountEntry{Source: "/proc", Target: "/proc", Mode: ModeReadOnly})
	add(MountEntry{Target: "/dev", Mode: ModeTmpfs})
	add(MountEntry{Target: "/tmp", Mode: ModeTmpfs})

	for _, path := range config.ExtraROBinds {
		add(MountEntry{Source: path, Target: path, Mode: ModeReadOnly, Optional: true})
	}
	for _, path := range config.ExtraRWBinds {
		add(MountEntry{Source: path, Target: path, Mode: ModeReadWrite, Optional: true})
	}
	if path := entrypointBind(entrypoint); path != "" {
		add(MountEntry{Source: path, Target: path, Mode: ModeReadOnly, Optional: true})
	}
	for _, path := range config.HiddenPaths {
		target := filepath.Join(home, path)
		add(MountEntry{Target: target, Mode: ModeHidden, Optional: true})
	}

	if err := plan.Validate(); err != nil {
		return nil, err
	}
	return plan, nil
}

// Validate checks the plan's ordering invariants: absolute targets,
// parents mounted before children, and hidden masks positioned after
// every non-hidden entry.
func (p *MountPlan) Validate() error {
	firstHidden := -1
	var mounted []string
	for i, entry := range p.Entries {
		if !filepath.IsAbs(entry.Target) {
			return fmt.Errorf("entry %d: target %q is not absolute", i, entry.Target)
		}
		if entry.Mode == ModeHidden {
			if firstHidden == -1 {
				firstHidden = i
			}
			continue
		}
		if firstHidden != -1 {
			return fmt.Errorf("entry %d (%s %s) appears after hidden mask", i, entry.Mode, entry.Target)
		}

		// A bind at an ancestor of an already-mounted target would
		// shadow that earlier mount, so no earlier target may be a
		// strict descendant of this one.
		prefix := entry.Target
		if prefix != "/" {
			prefix += "/"
		}
		for _, earlier := range mounted {
			if strings.HasPrefix(earlier, prefix) {
				return fmt.Errorf("entry %d: %q mounted after its child %q", i, entry.Target, earlier)
			}
		}
		mounted = append(mounted, entry.Target)
	}
	return nil
}

// entrypointBind decides whether an entrypoint needs its own bind.
// Bare command names resolve through PATH inside the jail, and paths
// under the system directories are already mounted; anything else
// absolute gets bound at its own path.
func entrypointBind(entrypoint string) string {
	if !filepath.IsAbs(entrypoint) {
		return ""
	}
	clean := filepath.Clean(entrypoint)
	if clean == "/" {
		return ""
	}
	for _, dir := range systemDirs {
		if clean == dir || strings.HasPrefix(clean, dir+"/") {
			return ""
		}
	}
	return clean
}

// Covers reports whether the plan masks path: some hidden entry's
// target equals path or is an ancestor of it.
func (p *MountPlan) Covers(path string) bool {
	for _, entry := range p.Entries {
		if entry.Mode != ModeHidden {
			continue
		}
		if entry.Target == path || strings.HasPrefix(path, entry.Target+"/") {
			return true
		}
	}
	return false
}
