// Copyright 2026 The RoboJail Authors
// SPDX-License-Identifier: Apache-2.0

package sandbox

import (
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"
)

// scaffoldRoot is where the init stage assembles the new root before
// pivoting into it. The tmpfs mounted there is private to the jail's
// mount namespace; at most an empty directory is left on the host.
const scaffoldRoot = "/tmp/robojail-root"

// applyMountPlan builds the jail filesystem: makes the host mount
// table private, assembles the plan under a scaffold tmpfs, and pivots
// into it. Any error aborts setup; the half-built tree is confined to
// this mount namespace and disappears when the process exits.
func applyMountPlan(plan *MountPlan) error {
	// Stop mount events from propagating to the host.
	if err := unix.Mount("", "/", "", unix.MS_PRIVATE|unix.MS_REC, ""); err != nil {
		return fmt.Errorf("making mounts private: %w", err)
	}

	if err := os.MkdirAll(scaffoldRoot, 0o755); err != nil {
		return fmt.Errorf("creating scaffold root: %w", err)
	}
	if err := mountTmpfs(scaffoldRoot, "mode=0755,size=512M", false); err != nil {
		return err
	}

	for _, entry := range plan.Entries {
		if err := applyEntry(entry); err != nil {
			return err
		}
	}

	// The synthetic home must exist before pivot so HOME resolves.
	if err := os.MkdirAll(filepath.Join(scaffoldRoot, jailHome), 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", jailHome, err)
	}

	return pivotRoot(scaffoldRoot)
}

// applyEntry performs one step of the plan inside the scaffold.
func applyEntry(entry MountEntry) error {
	target := filepath.Join(scaffoldRoot, entry.Target)

	switch entry.Mode {
	case ModeReadOnly, ModeReadWrite:
		info, err := os.Stat(entry.Source)
		if err != nil {
			if entry.Optional && os.IsNotExist(err) {
				return nil
			}
			return fmt.Errorf("stat bind source %s: %w", entry.Source, err)
		}
		if err := ensureMountpoint(target, info.IsDir()); err != nil {
			return err
		}
		return bindMount(entry.Source, target, entry.Mode == ModeReadOnly)

	case ModeTmpfs:
		if err := ensureMountpoint(target, true); err != nil {
			return err
		}
		if err := mountTmpfs(target, tmpfsOptions(entry.Target), false); err != nil {
			return err
		}
		// /etc and /dev tmpfs mounts get their fixed contents here,
		// while they are still reachable through the scaffold path.
		switch entry.Target {
		case "/etc":
			return populateEtc(target)
		case "/dev":
			return populateDev(target)
		}
		return nil

	case ModeHidden:
		return applyMask(entry, target)

	default:
		return fmt.Errorf("unknown mount mode %q for %s", entry.Mode, entry.Target)
	}
}

// tmpfsOptions returns mount options per tmpfs target. /dev is tiny
// and noexec; everything else gets the general-purpose sizing.
func tmpfsOptions(target string) string {
	if target == "/dev" {
		return "mode=0755,size=64K"
	}
	return "mode=0755,size=512M"
}

// ensureMountpoint creates the directory or empty file a mount needs.
// For bind targets inside the worktree mount this writes through to
// the worktree; empty directories are invisible to git.
func ensureMountpoint(target string, dir bool) error {
	if dir {
		if err := os.MkdirAll(target, 0o755); err != nil {
			return fmt.Errorf("creating mountpoint %s: %w", target, err)
		}
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("creating mountpoint parent for %s: %w", target, err)
	}
	if _, err := os.Stat(target); os.IsNotExist(err) {
		if err := os.WriteFile(target, nil, 0o644); err != nil {
			return fmt.Errorf("creating file mountpoint %s: %w", target, err)
		}
	}
	return nil
}

// bindMount binds source at target. Read-only needs a second remount
// step; MS_RDONLY on the initial bind is silently ignored.
func bindMount(source, target string, readonly bool) error {
	if err := unix.Mount(source, target, "", unix.MS_BIND|unix.MS_REC, ""); err != nil {
		return fmt.Errorf("binding %s at %s: %w", source, target, err)
	}
	if readonly {
		flags := uintptr(unix.MS_BIND | unix.MS_REMOUNT | unix.MS_RDONLY | unix.MS_REC)
		if err := unix.Mount("", target, "", flags, ""); err != nil {
			return fmt.Errorf("remounting %s read-only: %w", target, err)
		}
	}
	return nil
}

// mountTmpfs mounts a tmpfs at target.
func mountTmpfs(target, options string, readonly bool) error {
	flags := uintptr(unix.MS_NOSUID | unix.MS_NODEV)
	if readonly {
		flags |= unix.MS_RDONLY
	}
	if err := unix.Mount("tmpfs", target, "tmpfs", flags, options); err != nil {
		return fmt.Errorf("mounting tmpfs at %s: %w", target, err)
	}
	return nil
}

// applyMask hides the entry's target: directories get an empty
// read-only tmpfs, files an empty read-only bind. Masked files read
// as empty and reject writes; masked directories show nothing. A
// missing target means there is nothing to hide.
func applyMask(entry MountEntry, target string) error {
	info, err := os.Lstat(target)
	if err != nil {
		if entry.Optional && os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("stat mask target %s: %w", target, err)
	}

	if info.IsDir() {
		return mountTmpfs(target, "mode=0000,size=4K", true)
	}

	// Bind an empty placeholder over the file, then lock it read-only.
	placeholder := filepath.Join(scaffoldRoot, "tmp", ".mask")
	if err := os.MkdirAll(filepath.Dir(placeholder), 0o755); err != nil {
		return fmt.Errorf("creating mask placeholder dir: %w", err)
	}
	if err := os.WriteFile(placeholder, nil, 0o000); err != nil {
		return fmt.Errorf("creating mask placeholder: %w", err)
	}
	if err := bindMount(placeholder, target, true); err != nil {
		return err
	}
	// The mount keeps the inode alive; the path itself need not stay.
	_ = os.Remove(placeholder)
	return nil
}

// populateEtc fills the /etc tmpfs: copies of the host's resolver and
// name-service files, plus a synthetic passwd and group describing the
// jail account.
func populateEtc(etc string) error {
	for _, name := range []string{"resolv.conf", "hosts", "nsswitch.conf"} {
		data, err := os.ReadFile(filepath.Join("/etc", name))
		if err != nil {
			continue // absent on the host, absent in the jail
		}
		if err := os.WriteFile(filepath.Join(etc, name), data, 0o644); err != nil {
			return fmt.Errorf("writing /etc/%s: %w", name, err)
		}
	}

	passwd := "root:x:0:0:root:/root:/bin/bash\n" +
		jailUser + ":x:1000:1000:RoboJail:" + jailHome + ":/bin/bash\n" +
		"nobody:x:65534:65534:Nobody:/:/usr/bin/nologin\n"
	if err := os.WriteFile(filepath.Join(etc, "passwd"), []byte(passwd), 0o644); err != nil {
		return fmt.Errorf("writing /etc/passwd: %w", err)
	}
	group := "root:x:0:\n" + jailUser + ":x:1000:\nnogroup:x:65534:\n"
	if err := os.WriteFile(filepath.Join(etc, "group"), []byte(group), 0o644); err != nil {
		return fmt.Errorf("writing /etc/group: %w", err)
	}
	return nil
}

// populateDev fills the /dev tmpfs with the minimal device set: binds
// of the host's safe character devices, a fresh devpts and shm, and
// the conventional symlinks. Binding beats mknod here; device nodes
// cannot be created in an unprivileged user namespace.
func populateDev(dev string) error {
	for _, name := range []string{"null", "zero", "random", "urandom", "tty"} {
		source := filepath.Join("/dev", name)
		if _, err := os.Stat(source); err != nil {
			continue
		}
		target := filepath.Join(dev, name)
		if err := os.WriteFile(target, nil, 0o644); err != nil {
			return fmt.Errorf("creating device mountpoint %s: %w", target, err)
		}
		if err := bindMount(source, target, false); err != nil {
			return err
		}
	}

	// Pseudo-terminal support. Failures are tolerated: devpts may be
	// unavailable in restricted kernels and the jail still works for
	// non-interactive commands.
	pts := filepath.Join(dev, "pts")
	if err := os.MkdirAll(pts, 0o755); err != nil {
		return fmt.Errorf("creating /dev/pts: %w", err)
	}
	_ = unix.Mount("devpts", pts, "devpts",
		unix.MS_NOSUID|unix.MS_NOEXEC, "newinstance,ptmxmode=0666,mode=0620")
	_ = os.Symlink("pts/ptmx", filepath.Join(dev, "ptmx"))

	shm := filepath.Join(dev, "shm")
	if err := os.MkdirAll(shm, 0o755); err != nil {
		return fmt.Errorf("creating /dev/shm: %w", err)
	}
	_ = unix.Mount("tmpfs", shm, "tmpfs",
		unix.MS_NOSUID|unix.MS_NODEV|unix.MS_NOEXEC, "mode=1777,size=64M")

	_ = os.Symlink("/proc/self/fd", filepath.Join(dev, "fd"))
	_ = os.Symlink("/proc/self/fd/0", filepath.Join(dev, "stdin"))
	_ = os.Symlink("/proc/self/fd/1", filepath.Join(dev, "stdout"))
	_ = os.Symlink("/proc/self/fd/2", filepath.Join(dev, "stderr"))
	return nil
}

// pivotRoot swaps the process root to newRoot and detaches the old
// root so no host path remains reachable.
func pivotRoot(newRoot string) error {
	if err := os.Chdir(newRoot); err != nil {
		return fmt.Errorf("entering new root: %w", err)
	}
	oldRoot := filepath.Join(newRoot, ".old-root")
	if err := os.MkdirAll(oldRoot, 0o755); err != nil {
		return fmt.Errorf("creating old-root holder: %w", err)
	}
	if err := unix.PivotRoot(newRoot, oldRoot); err != nil {
		return fmt.Errorf("pivot_root: %w", err)
	}
	if err := os.Chdir("/"); err != nil {
		return fmt.Errorf("entering pivoted root: %w", err)
	}
	if err := unix.Unmount("/.old-root", unix.MNT_DETACH); err != nil {
		return fmt.Errorf("detaching old root: %w", err)
	}
	_ = os.Remove("/.old-root")
	return nil
}
