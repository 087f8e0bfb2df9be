// Copyright 2026 The RoboJail Authors
// SPDX-License-Identifier: Apache-2.0

// Package sandbox constructs the confined environment a jail's
// processes run in: Linux user, mount, IPC, UTS, and optionally
// network namespaces around a git worktree that becomes the jail's
// root filesystem.
//
// Construction is two-staged. The parent builds a MountPlan and an
// exec specification, then re-executes its own binary into fresh
// namespaces (Cloneflags on SysProcAttr, with a single UID/GID mapping
// making the invoking user root inside). The hidden init stage runs
// inside the namespaces: it applies the plan, pivots into the new
// root, hardens the process, and execs the target command. Setup is
// all or nothing: any failed step exits the init stage before exec,
// and the namespaces vanish with it, leaving no residue on the host.
package sandbox
