// Copyright 2026 The RoboJail Authors
// SPDX-License-Identifier: Apache-2.0

// Package commands assembles the robojail command tree.
package commands

import (
	"github.com/robojail/robojail/cmd/robojail/cli"
	"github.com/robojail/robojail/cmd/robojail/jailcmd"
)

// Root returns the top-level robojail command.
func Root() *cli.Command {
	return &cli.Command{
		Name:    "robojail",
		Summary: "Sandboxed git worktrees for autonomous coding agents",
		Description: "robojail runs coding agents inside disposable jails. Each jail is\n" +
			"a dedicated git worktree on its own branch, entered through an\n" +
			"unprivileged namespace sandbox that hides the rest of the host\n" +
			"filesystem and the user's credentials.",
		Subcommands: jailcmd.Commands(),
	}
}
