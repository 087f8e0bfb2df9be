// Copyright 2026 The RoboJail Authors
// SPDX-License-Identifier: Apache-2.0

// Command robojail manages sandboxed git worktrees for coding agents.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/robojail/robojail/cmd/robojail/cli"
	"github.com/robojail/robojail/cmd/robojail/commands"
	"github.com/robojail/robojail/sandbox"
)

func main() {
	// The sandbox re-executes this binary inside fresh namespaces with a
	// hidden first argument. Dispatch to the init stage before any CLI
	// parsing so nothing else runs in the child.
	if len(os.Args) > 1 && os.Args[1] == sandbox.InitStageCommand {
		sandbox.InitStage()
		// InitStage either execs the jailed command or exits.
		os.Exit(1)
	}

	err := commands.Root().Execute(os.Args[1:])
	if err != nil {
		var exitErr *cli.ExitError
		if !errors.As(err, &exitErr) {
			fmt.Fprintf(os.Stderr, "robojail: %v\n", err)
		}
		os.Exit(cli.ExitCodeFor(err))
	}
}
