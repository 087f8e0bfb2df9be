// Copyright 2026 The RoboJail Authors
// SPDX-License-Identifier: Apache-2.0

package jailcmd

import (
	"fmt"

	"github.com/robojail/robojail/cmd/robojail/cli"
)

func runCommand() *cli.Command {
	return &cli.Command{
		Name:    "run",
		Aliases: []string{"exec"},
		Summary: "Run a command inside a jail",
		Description: "Run a single command inside a jail and exit with the command's\n" +
			"own status code.",
		Usage: "robojail run <name> -- <command> [args...]",
		Examples: []cli.Example{
			{Description: "Run the test suite in the jail", Command: "robojail run demo -- go test ./..."},
		},
		Run: func(args []string) error {
			name, err := requireName("run", args)
			if err != nil {
				return err
			}
			argv := args[1:]
			// The command takes no flags of its own, so the -- separator
			// reaches us verbatim.
			if len(argv) > 0 && argv[0] == "--" {
				argv = argv[1:]
			}
			if len(argv) == 0 {
				return fmt.Errorf("usage: robojail run <name> -- <command> [args...]")
			}
			app, err := newApp("run")
			if err != nil {
				return err
			}
			return executeInJail(app, name, argv)
		},
	}
}
