// Copyright 2026 The RoboJail Authors
// SPDX-License-Identifier: Apache-2.0

package jailcmd

import (
	"context"

	"github.com/robojail/robojail/cmd/robojail/cli"
	"github.com/robojail/robojail/lib/supervisor"
	"github.com/robojail/robojail/sandbox"
)

func enterCommand() *cli.Command {
	return &cli.Command{
		Name:    "enter",
		Aliases: []string{"shell"},
		Summary: "Start an interactive shell inside a jail",
		Usage:   "robojail enter <name>",
		Examples: []cli.Example{
			{Command: "robojail enter demo"},
		},
		Run: func(args []string) error {
			name, err := requireName("enter", args)
			if err != nil {
				return err
			}
			app, err := newApp("enter")
			if err != nil {
				return err
			}
			shell := app.config.Sandbox.DefaultShell
			return executeInJail(app, name, []string{shell})
		},
	}
}

// executeInJail runs argv inside the named jail and converts the exit
// status into the command result: nil for success, an ExitError
// carrying the jailed process's own code otherwise.
func executeInJail(app *app, name string, argv []string) error {
	jail, err := app.store.Lookup(name)
	if err != nil {
		return err
	}
	if err := sandbox.CheckNamespaces(); err != nil {
		return err
	}

	sb, err := sandbox.New(jail.Name, jail.WorktreePath, app.config.SandboxConfig(), app.logger)
	if err != nil {
		return err
	}

	sup := &supervisor.Supervisor{Registry: app.store, Logger: app.logger}
	code, err := sup.Run(context.Background(), jail, sb, argv)
	if err != nil {
		return err
	}
	if code != 0 {
		return &cli.ExitError{Code: code}
	}
	return nil
}
