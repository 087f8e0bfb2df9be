// Copyright 2026 The RoboJail Authors
// SPDX-License-Identifier: Apache-2.0

package jailcmd

import (
	"context"
	"fmt"

	"github.com/spf13/pflag"

	"github.com/robojail/robojail/cmd/robojail/cli"
	"github.com/robojail/robojail/lib/registry"
)

type destroyParams struct {
	Force bool `flag:"force,f" desc:"destroy even if the jail is running or its worktree is dirty"`
}

func destroyCommand() *cli.Command {
	var params destroyParams
	return &cli.Command{
		Name:    "destroy",
		Aliases: []string{"rm"},
		Summary: "Destroy a jail, its worktree, and its registry entry",
		Description: "Remove a jail's worktree and drop it from the registry. The jail's\n" +
			"branch is left behind so committed work survives destruction.",
		Usage: "robojail destroy <name> [--force]",
		Examples: []cli.Example{
			{Command: "robojail destroy demo"},
			{Description: "Discard a jail with uncommitted changes", Command: "robojail destroy demo --force"},
		},
		Flags: func() *pflag.FlagSet {
			return cli.FlagsFromParams("destroy", &params)
		},
		Run: func(args []string) error {
			name, err := requireName("destroy", args)
			if err != nil {
				return err
			}
			return runDestroy(&params, name)
		},
	}
}

func runDestroy(params *destroyParams, name string) error {
	app, err := newApp("destroy")
	if err != nil {
		return err
	}
	ctx := context.Background()

	jail, err := app.store.Lookup(name)
	if err != nil {
		return err
	}
	if jail.State == registry.StateRunning && !params.Force {
		return fmt.Errorf("%w: %q (use --force)", registry.ErrJailRunning, name)
	}

	if err := app.provisioner.Destroy(ctx, jail.RepoPath, jail.WorktreePath, params.Force); err != nil {
		return err
	}
	if err := app.store.Remove(name, params.Force); err != nil {
		return err
	}

	fmt.Printf("Destroyed jail %q (branch %s kept)\n", name, jail.Branch)
	return nil
}
