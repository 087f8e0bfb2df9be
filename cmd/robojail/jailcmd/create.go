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

type createParams struct {
	Name   string `flag:"name,n" desc:"jail name"`
	Repo   string `flag:"repo,r" desc:"path inside the source git repository"`
	Branch string `flag:"branch,b" desc:"base ref for the jail branch (default HEAD)"`
}

func createCommand() *cli.Command {
	var params createParams
	return &cli.Command{
		Name:    "create",
		Aliases: []string{"new"},
		Summary: "Create a jail with its own worktree",
		Description: "Create a new jail: a dedicated git worktree on its own branch,\n" +
			"registered for sandboxed execution with enter and run.",
		Usage: "robojail create --name <name> --repo <path> [--branch <ref>]",
		Examples: []cli.Example{
			{Description: "Jail the repository in the current directory", Command: "robojail create --name demo --repo ."},
			{Description: "Base the jail on a release branch", Command: "robojail create --name hotfix --repo ~/src/app --branch release-2.4"},
		},
		Flags: func() *pflag.FlagSet {
			return cli.FlagsFromParams("create", &params)
		},
		Run: func(args []string) error {
			return runCreate(&params)
		},
	}
}

func runCreate(params *createParams) error {
	if params.Name == "" || params.Repo == "" {
		return fmt.Errorf("usage: robojail create --name <name> --repo <path>")
	}
	if err := registry.ValidateName(params.Name); err != nil {
		return err
	}

	app, err := newApp("create")
	if err != nil {
		return err
	}
	ctx := context.Background()

	// Fast duplicate check before provisioning; Register below is the
	// authoritative one under the registry lock.
	if _, err := app.store.Lookup(params.Name); err == nil {
		return fmt.Errorf("%w: %q", registry.ErrDuplicateName, params.Name)
	}

	provisioned, err := app.provisioner.Create(ctx, params.Repo, params.Name, params.Branch)
	if err != nil {
		return err
	}

	jail := registry.NewJail(params.Name, provisioned.RepoPath)
	jail.WorktreePath = provisioned.WorktreePath
	jail.Branch = provisioned.Branch
	jail.BaseCommit = provisioned.BaseCommit
	if err := app.store.Register(jail); err != nil {
		// A concurrent create won the name; take our worktree back out.
		if destroyErr := app.provisioner.Destroy(ctx, provisioned.RepoPath, provisioned.WorktreePath, true); destroyErr != nil {
			app.logger.Warn("rolling back worktree failed",
				"jail", params.Name, "error", destroyErr)
		}
		return err
	}

	fmt.Printf("Created jail %q\n", params.Name)
	fmt.Printf("  worktree: %s\n", provisioned.WorktreePath)
	fmt.Printf("  branch:   %s\n", provisioned.Branch)
	fmt.Printf("  base:     %s\n", provisioned.BaseCommit)
	return nil
}
