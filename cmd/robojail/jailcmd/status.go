// Copyright 2026 The RoboJail Authors
// SPDX-License-Identifier: Apache-2.0

package jailcmd

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/pflag"

	"github.com/robojail/robojail/cmd/robojail/cli"
	"github.com/robojail/robojail/lib/registry"
	"github.com/robojail/robojail/lib/worktree"
)

type statusParams struct {
	cli.JSONOutput
	Diff bool `flag:"diff" desc:"include the full diff, with untracked file contents"`
}

// statusReport is the JSON shape for status output.
type statusReport struct {
	Jail     registry.Jail    `json:"jail"`
	Worktree *worktree.Status `json:"worktree"`
	Diff     string           `json:"diff,omitempty"`
}

func statusCommand() *cli.Command {
	var params statusParams
	return &cli.Command{
		Name:    "status",
		Summary: "Show what a jailed agent has changed",
		Description: "Inspect a jail's worktree from the host: modified, added, and\n" +
			"deleted files plus diff statistics, without entering the sandbox.",
		Usage: "robojail status <name> [--diff] [--json]",
		Examples: []cli.Example{
			{Command: "robojail status demo"},
			{Description: "Review the full diff before merging", Command: "robojail status demo --diff"},
		},
		Flags: func() *pflag.FlagSet {
			return cli.FlagsFromParams("status", &params)
		},
		Run: func(args []string) error {
			name, err := requireName("status", args)
			if err != nil {
				return err
			}
			return runStatus(&params, name)
		},
	}
}

func runStatus(params *statusParams, name string) error {
	app, err := newApp("status")
	if err != nil {
		return err
	}
	ctx := context.Background()

	jail, err := app.store.Lookup(name)
	if err != nil {
		return err
	}
	status, err := app.provisioner.Status(ctx, jail.WorktreePath)
	if err != nil {
		return err
	}

	var diff string
	if params.Diff {
		diff, err = app.provisioner.Diff(ctx, jail.WorktreePath, true)
		if err != nil {
			return err
		}
	}

	if done, err := params.EmitJSON(statusReport{Jail: jail, Worktree: status, Diff: diff}); done {
		return err
	}

	printStatus(os.Stdout, jail, status)
	if params.Diff && diff != "" {
		fmt.Fprintln(os.Stdout)
		fmt.Fprint(os.Stdout, diff)
	}
	return nil
}

func printStatus(w io.Writer, jail registry.Jail, status *worktree.Status) {
	fmt.Fprintf(w, "Jail %q on branch %s (%s)\n", jail.Name, jail.Branch, jail.State)
	if status.Clean() {
		fmt.Fprintln(w, "No changes.")
		return
	}
	fmt.Fprintf(w, "%d file(s) changed (+%d, -%d)\n",
		status.Stats.FilesChanged, status.Stats.Insertions, status.Stats.Deletions)
	printFileSection(w, "Modified", status.Modified)
	printFileSection(w, "Added", status.Added)
	printFileSection(w, "Deleted", status.Deleted)
}

func printFileSection(w io.Writer, label string, names []string) {
	if len(names) == 0 {
		return
	}
	fmt.Fprintf(w, "%s:\n", label)
	for _, name := range names {
		fmt.Fprintf(w, "  %s\n", name)
	}
}
