// Copyright 2026 The RoboJail Authors
// SPDX-License-Identifier: Apache-2.0

package jailcmd

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/pflag"

	"github.com/robojail/robojail/cmd/robojail/cli"
	"github.com/robojail/robojail/lib/registry"
)

type listParams struct {
	cli.JSONOutput
}

func listCommand() *cli.Command {
	var params listParams
	return &cli.Command{
		Name:    "list",
		Aliases: []string{"ls"},
		Summary: "List jails and their states",
		Usage:   "robojail list [--json]",
		Flags: func() *pflag.FlagSet {
			return cli.FlagsFromParams("list", &params)
		},
		Run: func(args []string) error {
			return runList(&params)
		},
	}
}

func runList(params *listParams) error {
	app, err := newApp("list")
	if err != nil {
		return err
	}

	jails, err := app.store.List()
	if err != nil {
		return err
	}
	if done, err := params.EmitJSON(jails); done {
		return err
	}

	if len(jails) == 0 {
		fmt.Println("No jails.")
		return nil
	}
	printJailTable(os.Stdout, jails)
	return nil
}

func printJailTable(w io.Writer, jails []registry.Jail) {
	tw := tabwriter.NewWriter(w, 2, 0, 3, ' ', 0)
	fmt.Fprintln(tw, "NAME\tSTATE\tPID\tBRANCH\tCREATED")
	for _, jail := range jails {
		pid := "-"
		if jail.PID > 0 {
			pid = fmt.Sprintf("%d", jail.PID)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			jail.Name, jail.State, pid, jail.Branch,
			jail.CreatedAt.Local().Format(time.DateTime))
	}
	tw.Flush()
}
