// Copyright 2026 The RoboJail Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/spf13/pflag"

	"github.com/robojail/robojail/lib/registry"
	"github.com/robojail/robojail/lib/worktree"
	"github.com/robojail/robojail/sandbox"
)

func TestCommand_DispatchByName(t *testing.T) {
	t.Parallel()

	ran := false
	root := &Command{
		Name: "robojail",
		Subcommands: []*Command{
			{Name: "create", Run: func(args []string) error { ran = true; return nil }},
		},
	}

	if err := root.Execute([]string{"create"}); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !ran {
		t.Error("create did not run")
	}
}

func TestCommand_DispatchByAlias(t *testing.T) {
	t.Parallel()

	var got []string
	root := &Command{
		Name: "robojail",
		Subcommands: []*Command{
			{
				Name:    "destroy",
				Aliases: []string{"rm"},
				Run:     func(args []string) error { got = args; return nil },
			},
		},
	}

	if err := root.Execute([]string{"rm", "demo"}); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if len(got) != 1 || got[0] != "demo" {
		t.Errorf("args = %v, want [demo]", got)
	}
}

func TestCommand_UnknownSuggestsClosest(t *testing.T) {
	t.Parallel()

	root := &Command{
		Name: "robojail",
		Subcommands: []*Command{
			{Name: "create", Run: func([]string) error { return nil }},
			{Name: "destroy", Run: func([]string) error { return nil }},
		},
	}

	err := root.Execute([]string{"craete"})
	if err == nil {
		t.Fatal("expected error for unknown command")
	}
	if !strings.Contains(err.Error(), `"create"`) {
		t.Errorf("error = %v, want suggestion of create", err)
	}
}

func TestCommand_FlagParsing(t *testing.T) {
	t.Parallel()

	type params struct {
		Name  string `flag:"name,n" desc:"jail name"`
		Force bool   `flag:"force" desc:"skip safety checks"`
	}
	var p params
	cmd := &Command{
		Name: "destroy",
		Flags: func() *pflag.FlagSet {
			return FlagsFromParams("destroy", &p)
		},
		Run: func(args []string) error { return nil },
	}

	if err := cmd.Execute([]string{"--name", "demo", "--force"}); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if p.Name != "demo" || !p.Force {
		t.Errorf("params = %+v, want Name=demo Force=true", p)
	}
}

func TestCommand_UnknownFlagSuggests(t *testing.T) {
	t.Parallel()

	type params struct {
		Force bool `flag:"force" desc:"skip safety checks"`
	}
	var p params
	cmd := &Command{
		Name: "destroy",
		Flags: func() *pflag.FlagSet {
			return FlagsFromParams("destroy", &p)
		},
		Run: func(args []string) error { return nil },
	}

	err := cmd.Execute([]string{"--froce"})
	if err == nil {
		t.Fatal("expected error for unknown flag")
	}
	if !strings.Contains(err.Error(), "--force") {
		t.Errorf("error = %v, want suggestion of --force", err)
	}
}

func TestBindFlags_EmbeddedJSONOutput(t *testing.T) {
	t.Parallel()

	type params struct {
		JSONOutput
		Name string `flag:"name" desc:"jail name"`
	}
	var p params
	flagSet := FlagsFromParams("list", &p)

	if err := flagSet.Parse([]string{"--json", "--name", "x"}); err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if !p.OutputJSON {
		t.Error("embedded --json flag not bound")
	}
}

func TestBindFlags_Defaults(t *testing.T) {
	t.Parallel()

	type params struct {
		Branch string   `flag:"branch" default:"HEAD" desc:"base ref"`
		Count  int      `flag:"count" default:"3" desc:"count"`
		Names  []string `flag:"names" default:"a,b" desc:"names"`
	}
	var p params
	flagSet := FlagsFromParams("x", &p)
	if err := flagSet.Parse(nil); err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if p.Branch != "HEAD" {
		t.Errorf("Branch = %q, want HEAD", p.Branch)
	}
	if p.Count != 3 {
		t.Errorf("Count = %d, want 3", p.Count)
	}
	if len(p.Names) != 2 {
		t.Errorf("Names = %v, want [a b]", p.Names)
	}
}

func TestExitCodeFor(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, ExitOK},
		{"generic", errors.New("boom"), ExitFailure},
		{"wrapped not found", fmt.Errorf("lookup: %w", registry.ErrNotFound), ExitNotFound},
		{"duplicate", registry.ErrDuplicateName, ExitDuplicateName},
		{"invalid name", registry.ErrInvalidName, ExitUsage},
		{"namespaces", sandbox.ErrNamespaceUnavailable, ExitNamespaceUnavailable},
		{"dirty", worktree.ErrDirtyWorktree, ExitDirtyWorktree},
		{"mount", fmt.Errorf("setup: %w", sandbox.ErrMountFailed), ExitMountFailed},
		{"exit error wins", &ExitError{Code: 42}, 42},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ExitCodeFor(tc.err); got != tc.want {
				t.Errorf("ExitCodeFor(%v) = %d, want %d", tc.err, got, tc.want)
			}
		})
	}
}

func TestLevenshtein(t *testing.T) {
	t.Parallel()

	cases := []struct {
		a, b string
		want int
	}{
		{"", "", 0},
		{"create", "create", 0},
		{"craete", "create", 2},
		{"ls", "list", 2},
		{"destroy", "status", 6},
	}
	for _, tc := range cases {
		if got := levenshtein(tc.a, tc.b); got != tc.want {
			t.Errorf("levenshtein(%q, %q) = %d, want %d", tc.a, tc.b, got, tc.want)
		}
	}
}
