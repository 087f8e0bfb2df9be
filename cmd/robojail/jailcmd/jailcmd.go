// Copyright 2026 The RoboJail Authors
// SPDX-License-Identifier: Apache-2.0

// Package jailcmd implements the jail lifecycle commands: create,
// list, enter, run, status, and destroy. Each command composes the
// registry, worktree provisioner, sandbox constructor, and supervisor
// behind the thin flag-parsing layer of the cli package.
package jailcmd

import (
	"fmt"
	"log/slog"

	"github.com/robojail/robojail/cmd/robojail/cli"
	"github.com/robojail/robojail/lib/config"
	"github.com/robojail/robojail/lib/registry"
	"github.com/robojail/robojail/lib/worktree"
)

// app bundles the loaded configuration and the stores every command
// needs. Built per invocation; nothing here is process-global.
type app struct {
	config      *config.Config
	store       *registry.Store
	provisioner *worktree.Provisioner
	logger      *slog.Logger
}

func newApp(command string) (*app, error) {
	logger := cli.NewCommandLogger().With("command", command)

	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if err := cfg.EnsurePaths(); err != nil {
		return nil, err
	}

	store, err := registry.Open(cfg.Paths.State, logger)
	if err != nil {
		return nil, err
	}
	return &app{
		config:      cfg,
		store:       store,
		provisioner: &worktree.Provisioner{Root: cfg.Paths.Jails, Logger: logger},
		logger:      logger,
	}, nil
}

// Commands returns the jail lifecycle commands for the root tree.
func Commands() []*cli.Command {
	return []*cli.Command{
		createCommand(),
		listCommand(),
		enterCommand(),
		runCommand(),
		statusCommand(),
		destroyCommand(),
	}
}

// requireName extracts the jail name positional argument.
func requireName(command string, args []string) (string, error) {
	if len(args) < 1 {
		return "", fmt.Errorf("usage: robojail %s <name>", command)
	}
	return args[0], nil
}
