// Copyright 2026 The RoboJail Authors
// SPDX-License-Identifier: Apache-2.0

// Package config loads robojail's configuration file and produces the
// validated sandbox settings the core consumes.
//
// The file is located via the ROBOJAIL_CONFIG environment variable,
// falling back to ~/.config/robojail/config.yaml. A missing file is
// not an error: defaults are merged first and the file only overrides
// them. Environment variables never override config values; the only
// expansion performed is ${VAR} and ${VAR:-default} in paths, for
// portability of shared config files.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"gopkg.in/yaml.v3"

	"github.com/robojail/robojail/sandbox"
)

// Config is the master configuration for robojail.
type Config struct {
	// Paths configures directory locations.
	Paths PathsConfig `yaml:"paths"`

	// Sandbox configures the jail environment.
	Sandbox SandboxConfig `yaml:"sandbox"`
}

// PathsConfig configures directory locations.
type PathsConfig struct {
	// Root is the base directory for robojail data.
	Root string `yaml:"root"`

	// Jails is where jail worktrees are created.
	Jails string `yaml:"jails"`

	// State is where the jail registry is stored.
	State string `yaml:"state"`
}

// SandboxConfig configures the jail environment.
type SandboxConfig struct {
	// DefaultShell is started by interactive jail entry.
	// Default: /bin/bash
	DefaultShell string `yaml:"default_shell"`

	// NetworkEnabled shares the host network with jails.
	// Default: true
	NetworkEnabled bool `yaml:"network_enabled"`

	// ExtraROBinds are absolute host paths exposed read-only.
	ExtraROBinds []string `yaml:"extra_ro_binds"`

	// ExtraRWBinds are absolute host paths exposed read-write.
	ExtraRWBinds []string `yaml:"extra_rw_binds"`

	// HiddenPaths are home-relative paths masked inside every jail.
	// A mask always wins over an overlapping bind.
	HiddenPaths []string `yaml:"hidden_paths"`

	// EnvPassthrough lists environment variables copied into jails.
	EnvPassthrough []string `yaml:"env_passthrough"`
}

// Default returns the configuration used when no file overrides it.
// The hidden-path defaults cover the credential stores a coding agent
// has no business reading.
func Default() *Config {
	homeDir, _ := os.UserHomeDir()
	defaultRoot := filepath.Join(homeDir, ".local", "share", "robojail")

	return &Config{
		Paths: PathsConfig{
			Root:  defaultRoot,
			Jails: filepath.Join(defaultRoot, "jails"),
			State: filepath.Join(defaultRoot, "state"),
		},
		Sandbox: SandboxConfig{
			DefaultShell:   "/bin/bash",
			NetworkEnabled: true,
			HiddenPaths: []string{
				".ssh",
				".gnupg",
				".aws",
				".config/gcloud",
				".kube",
				".docker",
				".npmrc",
				".pypirc",
				".netrc",
			},
			EnvPassthrough: []string{"TERM", "LANG", "LC_ALL", "COLORTERM"},
		},
	}
}

// Load resolves the config path from ROBOJAIL_CONFIG or the default
// location and loads it over the defaults. A missing file yields the
// defaults unchanged.
func Load() (*Config, error) {
	path := os.Getenv("ROBOJAIL_CONFIG")
	if path == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("resolving home directory: %w", err)
		}
		path = filepath.Join(homeDir, ".config", "robojail", "config.yaml")
	}
	return LoadFile(path)
}

// LoadFile loads configuration from a specific path over the defaults.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		cfg.expandVariables()
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	cfg.expandVariables()
	return cfg, nil
}

// expandVariables expands ${VAR} and ${VAR:-default} patterns in paths.
func (c *Config) expandVariables() {
	vars := map[string]string{
		"ROBOJAIL_ROOT": c.Paths.Root,
		"HOME":          os.Getenv("HOME"),
	}

	c.Paths.Root = expandVars(c.Paths.Root, vars)
	vars["ROBOJAIL_ROOT"] = c.Paths.Root // update for dependent paths

	c.Paths.Jails = expandVars(c.Paths.Jails, vars)
	c.Paths.State = expandVars(c.Paths.State, vars)

	for i, path := range c.Sandbox.ExtraROBinds {
		c.Sandbox.ExtraROBinds[i] = expandVars(path, vars)
	}
	for i, path := range c.Sandbox.ExtraRWBinds {
		c.Sandbox.ExtraRWBinds[i] = expandVars(path, vars)
	}
}

var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

func expandVars(s string, vars map[string]string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		name := parts[1]
		defaultValue := ""
		if len(parts) >= 3 {
			defaultValue = parts[2]
		}

		if value, ok := vars[name]; ok && value != "" {
			return value
		}
		if value := os.Getenv(name); value != "" {
			return value
		}
		return defaultValue
	})
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error

	if c.Paths.Root == "" {
		errs = append(errs, fmt.Errorf("paths.root is required"))
	}
	if c.Paths.Jails == "" {
		errs = append(errs, fmt.Errorf("paths.jails is required"))
	}
	if c.Paths.State == "" {
		errs = append(errs, fmt.Errorf("paths.state is required"))
	}
	if err := c.SandboxConfig().Validate(); err != nil {
		errs = append(errs, err)
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// EnsurePaths creates all configured directories if they don't exist.
func (c *Config) EnsurePaths() error {
	for _, path := range []string{c.Paths.Root, c.Paths.Jails, c.Paths.State} {
		if path == "" {
			continue
		}
		if err := os.MkdirAll(path, 0o755); err != nil {
			return fmt.Errorf("creating %s: %w", path, err)
		}
	}
	return nil
}

// SandboxConfig converts the loaded settings into the immutable value
// the sandbox constructor consumes.
func (c *Config) SandboxConfig() sandbox.Config {
	return sandbox.Config{
		Shell:          c.Sandbox.DefaultShell,
		NetworkEnabled: c.Sandbox.NetworkEnabled,
		ExtraROBinds:   c.Sandbox.ExtraROBinds,
		ExtraRWBinds:   c.Sandbox.ExtraRWBinds,
		HiddenPaths:    c.Sandbox.HiddenPaths,
		EnvPassthrough: c.Sandbox.EnvPassthrough,
	}
}
