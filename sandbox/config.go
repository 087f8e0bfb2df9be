// Copyright 2026 The RoboJail Authors
// SPDX-License-Identifier: Apache-2.0

package sandbox

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Config holds the validated sandbox settings consumed by the
// constructor. It is produced by the configuration loader and treated
// as immutable input here.
type Config struct {
	// Shell is the program started by interactive jail entry.
	Shell string

	// NetworkEnabled shares the host network with the jail. When
	// false the jail gets its own empty network namespace.
	NetworkEnabled bool

	// ExtraROBinds are absolute host paths exposed read-only inside
	// the jail at the same path.
	ExtraROBinds []string

	// ExtraRWBinds are absolute host paths exposed read-write inside
	// the jail at the same path.
	ExtraRWBinds []string

	// HiddenPaths are paths relative to the invoking user's home
	// directory that are masked inside the jail. A mask always wins
	// over an overlapping bind.
	HiddenPaths []string

	// EnvPassthrough lists environment variables copied from the
	// invoking environment into the jail. Everything else is cleared.
	EnvPassthrough []string
}

// Validate checks the config for values the constructor cannot act on.
func (c Config) Validate() error {
	if c.Shell == "" {
		return fmt.Errorf("shell is required")
	}
	for _, path := range append(append([]string{}, c.ExtraROBinds...), c.ExtraRWBinds...) {
		if !filepath.IsAbs(path) {
			return fmt.Errorf("bind path %q is not absolute", path)
		}
	}
	for _, path := range c.HiddenPaths {
		if filepath.IsAbs(path) {
			return fmt.Errorf("hidden path %q must be relative to the home directory", path)
		}
		clean := filepath.Clean(path)
		if clean == ".." || strings.HasPrefix(clean, "../") {
			return fmt.Errorf("hidden path %q escapes the home directory", path)
		}
	}
	for _, name := range c.EnvPassthrough {
		if name == "" || strings.ContainsAny(name, "= \t") {
			return fmt.Errorf("invalid passthrough variable name %q", name)
		}
	}
	return nil
}
