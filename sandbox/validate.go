// Copyright 2026 The RoboJail Authors
// SPDX-License-Identifier: Apache-2.0

package sandbox

import (
	"fmt"
	"os"
	"strings"
)

// CheckNamespaces is the pre-flight probe for unprivileged namespace
// support. It catches the common refusals before any process is
// spawned so the caller can report ErrNamespaceUnavailable with a
// reason instead of a bare clone failure.
func CheckNamespaces() error {
	if _, err := os.Stat("/proc/self/ns/user"); err != nil {
		return fmt.Errorf("%w: kernel built without user namespaces", ErrNamespaceUnavailable)
	}

	// Debian-derived kernels gate unprivileged user namespaces behind
	// a sysctl; the file is absent elsewhere.
	if value, ok := readSysctl("/proc/sys/kernel/unprivileged_userns_clone"); ok {
		if value == "0" && os.Getuid() != 0 {
			return fmt.Errorf("%w: kernel.unprivileged_userns_clone is 0", ErrNamespaceUnavailable)
		}
	}

	if value, ok := readSysctl("/proc/sys/user/max_user_namespaces"); ok {
		if value == "0" {
			return fmt.Errorf("%w: user.max_user_namespaces is 0", ErrNamespaceUnavailable)
		}
	}
	return nil
}

func readSysctl(path string) (string, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", false
	}
	return strings.TrimSpace(string(data)), true
}
