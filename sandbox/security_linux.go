// Copyright 2026 The RoboJail Authors
// SPDX-License-Identifier: Apache-2.0

package sandbox

import (
	"errors"
	"fmt"

	"golang.org/x/sys/unix"
)

// applySecurity hardens the init-stage process before exec.
//
// no_new_privs stops setuid and file-capability binaries from granting
// anything; a fresh session detaches the controlling terminal so a
// jailed process cannot inject input with TIOCSTI. Capabilities are
// not dropped: mount setup needs them, and the user namespace already
// confines them to the jail.
func applySecurity() error {
	if err := unix.Prctl(unix.PR_SET_NO_NEW_PRIVS, 1, 0, 0, 0); err != nil {
		return fmt.Errorf("setting no_new_privs: %w", err)
	}

	// EPERM means this process already leads a session, which is the
	// state setsid would have produced.
	if _, err := unix.Setsid(); err != nil && !errors.Is(err, unix.EPERM) {
		return fmt.Errorf("creating session: %w", err)
	}
	return nil
}
