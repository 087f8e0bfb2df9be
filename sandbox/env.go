// Copyright 2026 The RoboJail Authors
// SPDX-License-Identifier: Apache-2.0

package sandbox

// Jail-internal identity. The user namespace maps the invoking user to
// root, but processes see a synthetic unprivileged account so tools
// that consult HOME or /etc/passwd behave normally.
const (
	jailUser = "agent"
	jailHome = "/home/agent"
	jailPath = "/usr/local/bin:/usr/bin:/bin:/usr/local/sbin:/usr/sbin:/sbin"
)

// buildEnv assembles the jail environment: a cleared slate with fixed
// identity variables, ROBOJAIL=1 so processes can detect confinement,
// and the configured passthrough variables copied from the invoking
// environment. getenv is parameterized for tests; passthrough entries
// absent from the invoking environment are omitted, and a passthrough
// may override the fixed defaults.
func buildEnv(passthrough []string, getenv func(string) (string, bool)) []string {
	env := []string{
		"HOME=" + jailHome,
		"USER=" + jailUser,
		"LOGNAME=" + jailUser,
		"PATH=" + jailPath,
		"ROBOJAIL=1",
	}
	for _, name := range passthrough {
		if value, ok := getenv(name); ok {
			env = append(env, name+"="+value)
		}
	}
	return env
}
