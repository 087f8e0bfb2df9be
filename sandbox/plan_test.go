// Copyright 2026 The RoboJail Authors
// SPDX-License-Identifier: Apache-2.0

package sandbox

import (
	"errors"
	"testing"
)

func validConfig() Config {
	return Config{
		Shell:          "/bin/bash",
		NetworkEnabled: true,
	}
}

func TestBuildPlan_WorktreeIsRootAndWritable(t *testing.T) {
	t.Parallel()

	plan, err := BuildPlan("/data/jails/demo", "/home/alice", "", validConfig())
	if err != nil {
		t.Fatalf("BuildPlan: %v", err)
	}
	if len(plan.Entries) == 0 {
		t.Fatal("plan has no entries")
	}

	root := plan.Entries[0]
	if root.Target != "/" || root.Mode != ModeReadWrite || root.Source != "/data/jails/demo" {
		t.Errorf("first entry = %+v, want rw bind of worktree at /", root)
	}
}

func TestBuildPlan_SystemDirsReadOnly(t *testing.T) {
	t.Parallel()

	plan, err := BuildPlan("/data/jails/demo", "/home/alice", "", validConfig())
	if err != nil {
		t.Fatalf("BuildPlan: %v", err)
	}

	modes := make(map[string]MountMode)
	for _, entry := range plan.Entries {
		if _, ok := modes[entry.Target]; !ok {
			modes[entry.Target] = entry.Mode
		}
	}
	for _, dir := range []string{"/usr", "/bin", "/lib", "/sbin"} {
		if modes[dir] != ModeReadOnly {
			t.Errorf("%s mode = %q, want %q", dir, modes[dir], ModeReadOnly)
		}
	}
	if modes["/tmp"] != ModeTmpfs {
		t.Errorf("/tmp mode = %q, want %q", modes["/tmp"], ModeTmpfs)
	}
	if modes["/dev"] != ModeTmpfs {
		t.Errorf("/dev mode = %q, want %q", modes["/dev"], ModeTmpfs)
	}
}

func TestBuildPlan_HiddenMasksComeLast(t *testing.T) {
	t.Parallel()

	config := validConfig()
	// The rw bind overlaps the hidden path; the mask must still win.
	config.ExtraRWBinds = []string{"/home/alice"}
	config.HiddenPaths = []string{".ssh", ".aws"}

	plan, err := BuildPlan("/data/jails/demo", "/home/alice", "", config)
	if err != nil {
		t.Fatalf("BuildPlan: %v", err)
	}

	lastBind := -1
	firstHidden := -1
	for i, entry := range plan.Entries {
		if entry.Mode == ModeHidden {
			if firstHidden == -1 {
				firstHidden = i
			}
		} else {
			lastBind = i
		}
	}
	if firstHidden == -1 {
		t.Fatal("plan has no hidden entries")
	}
	if firstHidden < lastBind {
		t.Errorf("hidden mask at %d precedes bind at %d", firstHidden, lastBind)
	}

	if !plan.Covers("/home/alice/.ssh/id_ed25519") {
		t.Error("plan does not cover /home/alice/.ssh/id_ed25519")
	}
	if plan.Covers("/home/alice/code") {
		t.Error("plan unexpectedly covers /home/alice/code")
	}
}

func TestBuildPlan_HomeRelativeHiddenResolution(t *testing.T) {
	t.Parallel()

	config := validConfig()
	config.HiddenPaths = []string{".config/gcloud"}

	plan, err := BuildPlan("/data/jails/demo", "/home/bob", "", config)
	if err != nil {
		t.Fatalf("BuildPlan: %v", err)
	}

	var target string
	for _, entry := range plan.Entries {
		if entry.Mode == ModeHidden {
			target = entry.Target
		}
	}
	if target != "/home/bob/.config/gcloud" {
		t.Errorf("hidden target = %q, want /home/bob/.config/gcloud", target)
	}
}

func TestBuildPlan_ExtraBindsAfterDefaults(t *testing.T) {
	t.Parallel()

	config := validConfig()
	config.ExtraROBinds = []string{"/opt/toolchain"}

	plan, err := BuildPlan("/data/jails/demo", "/home/alice", "", config)
	if err != nil {
		t.Fatalf("BuildPlan: %v", err)
	}

	extraIndex := -1
	tmpIndex := -1
	for i, entry := range plan.Entries {
		switch entry.Target {
		case "/opt/toolchain":
			extraIndex = i
		case "/tmp":
			tmpIndex = i
		}
	}
	if extraIndex == -1 {
		t.Fatal("extra bind missing from plan")
	}
	if extraIndex < tmpIndex {
		t.Errorf("extra bind at %d precedes default /tmp at %d", extraIndex, tmpIndex)
	}
}

func TestBuildPlan_RejectsRelativeWorktree(t *testing.T) {
	t.Parallel()

	if _, err := BuildPlan("jails/demo", "/home/alice", "", validConfig()); err == nil {
		t.Fatal("expected error for relative worktree path")
	}
}

func TestBuildPlan_RejectsBindShadowingDefaultChild(t *testing.T) {
	t.Parallel()

	// An extra bind of /etc would land after the default /etc/ssl
	// entry and shadow the synthetic /etc contents.
	config := validConfig()
	config.ExtraROBinds = []string{"/etc"}

	if _, err := BuildPlan("/data/jails/demo", "/home/alice", "", config); err == nil {
		t.Fatal("expected error for bind shadowing an earlier child mount")
	}
}

func TestBuildPlan_EntrypointOutsideSystemPathsIsBound(t *testing.T) {
	t.Parallel()

	plan, err := BuildPlan("/data/jails/demo", "/home/alice", "/opt/tool/bin/x", validConfig())
	if err != nil {
		t.Fatalf("BuildPlan: %v", err)
	}

	index := -1
	for i, entry := range plan.Entries {
		if entry.Target == "/opt/tool/bin/x" {
			index = i
			if entry.Mode != ModeReadOnly || entry.Source != "/opt/tool/bin/x" || !entry.Optional {
				t.Errorf("entrypoint entry = %+v, want optional ro bind at its own path", entry)
			}
		}
	}
	if index == -1 {
		t.Fatal("entrypoint bind missing from plan")
	}
	for i, entry := range plan.Entries[index+1:] {
		if entry.Mode != ModeHidden {
			t.Errorf("entry %d (%s %s) follows the entrypoint bind, want only hidden masks",
				index+1+i, entry.Mode, entry.Target)
		}
	}
}

func TestEntrypointBind(t *testing.T) {
	t.Parallel()

	cases := []struct {
		entrypoint string
		want       string
	}{
		{"", ""},
		{"make", ""},
		{"./tool", ""},
		{"/usr/bin/make", ""},
		{"/bin/sh", ""},
		{"/lib64/ld-linux-x86-64.so.2", ""},
		{"/", ""},
		{"/opt/tool/bin/x", "/opt/tool/bin/x"},
		{"/home/alice/bin/run.sh", "/home/alice/bin/run.sh"},
		{"/usr/../opt/x", "/opt/x"},
	}
	for _, tc := range cases {
		if got := entrypointBind(tc.entrypoint); got != tc.want {
			t.Errorf("entrypointBind(%q) = %q, want %q", tc.entrypoint, got, tc.want)
		}
	}
}

func TestMountPlan_ValidateOrdering(t *testing.T) {
	t.Parallel()

	good := &MountPlan{Entries: []MountEntry{
		{Target: "/", Source: "/w", Mode: ModeReadWrite},
		{Target: "/etc", Mode: ModeTmpfs},
		{Target: "/etc/ssl", Source: "/etc/ssl", Mode: ModeReadOnly},
		{Target: "/etc/ssl", Mode: ModeHidden},
	}}
	if err := good.Validate(); err != nil {
		t.Errorf("Validate(good) = %v, want nil", err)
	}

	childFirst := &MountPlan{Entries: []MountEntry{
		{Target: "/etc/ssl", Source: "/etc/ssl", Mode: ModeReadOnly},
		{Target: "/etc", Mode: ModeTmpfs},
	}}
	if err := childFirst.Validate(); err == nil {
		t.Error("Validate accepted parent mounted after child")
	}

	bindAfterMask := &MountPlan{Entries: []MountEntry{
		{Target: "/secrets", Mode: ModeHidden},
		{Target: "/secrets", Source: "/secrets", Mode: ModeReadWrite},
	}}
	if err := bindAfterMask.Validate(); err == nil {
		t.Error("Validate accepted bind after hidden mask")
	}

	relative := &MountPlan{Entries: []MountEntry{
		{Target: "etc", Mode: ModeTmpfs},
	}}
	if err := relative.Validate(); err == nil {
		t.Error("Validate accepted relative target")
	}
}

func TestConfig_Validate(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		mutate func(*Config)
		ok     bool
	}{
		{"valid", func(c *Config) {}, true},
		{"missing shell", func(c *Config) { c.Shell = "" }, false},
		{"relative ro bind", func(c *Config) { c.ExtraROBinds = []string{"opt/x"} }, false},
		{"relative rw bind", func(c *Config) { c.ExtraRWBinds = []string{"data"} }, false},
		{"absolute hidden", func(c *Config) { c.HiddenPaths = []string{"/etc"} }, false},
		{"escaping hidden", func(c *Config) { c.HiddenPaths = []string{"../other"} }, false},
		{"relative hidden ok", func(c *Config) { c.HiddenPaths = []string{".ssh"} }, true},
		{"env name with equals", func(c *Config) { c.EnvPassthrough = []string{"A=B"} }, false},
		{"env name ok", func(c *Config) { c.EnvPassthrough = []string{"TERM"} }, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			config := validConfig()
			tc.mutate(&config)
			err := config.Validate()
			if tc.ok && err != nil {
				t.Errorf("Validate() = %v, want nil", err)
			}
			if !tc.ok && err == nil {
				t.Error("Validate() = nil, want error")
			}
		})
	}
}

func TestBuildEnv(t *testing.T) {
	t.Parallel()

	invoking := map[string]string{
		"TERM":   "xterm-256color",
		"SECRET": "hunter2",
	}
	getenv := func(name string) (string, bool) {
		value, ok := invoking[name]
		return value, ok
	}

	env := buildEnv([]string{"TERM", "LANG"}, getenv)

	want := map[string]string{
		"HOME":     jailHome,
		"USER":     jailUser,
		"ROBOJAIL": "1",
		"TERM":     "xterm-256color",
	}
	got := make(map[string]string)
	for _, kv := range env {
		for name := range want {
			prefix := name + "="
			if len(kv) > len(prefix) && kv[:len(prefix)] == prefix {
				got[name] = kv[len(prefix):]
			}
		}
		if kv == "SECRET=hunter2" {
			t.Error("non-passthrough variable leaked into jail env")
		}
		if kv == "LANG=" {
			t.Error("unset passthrough variable produced an empty entry")
		}
	}
	for name, value := range want {
		if got[name] != value {
			t.Errorf("env %s = %q, want %q", name, got[name], value)
		}
	}
}

func TestFromInitExit(t *testing.T) {
	t.Parallel()

	if err, ok := FromInitExit(initExitMount); !ok || !errors.Is(err, ErrMountFailed) {
		t.Errorf("FromInitExit(125) = (%v, %v), want ErrMountFailed", err, ok)
	}
	if err, ok := FromInitExit(initExitExecNotFound); !ok || !errors.Is(err, ErrExecFailed) {
		t.Errorf("FromInitExit(127) = (%v, %v), want ErrExecFailed", err, ok)
	}
	if _, ok := FromInitExit(0); ok {
		t.Error("FromInitExit(0) claimed an init failure")
	}
	if _, ok := FromInitExit(42); ok {
		t.Error("FromInitExit(42) claimed an init failure")
	}
}
