// Copyright 2026 The RoboJail Authors
// SPDX-License-Identifier: Apache-2.0

package sandbox

import "os"

// ExecMonitor distinguishes a jailed command's own exit status from an
// init-stage failure. Init exit codes overlap the range shells use for
// their own failures (127 is any shell's "command not found"), so the
// status alone is ambiguous.
//
// The write end of the monitor's pipe is inherited by the init stage,
// which marks it close-on-exec: reaching the target command closes it
// silently, while a setup failure writes a marker byte before exiting.
// Reading after the process is gone therefore tells the parent whether
// the user's command ever ran.
type ExecMonitor struct {
	read  *os.File
	write *os.File
}

// NewExecMonitor wraps a handshake pipe. write is the end the confined
// process inherits.
func NewExecMonitor(read, write *os.File) *ExecMonitor {
	return &ExecMonitor{read: read, write: write}
}

// CommandRan reports whether the confined command reached exec. Call
// once, after the process has exited; it consumes and closes the pipe.
func (m *ExecMonitor) CommandRan() bool {
	m.write.Close()
	buf := make([]byte, 1)
	n, _ := m.read.Read(buf)
	m.read.Close()
	return n == 0
}

// Close releases the pipe without consulting it.
func (m *ExecMonitor) Close() {
	m.write.Close()
	m.read.Close()
}
