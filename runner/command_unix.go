//go:build !windows

package runner

import (
	"os/exec"
	"syscall"
	"time"
)

// waitDelay bounds how long Wait keeps reading output after the build was
// killed, in case a background child still holds the pipes.
const waitDelay = 2 * time.Second

// shellCommand wraps a script line for the POSIX shell.
func shellCommand(line string) (string, []string) {
	return "/bin/sh", []string{"-c", line}
}

// prepareCommand puts the build in its own process group and kills the
// group on cancellation.
func prepareCommand(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}
	cmd.WaitDelay = waitDelay
}
