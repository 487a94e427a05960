//go:build windows

package runner

import (
	"os/exec"
	"time"
)

const waitDelay = 2 * time.Second

// shellCommand wraps a script line for cmd.exe.
func shellCommand(line string) (string, []string) {
	return "cmd", []string{"/C", line}
}

// prepareCommand relies on exec.CommandContext killing the process itself;
// there are no process groups to signal.
func prepareCommand(cmd *exec.Cmd) {
	cmd.WaitDelay = waitDelay
}
