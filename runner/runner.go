package runner

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"strings"
	"time"

	"github.com/charmbracelet/log"
)

// Result is the outcome of one script command.
type Result struct {
	Command   string
	Stdout    string
	Stderr    string
	ExitCode  int
	Succeeded bool
	Duration  time.Duration
}

// Output joins the trimmed stdout and stderr of the command.
func (r Result) Output() string {
	var parts []string
	if s := strings.TrimSpace(r.Stdout); s != "" {
		parts = append(parts, s)
	}
	if s := strings.TrimSpace(r.Stderr); s != "" {
		parts = append(parts, s)
	}
	return strings.Join(parts, "\n")
}

// Runner executes build scripts: ordered shell commands, stopping at the
// first failure.
type Runner struct {
	logger *log.Logger
}

// NewRunner creates a Runner that logs through the default logger.
func NewRunner() *Runner {
	return &Runner{logger: log.Default().WithPrefix("runner")}
}

// WithLogger returns a copy of r that logs to logger.
func (r *Runner) WithLogger(logger *log.Logger) *Runner {
	return &Runner{logger: logger}
}

// Execute runs each command of script in dir, in order, and stops at the
// first one that fails. It reports whether every command succeeded together
// with the result of the last command attempted.
//
// The directory applies to the child processes only; the daemon's own
// working directory is never changed.
func (r *Runner) Execute(ctx context.Context, dir string, script []string) (bool, Result) {
	result := Result{Succeeded: true}
	for _, line := range script {
		result = r.run(ctx, dir, line)
		if !result.Succeeded {
			return false, result
		}
	}
	return true, result
}

func (r *Runner) run(ctx context.Context, dir, line string) Result {
	name, args := shellCommand(line)
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	prepareCommand(cmd)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	r.logger.Debug("running command", "dir", dir, "command", line)

	start := time.Now()
	err := cmd.Run()
	result := Result{
		Command:  line,
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: time.Since(start),
	}

	if err == nil {
		result.Succeeded = true
		return result
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		result.ExitCode = exitErr.ExitCode()
	} else {
		// The process never ran (missing directory, no shell, ...).
		result.ExitCode = -1
		if result.Stderr != "" && !strings.HasSuffix(result.Stderr, "\n") {
			result.Stderr += "\n"
		}
		result.Stderr += err.Error()
	}

	r.logger.Debug("command failed", "dir", dir, "command", line, "exit", result.ExitCode)
	return result
}
