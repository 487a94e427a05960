package runner

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
)

func skipOnWindows(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("scripts use POSIX shell syntax")
	}
}

func TestExecute(t *testing.T) {
	skipOnWindows(t)

	t.Run("Success", func(t *testing.T) {
		r := NewRunner()
		ok, result := r.Execute(context.Background(), ".", []string{"echo hello", "echo world >&2"})

		if !ok {
			t.Fatalf("Expected success, got failure: %+v", result)
		}
		if result.Command != "echo world >&2" {
			t.Errorf("Expected result of last command, got %q", result.Command)
		}
		if !strings.Contains(result.Stderr, "world") {
			t.Errorf("Expected stderr to contain 'world', got %q", result.Stderr)
		}
		if !result.Succeeded || result.ExitCode != 0 {
			t.Errorf("Unexpected result %+v", result)
		}
	})

	t.Run("Failure", func(t *testing.T) {
		r := NewRunner()
		ok, result := r.Execute(context.Background(), ".", []string{"echo out; exit 3"})

		if ok {
			t.Fatal("Expected failure")
		}
		if result.ExitCode != 3 {
			t.Errorf("Expected exit code 3, got %d", result.ExitCode)
		}
		if result.Output() != "out" {
			t.Errorf("Expected output 'out', got %q", result.Output())
		}
	})

	t.Run("Empty script", func(t *testing.T) {
		ok, result := NewRunner().Execute(context.Background(), ".", nil)
		if !ok || !result.Succeeded {
			t.Errorf("Expected empty script to succeed, got %v %+v", ok, result)
		}
	})
}

func TestExecuteFailFast(t *testing.T) {
	skipOnWindows(t)

	tests := []struct {
		name      string
		script    []string
		wantOK    bool
		wantLast  int
		wantTrace string
	}{
		{
			name:      "third fails",
			script:    []string{"echo c1 >> trace", "echo c2 >> trace", "echo c3 >> trace; exit 1"},
			wantOK:    false,
			wantLast:  2,
			wantTrace: "c1\nc2\nc3\n",
		},
		{
			name:      "second fails",
			script:    []string{"echo c1 >> trace", "echo c2 >> trace; exit 1", "echo c3 >> trace"},
			wantOK:    false,
			wantLast:  1,
			wantTrace: "c1\nc2\n",
		},
		{
			name:      "all pass",
			script:    []string{"echo c1 >> trace", "echo c2 >> trace"},
			wantOK:    true,
			wantLast:  1,
			wantTrace: "c1\nc2\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()

			ok, result := NewRunner().Execute(context.Background(), dir, tt.script)

			if ok != tt.wantOK {
				t.Errorf("Execute() ok = %v, want %v", ok, tt.wantOK)
			}
			if result.Command != tt.script[tt.wantLast] {
				t.Errorf("Expected result of %q, got %q", tt.script[tt.wantLast], result.Command)
			}

			trace, err := os.ReadFile(filepath.Join(dir, "trace"))
			if err != nil {
				t.Fatal(err)
			}
			if string(trace) != tt.wantTrace {
				t.Errorf("Commands ran as %q, want %q", trace, tt.wantTrace)
			}
		})
	}
}

func TestExecuteWorkingDirectory(t *testing.T) {
	skipOnWindows(t)

	dir := t.TempDir()
	before, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}

	ok, result := NewRunner().Execute(context.Background(), dir, []string{"pwd -P"})
	if !ok {
		t.Fatalf("pwd failed: %+v", result)
	}

	want, _ := filepath.EvalSymlinks(dir)
	if got := strings.TrimSpace(result.Stdout); got != want {
		t.Errorf("Command ran in %q, want %q", got, want)
	}

	after, _ := os.Getwd()
	if after != before {
		t.Errorf("Process working directory changed from %q to %q", before, after)
	}
}

func TestExecuteSpawnFailure(t *testing.T) {
	skipOnWindows(t)

	t.Run("missing directory", func(t *testing.T) {
		missing := filepath.Join(t.TempDir(), "gone")
		ok, result := NewRunner().Execute(context.Background(), missing, []string{"echo never", "echo again"})

		if ok {
			t.Fatal("Expected failure for missing directory")
		}
		if result.ExitCode != -1 {
			t.Errorf("Expected exit code -1, got %d", result.ExitCode)
		}
		if result.Command != "echo never" {
			t.Errorf("Expected to stop at first command, got %q", result.Command)
		}
		if result.Stderr == "" {
			t.Error("Expected spawn error in stderr")
		}
	})

	t.Run("command not found", func(t *testing.T) {
		ok, result := NewRunner().Execute(context.Background(), ".", []string{"watson-no-such-command-xyz"})
		if ok {
			t.Fatal("Expected failure for unknown command")
		}
		if result.ExitCode == 0 {
			t.Error("Expected non-zero exit code")
		}
	})
}

func TestExecuteCancelled(t *testing.T) {
	skipOnWindows(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ok, _ := NewRunner().Execute(ctx, ".", []string{"sleep 2"})
	if ok {
		t.Error("Expected cancelled context to fail the build")
	}
}
