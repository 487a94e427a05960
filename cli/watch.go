package cli

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	"github.com/jesspatton/watson/config"
	"github.com/jesspatton/watson/transport"
	"github.com/spf13/cobra"
)

const (
	spawnTimeout  = 5 * time.Second
	spawnInterval = 100 * time.Millisecond
)

// LogFilename is where a daemon started by watch writes its log, inside
// config.Dir().
const LogFilename = "watson.log"

func newWatchCmd() *cobra.Command {
	var noSpawn bool

	cmd := &cobra.Command{
		Use:   "watch [dir]",
		Short: "Start watching the project containing dir",
		Long: `Find the project containing dir (the current directory by default) by
looking for .watson.yaml, .vip or setup.py in it and its parents, and ask
the daemon to watch it. The daemon is started when it is not running.

Watching a project that is already watched reloads its configuration.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) == 1 {
				dir = args[0]
			}
			root, err := runWatch(dir, endpoint, !noSpawn)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Watching %s\n", root)
			return nil
		},
	}
	cmd.Flags().BoolVar(&noSpawn, "no-spawn", false, "fail instead of starting the daemon")
	return cmd
}

// runWatch registers the project containing dir with the daemon at addr
// and returns the project root.
func runWatch(dir, addr string, spawn bool) (string, error) {
	root, layer, err := loadProject(dir)
	if err != nil {
		return "", err
	}

	client, err := connect(addr, spawn)
	if err != nil {
		return "", err
	}
	defer client.Close()

	if err := client.AddProject(root, layer); err != nil {
		return "", fmt.Errorf("watch %s: %w", root, err)
	}
	return root, nil
}

// loadProject finds the project root above dir and loads its config.
func loadProject(dir string) (string, map[string]any, error) {
	root, err := config.FindProjectDirectory(dir)
	if err != nil {
		return "", nil, err
	}
	layer, err := config.LoadProject(root)
	if err != nil {
		return "", nil, err
	}
	return root, layer, nil
}

// connect dials the daemon, starting one when spawn is set and nothing
// answers hello.
func connect(addr string, spawn bool) (*transport.Client, error) {
	client, err := hello(addr)
	if err == nil || !spawn {
		return client, err
	}

	log.Info("starting daemon", "endpoint", addr)
	if err := spawnDaemon(addr); err != nil {
		return nil, fmt.Errorf("start daemon: %w", err)
	}

	deadline := time.Now().Add(spawnTimeout)
	for {
		client, err = hello(addr)
		if err == nil {
			return client, nil
		}
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("daemon did not come up at %s: %w", addr, err)
		}
		time.Sleep(spawnInterval)
	}
}

func hello(addr string) (*transport.Client, error) {
	client, err := transport.Dial(addr)
	if err != nil {
		return nil, err
	}
	greeting, err := client.Hello()
	if err != nil {
		client.Close()
		return nil, err
	}
	log.Debug("connected", "endpoint", addr, "server", greeting)
	return client, nil
}

// spawnDaemon starts `watson serve` detached from the terminal, logging to
// ~/.watson/watson.log.
func spawnDaemon(addr string) error {
	exe, err := os.Executable()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(config.Dir(), 0o755); err != nil {
		return err
	}
	logFile, err := os.OpenFile(filepath.Join(config.Dir(), LogFilename), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	defer logFile.Close()

	args := []string{"serve", "--endpoint", addr, "--config", cfgFile}
	if debug {
		args = append(args, "--debug")
	}
	cmd := exec.Command(exe, args...)
	cmd.Stdout = logFile
	cmd.Stderr = logFile
	detach(cmd)

	if err := cmd.Start(); err != nil {
		return err
	}
	if cmd.Process == nil {
		return errors.New("daemon process not started")
	}
	return cmd.Process.Release()
}
