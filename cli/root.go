// Package cli implements the watson command line: the daemon and the
// commands that talk to it.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/jesspatton/watson/config"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
)

var (
	cfgFile  string
	endpoint string
	debug    bool

	// global is the user's config layered over the defaults, loaded before
	// every command runs.
	global *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "watson",
	Short: "Watch projects and rebuild them when their files change",
	Long: `Watson is a small continuous-integration daemon for your working copy.

Each project has a .watson.yaml listing the commands of its build script.
Watson watches the project directory and, once changes have settled for
build_timeout seconds, runs the script and tells you whether it passed.

Quick Start:
  watson watch            # Watch the project containing the current directory
  watson status           # Show the last build of every project
  watson dashboard        # Follow builds interactively
  watson stop             # Stop the daemon`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		setupLogging(cmd.ErrOrStderr(), debug)

		layer, err := config.LoadSafe(cfgFile)
		if err != nil {
			return fmt.Errorf("load %s: %w", cfgFile, err)
		}
		global = config.New(layer)
		if endpoint == "" {
			endpoint = global.Endpoint()
		}
		return nil
	},
}

// Execute runs the root command.
func Execute() error {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return err
	}
	return nil
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", config.GlobalConfigPath(), "global config file")
	rootCmd.PersistentFlags().StringVar(&endpoint, "endpoint", "", "daemon address (default from config, "+config.DefaultEndpoint+")")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")

	rootCmd.AddCommand(
		newServeCmd(),
		newWatchCmd(),
		newStatusCmd(),
		newDashboardCmd(),
		newStopCmd(),
		newVersionCmd(),
	)
}

// setupLogging installs the default logger every package derives its own
// from. Terminals get the styled text format, anything else logfmt.
func setupLogging(w io.Writer, debug bool) {
	logger := log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		TimeFormat:      time.DateTime,
	})
	if !isTerminal(w) {
		logger.SetFormatter(log.LogfmtFormatter)
	}
	if debug {
		logger.SetLevel(log.DebugLevel)
	}
	log.SetDefault(logger)
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
