package cli

import (
	"fmt"

	"github.com/jesspatton/watson/engine"
	"github.com/spf13/cobra"
)

func newStopCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop the daemon",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			stopped, err := runStop(endpoint)
			if err != nil {
				return err
			}
			if stopped {
				fmt.Fprintln(cmd.OutOrStdout(), "Daemon stopped")
			} else {
				fmt.Fprintln(cmd.OutOrStdout(), "Daemon is not running")
			}
			return nil
		},
	}
}

// runStop asks the daemon at addr to shut down. It reports false when no
// daemon answered.
func runStop(addr string) (bool, error) {
	client, err := connect(addr, false)
	if err != nil {
		return false, nil
	}
	defer client.Close()

	if err := client.Shutdown(); err != nil {
		return false, err
	}
	return true, nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "watson %s\n", engine.Version)
		},
	}
}
