package cli

import (
	"fmt"

	"github.com/jesspatton/watson/ui"
	"github.com/spf13/cobra"
)

const statusWidth = 100

func newStatusCmd() *cobra.Command {
	var verbose bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the last build of every watched project",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := connect(endpoint, false)
			if err != nil {
				return fmt.Errorf("daemon not reachable at %s: %w", endpoint, err)
			}
			defer client.Close()

			projects, err := client.Status()
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), ui.RenderStatus(projects, verbose, statusWidth))
			return nil
		},
	}
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "include the output of failed builds")
	return cmd
}
