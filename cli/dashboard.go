package cli

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/jesspatton/watson/ui"
	"github.com/spf13/cobra"
)

func newDashboardCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "dashboard",
		Aliases: []string{"ui"},
		Short:   "Follow builds in an interactive dashboard",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := connect(endpoint, false)
			if err != nil {
				return fmt.Errorf("daemon not reachable at %s: %w", endpoint, err)
			}
			defer client.Close()

			p := tea.NewProgram(ui.NewModel(client, endpoint), tea.WithAltScreen())
			_, err = p.Run()
			return err
		},
	}
}
