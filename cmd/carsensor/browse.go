package main

import (
	"io"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/ericfisherdev/carsensor/internal/adapter/driving/tui"
)

func browseCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "browse",
		Short: "Browse listings in an interactive terminal UI",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			// Logs would corrupt the screen; they go to CARSENSOR_LOG_FILE or nowhere.
			rt, err := wire(ctx, flags, io.Discard)
			if err != nil {
				return err
			}
			defer rt.Close()

			p := tea.NewProgram(tui.NewApp(ctx, rt.core), tea.WithAltScreen(), tea.WithContext(ctx))
			_, err = p.Run()
			return err
		},
	}
}
