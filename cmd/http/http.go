package http

import "github.com/spf13/cobra"

// NewHTTPCommand groups the commands that serve the clinic REST API.
func NewHTTPCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "http",
		Aliases: []string{"api"},
		Short:   "Serve the clinic REST API",
	}

	cmd.AddCommand(NewStartCommand())

	return cmd
}
