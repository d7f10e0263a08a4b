package cli

import (
	"context"

	"github.com/spf13/cobra"
)

func newTerminateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "terminate",
		Short: "Ask the report service to stop the running generation",
		Long: `Ask the report service to stop the running generation.

This is useful when a run was started from another terminal or when the CLI
exited without the service noticing.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			err := a.withService(cmd, func(ctx context.Context, svc Service) error {
				return svc.Terminate(ctx)
			})
			if err != nil {
				a.printer.Error("Failed to terminate report generation: %v", err)
				return reported(ExitFailure, err)
			}

			if a.jsonOutput() {
				return a.printer.JSON(map[string]any{"terminated": true})
			}
			a.printer.Success("Report generation terminated")
			return nil
		},
	}
}
