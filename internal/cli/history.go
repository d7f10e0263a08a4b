package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Backland-Labs/reportrun/internal/history"
	"github.com/Backland-Labs/reportrun/internal/report"
)

func newHistoryCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect past report runs kept by the service",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	cmd.AddCommand(
		newHistoryListCmd(a),
		newHistoryShowCmd(a),
		newHistoryDeleteCmd(a),
		newHistoryClearCmd(a),
	)
	return cmd
}

func newHistoryListCmd(a *app) *cobra.Command {
	var (
		kind   string
		status string
		limit  int
	)
	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List past runs, newest first",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			filter := history.Filter{Limit: limit}
			if kind != "" {
				k, err := report.ParseKind(kind)
				if err != nil {
					return err
				}
				filter.Kind = k
			}
			if status != "" {
				s := strings.ToLower(status)
				if s != history.StatusPassed && s != history.StatusError {
					return fmt.Errorf("--status must be %s or %s, got: %s", history.StatusPassed, history.StatusError, status)
				}
				filter.Status = s
			}
			if limit < 0 {
				return fmt.Errorf("--limit must not be negative, got: %d", limit)
			}

			entries, err := a.listHistory(cmd)
			if err != nil {
				return err
			}
			entries = filter.Apply(entries)

			if a.jsonOutput() {
				return a.printer.JSON(entries)
			}
			a.printer.HistoryTable(entries)
			return nil
		},
	}
	cmd.Flags().StringVar(&kind, "type", "", "Only show runs of this report type")
	cmd.Flags().StringVar(&status, "status", "", "Only show runs with this status (passed or error)")
	cmd.Flags().IntVar(&limit, "limit", 0, "Show at most this many runs (0 means all)")
	return cmd
}

func newHistoryShowCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show a past run and its report",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			entries, err := a.listHistory(cmd)
			if err != nil {
				return err
			}
			entry, ok := history.Find(entries, args[0])
			if !ok {
				return fmt.Errorf("history entry %q not found", args[0])
			}

			if a.jsonOutput() {
				return a.printer.JSON(entry)
			}
			a.printer.HistoryEntry(entry)
			return nil
		},
	}
}

func newHistoryDeleteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "delete <id>",
		Aliases: []string{"rm"},
		Short:   "Delete a past run",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			err := a.withService(cmd, func(ctx context.Context, svc Service) error {
				return svc.DeleteHistory(ctx, args[0])
			})
			if err != nil {
				return fmt.Errorf("failed to delete history entry %s: %w", args[0], err)
			}

			if a.jsonOutput() {
				return a.printer.JSON(map[string]any{"deleted": args[0]})
			}
			a.printer.Success("Deleted history entry %s", args[0])
			return nil
		},
	}
}

func newHistoryClearCmd(a *app) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete every past run",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return fmt.Errorf("refusing to clear history without --yes")
			}
			err := a.withService(cmd, func(ctx context.Context, svc Service) error {
				return svc.ClearHistory(ctx)
			})
			if err != nil {
				return fmt.Errorf("failed to clear history: %w", err)
			}

			if a.jsonOutput() {
				return a.printer.JSON(map[string]any{"cleared": true})
			}
			a.printer.Success("History cleared")
			return nil
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Confirm deleting every entry")
	return cmd
}

func (a *app) listHistory(cmd *cobra.Command) ([]history.Entry, error) {
	var entries []history.Entry
	err := a.withService(cmd, func(ctx context.Context, svc Service) error {
		var err error
		entries, err = svc.ListHistory(ctx)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load history: %w", err)
	}
	return entries, nil
}

// withService calls fn with a service client and a request-scoped context
func (a *app) withService(cmd *cobra.Command, fn func(context.Context, Service) error) error {
	svc, err := a.deps.NewService(a.cfg)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(cmd.Context(), a.cfg.RequestTimeout)
	defer cancel()
	return fn(ctx, svc)
}
