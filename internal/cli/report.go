package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/Backland-Labs/reportrun/internal/config"
	"github.com/Backland-Labs/reportrun/internal/core"
	"github.com/Backland-Labs/reportrun/internal/logger"
	"github.com/Backland-Labs/reportrun/internal/report"
	"github.com/Backland-Labs/reportrun/internal/run"
)

// submitOptions are the flags shared by commands that start a run
type submitOptions struct {
	copy    bool
	retries int
}

func (o *submitOptions) register(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&o.copy, "copy", false, "Copy the report to the clipboard (default $REPORTRUN_COPY_RESPONSE)")
	cmd.Flags().IntVar(&o.retries, "retries", -1, "Retry a failed run this many times (default $REPORTRUN_AUTO_RETRY)")
}

// resolve fills unset flags from the configuration
func (o submitOptions) resolve(cmd *cobra.Command, cfg *config.Config) (copyResponse bool, retries int, err error) {
	copyResponse = cfg.CopyResponse
	if cmd.Flags().Changed("copy") {
		copyResponse = o.copy
	}
	retries = o.retries
	if retries < 0 {
		retries = cfg.AutoRetry
	}
	if retries > config.MaxAutoRetry {
		return false, 0, fmt.Errorf("--retries must be between 0 and %d, got: %d", config.MaxAutoRetry, retries)
	}
	return copyResponse, retries, nil
}

// runResult is the JSON rendering of a finished run
type runResult struct {
	RunID      string      `json:"run_id"`
	Kind       report.Kind `json:"kind"`
	Status     string      `json:"status"`
	Response   string      `json:"response,omitempty"`
	Error      string      `json:"error,omitempty"`
	Attempts   int         `json:"attempts"`
	DurationMS int64       `json:"duration_ms"`
	Logs       []logLine   `json:"logs"`
}

func newEODCmd(a *app) *cobra.Command {
	var opts submitOptions
	cmd := &cobra.Command{
		Use:   "eod",
		Short: "Generate an end-of-day report",
		Long: `Generate an end-of-day report.

The report service collects today's activity and streams the report back.
Progress is shown on stderr and the finished report is printed on stdout.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.submit(cmd, opts, report.NewEODRequest())
		},
	}
	opts.register(cmd)
	return cmd
}

func newSprintReviewCmd(a *app) *cobra.Command {
	var (
		opts       submitOptions
		startDate  string
		endDate    string
		ticketList []string
		tickets    []string
	)
	cmd := &cobra.Command{
		Use:     "sprint-review [TICKET...]",
		Aliases: []string{"sprint"},
		Short:   "Generate a sprint review report",
		Long: `Generate a sprint review report for a date range and a set of tickets.

Tickets may be given as arguments, with --tickets as a comma separated list,
or with --ticket once per ticket. Dates use the YYYY-MM-DD format and default
to the last two weeks.`,
		Example: `  reportrun sprint-review PROJ-12 PROJ-15
  reportrun sprint-review --start 2024-05-01 --end 2024-05-14 --tickets PROJ-12,PROJ-15`,
		RunE: func(cmd *cobra.Command, args []string) error {
			defaultStart, defaultEnd := report.DefaultSprintRange(a.deps.Now())
			if !cmd.Flags().Changed("start") {
				startDate = defaultStart
			}
			if !cmd.Flags().Changed("end") {
				endDate = defaultEnd
			}

			all := make([]string, 0, len(args)+len(ticketList)+len(tickets))
			all = append(all, args...)
			all = append(all, ticketList...)
			all = append(all, tickets...)

			return a.submit(cmd, opts, report.NewSprintReviewRequest(startDate, endDate, all))
		},
	}
	opts.register(cmd)
	cmd.Flags().StringVar(&startDate, "start", "", "First day of the sprint (YYYY-MM-DD, default two weeks ago)")
	cmd.Flags().StringVar(&endDate, "end", "", "Last day of the sprint (YYYY-MM-DD, default today)")
	cmd.Flags().StringSliceVar(&ticketList, "tickets", nil, "Comma separated ticket identifiers")
	cmd.Flags().StringArrayVar(&tickets, "ticket", nil, "Ticket identifier (repeatable)")
	return cmd
}

func newRetryCmd(a *app) *cobra.Command {
	var copyFlag bool
	cmd := &cobra.Command{
		Use:   "retry [eod|sprint-review]",
		Short: "Run the last submitted request of a report type again",
		Long: `Run the last submitted request of a report type again.

The request is remembered when a run is submitted and forgotten when it
succeeds, is cancelled or is dismissed. Without an argument the only
remembered request is retried, or the remembered requests are listed when
there are several.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				kind report.Kind
				err  error
			)
			if len(args) == 1 {
				kind, err = report.ParseKind(args[0])
			} else {
				kind, err = a.rememberedKind()
			}
			if err != nil {
				return err
			}
			copyResponse := a.cfg.CopyResponse
			if cmd.Flags().Changed("copy") {
				copyResponse = copyFlag
			}
			return a.execute(cmd, kind, copyResponse, func(ctx context.Context, m *run.Manager) (run.Outcome, error) {
				return m.Retry(ctx, kind)
			})
		},
	}
	cmd.Flags().BoolVar(&copyFlag, "copy", false, "Copy the report to the clipboard (default $REPORTRUN_COPY_RESPONSE)")
	return cmd
}

func newDismissCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "dismiss <eod|sprint-review>",
		Short: "Forget the remembered request of a report type",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := report.ParseKind(args[0])
			if err != nil {
				return err
			}

			store := a.deps.NewStore(a.cfg)
			_, found, err := store.Get(kind)
			if err != nil {
				return err
			}
			if found {
				m := run.NewManager(nil, store, nil, run.Options{Logger: logger.GetLogger()})
				if err := m.Dismiss(kind); err != nil {
					return err
				}
			}

			if a.jsonOutput() {
				return a.printer.JSON(map[string]any{"kind": kind, "dismissed": found})
			}
			if !found {
				a.printer.Info("No remembered %s request", kind.Title())
				return nil
			}
			a.printer.Success("Dismissed the remembered %s request", kind.Title())
			return nil
		},
	}
}

// rememberedKind picks the report type to retry when none was named
func (a *app) rememberedKind() (report.Kind, error) {
	lister, ok := a.deps.NewStore(a.cfg).(interface {
		List() ([]core.RunContext, error)
	})
	if !ok {
		return "", fmt.Errorf("a report type is required")
	}
	contexts, err := lister.List()
	if err != nil {
		return "", err
	}

	switch len(contexts) {
	case 0:
		a.printer.Info("No remembered requests to retry")
		return "", reported(ExitFailure, run.ErrNoRunContext)
	case 1:
		return contexts[0].Request.Kind, nil
	}

	a.printer.Heading("Remembered requests")
	for _, rc := range contexts {
		a.printer.Detail("%s (submitted %s)", rc.Request.Kind.Slug(), rc.SavedAt.Local().Format("2006-01-02 15:04"))
	}
	err = fmt.Errorf("more than one remembered request, name the report type to retry")
	a.printer.Error("%v", err)
	return "", reported(ExitFailure, err)
}

// submit starts req with the shared submit options
func (a *app) submit(cmd *cobra.Command, opts submitOptions, req report.Request) error {
	copyResponse, retries, err := opts.resolve(cmd, a.cfg)
	if err != nil {
		return err
	}
	return a.execute(cmd, req.Kind, copyResponse, func(ctx context.Context, m *run.Manager) (run.Outcome, error) {
		return m.SubmitWithRetry(ctx, req, retries, a.cfg.RetryBackoff)
	})
}

// execute wires a Manager for one run, watches for signals while it is in
// flight and renders the outcome
func (a *app) execute(cmd *cobra.Command, kind report.Kind, copyResponse bool, start func(context.Context, *run.Manager) (run.Outcome, error)) error {
	svc, err := a.deps.NewService(a.cfg)
	if err != nil {
		return err
	}
	store := a.deps.NewStore(a.cfg)
	sink := newTerminalSink(a.printer, kind, a.cfg.ShowLogs, a.jsonOutput())

	m := run.NewManager(svc, store, sink, run.Options{
		ChunkSize:  a.cfg.ChunkSize,
		RunTimeout: a.cfg.RunTimeout,
		Logger:     logger.GetLogger(),
	})

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()
	stop := watchSignals(cancel, svc, a.cfg.TerminateOnQuit, a.cfg.RequestTimeout)

	out, err := start(ctx, m)
	stop()
	sink.Close()

	if err != nil {
		return a.rejected(kind, err)
	}
	return a.render(out, sink, copyResponse)
}

// rejected reports a run that never reached the service
func (a *app) rejected(kind report.Kind, err error) error {
	switch {
	case report.IsValidationError(err):
		a.printer.Error("%v", err)
	case errors.Is(err, run.ErrNoRunContext):
		a.printer.Error("No previous %s request to retry", kind.Title())
		a.printer.Detail("Start one with: reportrun %s", kind.Slug())
	default:
		return err
	}
	return reported(ExitFailure, err)
}

func (a *app) render(out run.Outcome, sink *terminalSink, copyResponse bool) error {
	if out.Succeeded() && copyResponse {
		a.copyResponse(out.Text)
	}

	if a.jsonOutput() {
		result := runResult{
			RunID:      out.RunID,
			Kind:       out.Kind,
			Status:     out.Status.String(),
			Response:   out.Text,
			Attempts:   out.Attempts,
			DurationMS: out.Duration.Milliseconds(),
			Logs:       sink.Logs(),
		}
		if out.Status == run.Failed {
			result.Error = out.Message
		}
		if err := a.printer.JSON(result); err != nil {
			return err
		}
		return outcomeError(out)
	}

	switch out.Status {
	case run.Succeeded:
		a.printer.Success("%s report generated in %s", out.Kind.Title(), out.Duration.Round(time.Millisecond))
		a.printer.Response(out.Text)
	case run.Cancelled:
		a.printer.Warning("%s", run.CancelledText)
	default:
		a.printer.Error("%s", run.FailureText(out.Kind))
		if out.Attempts > 1 {
			a.printer.Detail("Gave up after %d attempts", out.Attempts)
		}
		a.printer.Detail("Retry with: reportrun retry %s", out.Kind.Slug())
	}
	return outcomeError(out)
}

func (a *app) copyResponse(text string) {
	if text == "" {
		return
	}
	if err := a.deps.CopyToClipboard(text); err != nil {
		logger.GetLogger().WithError(err).Debug("Clipboard write failed")
		a.printer.Warning("Failed to copy the report to the clipboard")
		return
	}
	if !a.jsonOutput() {
		a.printer.Info("Report copied to clipboard")
	}
}

// outcomeError maps a finished run to the command's exit status
func outcomeError(out run.Outcome) error {
	switch out.Status {
	case run.Succeeded:
		return nil
	case run.Cancelled:
		return reported(ExitCancelled, errors.New(run.CancelledText))
	default:
		msg := out.Message
		if msg == "" {
			msg = run.FailureText(out.Kind)
		}
		return reported(ExitFailure, errors.New(msg))
	}
}
