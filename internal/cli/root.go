package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/Backland-Labs/reportrun/internal/config"
	"github.com/Backland-Labs/reportrun/internal/logger"
	"github.com/Backland-Labs/reportrun/internal/output"
)

const version = "0.1.0"

// Output formats
const (
	formatText = "text"
	formatJSON = "json"
)

// skipConfigAnnotation marks commands that run without loading configuration
const skipConfigAnnotation = "reportrun/skip-config"

// app is the state shared by all commands of one invocation
type app struct {
	deps    *Dependencies
	printer *output.Printer
	cfg     *config.Config

	configFile string
	envFile    string
	baseURL    string
	verbosity  string
	format     string
	noLogs     bool
	runTimeout time.Duration
}

func (a *app) jsonOutput() bool {
	return a.format == formatJSON
}

// Execute runs the CLI
func Execute() error {
	deps := NewRealDependencies()
	err := NewRootCommandWithDeps(deps).Execute()
	if err != nil && !IsReported(err) {
		deps.Printer.Error("%v", err)
	}
	_ = logger.GetLogger().Sync()
	return err
}

// NewRootCommand creates the root command with production dependencies
func NewRootCommand() *cobra.Command {
	return NewRootCommandWithDeps(NewRealDependencies())
}

// NewRootCommandWithDeps creates the root command
func NewRootCommandWithDeps(deps *Dependencies) *cobra.Command {
	a := &app{deps: deps, printer: deps.Printer}
	var showVersion bool

	cmd := &cobra.Command{
		Use:   "reportrun",
		Short: "reportrun - generate EOD and Sprint Review reports",
		Long: `reportrun - generate EOD and Sprint Review reports

reportrun asks the local report service to generate a report, streams its
progress to the terminal and prints the finished report on stdout.

Examples:
  reportrun eod
  reportrun sprint-review --start 2024-05-01 --end 2024-05-14 PROJ-12 PROJ-15
  reportrun retry sprint-review
  reportrun history list --type eod --limit 5`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Annotations[skipConfigAnnotation] == "true" || showVersion {
				return nil
			}
			return a.loadConfig(cmd)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if showVersion {
				_, err := fmt.Fprintln(cmd.OutOrStdout(), "reportrun version "+version)
				return err
			}
			return cmd.Help()
		},
	}

	cmd.Flags().BoolVarP(&showVersion, "version", "v", false, "Show version information")

	flags := cmd.PersistentFlags()
	flags.StringVar(&a.configFile, "config", "", "YAML configuration file (default $REPORTRUN_CONFIG)")
	flags.StringVar(&a.envFile, "env-file", config.DefaultDotEnv, "File with REPORTRUN_* variables")
	flags.StringVar(&a.baseURL, "base-url", "", "Report service URL (default $REPORTRUN_BASE_URL or "+config.DefaultBaseURL+")")
	flags.StringVar(&a.verbosity, "verbosity", "", "Diagnostic output: normal, verbose or debug")
	flags.StringVarP(&a.format, "output", "o", formatText, "Output format: text or json")
	flags.BoolVar(&a.noLogs, "no-logs", false, "Hide streamed log lines")
	flags.DurationVar(&a.runTimeout, "timeout", 0, "Abort a run after this long (0 means no limit)")

	cmd.AddCommand(
		newEODCmd(a),
		newSprintReviewCmd(a),
		newRetryCmd(a),
		newDismissCmd(a),
		newTerminateCmd(a),
		newHistoryCmd(a),
		newVersionCmd(),
	)
	return cmd
}

// loadConfig builds the configuration and applies flag overrides
func (a *app) loadConfig(cmd *cobra.Command) error {
	if a.format != formatText && a.format != formatJSON {
		return fmt.Errorf("output format must be text or json, got: %s", a.format)
	}

	cfg, err := a.deps.LoadConfig(a.configFile, a.envFile)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	flags := cmd.Flags()
	if flags.Changed("base-url") {
		cfg.BaseURL = a.baseURL
	}
	if flags.Changed("verbosity") {
		cfg.Verbosity = config.Verbosity(a.verbosity)
	}
	if flags.Changed("no-logs") {
		cfg.ShowLogs = !a.noLogs
	}
	if flags.Changed("timeout") {
		cfg.RunTimeout = a.runTimeout
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger.InitializeFromConfig(cfg)
	logger.WithFields(map[string]interface{}{
		"base_url":  cfg.BaseURL,
		"state_dir": cfg.StateDir,
	}).Debug("Configuration loaded")

	a.cfg = cfg
	return nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:         "version",
		Short:       "Show version information",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{skipConfigAnnotation: "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := fmt.Fprintln(cmd.OutOrStdout(), "reportrun version "+version)
			return err
		},
	}
}
