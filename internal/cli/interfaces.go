package cli

import (
	"context"
	"time"

	"github.com/atotto/clipboard"

	"github.com/Backland-Labs/reportrun/internal/api"
	"github.com/Backland-Labs/reportrun/internal/config"
	"github.com/Backland-Labs/reportrun/internal/core"
	"github.com/Backland-Labs/reportrun/internal/history"
	"github.com/Backland-Labs/reportrun/internal/logger"
	"github.com/Backland-Labs/reportrun/internal/output"
	"github.com/Backland-Labs/reportrun/internal/run"
)

// Service is the report service as seen by the commands
type Service interface {
	run.Streamer
	Terminate(ctx context.Context) error
	ListHistory(ctx context.Context) ([]history.Entry, error)
	DeleteHistory(ctx context.Context, id string) error
	ClearHistory(ctx context.Context) error
}

// Dependencies are the collaborators of the commands, replaceable in tests
type Dependencies struct {
	LoadConfig      func(configFile, dotEnv string) (*config.Config, error)
	NewService      func(cfg *config.Config) (Service, error)
	NewStore        func(cfg *config.Config) run.ContextStore
	CopyToClipboard func(text string) error
	Printer         *output.Printer
	Now             func() time.Time
}

// NewRealDependencies returns the production wiring
func NewRealDependencies() *Dependencies {
	return &Dependencies{
		LoadConfig: config.Load,
		NewService: func(cfg *config.Config) (Service, error) {
			return api.NewClient(api.Options{
				BaseURL:        cfg.BaseURL,
				RequestTimeout: cfg.RequestTimeout,
				Retries:        api.DefaultRetries,
				Logger:         logger.GetLogger(),
			})
		},
		NewStore: func(cfg *config.Config) run.ContextStore {
			return core.NewFileStore(cfg.ContextFile())
		},
		CopyToClipboard: clipboard.WriteAll,
		Printer:         output.NewPrinter(),
		Now:             time.Now,
	}
}
