// Package app wires configuration into concrete dependencies and runs the
// exchange in one of its modes.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/mintbook/mintbook/internal/config"
)

// App owns the application lifecycle: dependency wiring, mode dispatch, and
// ordered teardown.
type App struct {
	cfg    *config.Config
	logger *slog.Logger

	closers []func()
}

// New creates an App from validated configuration.
func New(cfg *config.Config, logger *slog.Logger) *App {
	return &App{
		cfg:    cfg,
		logger: logger,
	}
}

// Run wires dependencies for the configured mode and blocks until the mode
// returns or the context is cancelled.
func (a *App) Run(ctx context.Context) error {
	a.logger.InfoContext(ctx, "starting application",
		slog.String("mode", a.cfg.Mode),
	)

	switch a.cfg.Mode {
	case "paper":
		return a.PaperMode(ctx)
	case "serve":
		deps, cleanup, err := Wire(ctx, a.cfg)
		if err != nil {
			return fmt.Errorf("app: wire dependencies: %w", err)
		}
		a.closers = append(a.closers, cleanup)
		return a.ServeMode(ctx, deps)
	default:
		return fmt.Errorf("app: unknown mode %q", a.cfg.Mode)
	}
}

// Close releases all resources acquired during Run, in reverse order. It is
// safe to call more than once.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
