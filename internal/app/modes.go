package app

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/mintbook/mintbook/internal/bot"
	"github.com/mintbook/mintbook/internal/domain"
	"github.com/mintbook/mintbook/internal/engine"
	"github.com/mintbook/mintbook/internal/notify"
	"github.com/mintbook/mintbook/internal/server"
	"github.com/mintbook/mintbook/internal/server/handler"
	"github.com/mintbook/mintbook/internal/server/ws"
	"github.com/mintbook/mintbook/internal/store/memory"
)

// shutdownTimeout bounds graceful HTTP shutdown after the root context is
// cancelled.
const shutdownTimeout = 10 * time.Second

// ServeMode runs the exchange against PostgreSQL and Redis: the HTTP API,
// the WebSocket hub, settlement notifications, and optionally the
// market-maker bot.
func (a *App) ServeMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting serve mode")

	eng := engine.New(deps.Store, a.cfg.Exchange.TreasuryUserID, a.logger).
		WithBookCache(deps.BookCache).
		WithSignalBus(deps.SignalBus)

	mm := bot.New(a.botConfig(), eng, deps.LockManager, a.logger)

	g, ctx := errgroup.WithContext(ctx)

	// WebSocket hub bridges the signal bus to connected clients.
	hub := ws.NewHub(deps.SignalBus, a.logger)
	g.Go(func() error {
		return hub.Run(ctx)
	})

	// Settlement notifications (no-op when no senders are configured).
	listener := notify.NewSettlementListener(deps.SignalBus, deps.Notifier, a.logger)
	g.Go(func() error {
		return listener.Run(ctx)
	})

	if a.cfg.Bot.Enabled {
		if err := mm.Start(ctx); err != nil {
			a.logger.WarnContext(ctx, "serve mode: bot failed to start",
				slog.String("error", err.Error()),
			)
		}
	}

	if a.cfg.Server.Enabled {
		pingers := map[string]handler.Pinger{
			"postgres": deps.Postgres,
			"redis":    deps.Redis,
		}
		srv := server.New(
			a.serverConfig(),
			a.buildHandlers(eng, mm, deps.Archiver, pingers),
			hub,
			deps.RateLimiter,
			a.logger,
		)
		g.Go(srv.Start)
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	return g.Wait()
}

// PaperMode runs the whole exchange in memory: no PostgreSQL, Redis, or S3.
// Orders match and settle exactly as in serve mode, but nothing survives a
// restart and no events are published. Intended for local experimentation
// and bot dry-runs.
func (a *App) PaperMode(ctx context.Context) error {
	a.logger.InfoContext(ctx, "starting paper mode")

	st := memory.NewStore()
	eng := engine.New(st, a.cfg.Exchange.TreasuryUserID, a.logger)

	// No lock manager: a single process owns all the state.
	mm := bot.New(a.botConfig(), eng, nil, a.logger)

	g, ctx := errgroup.WithContext(ctx)

	if a.cfg.Bot.Enabled {
		if err := mm.Start(ctx); err != nil {
			a.logger.WarnContext(ctx, "paper mode: bot failed to start",
				slog.String("error", err.Error()),
			)
		}
	}

	if a.cfg.Server.Enabled {
		srv := server.New(
			a.serverConfig(),
			a.buildHandlers(eng, mm, nil, nil),
			nil, // no signal bus, so no WebSocket hub
			nil, // no redis, so no order rate limiting
			a.logger,
		)
		g.Go(srv.Start)
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	} else {
		// Nothing else blocks; hold the process open until cancelled.
		g.Go(func() error {
			<-ctx.Done()
			return ctx.Err()
		})
	}

	return g.Wait()
}

// buildHandlers assembles the HTTP handler set around the engine and bot.
func (a *App) buildHandlers(
	eng *engine.Engine,
	mm *bot.MarketMaker,
	archiver domain.Archiver,
	pingers map[string]handler.Pinger,
) server.Handlers {
	return server.Handlers{
		Health:    handler.NewHealthHandler(pingers, a.logger),
		Users:     handler.NewUserHandler(eng, a.logger),
		Markets:   handler.NewMarketHandler(eng, a.logger),
		Orders:    handler.NewOrderHandler(eng, a.logger),
		Positions: handler.NewPositionHandler(eng, a.logger),
		Admin:     handler.NewAdminHandler(eng, archiver, a.logger),
		Bot:       handler.NewBotHandler(mm, a.logger),
	}
}

func (a *App) serverConfig() server.Config {
	return server.Config{
		Port:            a.cfg.Server.Port,
		CORSOrigins:     a.cfg.Server.CORSOrigins,
		APIKey:          a.cfg.Server.APIKey,
		OrderRateLimit:  a.cfg.Server.OrderRateLimit,
		OrderRateWindow: a.cfg.Server.OrderRateWindow.Duration,
	}
}

func (a *App) botConfig() bot.Config {
	return bot.Config{
		UserID:         a.cfg.Bot.UserID,
		Interval:       a.cfg.Bot.Interval.Duration,
		SpreadCents:    a.cfg.Bot.SpreadCents,
		BaseSize:       a.cfg.Bot.BaseSize,
		InventoryLimit: a.cfg.Bot.InventoryLimit,
		MinPriceCents:  a.cfg.Bot.MinPriceCents,
		MaxPriceCents:  a.cfg.Bot.MaxPriceCents,
	}
}
