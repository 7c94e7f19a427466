package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/mintbook/mintbook/internal/domain"
)

// settlementEvent mirrors the payload the engine publishes on the
// settlements channel.
type settlementEvent struct {
	Event        string `json:"event"`
	MarketID     string `json:"market_id"`
	Winner       string `json:"winner"`
	PaidOutCents int64  `json:"paid_out_cents"`
}

// SettlementListener bridges settlement events from the signal bus to
// operator notification channels.
type SettlementListener struct {
	bus      domain.SignalBus
	notifier *Notifier
	logger   *slog.Logger
}

// NewSettlementListener creates a listener that forwards settlement events
// through the notifier.
func NewSettlementListener(bus domain.SignalBus, notifier *Notifier, logger *slog.Logger) *SettlementListener {
	return &SettlementListener{
		bus:      bus,
		notifier: notifier,
		logger:   logger.With(slog.String("component", "settlement_listener")),
	}
}

// Run subscribes to the settlements channel and forwards each event until ctx
// is cancelled. Malformed payloads are logged and dropped.
func (l *SettlementListener) Run(ctx context.Context) error {
	ch, err := l.bus.Subscribe(ctx, "settlements")
	if err != nil {
		return fmt.Errorf("notify: subscribe settlements: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case payload, ok := <-ch:
			if !ok {
				return nil
			}
			var ev settlementEvent
			if err := json.Unmarshal(payload, &ev); err != nil {
				l.logger.WarnContext(ctx, "malformed settlement event",
					slog.String("error", err.Error()),
				)
				continue
			}

			title := fmt.Sprintf("Market settled: %s", ev.MarketID)
			message := fmt.Sprintf("Winner: %s\nPaid out: $%d.%02d",
				ev.Winner, ev.PaidOutCents/100, ev.PaidOutCents%100)

			if err := l.notifier.Notify(ctx, EventSettlement, title, message); err != nil {
				l.logger.WarnContext(ctx, "settlement notification failed",
					slog.String("market_id", ev.MarketID),
					slog.String("error", err.Error()),
				)
			}
		}
	}
}
