// Package notify fans operator alerts out to chat channels. The exchange
// emits a small set of event kinds (settlement payouts, bot faults); each
// configured channel receives the ones the operator subscribed to.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

// Event kinds the exchange emits. The config's notify.events list selects
// which of these reach the senders.
const (
	EventSettlement = "settlement"
	EventError      = "error"
)

// Sender delivers one formatted alert over a single channel.
type Sender interface {
	Send(ctx context.Context, title, message string) error
	// Name identifies the channel in logs, e.g. "telegram".
	Name() string
}

// Notifier fans alerts out to its senders, dropping events the operator has
// not subscribed to. An empty subscription list means every event passes.
type Notifier struct {
	senders    []Sender
	subscribed map[string]struct{}
	logger     *slog.Logger
}

// NewNotifier builds a Notifier over senders. events names the event kinds
// to forward; nil or empty forwards everything.
func NewNotifier(senders []Sender, events []string, logger *slog.Logger) *Notifier {
	subs := make(map[string]struct{}, len(events))
	for _, e := range events {
		if e = strings.TrimSpace(e); e != "" {
			subs[e] = struct{}{}
		}
	}
	return &Notifier{
		senders:    senders,
		subscribed: subs,
		logger:     logger.With(slog.String("component", "notifier")),
	}
}

// Notify delivers the alert if the operator subscribed to its event kind.
func (n *Notifier) Notify(ctx context.Context, event, title, message string) error {
	if len(n.subscribed) > 0 {
		if _, ok := n.subscribed[event]; !ok {
			n.logger.DebugContext(ctx, "event not subscribed, dropping",
				slog.String("event", event),
			)
			return nil
		}
	}
	return n.dispatch(ctx, title, message)
}

// NotifyAll delivers the alert unconditionally, ignoring subscriptions.
func (n *Notifier) NotifyAll(ctx context.Context, title, message string) error {
	return n.dispatch(ctx, title, message)
}

// dispatch attempts every sender even when earlier ones fail and returns the
// joined failures.
func (n *Notifier) dispatch(ctx context.Context, title, message string) error {
	var errs []error
	for _, s := range n.senders {
		err := s.Send(ctx, title, message)
		if err != nil {
			n.logger.ErrorContext(ctx, "alert delivery failed",
				slog.String("sender", s.Name()),
				slog.String("error", err.Error()),
			)
			errs = append(errs, fmt.Errorf("notify: %s: %w", s.Name(), err))
			continue
		}
		n.logger.DebugContext(ctx, "alert delivered",
			slog.String("sender", s.Name()),
			slog.String("title", title),
		)
	}
	return errors.Join(errs...)
}
