package notify

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"
)

type fakeBus struct {
	ch chan []byte
}

func (f *fakeBus) Publish(ctx context.Context, channel string, payload []byte) error {
	f.ch <- payload
	return nil
}

func (f *fakeBus) Subscribe(ctx context.Context, channel string) (<-chan []byte, error) {
	return f.ch, nil
}

type recordingSender struct {
	mu       sync.Mutex
	titles   []string
	messages []string
}

func (r *recordingSender) Name() string { return "recording" }

func (r *recordingSender) Send(ctx context.Context, title, message string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.titles = append(r.titles, title)
	r.messages = append(r.messages, message)
	return nil
}

func (r *recordingSender) sent() ([]string, []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.titles...), append([]string(nil), r.messages...)
}

func TestSettlementListenerForwardsEvents(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	bus := &fakeBus{ch: make(chan []byte, 4)}
	sender := &recordingSender{}
	notifier := NewNotifier([]Sender{sender}, []string{"settlement"}, logger)
	listener := NewSettlementListener(bus, notifier, logger)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = listener.Run(ctx)
	}()

	bus.ch <- []byte(`{"event":"market_settled","market_id":"m1","winner":"yes","paid_out_cents":12345}`)
	bus.ch <- []byte(`not json`) // malformed payloads are dropped

	deadline := time.After(2 * time.Second)
	for {
		titles, messages := sender.sent()
		if len(titles) == 1 {
			if titles[0] != "Market settled: m1" {
				t.Errorf("title = %q", titles[0])
			}
			if messages[0] != "Winner: yes\nPaid out: $123.45" {
				t.Errorf("message = %q", messages[0])
			}
			break
		}
		select {
		case <-deadline:
			t.Fatal("settlement notification never arrived")
		case <-time.After(10 * time.Millisecond):
		}
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("listener did not stop on cancel")
	}
}

func TestNotifierEventFilter(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	sender := &recordingSender{}
	notifier := NewNotifier([]Sender{sender}, []string{"settlement"}, logger)

	if err := notifier.Notify(context.Background(), "error", "t", "m"); err != nil {
		t.Fatalf("notify: %v", err)
	}
	if titles, _ := sender.sent(); len(titles) != 0 {
		t.Errorf("filtered event delivered: %v", titles)
	}

	if err := notifier.Notify(context.Background(), "settlement", "t", "m"); err != nil {
		t.Fatalf("notify: %v", err)
	}
	if titles, _ := sender.sent(); len(titles) != 1 {
		t.Errorf("allowed event not delivered")
	}
}
