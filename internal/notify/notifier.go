// Package notify delivers split-payment lifecycle events recorded in the
// outbox. Events are written in the same transaction as the ledger change and
// dispatched here after commit, giving at-least-once delivery to every
// registered sender.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shijin-alpha/buildhub-main-sub011/internal/models"
	"github.com/shijin-alpha/buildhub-main-sub011/internal/storage"
)

// Sender is the interface each notification channel must implement.
type Sender interface {
	// Send delivers one event with its JSON payload.
	Send(ctx context.Context, eventType, payload string) error
	// Name returns a human-readable identifier for the sender (e.g. "log").
	Name() string
}

// LogSender writes events to the structured log. It is the default channel
// and serves as the integration point until webhook targets are configured.
type LogSender struct {
	logger *slog.Logger
}

// NewLogSender creates a LogSender on the given logger.
func NewLogSender(logger *slog.Logger) *LogSender {
	return &LogSender{logger: logger.With(slog.String("component", "notify"))}
}

func (s *LogSender) Send(ctx context.Context, eventType, payload string) error {
	s.logger.InfoContext(ctx, "split payment event",
		slog.String("event", eventType),
		slog.String("payload", payload),
	)
	return nil
}

func (s *LogSender) Name() string { return "log" }

// Dispatcher drains pending outbox events to all registered senders. It polls
// on an interval and can be woken early after a commit so completion events
// go out without waiting for the next tick.
type Dispatcher struct {
	store    storage.Store
	senders  []Sender
	interval time.Duration
	batch    int
	wake     chan struct{}
	logger   *slog.Logger
}

// NewDispatcher creates a Dispatcher polling at the given interval.
func NewDispatcher(store storage.Store, senders []Sender, interval time.Duration, logger *slog.Logger) *Dispatcher {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	return &Dispatcher{
		store:    store,
		senders:  senders,
		interval: interval,
		batch:    50,
		wake:     make(chan struct{}, 1),
		logger:   logger.With(slog.String("component", "dispatcher")),
	}
}

// Wake nudges the dispatcher to drain immediately. Safe to call from any
// goroutine; redundant wakes coalesce.
func (d *Dispatcher) Wake() {
	select {
	case d.wake <- struct{}{}:
	default:
	}
}

// Run drains the outbox until the context is cancelled. It drains once on
// startup to pick up events left over from a previous run.
func (d *Dispatcher) Run(ctx context.Context) {
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	d.drain(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.drain(ctx)
		case <-d.wake:
			d.drain(ctx)
		}
	}
}

// drain delivers pending events oldest first. An event is marked dispatched
// only after every sender accepted it; a sender failure leaves the event
// pending for the next pass, so senders must tolerate duplicates.
func (d *Dispatcher) drain(ctx context.Context) {
	for {
		events, err := d.store.ListPendingOutbox(ctx, d.batch)
		if err != nil {
			d.logger.ErrorContext(ctx, "failed to list pending events",
				slog.String("error", err.Error()),
			)
			return
		}
		if len(events) == 0 {
			return
		}

		for _, event := range events {
			if err := d.deliver(ctx, event); err != nil {
				d.logger.ErrorContext(ctx, "event delivery failed",
					slog.String("event_id", event.ID),
					slog.String("event", event.EventType),
					slog.String("error", err.Error()),
				)
				return
			}
			if err := d.store.MarkOutboxDispatched(ctx, event.ID); err != nil {
				d.logger.ErrorContext(ctx, "failed to mark event dispatched",
					slog.String("event_id", event.ID),
					slog.String("error", err.Error()),
				)
				return
			}
		}
		if len(events) < d.batch {
			return
		}
	}
}

func (d *Dispatcher) deliver(ctx context.Context, event *models.OutboxEvent) error {
	var errs []string
	for _, s := range d.senders {
		if err := s.Send(ctx, event.EventType, event.Payload); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", s.Name(), err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("%d sender(s) failed: %s", len(errs), strings.Join(errs, "; "))
	}
	return nil
}
