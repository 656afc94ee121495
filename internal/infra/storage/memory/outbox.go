package memory

import (
	"context"
	"log/slog"
	"sync"

	appoutbox "roomstay/internal/app/outbox"
	"roomstay/internal/app/policies"
)

const historyLimit = 1000

// Outbox buffers records until Flush and then hands them to the notifier
// without waiting for delivery. Delivery errors are logged only.
type Outbox struct {
	Notifier policies.Notifier
	Logger   *slog.Logger

	mu      sync.Mutex
	pending []appoutbox.EventRecord
	history []appoutbox.EventRecord
	wg      sync.WaitGroup
}

func NewOutbox(notifier policies.Notifier, logger *slog.Logger) *Outbox {
	return &Outbox{Notifier: notifier, Logger: logger}
}

func (o *Outbox) Add(ctx context.Context, record appoutbox.EventRecord) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.pending = append(o.pending, record)
	return nil
}

func (o *Outbox) Flush(ctx context.Context) error {
	o.mu.Lock()
	batch := o.pending
	o.pending = nil
	o.history = append(o.history, batch...)
	if over := len(o.history) - historyLimit; over > 0 {
		o.history = append([]appoutbox.EventRecord(nil), o.history[over:]...)
	}
	o.mu.Unlock()
	if o.Notifier == nil || len(batch) == 0 {
		return nil
	}
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		deliverCtx := context.WithoutCancel(ctx)
		for _, rec := range batch {
			if err := o.Notifier.Notify(deliverCtx, rec); err != nil && o.Logger != nil {
				o.Logger.Warn("event delivery failed", slog.String("event", rec.Name), slog.String("id", rec.ID), slog.Any("error", err))
			}
		}
	}()
	return nil
}

// Wait blocks until in-flight deliveries finish.
func (o *Outbox) Wait() {
	o.wg.Wait()
}

// Flushed returns the names of flushed events, oldest first.
func (o *Outbox) Flushed() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	names := make([]string, 0, len(o.history))
	for _, rec := range o.history {
		names = append(names, rec.Name)
	}
	return names
}

var _ appoutbox.Outbox = (*Outbox)(nil)

// LogNotifier is the development notification collaborator: it writes each
// event to the log.
type LogNotifier struct {
	Logger *slog.Logger
}

func (n LogNotifier) Notify(ctx context.Context, rec appoutbox.EventRecord) error {
	logger := n.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.InfoContext(ctx, "event", slog.String("name", rec.Name), slog.String("aggregate", rec.Aggregate), slog.String("id", rec.ID))
	return nil
}
