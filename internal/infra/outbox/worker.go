package outbox

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	appoutbox "roomstay/internal/app/outbox"
	"roomstay/internal/app/policies"
)

var (
	ErrWorkerNotConfigured = errors.New("outbox: worker missing dependencies")
	errInvalidPayload      = errors.New("outbox: payload is not valid JSON")
)

const maxBatch = 100

type Producer interface {
	Publish(ctx context.Context, topic string, key string, payload []byte, headers map[string]string) error
}

// ClaimStore is the part of Store the worker drives.
type ClaimStore interface {
	Claim(ctx context.Context, workerID string) (*EventDocument, error)
	MarkSent(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id string, next time.Time, errMsg string) error
}

// Worker polls the durable outbox and publishes CloudEvents to Kafka.
type Worker struct {
	Store       ClaimStore
	Producer    Producer
	Interval    time.Duration
	TopicPrefix string
	Source      string
	ID          string
	Backoff     []time.Duration
	Logger      *slog.Logger
}

func (w *Worker) Run(ctx context.Context) error {
	if w.Store == nil || w.Producer == nil {
		return ErrWorkerNotConfigured
	}
	if w.ID == "" {
		w.ID = uuid.NewString()
	}
	ticker := time.NewTicker(w.interval())
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := w.Drain(ctx); err != nil && ctx.Err() == nil && w.Logger != nil {
				w.Logger.Error("outbox poll failed", slog.Any("error", err))
			}
		}
	}
}

// Drain publishes due records until none are left or a batch is done.
func (w *Worker) Drain(ctx context.Context) (int, error) {
	sent := 0
	for i := 0; i < maxBatch; i++ {
		doc, err := w.Store.Claim(ctx, w.ID)
		if err != nil || doc == nil {
			return sent, err
		}
		ok, err := w.publish(ctx, doc)
		if err != nil {
			return sent, err
		}
		if ok {
			sent++
		}
	}
	return sent, nil
}

func (w *Worker) publish(ctx context.Context, doc *EventDocument) (bool, error) {
	payload, headers, err := CloudEvent(doc.Record(), w.Source)
	if err == nil {
		err = w.Producer.Publish(ctx, TopicFor(w.TopicPrefix, doc.Name), doc.Aggregate, payload, headers)
	}
	if err != nil {
		if w.Logger != nil {
			w.Logger.Warn("outbox publish failed", slog.String("event", doc.Name), slog.String("id", doc.ID), slog.Int("attempts", doc.Attempts+1), slog.Any("error", err))
		}
		return false, w.Store.MarkFailed(ctx, doc.ID, w.nextRetry(doc.Attempts), err.Error())
	}
	return true, w.Store.MarkSent(ctx, doc.ID)
}

func (w *Worker) interval() time.Duration {
	if w.Interval <= 0 {
		return 500 * time.Millisecond
	}
	return w.Interval
}

func (w *Worker) nextRetry(attempts int) time.Time {
	if attempts < len(w.Backoff) {
		return time.Now().Add(w.Backoff[attempts])
	}
	if len(w.Backoff) > 0 {
		return time.Now().Add(w.Backoff[len(w.Backoff)-1])
	}
	return time.Now().Add(5 * time.Second)
}

// Notifier publishes straight to Kafka. It serves the in-memory outbox,
// which has no worker of its own.
type Notifier struct {
	Producer    Producer
	TopicPrefix string
	Source      string
}

func (n Notifier) Notify(ctx context.Context, rec appoutbox.EventRecord) error {
	payload, headers, err := CloudEvent(rec, n.Source)
	if err != nil {
		return err
	}
	return n.Producer.Publish(ctx, TopicFor(n.TopicPrefix, rec.Name), rec.Aggregate, payload, headers)
}

var _ policies.Notifier = Notifier{}
