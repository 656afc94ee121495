package policies

import (
	"context"

	"roomstay/internal/app/outbox"
)

// Notifier delivers flushed events to the notification collaborator.
type Notifier interface {
	Notify(ctx context.Context, record outbox.EventRecord) error
}
