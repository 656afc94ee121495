package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/IBM/sarama"

	bookingapp "roomstay/internal/app/handlers/booking"
	"roomstay/internal/app/commands"
	"roomstay/internal/app/dto"
	"roomstay/internal/app/middleware"
	"roomstay/internal/domain/shared/apperr"
)

const systemPrincipalID = "payments-consumer"

// Inbox remembers handled events by id.
type Inbox interface {
	Processed(ctx context.Context, eventID string) (bool, error)
	MarkProcessed(ctx context.Context, eventID string) error
}

// PaymentNotification is the gateway's asynchronous result. It arrives either
// bare or as the data of a CloudEvents envelope.
type PaymentNotification struct {
	EventID     string `json:"event_id"`
	BookingID   string `json:"booking_id"`
	Status      string `json:"status"`
	ProviderRef string `json:"provider_ref"`
	AmountCents int64  `json:"amount_cents"`
	Currency    string `json:"currency"`
}

type cloudEnvelope struct {
	ID   string          `json:"id"`
	Data json.RawMessage `json:"data"`
}

// PaymentEventsHandler applies payment notifications through the command bus.
type PaymentEventsHandler struct {
	Commands commands.Bus
	Inbox    Inbox
	Logger   *slog.Logger
}

func (h PaymentEventsHandler) Handle(ctx context.Context, msg *sarama.ConsumerMessage) error {
	n, err := DecodePaymentNotification(msg.Value)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrPermanent, err)
	}
	if h.Inbox != nil {
		done, err := h.Inbox.Processed(ctx, n.EventID)
		if err != nil {
			return err
		}
		if done {
			return nil
		}
	}
	ctx = middleware.WithPrincipal(ctx, middleware.Principal{ID: systemPrincipalID, Roles: []string{middleware.RoleSystem}})
	_, err = commands.Dispatch[bookingapp.ApplyPaymentResultCommand, *dto.Booking](ctx, h.Commands, bookingapp.ApplyPaymentResultCommand{
		EventID:     n.EventID,
		BookingID:   n.BookingID,
		Status:      n.Status,
		ProviderRef: n.ProviderRef,
		AmountCents: n.AmountCents,
		Currency:    n.Currency,
	})
	if err != nil && !settled(err) {
		return err
	}
	if err != nil && h.Logger != nil {
		h.Logger.WarnContext(ctx, "payment notification not applied", slog.String("event_id", n.EventID), slog.String("booking_id", n.BookingID), slog.Any("error", err))
	}
	if h.Inbox != nil {
		return h.Inbox.MarkProcessed(ctx, n.EventID)
	}
	return nil
}

// settled reports errors that a redelivery cannot change.
func settled(err error) bool {
	switch apperr.KindOf(err) {
	case apperr.Validation, apperr.NotFound, apperr.InvalidTransition, apperr.Conflict, apperr.Forbidden:
		return true
	default:
		return false
	}
}

func DecodePaymentNotification(raw []byte) (PaymentNotification, error) {
	var env cloudEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return PaymentNotification{}, err
	}
	body := raw
	if len(env.Data) > 0 {
		body = env.Data
	}
	var n PaymentNotification
	if err := json.Unmarshal(body, &n); err != nil {
		return PaymentNotification{}, err
	}
	if n.EventID == "" {
		n.EventID = env.ID
	}
	if n.EventID == "" || n.BookingID == "" {
		return PaymentNotification{}, fmt.Errorf("payment notification missing event or booking id")
	}
	return n, nil
}
