package kafka

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"roomstay/internal/app/commands"
	"roomstay/internal/app/dto"
	bookingapp "roomstay/internal/app/handlers/booking"
	"roomstay/internal/app/middleware"
	"roomstay/internal/domain/shared/apperr"
)

type fakeBus struct {
	mu    sync.Mutex
	calls []bookingapp.ApplyPaymentResultCommand
	roles [][]string
	err   error
}

func (b *fakeBus) Dispatch(ctx context.Context, cmd commands.Command) (any, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls = append(b.calls, cmd.(bookingapp.ApplyPaymentResultCommand))
	p, _ := middleware.PrincipalFrom(ctx)
	b.roles = append(b.roles, p.Roles)
	if b.err != nil {
		return nil, b.err
	}
	return &dto.Booking{}, nil
}

type fakeInbox struct {
	seen map[string]bool
}

func (i *fakeInbox) Processed(_ context.Context, id string) (bool, error) { return i.seen[id], nil }

func (i *fakeInbox) MarkProcessed(_ context.Context, id string) error {
	i.seen[id] = true
	return nil
}

func message(v string) *sarama.ConsumerMessage {
	return &sarama.ConsumerMessage{Topic: "payments.events.v1", Value: []byte(v)}
}

const plainEvent = `{"event_id":"evt-1","booking_id":"b-1","status":"succeeded","provider_ref":"ch_1","amount_cents":34500,"currency":"USD"}`

func TestDecodePaymentNotification(t *testing.T) {
	n, err := DecodePaymentNotification([]byte(plainEvent))
	require.NoError(t, err)
	assert.Equal(t, "evt-1", n.EventID)
	assert.Equal(t, int64(34500), n.AmountCents)

	wrapped := `{"specversion":"1.0","id":"ce-9","type":"payment.result","data":{"booking_id":"b-2","status":"failed"}}`
	n, err = DecodePaymentNotification([]byte(wrapped))
	require.NoError(t, err)
	assert.Equal(t, "ce-9", n.EventID)
	assert.Equal(t, "b-2", n.BookingID)
	assert.Equal(t, "failed", n.Status)

	_, err = DecodePaymentNotification([]byte(`{"status":"succeeded"}`))
	assert.Error(t, err)
	_, err = DecodePaymentNotification([]byte(`not json`))
	assert.Error(t, err)
}

func TestPaymentEventsHandler_DispatchesOnceAsSystem(t *testing.T) {
	bus := &fakeBus{}
	inbox := &fakeInbox{seen: map[string]bool{}}
	h := PaymentEventsHandler{Commands: bus, Inbox: inbox}

	require.NoError(t, h.Handle(context.Background(), message(plainEvent)))
	require.NoError(t, h.Handle(context.Background(), message(plainEvent)))

	require.Len(t, bus.calls, 1)
	assert.Equal(t, "b-1", bus.calls[0].BookingID)
	assert.Equal(t, "succeeded", bus.calls[0].Status)
	assert.Equal(t, []string{middleware.RoleSystem}, bus.roles[0])
	assert.True(t, inbox.seen["evt-1"])
}

func TestPaymentEventsHandler_Errors(t *testing.T) {
	t.Run("malformed payload is permanent", func(t *testing.T) {
		h := PaymentEventsHandler{Commands: &fakeBus{}}
		err := h.Handle(context.Background(), message(`{}`))
		assert.ErrorIs(t, err, ErrPermanent)
	})

	t.Run("transient failure is not recorded", func(t *testing.T) {
		bus := &fakeBus{err: apperr.Wrap(apperr.Upstream, "db down", errors.New("boom"))}
		inbox := &fakeInbox{seen: map[string]bool{}}
		h := PaymentEventsHandler{Commands: bus, Inbox: inbox}
		err := h.Handle(context.Background(), message(plainEvent))
		assert.Error(t, err)
		assert.False(t, inbox.seen["evt-1"])
	})

	t.Run("settled failure is recorded", func(t *testing.T) {
		bus := &fakeBus{err: apperr.New(apperr.InvalidTransition, "already cancelled")}
		inbox := &fakeInbox{seen: map[string]bool{}}
		h := PaymentEventsHandler{Commands: bus, Inbox: inbox}
		require.NoError(t, h.Handle(context.Background(), message(plainEvent)))
		assert.True(t, inbox.seen["evt-1"])
	})
}

type flakyHandler struct {
	failures int
	calls    int
}

func (f *flakyHandler) Handle(context.Context, *sarama.ConsumerMessage) error {
	f.calls++
	if f.calls <= f.failures {
		return errors.New("temporary")
	}
	return nil
}

func TestConsumerRetriesInPlace(t *testing.T) {
	f := &flakyHandler{failures: 2}
	h := consumerGroupHandler{handler: f, backoff: []time.Duration{time.Millisecond}}
	assert.True(t, h.process(context.Background(), message("x")))
	assert.Equal(t, 3, f.calls)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	stuck := &flakyHandler{failures: 100}
	assert.False(t, consumerGroupHandler{handler: stuck, backoff: []time.Duration{time.Hour}}.process(ctx, message("x")))
	assert.Equal(t, 1, stuck.calls)
}

func TestProducerPublish(t *testing.T) {
	cfg := mocks.NewTestConfig()
	cfg.Producer.Return.Successes = true
	sp := mocks.NewSyncProducer(t, cfg)
	sp.ExpectSendMessageWithCheckerFunctionAndSucceed(func(val []byte) error {
		if string(val) != "payload" {
			return errors.New("unexpected payload")
		}
		return nil
	})
	p := NewProducerFrom(sp)
	require.NoError(t, p.Publish(context.Background(), "booking.events.v1", "b-1", []byte("payload"), map[string]string{"ce_type": "booking.held"}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, p.Publish(ctx, "t", "k", nil, nil), context.Canceled)
	require.NoError(t, p.Close())
}

func TestProducerPublishFailureIsUpstream(t *testing.T) {
	cfg := mocks.NewTestConfig()
	cfg.Producer.Return.Successes = true
	sp := mocks.NewSyncProducer(t, cfg)
	sp.ExpectSendMessageAndFail(sarama.ErrNotLeaderForPartition)

	err := NewProducerFrom(sp).Publish(context.Background(), "booking.events.v1", "b-1", []byte("{}"), nil)
	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.Upstream))
	assert.ErrorIs(t, err, sarama.ErrNotLeaderForPartition)
	require.NoError(t, sp.Close())
}

func TestRecordHeadersSorted(t *testing.T) {
	hs := recordHeaders(map[string]string{"unit_id": "u-1", "ce_type": "booking.held", "content-type": "application/cloudevents+json"})
	require.Len(t, hs, 3)
	assert.Equal(t, "ce_type", string(hs[0].Key))
	assert.Equal(t, "content-type", string(hs[1].Key))
	assert.Equal(t, "unit_id", string(hs[2].Key))
}
