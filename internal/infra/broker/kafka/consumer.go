package kafka

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/IBM/sarama"
)

type MessageHandler interface {
	Handle(ctx context.Context, msg *sarama.ConsumerMessage) error
}

// ErrPermanent marks a message that can never succeed; it is logged and
// committed instead of retried.
var ErrPermanent = errors.New("kafka: permanent message failure")

type Consumer struct {
	group   sarama.ConsumerGroup
	handler MessageHandler
	backoff []time.Duration
	logger  *slog.Logger
}

func NewConsumer(brokers []string, groupID string, cfg *sarama.Config, handler MessageHandler, backoff []time.Duration, logger *slog.Logger) (*Consumer, error) {
	if cfg == nil {
		cfg = sarama.NewConfig()
	}
	cfg.Version = sarama.V2_5_0_0
	cfg.Consumer.Offsets.Initial = sarama.OffsetOldest
	g, err := sarama.NewConsumerGroup(brokers, groupID, cfg)
	if err != nil {
		return nil, err
	}
	return &Consumer{group: g, handler: handler, backoff: backoff, logger: logger}, nil
}

func (c *Consumer) Run(ctx context.Context, topics []string) error {
	for {
		if err := c.group.Consume(ctx, topics, consumerGroupHandler{handler: c.handler, backoff: c.backoff, logger: c.logger}); err != nil {
			if errors.Is(err, sarama.ErrClosedConsumerGroup) {
				return nil
			}
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}

func (c *Consumer) Close() error {
	return c.group.Close()
}

type consumerGroupHandler struct {
	handler MessageHandler
	backoff []time.Duration
	logger  *slog.Logger
}

func (h consumerGroupHandler) Setup(sarama.ConsumerGroupSession) error   { return nil }
func (h consumerGroupHandler) Cleanup(sarama.ConsumerGroupSession) error { return nil }

// ConsumeClaim retries a failing message in place so offsets never skip past
// it. Permanent failures are committed after logging.
func (h consumerGroupHandler) ConsumeClaim(sess sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for message := range claim.Messages() {
		if !h.process(sess.Context(), message) {
			return nil
		}
		sess.MarkMessage(message, "")
	}
	return nil
}

// process reports false when the session ended before the message was settled.
func (h consumerGroupHandler) process(ctx context.Context, msg *sarama.ConsumerMessage) bool {
	for attempt := 0; ; attempt++ {
		err := h.handler.Handle(ctx, msg)
		if err == nil {
			return true
		}
		if errors.Is(err, ErrPermanent) {
			h.log(slog.LevelError, "dropping message", msg, attempt, err)
			return true
		}
		h.log(slog.LevelWarn, "message handling failed, retrying", msg, attempt, err)
		timer := time.NewTimer(h.delay(attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return false
		case <-timer.C:
		}
	}
}

func (h consumerGroupHandler) delay(attempt int) time.Duration {
	if len(h.backoff) == 0 {
		return time.Second
	}
	if attempt < len(h.backoff) {
		return h.backoff[attempt]
	}
	return h.backoff[len(h.backoff)-1]
}

func (h consumerGroupHandler) log(level slog.Level, msg string, m *sarama.ConsumerMessage, attempt int, err error) {
	if h.logger == nil {
		return
	}
	h.logger.Log(context.Background(), level, msg,
		slog.String("topic", m.Topic), slog.Int("partition", int(m.Partition)), slog.Int64("offset", m.Offset),
		slog.Int("attempt", attempt+1), slog.Any("error", err))
}
