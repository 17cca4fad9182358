package handler

import (
	"context"
	"encoding/json"
	"time"

	"github.com/IBM/sarama"
	"go.uber.org/zap"

	"github.com/Astemirdum/librakeeper/lending/internal/notify"
	"github.com/Astemirdum/librakeeper/lending/internal/service"
	"github.com/Astemirdum/librakeeper/pkg/kafka"
)

const deliveryTimeout = 30 * time.Second

// Consumer reads loan events and delivers them through a notifier.
type Consumer struct {
	notifier service.Notifier
	log      *zap.Logger
}

func NewConsumer(notifier service.Notifier, log *zap.Logger) *Consumer {
	return &Consumer{
		notifier: notifier,
		log:      log.Named("consumer"),
	}
}

func (consumer *Consumer) Setup(sarama.ConsumerGroupSession) error {
	consumer.log.Info("consumer group session started")
	return nil
}

// Cleanup is run at the end of a session, once all ConsumeClaim goroutines have exited.
func (consumer *Consumer) Cleanup(sarama.ConsumerGroupSession) error {
	return nil
}

func (consumer *Consumer) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for {
		select {
		case message, ok := <-claim.Messages():
			if !ok {
				consumer.log.Warn("message channel was closed")
				return nil
			}
			consumer.handle(session.Context(), message)
			session.MarkMessage(message, "")
		case <-session.Context().Done():
			return nil
		}
	}
}

// handle never fails the claim: a poison or undeliverable event is logged and skipped.
func (consumer *Consumer) handle(ctx context.Context, message *sarama.ConsumerMessage) {
	var ev kafka.LoanEvent
	if err := json.Unmarshal(message.Value, &ev); err != nil {
		consumer.log.Error("json.Unmarshal", zap.Error(err), zap.Int64("offset", message.Offset))
		return
	}
	ctx, cancel := context.WithTimeout(ctx, deliveryTimeout)
	defer cancel()
	if err := notify.Dispatch(ctx, consumer.notifier, ev); err != nil {
		consumer.log.Error("notify.Dispatch", zap.Error(err),
			zap.String("type", string(ev.Type)),
			zap.String("loanId", ev.LoanID))
		return
	}
	consumer.log.Debug("Message claimed:",
		zap.String("type", string(ev.Type)),
		zap.Time("timestamp", message.Timestamp),
		zap.String("topic", message.Topic))
}
