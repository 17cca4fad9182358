package notify

import (
	"context"
	"encoding/json"
	"time"

	"github.com/IBM/sarama"
	"github.com/pkg/errors"

	"github.com/Astemirdum/librakeeper/lending/internal/model"
	"github.com/Astemirdum/librakeeper/lending/internal/service"
	"github.com/Astemirdum/librakeeper/pkg/kafka"
)

// Publisher hands loan notifications to the notifier process through Kafka.
// Events are keyed by loan id so that the events of one loan stay ordered.
type Publisher struct {
	producer sarama.SyncProducer
	topic    string
	now      func() time.Time
}

var _ service.Notifier = (*Publisher)(nil)

func NewPublisher(producer sarama.SyncProducer, topic string) *Publisher {
	return &Publisher{
		producer: producer,
		topic:    topic,
		now:      time.Now,
	}
}

func (p *Publisher) NotifyLoanRequested(_ context.Context, msg model.LoanRequested) error {
	return p.publish(kafka.LoanEvent{
		Type:         kafka.EventLoanRequested,
		LoanID:       msg.LoanID,
		ItemTitle:    msg.ItemTitle,
		BorrowerName: msg.BorrowerName,
		AdminEmails:  msg.AdminEmails,
	})
}

func (p *Publisher) NotifyLoanDecided(_ context.Context, msg model.LoanDecided) error {
	return p.publish(kafka.LoanEvent{
		Type:          kafka.EventLoanDecided,
		LoanID:        msg.LoanID,
		ItemTitle:     msg.ItemTitle,
		BorrowerEmail: msg.BorrowerEmail,
		Decision:      string(msg.Decision),
	})
}

func (p *Publisher) publish(ev kafka.LoanEvent) error {
	ev.Timestamp = p.now().UTC()
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	msg := &sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(ev.LoanID),
		Value: sarama.ByteEncoder(data),
	}
	if _, _, err = p.producer.SendMessage(msg); err != nil {
		return errors.Wrapf(err, "publish %s", ev.Type)
	}
	return nil
}

// Dispatch delivers an event read from the topic to n.
func Dispatch(ctx context.Context, n service.Notifier, ev kafka.LoanEvent) error {
	switch ev.Type {
	case kafka.EventLoanRequested:
		return n.NotifyLoanRequested(ctx, model.LoanRequested{
			LoanID:       ev.LoanID,
			AdminEmails:  ev.AdminEmails,
			BorrowerName: ev.BorrowerName,
			ItemTitle:    ev.ItemTitle,
		})
	case kafka.EventLoanDecided:
		return n.NotifyLoanDecided(ctx, model.LoanDecided{
			LoanID:        ev.LoanID,
			BorrowerEmail: ev.BorrowerEmail,
			ItemTitle:     ev.ItemTitle,
			Decision:      model.LoanStatus(ev.Decision),
		})
	}
	return errors.Errorf("unknown event type %q", ev.Type)
}
