package kafka

import (
	"context"
	"time"

	"github.com/IBM/sarama"
	"github.com/pkg/errors"
)

const (
	LoanEventsTopic       = "loan-events"
	NotifierConsumerGroup = "notifier"
)

type Config struct {
	Addrs []string `yaml:"addrs" envconfig:"KAFKA_ADDRS"`
}

func (c Config) Enabled() bool { return len(c.Addrs) > 0 }

func NewProducer(cfg Config) (sarama.SyncProducer, error) {
	defaultCfg := sarama.NewConfig()

	defaultCfg.Producer.RequiredAcks = sarama.WaitForAll
	defaultCfg.Producer.Return.Successes = true

	return sarama.NewSyncProducer(cfg.Addrs, defaultCfg)
}

func NewConsumer(cfg Config, group string) (sarama.ConsumerGroup, error) {
	defaultCfg := sarama.NewConfig()
	defaultCfg.Consumer.Offsets.Initial = sarama.OffsetOldest
	defaultCfg.Consumer.Group.Rebalance.GroupStrategies = []sarama.BalanceStrategy{sarama.NewBalanceStrategyRoundRobin()}

	return sarama.NewConsumerGroup(cfg.Addrs, group, defaultCfg)
}

// Consume blocks, re-joining the group after every rebalance, until ctx is done.
func Consume(ctx context.Context, consumer sarama.ConsumerGroup, handler sarama.ConsumerGroupHandler, topics ...string) error {
	for {
		if err := consumer.Consume(ctx, topics, handler); err != nil {
			if errors.Is(err, sarama.ErrClosedConsumerGroup) {
				return nil
			}
			return errors.Wrap(err, "consumer.Consume")
		}
		if ctx.Err() != nil {
			return nil
		}
	}
}

type EventType string

const (
	EventLoanRequested EventType = "LOAN_REQUESTED"
	EventLoanDecided   EventType = "LOAN_DECIDED"
)

// LoanEvent is the wire format of the loan-events topic.
type LoanEvent struct {
	Type          EventType `json:"type"`
	Timestamp     time.Time `json:"timestamp"`
	LoanID        string    `json:"loanId"`
	ItemTitle     string    `json:"itemTitle"`
	BorrowerName  string    `json:"borrowerName,omitempty"`
	BorrowerEmail string    `json:"borrowerEmail,omitempty"`
	AdminEmails   []string  `json:"adminEmails,omitempty"`
	Decision      string    `json:"decision,omitempty"`
}
