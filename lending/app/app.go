package app

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/Astemirdum/librakeeper/lending/config"
	"github.com/Astemirdum/librakeeper/lending/internal/handler"
	"github.com/Astemirdum/librakeeper/lending/internal/notify"
	"github.com/Astemirdum/librakeeper/lending/internal/repository"
	"github.com/Astemirdum/librakeeper/lending/internal/server"
	"github.com/Astemirdum/librakeeper/lending/internal/service"
	"github.com/Astemirdum/librakeeper/lending/migrations"
	"github.com/Astemirdum/librakeeper/pkg/circuit_breaker"
	"github.com/Astemirdum/librakeeper/pkg/email"
	"github.com/Astemirdum/librakeeper/pkg/kafka"
	"github.com/Astemirdum/librakeeper/pkg/logger"
	"github.com/Astemirdum/librakeeper/pkg/postgres"
	"github.com/Astemirdum/librakeeper/pkg/redis"
)

const shutdownTimeout = 10 * time.Second

// Run serves the lending API until SIGINT or SIGTERM.
func Run(cfg config.Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	log := logger.NewLogger(cfg.Log, "lending")
	ctx := context.Background()

	var closers []func()
	defer func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}()

	repo, closeRepo, err := newRepository(ctx, cfg, log)
	if err != nil {
		return err
	}
	closers = append(closers, closeRepo)

	notifier, closeNotifier, err := newNotifier(ctx, cfg, log)
	if err != nil {
		return err
	}
	closers = append(closers, closeNotifier)

	svc := service.NewService(repo, notifier, log,
		service.WithAdminEmails(cfg.Notify.AdminEmails),
		service.WithNotifyTimeout(cfg.Notify.Timeout),
	)
	h := handler.New(svc, cfg.Auth, log)
	srv := server.NewServer(cfg.Server, h.NewRouter())
	log.Info("http server start ON: ",
		zap.String("addr",
			net.JoinHostPort(cfg.Server.Host, cfg.Server.Port)))
	go func() {
		if err := srv.Run(); err != nil {
			log.Error("server run", zap.Error(err))
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)
	termSig := <-sig

	log.Debug("Graceful shutdown", zap.Any("signal", termSig))

	closeCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err = srv.Stop(closeCtx); err != nil {
		log.Error("srv.Stop", zap.Error(err))
	}
	// let notifications of the last requests go out before closing their sinks
	svc.Wait()
	log.Info("Graceful shutdown finished")
	return nil
}

// RunNotifier consumes loan events from Kafka and mails them until SIGINT or SIGTERM.
func RunNotifier(cfg config.Config) error {
	if !cfg.Kafka.Enabled() {
		return fmt.Errorf("notifier needs KAFKA_ADDRS")
	}
	log := logger.NewLogger(cfg.Log, "notifier")
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	mailer, closeMailer, err := newMailer(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeMailer()

	consumer, err := kafka.NewConsumer(cfg.Kafka, kafka.NotifierConsumerGroup)
	if err != nil {
		return fmt.Errorf("kafka.NewConsumer %v", err)
	}
	defer func() {
		if err := consumer.Close(); err != nil {
			log.Error("consumer.Close", zap.Error(err))
		}
	}()

	log.Info("notifier start", zap.Strings("brokers", cfg.Kafka.Addrs), zap.String("topic", kafka.LoanEventsTopic))
	if err := kafka.Consume(ctx, consumer, handler.NewConsumer(mailer, log), kafka.LoanEventsTopic); err != nil {
		return err
	}
	log.Info("Graceful shutdown finished")
	return nil
}

func newRepository(ctx context.Context, cfg config.Config, log *zap.Logger) (repository.Repository, func(), error) {
	if cfg.Storage == config.StorageMemory {
		log.Warn("in-memory storage, data is lost on restart")
		return repository.NewMemoryRepository(), func() {}, nil
	}
	db, err := postgres.NewPostgresDB(ctx, &cfg.Database, migrations.MigrationFiles)
	if err != nil {
		return nil, nil, fmt.Errorf("db init %v", err)
	}
	repo, err := repository.NewRepository(db, log)
	if err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("repo %v", err)
	}
	return repo, db.Close, nil
}

func newNotifier(ctx context.Context, cfg config.Config, log *zap.Logger) (service.Notifier, func(), error) {
	if cfg.Notify.Mode == config.NotifyKafka {
		producer, err := kafka.NewProducer(cfg.Kafka)
		if err != nil {
			return nil, nil, fmt.Errorf("kafka.NewProducer %v", err)
		}
		closeProducer := func() {
			if err := producer.Close(); err != nil {
				log.Error("producer.Close", zap.Error(err))
			}
		}
		return notify.NewPublisher(producer, kafka.LoanEventsTopic), closeProducer, nil
	}
	return newMailer(ctx, cfg, log)
}

func newMailer(ctx context.Context, cfg config.Config, log *zap.Logger) (*notify.Mailer, func(), error) {
	sender, err := email.NewSender(cfg.Email, log)
	if err != nil {
		return nil, nil, fmt.Errorf("email.NewSender %v", err)
	}
	cb := circuit_breaker.New(cfg.CB)
	if !cfg.Redis.Enabled() {
		return notify.NewMailer(sender, cb, nil, cfg.Notify.AppURL, log), func() {}, nil
	}

	client, err := redis.Connect(ctx, cfg.Redis)
	if err != nil {
		return nil, nil, fmt.Errorf("redis.Connect %v", err)
	}
	closeRedis := func() {
		if err := client.Close(); err != nil {
			log.Error("redis.Close", zap.Error(err))
		}
	}
	dedupe := notify.NewRedisDeduper(client, cfg.Notify.DedupeTTL)
	return notify.NewMailer(sender, cb, dedupe, cfg.Notify.AppURL, log), closeRedis, nil
}
