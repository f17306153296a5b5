package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/LogitTrans/cargolink/config"
	"github.com/LogitTrans/cargolink/internal/broker/kafka"
	"github.com/LogitTrans/cargolink/internal/broker/messages"
	"github.com/LogitTrans/cargolink/internal/integrations/telegram"
	"github.com/LogitTrans/cargolink/internal/integrations/telegram/botapi"
	"github.com/LogitTrans/cargolink/internal/integrations/telegram/fake"
	"github.com/LogitTrans/cargolink/internal/services/notifier"
	"github.com/LogitTrans/cargolink/internal/services/sweeper"
	"github.com/LogitTrans/cargolink/internal/storage/pgmarket"
)

type workerStorage interface {
	sweeper.Repository
	notifier.Repository
}

type workerFactories struct {
	newStorage  func(cfg *config.Config) (st workerStorage, closeFn func(), err error)
	newProducer func(cfg *config.Config) sweeper.Producer
	newConsumer func(cfg *config.Config, topic string) *kafka.Consumer
	newTelegram func(cfg *config.Config) telegram.Client
}

func defaultWorkerFactories() workerFactories {
	return workerFactories{
		newStorage: func(cfg *config.Config) (workerStorage, func(), error) {
			st, err := pgmarket.New(connString(cfg))
			if err != nil {
				return nil, nil, err
			}
			return st, st.Close, nil
		},
		newProducer: func(cfg *config.Config) sweeper.Producer {
			brokers := []string{fmt.Sprintf("%s:%d", cfg.Kafka.Host, cfg.Kafka.Port)}
			return kafka.NewProducer(brokers)
		},
		newConsumer: func(cfg *config.Config, topic string) *kafka.Consumer {
			brokers := []string{fmt.Sprintf("%s:%d", cfg.Kafka.Host, cfg.Kafka.Port)}
			group := cfg.CargoLink.KafkaConsumerGroup
			if group == "" {
				group = "cargolink-worker"
			}
			return kafka.NewConsumer(brokers, topic, group)
		},
		newTelegram: func(cfg *config.Config) telegram.Client {
			// Без токена рассылка уходит в локальный fake — удобно для
			// демо и интеграционных стендов.
			if cfg.Telegram.BotToken != "" {
				return botapi.New(cfg.Telegram.BaseURL, cfg.Telegram.BotToken)
			}
			return fake.New()
		},
	}
}

func RunCargoWorker(ctx context.Context, cfg *config.Config, f workerFactories) error {
	cargoTopic := cfg.Kafka.CargoStatusChangedTopicName
	if cargoTopic == "" {
		cargoTopic = messages.TopicCargoStatusChanged
	}
	requestTopic := cfg.Kafka.RequestStatusChangedTopicName
	if requestTopic == "" {
		requestTopic = messages.TopicRequestStatusChanged
	}

	interval := time.Duration(cfg.CargoLink.SweeperIntervalSeconds) * time.Second
	if interval <= 0 {
		interval = time.Minute
	}
	batchSize := cfg.CargoLink.SweeperBatchSize
	if batchSize <= 0 {
		batchSize = 100
	}

	st, closeFn, err := f.newStorage(cfg)
	if err != nil {
		return err
	}
	if closeFn != nil {
		defer closeFn()
	}

	producer := f.newProducer(cfg)
	tg := f.newTelegram(cfg)

	sw := sweeper.New(st, producer).WithSettings(interval, batchSize)
	nt := notifier.New(st, tg)

	cargoConsumer := f.newConsumer(cfg, cargoTopic)
	defer func() { _ = cargoConsumer.Close() }()
	requestConsumer := f.newConsumer(cfg, requestTopic)
	defer func() { _ = requestConsumer.Close() }()

	sweepErr := make(chan error, 1)
	go func() {
		sweepErr <- sw.Run(ctx)
	}()

	cargoErr := make(chan error, 1)
	go func() {
		slog.Info("kafka consumer started", "topic", cargoTopic)
		cargoErr <- cargoConsumer.Consume(ctx, nt.HandleCargoEvent)
	}()

	requestErr := make(chan error, 1)
	go func() {
		slog.Info("kafka consumer started", "topic", requestTopic)
		requestErr <- requestConsumer.Consume(ctx, nt.HandleRequestEvent)
	}()

	httpErr := make(chan error, 1)
	go func() {
		httpErr <- runWorkerHTTPServer(ctx, workerHTTPOpts{
			httpAddr: cfg.CargoLink.WorkerHTTPAddr,
			sweeper:  sw,
			notifier: nt,
			cfg:      cfg,
		})
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-sweepErr:
		return err
	case err := <-cargoErr:
		return err
	case err := <-requestErr:
		return err
	case err := <-httpErr:
		return err
	}
}

func connString(cfg *config.Config) string {
	sslMode := cfg.Database.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		cfg.Database.Username, cfg.Database.Password, cfg.Database.Host, cfg.Database.Port, cfg.Database.DBName, sslMode)
}
