package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/LogitTrans/cargolink/config"
	"github.com/LogitTrans/cargolink/internal/api/marketapi"
	"github.com/LogitTrans/cargolink/internal/broker/kafka"
	"github.com/LogitTrans/cargolink/internal/cache/rediscache"
	"github.com/LogitTrans/cargolink/internal/services/cargos"
	"github.com/LogitTrans/cargolink/internal/services/ingest"
	"github.com/LogitTrans/cargolink/internal/services/locations"
	"github.com/LogitTrans/cargolink/internal/services/requests"
	"github.com/LogitTrans/cargolink/internal/services/users"
	"github.com/LogitTrans/cargolink/internal/storage/pgmarket"
)

type cargoAPIApp struct {
	ctx    context.Context
	cancel context.CancelFunc
	opts   cargoAPIOpts
	server *marketapi.Server

	closeDB       func()
	closeProducer func() error
}

func mustBootstrapCargoAPI() *cargoAPIApp {
	cfgPath := os.Getenv("configPath")
	if cfgPath == "" {
		panic("configPath env var is required")
	}
	swaggerPath := os.Getenv("swaggerPath")
	if swaggerPath == "" {
		panic("swaggerPath env var is required")
	}

	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		panic(fmt.Sprintf("ошибка парсинга конфига, %v", err))
	}

	httpAddr := cfg.CargoLink.HTTPAddr
	if httpAddr == "" {
		httpAddr = ":8080"
	}
	if cfg.CargoLink.JWTSecret == "" {
		panic("cargolink.jwt_secret is required")
	}

	choicesTTL := time.Duration(cfg.CargoLink.LocationChoicesTTLSeconds) * time.Second
	if choicesTTL <= 0 {
		choicesTTL = 10 * time.Minute
	}

	st := mustOpenPostgresWithRetry(connString(cfg), 60*time.Second)

	redisAddr := fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port)
	rc := rediscache.New(redisAddr)
	rl := rediscache.NewRateLimiter(redisAddr)

	brokers := []string{fmt.Sprintf("%s:%d", cfg.Kafka.Host, cfg.Kafka.Port)}
	producer := kafka.NewProducer(brokers)

	locationsSvc := locations.New(st, rc, choicesTTL)
	usersSvc := users.New(st)
	cargosSvc := cargos.New(st, locationsSvc, producer)
	requestsSvc := requests.New(st, locationsSvc)

	creds := ingest.Credentials{}
	for _, c := range cfg.CargoLink.IngestCredentials {
		creds[c.APIKey] = c.PrivateKey
	}
	ingestSvc := ingest.New(st, rl, creds, int64(cfg.CargoLink.IngestRateLimitPerMinute))

	server := marketapi.New(usersSvc, locationsSvc, cargosSvc, requestsSvc, ingestSvc,
		[]byte(cfg.CargoLink.JWTSecret), slog.Default())

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	return &cargoAPIApp{
		ctx:    ctx,
		cancel: cancel,
		opts: cargoAPIOpts{
			httpAddr:    httpAddr,
			swaggerPath: swaggerPath,
		},
		server:        server,
		closeDB:       st.Close,
		closeProducer: producer.Close,
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

func mustOpenPostgresWithRetry(connString string, wait time.Duration) *pgmarket.Storage {
	deadline := time.Now().Add(wait)
	var lastErr error
	for time.Now().Before(deadline) {
		st, err := pgmarket.New(connString)
		if err == nil {
			return st
		}
		lastErr = err
		time.Sleep(1 * time.Second)
	}
	panic(fmt.Sprintf("postgres is not ready after %s: %v", wait, lastErr))
}

func (a *cargoAPIApp) Close() {
	if a.cancel != nil {
		a.cancel()
	}
	if a.closeProducer != nil {
		_ = a.closeProducer()
	}
	if a.closeDB != nil {
		a.closeDB()
	}
}

func (a *cargoAPIApp) Run() error {
	return runCargoAPI(a.ctx, a.opts, a.server)
}
