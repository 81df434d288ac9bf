package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nostrledger/ledger-service/internal/config"
	"github.com/nostrledger/ledger-service/internal/ingest"
	"github.com/nostrledger/ledger-service/internal/logger"
	"github.com/nostrledger/ledger-service/internal/repo"
	"github.com/nostrledger/ledger-service/internal/service"

	"github.com/go-redis/redis/v8"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func main() {
	cfg, err := config.Load(os.Getenv("CONFIG_FILE"))
	if err != nil {
		panic(fmt.Errorf("load config: %w", err))
	}

	log, err := logger.NewLogger()
	if err != nil {
		panic(fmt.Errorf("init logger: %w", err))
	}
	defer log.Sync()

	gdb, err := gorm.Open(postgres.Open(cfg.Postgres.DSN), &gorm.Config{PrepareStmt: true})
	if err != nil {
		log.Fatalf("open postgres: %v", err)
	}

	var rdb *redis.Client
	if cfg.Redis.Addr != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := rdb.Ping(context.Background()).Err(); err != nil {
			log.Fatalf("redis ping: %v", err)
		}
	}

	repository := repo.NewRepository(gdb, rdb, nil, log)

	sub := ingest.NewSubscription(
		cfg.Kafka.Brokers,
		cfg.Kafka.RequestsTopic,
		cfg.Kafka.GroupID,
		ingest.Filters(cfg.Ledger.PublicKey),
		time.Duration(cfg.Engine.FreshnessWindowSec)*time.Second,
		log,
	)
	defer sub.Close()

	engine := service.NewEngine(repository, log, service.Options{
		LedgerPubKey:      cfg.Ledger.PublicKey,
		MinterPubKey:      cfg.Ledger.MinterPublicKey,
		MaxRetries:        cfg.Engine.MaxRetries,
		RepublishInterval: time.Duration(cfg.Engine.RepublishIntervalMs) * time.Millisecond,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Infof("ledger-engine consuming %s as %s", cfg.Kafka.RequestsTopic, cfg.Ledger.PublicKey)
	if err := engine.Run(ctx, sub, cfg.Engine.Workers); err != nil {
		log.Fatalf("engine: %v", err)
	}
	log.Info("ledger-engine drained, bye")
}
