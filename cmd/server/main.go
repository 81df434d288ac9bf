package main

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"github.com/nostrledger/ledger-service/internal/config"
	"github.com/nostrledger/ledger-service/internal/logger"
	"github.com/nostrledger/ledger-service/internal/repo"
	httptransport "github.com/nostrledger/ledger-service/internal/transport/http"

	"github.com/go-redis/redis/v8"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// The server exposes the read-only introspection API over the ledger
// store: balances, snapshot history, tokens, health, metrics.
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
	router := httptransport.NewRouter(repository, cfg.RateLimit, log)

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	log.Infof("ledger-server listening on %s", addr)
	if err := http.ListenAndServe(addr, router); err != nil {
		log.Fatalf("listen: %v", err)
	}
}
