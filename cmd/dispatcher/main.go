package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nostrledger/ledger-service/internal/config"
	"github.com/nostrledger/ledger-service/internal/logger"
	"github.com/nostrledger/ledger-service/internal/metrics"
	"github.com/nostrledger/ledger-service/internal/repo"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/segmentio/kafka-go"
)

// The dispatcher drains the event outbox into the relay bridge topic,
// where outgoing events get signed and transmitted to the configured
// relays.
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

	kw := &kafka.Writer{
		Addr:     kafka.TCP(cfg.Kafka.Brokers...),
		Topic:    cfg.Kafka.EventsTopic,
		Balancer: &kafka.LeastBytes{},
	}
	defer kw.Close()

	rep := repo.NewRepository(gdb, nil, kw, log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()

	log.Infof("ledger-dispatcher publishing to %s for relays %v", cfg.Kafka.EventsTopic, cfg.Ledger.Relays)
	for {
		select {
		case <-ctx.Done():
			log.Info("ledger-dispatcher stopped")
			return
		case <-ticker.C:
		}
		events, err := rep.PollOutbox(ctx, 100)
		if err != nil {
			log.Errorf("poll outbox: %v", err)
			continue
		}
		for _, evt := range events {
			if err := rep.PublishEvent(ctx, evt); err != nil {
				log.Errorf("publish id=%d: %v", evt.ID, err)
				continue
			}
			if err := rep.MarkOutboxProcessed(ctx, evt.ID); err != nil {
				log.Errorf("mark processed id=%d: %v", evt.ID, err)
				continue
			}
			metrics.OutboxPublished.Inc()
			log.Debugf("event %d sent", evt.ID)
		}
	}
}
