package main

import (
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/nostrledger/ledger-service/internal/config"
	"github.com/nostrledger/ledger-service/internal/logger"
	"github.com/nostrledger/ledger-service/internal/model"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// The migrate tool owns schema creation and seeding. The engine assumes
// the schema exists and the transaction types are present.
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

	gdb, err := gorm.Open(postgres.Open(cfg.Postgres.DSN), &gorm.Config{})
	if err != nil {
		log.Fatalf("open postgres: %v", err)
	}

	if err := gdb.AutoMigrate(
		&model.Event{},
		&model.Token{},
		&model.TransactionType{},
		&model.Transaction{},
		&model.Balance{},
		&model.BalanceSnapshot{},
		&model.OutboxEvent{},
	); err != nil {
		log.Fatalf("auto-migrate: %v", err)
	}

	for _, v := range model.Variants {
		row := model.TransactionType{ID: uuid.New(), Description: string(v)}
		err := gdb.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "description"}},
			DoNothing: true,
		}).Create(&row).Error
		if err != nil {
			log.Fatalf("seed transaction type %s: %v", v, err)
		}
	}

	for _, name := range cfg.Ledger.Tokens {
		row := model.Token{ID: uuid.New(), Name: name}
		err := gdb.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "name"}},
			DoNothing: true,
		}).Create(&row).Error
		if err != nil {
			log.Fatalf("seed token %s: %v", name, err)
		}
	}

	log.Infof("schema migrated, %d transaction types and %d tokens seeded",
		len(model.Variants), len(cfg.Ledger.Tokens))
}
