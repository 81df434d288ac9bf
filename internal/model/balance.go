package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Balance is the current holding of one token by one account. The amount
// is denormalized from the head snapshot so sufficiency checks stay a
// single indexed query; snapshot_id always points at the chain head.
type Balance struct {
	ID         uuid.UUID       `gorm:"type:uuid;primaryKey"`
	AccountID  string          `gorm:"size:64;not null;uniqueIndex:uk_balance_account_token"`
	TokenID    uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:uk_balance_account_token"`
	Amount     decimal.Decimal `gorm:"type:numeric(78,0);not null"`
	SnapshotID uuid.UUID       `gorm:"type:uuid;not null"`
	EventID    string          `gorm:"size:64;not null"`
	UpdatedAt  time.Time       `gorm:"autoUpdateTime"`
}

func (Balance) TableName() string { return "balance" }

// BalanceSnapshot is the append-only history of one balance. Each row
// links to its predecessor (nil for the first credit) and to the
// transaction and event that moved the balance. Rows are never updated
// or deleted.
type BalanceSnapshot struct {
	ID             uuid.UUID       `gorm:"type:uuid;primaryKey"`
	PrevSnapshotID *uuid.UUID      `gorm:"type:uuid"`
	Amount         decimal.Decimal `gorm:"type:numeric(78,0);not null"`
	Delta          decimal.Decimal `gorm:"type:numeric(78,0);not null"`
	TransactionID  uuid.UUID       `gorm:"type:uuid;not null;index"`
	EventID        string          `gorm:"size:64;not null"`
	TokenID        uuid.UUID       `gorm:"type:uuid;not null;index:idx_snapshot_account_token"`
	AccountID      string          `gorm:"size:64;not null;index:idx_snapshot_account_token"`
	CreatedAt      time.Time       `gorm:"autoCreateTime"`
}

func (BalanceSnapshot) TableName() string { return "balance_snapshot" }
