package model

import (
	"time"

	"github.com/google/uuid"
)

// Variant enumerates the three transaction shapes the ledger accepts.
// The string value doubles as the TransactionType description.
type Variant string

const (
	VariantInternal Variant = "internal-transaction"
	VariantInbound  Variant = "inbound-transaction"
	VariantOutbound Variant = "outbound-transaction"
)

// Variants lists all supported variants in seed order.
var Variants = []Variant{VariantInternal, VariantInbound, VariantOutbound}

// StartTag is the request type tag clients put on incoming events.
func (v Variant) StartTag() string { return string(v) + "-start" }

// OkTag is the type tag on a successful outcome event.
func (v Variant) OkTag() string { return string(v) + "-ok" }

// ErrorTag is the type tag on a rejection outcome event.
func (v Variant) ErrorTag() string { return string(v) + "-error" }

// VariantFromStartTag resolves a request type tag back to its variant.
func VariantFromStartTag(tag string) (Variant, bool) {
	for _, v := range Variants {
		if v.StartTag() == tag {
			return v, true
		}
	}
	return "", false
}

// TransactionType is a seeded row per variant; transactions reference it.
type TransactionType struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey"`
	Description string    `gorm:"size:64;not null;uniqueIndex"`
	CreatedAt   time.Time `gorm:"autoCreateTime"`
}

func (TransactionType) TableName() string { return "transaction_type" }

// Transaction records one successfully committed request. The unique
// event id enforces the one-transaction-per-request invariant.
type Transaction struct {
	ID                uuid.UUID `gorm:"type:uuid;primaryKey"`
	TransactionTypeID uuid.UUID `gorm:"type:uuid;not null"`
	EventID           string    `gorm:"size:64;not null;uniqueIndex"`
	Payload           string    `gorm:"type:jsonb;not null;default:'{}'"`
	CreatedAt         time.Time `gorm:"autoCreateTime"`
}

func (Transaction) TableName() string { return "transaction" }
