package model

import (
	"time"

	"github.com/google/uuid"
)

// Token is a provisioned asset. Rows are seeded by the migrate tool and
// never mutated by the engine.
type Token struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	Name      string    `gorm:"size:64;not null;uniqueIndex"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
}

func (Token) TableName() string { return "token" }
