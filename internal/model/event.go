package model

import "time"

// Event is the durable footprint of a handled request. A stored row means
// the request id has been observed and processed to finality; the unique
// primary key is what makes redeliveries idempotent.
type Event struct {
	ID        string    `gorm:"primaryKey;size:64"`
	Signature string    `gorm:"size:128;not null"`
	Signer    string    `gorm:"size:64;not null"`
	Author    string    `gorm:"size:64;not null"`
	Kind      int       `gorm:"not null"`
	Payload   string    `gorm:"type:jsonb;not null;default:'{}'"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
}

func (Event) TableName() string { return "event" }
