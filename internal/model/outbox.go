package model

import "time"

// OutboxEvent holds one fully-formed outgoing substrate event awaiting
// pickup by the dispatcher. Payload is the serialized unsigned event; the
// relay bridge signs and transmits it.
type OutboxEvent struct {
	ID          uint64    `gorm:"primaryKey"`
	Kind        int       `gorm:"not null"`
	Payload     string    `gorm:"type:jsonb;not null"`
	CreatedAt   time.Time `gorm:"autoCreateTime"`
	Processed   bool      `gorm:"not null;default:false"`
	ProcessedAt *time.Time
}

func (OutboxEvent) TableName() string { return "event_outbox" }
