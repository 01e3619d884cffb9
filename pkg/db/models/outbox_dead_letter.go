package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tinytales/storefront-backend/pkg/enums"
)

// OutboxDeadLetter is a copy of an outbox row the publisher stopped retrying. A
// customer whose confirmation email never went out is traced through these rows.
type OutboxDeadLetter struct {
	ID            uuid.UUID                 `gorm:"column:id;type:uuid;primaryKey"`
	EventID       uuid.UUID                 `gorm:"column:event_id;type:uuid;not null;uniqueIndex"`
	EventType     enums.OutboxEventType     `gorm:"column:event_type;type:event_type_enum;not null"`
	AggregateType enums.OutboxAggregateType `gorm:"column:aggregate_type;type:aggregate_type_enum;not null"`
	AggregateID   uuid.UUID                 `gorm:"column:aggregate_id;type:uuid;not null"`
	Payload       json.RawMessage           `gorm:"column:payload;type:jsonb;not null"`
	Reason        enums.DeadLetterReason    `gorm:"column:reason;type:dead_letter_reason_enum;not null"`
	LastError     *string                   `gorm:"column:last_error"`
	Attempts      int                       `gorm:"column:attempts;not null;default:0"`
	ParkedAt      time.Time                 `gorm:"column:parked_at;autoCreateTime"`
}

func (d *OutboxDeadLetter) BeforeCreate(*gorm.DB) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	return nil
}

func (OutboxDeadLetter) TableName() string { return "outbox_dead_letters" }
