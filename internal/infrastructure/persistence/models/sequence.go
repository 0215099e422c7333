package models

import (
	"time"

	"github.com/google/uuid"
)

// SequenceCounterModel holds the last value handed out for one
// (tenant, scope, period) bucket.
type SequenceCounterModel struct {
	TenantID  uuid.UUID `gorm:"type:uuid;primaryKey"`
	Scope     string    `gorm:"type:varchar(30);primaryKey"`
	PeriodKey string    `gorm:"type:varchar(10);primaryKey"`
	Value     int64     `gorm:"not null;default:0"`
	UpdatedAt time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (SequenceCounterModel) TableName() string {
	return "sequence_counters"
}
