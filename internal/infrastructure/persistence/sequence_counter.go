package persistence

import (
	"context"
	"fmt"
	"time"

	"github.com/academy/backend/internal/domain/fee"
	"github.com/academy/backend/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormSequenceCounter implements SequenceCounter on the sequence_counters
// table. Each call is one INSERT ... ON CONFLICT DO UPDATE ... RETURNING
// statement, so concurrent callers never read the same value.
type GormSequenceCounter struct {
	db  *gorm.DB
	now func() time.Time
}

// NewGormSequenceCounter creates a new GormSequenceCounter
func NewGormSequenceCounter(db *gorm.DB) *GormSequenceCounter {
	return &GormSequenceCounter{db: db, now: time.Now}
}

// Next increments the (tenant, scope, period) counter and returns the new
// value. The first call for a bucket returns 1.
func (c *GormSequenceCounter) Next(ctx context.Context, tenantID uuid.UUID, scope, periodKey string) (int64, error) {
	row := models.SequenceCounterModel{
		TenantID:  tenantID,
		Scope:     scope,
		PeriodKey: periodKey,
		Value:     1,
		UpdatedAt: c.now(),
	}

	updates := clause.Assignments(map[string]any{"value": gorm.Expr("sequence_counters.value + 1")})
	updates = append(updates, clause.AssignmentColumns([]string{"updated_at"})...)

	err := c.db.WithContext(ctx).
		Clauses(
			clause.OnConflict{
				Columns:   []clause.Column{{Name: "tenant_id"}, {Name: "scope"}, {Name: "period_key"}},
				DoUpdates: updates,
			},
			clause.Returning{Columns: []clause.Column{{Name: "value"}}},
		).
		Create(&row).Error
	if err != nil {
		return 0, fmt.Errorf("failed to increment %s counter: %w", scope, err)
	}
	return row.Value, nil
}

// Ensure GormSequenceCounter implements SequenceCounter
var _ fee.SequenceCounter = (*GormSequenceCounter)(nil)
