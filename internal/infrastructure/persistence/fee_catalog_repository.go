package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/academy/backend/internal/domain/fee"
	"github.com/academy/backend/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormFeeCatalog answers course and cohort fee lookups used when a fee
// account is opened without an explicit fee.
type GormFeeCatalog struct {
	db *gorm.DB
}

// NewGormFeeCatalog creates a new GormFeeCatalog
func NewGormFeeCatalog(db *gorm.DB) *GormFeeCatalog {
	return &GormFeeCatalog{db: db}
}

// CourseFee returns the catalog fee of a course
func (c *GormFeeCatalog) CourseFee(ctx context.Context, tenantID, courseID uuid.UUID) (decimal.Decimal, bool, error) {
	var model models.CourseFeeModel
	err := c.db.WithContext(ctx).
		Where("tenant_id = ? AND course_id = ?", tenantID, courseID).
		First(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return decimal.Zero, false, nil
	}
	if err != nil {
		return decimal.Zero, false, err
	}
	return model.Fee, true, nil
}

// CohortFee returns the fee a cohort charges instead of its course fee
func (c *GormFeeCatalog) CohortFee(ctx context.Context, tenantID, cohortID uuid.UUID) (decimal.Decimal, bool, error) {
	var model models.CohortFeeModel
	err := c.db.WithContext(ctx).
		Where("tenant_id = ? AND cohort_id = ?", tenantID, cohortID).
		First(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return decimal.Zero, false, nil
	}
	if err != nil {
		return decimal.Zero, false, err
	}
	return model.Fee, true, nil
}

// SetCourseFee creates or replaces the catalog fee of a course
func (c *GormFeeCatalog) SetCourseFee(ctx context.Context, tenantID, courseID uuid.UUID, name string, amount decimal.Decimal) error {
	if amount.IsNegative() {
		return fee.ErrNegativeFee
	}
	now := time.Now()
	model := models.CourseFeeModel{
		BaseModel: models.BaseModel{ID: uuid.New(), CreatedAt: now, UpdatedAt: now},
		TenantID:  tenantID,
		CourseID:  courseID,
		Name:      name,
		Fee:       amount,
	}
	return c.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "tenant_id"}, {Name: "course_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"name", "fee", "updated_at"}),
		}).
		Create(&model).Error
}

// SetCohortFee creates or replaces a cohort fee
func (c *GormFeeCatalog) SetCohortFee(ctx context.Context, tenantID, cohortID, courseID uuid.UUID, amount decimal.Decimal) error {
	if amount.IsNegative() {
		return fee.ErrNegativeFee
	}
	now := time.Now()
	model := models.CohortFeeModel{
		BaseModel: models.BaseModel{ID: uuid.New(), CreatedAt: now, UpdatedAt: now},
		TenantID:  tenantID,
		CohortID:  cohortID,
		CourseID:  courseID,
		Fee:       amount,
	}
	return c.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "tenant_id"}, {Name: "cohort_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"course_id", "fee", "updated_at"}),
		}).
		Create(&model).Error
}

var (
	_ fee.CourseFeeLookup = (*GormFeeCatalog)(nil)
	_ fee.CohortFeeLookup = (*GormFeeCatalog)(nil)
)
