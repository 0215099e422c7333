package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/academy/backend/internal/domain/fee"
	"github.com/academy/backend/internal/domain/shared"
	"github.com/academy/backend/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormFeeAccountRepository implements FeeAccountRepository using GORM
type GormFeeAccountRepository struct {
	db *gorm.DB
}

// NewGormFeeAccountRepository creates a new GormFeeAccountRepository
func NewGormFeeAccountRepository(db *gorm.DB) *GormFeeAccountRepository {
	return &GormFeeAccountRepository{db: db}
}

// WithTx returns a new repository instance with the given transaction
func (r *GormFeeAccountRepository) WithTx(tx *gorm.DB) *GormFeeAccountRepository {
	return &GormFeeAccountRepository{db: tx}
}

// FindByIDForTenant finds a fee account by ID within a tenant
func (r *GormFeeAccountRepository) FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*fee.FeeAccount, error) {
	return r.first(r.db.WithContext(ctx).Where("tenant_id = ? AND id = ?", tenantID, id))
}

// FindByIDForUpdate finds a fee account and locks its row until the
// surrounding transaction ends. Dialects without row locks (sqlite) ignore
// the locking clause.
func (r *GormFeeAccountRepository) FindByIDForUpdate(ctx context.Context, tenantID, id uuid.UUID) (*fee.FeeAccount, error) {
	return r.first(r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("tenant_id = ? AND id = ?", tenantID, id))
}

// FindByEnrollment finds the account of a student in a course
func (r *GormFeeAccountRepository) FindByEnrollment(ctx context.Context, tenantID, studentID, courseID uuid.UUID) (*fee.FeeAccount, error) {
	return r.first(r.db.WithContext(ctx).
		Where("tenant_id = ? AND student_id = ? AND course_id = ?", tenantID, studentID, courseID))
}

func (r *GormFeeAccountRepository) first(query *gorm.DB) (*fee.FeeAccount, error) {
	var model models.FeeAccountModel
	if err := query.First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// Save inserts a new account or updates an existing one with optimistic
// locking on version.
func (r *GormFeeAccountRepository) Save(ctx context.Context, account *fee.FeeAccount) error {
	db := r.db.WithContext(ctx)

	var count int64
	if err := db.Model(&models.FeeAccountModel{}).
		Where("tenant_id = ? AND id = ?", account.TenantID, account.ID).
		Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return db.Create(models.FeeAccountModelFromDomain(account)).Error
	}

	currentVersion := account.Version
	model := models.FeeAccountModelFromDomain(account)
	model.Version = currentVersion + 1

	result := db.Model(model).
		Where("tenant_id = ? AND version = ?", account.TenantID, currentVersion).
		Select("*").
		Omit("id", "tenant_id", "created_at").
		Updates(model)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrConcurrencyConflict
	}
	account.Version = model.Version
	return nil
}

// FindDueForReminder lists active accounts of every tenant whose reminder
// date has been reached, oldest first.
func (r *GormFeeAccountRepository) FindDueForReminder(ctx context.Context, now time.Time, limit int) ([]fee.FeeAccount, error) {
	var accountModels []models.FeeAccountModel
	if err := r.db.WithContext(ctx).
		Where("reminder_enabled = ? AND lifecycle = ?", true, fee.LifecycleActive).
		Where("next_reminder_date IS NOT NULL AND next_reminder_date <= ?", now).
		Order("next_reminder_date ASC").
		Limit(limit).
		Find(&accountModels).Error; err != nil {
		return nil, err
	}

	accounts := make([]fee.FeeAccount, len(accountModels))
	for i := range accountModels {
		accounts[i] = *accountModels[i].ToDomain()
	}
	return accounts, nil
}

// Ensure GormFeeAccountRepository implements FeeAccountRepository
var _ fee.FeeAccountRepository = (*GormFeeAccountRepository)(nil)
