package persistence

import (
	"context"
	"errors"

	"github.com/academy/backend/internal/domain/fee"
	"github.com/academy/backend/internal/domain/shared"
	"github.com/academy/backend/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormLedgerEntryRepository implements LedgerEntryRepository using GORM
type GormLedgerEntryRepository struct {
	db *gorm.DB
}

// NewGormLedgerEntryRepository creates a new GormLedgerEntryRepository
func NewGormLedgerEntryRepository(db *gorm.DB) *GormLedgerEntryRepository {
	return &GormLedgerEntryRepository{db: db}
}

// WithTx returns a new repository instance with the given transaction
func (r *GormLedgerEntryRepository) WithTx(tx *gorm.DB) *GormLedgerEntryRepository {
	return &GormLedgerEntryRepository{db: tx}
}

// FindByIDForTenant finds a ledger entry by ID within a tenant
func (r *GormLedgerEntryRepository) FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*fee.LedgerEntry, error) {
	var model models.LedgerEntryModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByAccount lists one page of an account's ledger
func (r *GormLedgerEntryRepository) FindByAccount(ctx context.Context, tenantID, accountID uuid.UUID, filter fee.LedgerFilter) ([]fee.LedgerEntry, error) {
	var entryModels []models.LedgerEntryModel
	query := r.applyFilter(r.scoped(ctx, tenantID, accountID, filter), filter)
	if err := query.Find(&entryModels).Error; err != nil {
		return nil, err
	}
	return toLedgerEntries(entryModels), nil
}

// CountByAccount counts the entries FindByAccount pages through
func (r *GormLedgerEntryRepository) CountByAccount(ctx context.Context, tenantID, accountID uuid.UUID, filter fee.LedgerFilter) (int64, error) {
	var count int64
	if err := r.scoped(ctx, tenantID, accountID, filter).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// FindAllByAccount returns the whole ledger of an account, deleted entries included
func (r *GormLedgerEntryRepository) FindAllByAccount(ctx context.Context, tenantID, accountID uuid.UUID) ([]fee.LedgerEntry, error) {
	var entryModels []models.LedgerEntryModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND account_id = ?", tenantID, accountID).
		Order("paid_at ASC, created_at ASC").
		Find(&entryModels).Error; err != nil {
		return nil, err
	}
	return toLedgerEntries(entryModels), nil
}

// Create inserts a new ledger entry
func (r *GormLedgerEntryRepository) Create(ctx context.Context, entry *fee.LedgerEntry) error {
	return r.db.WithContext(ctx).Create(models.LedgerEntryModelFromDomain(entry)).Error
}

// Update writes an entry back with optimistic locking on version. Account,
// tenant and receipt number are never rewritten.
func (r *GormLedgerEntryRepository) Update(ctx context.Context, entry *fee.LedgerEntry) error {
	currentVersion := entry.Version
	model := models.LedgerEntryModelFromDomain(entry)
	model.Version = currentVersion + 1

	result := r.db.WithContext(ctx).
		Model(model).
		Where("tenant_id = ? AND version = ?", entry.TenantID, currentVersion).
		Select("*").
		Omit("id", "tenant_id", "account_id", "receipt_number", "created_at").
		Updates(model)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		var count int64
		r.db.WithContext(ctx).Model(&models.LedgerEntryModel{}).
			Where("tenant_id = ? AND id = ?", entry.TenantID, entry.ID).
			Count(&count)
		if count == 0 {
			return fee.ErrEntryNotFound
		}
		return shared.ErrConcurrencyConflict
	}
	entry.Version = model.Version
	return nil
}

func (r *GormLedgerEntryRepository) scoped(ctx context.Context, tenantID, accountID uuid.UUID, filter fee.LedgerFilter) *gorm.DB {
	query := r.db.WithContext(ctx).Model(&models.LedgerEntryModel{}).
		Where("tenant_id = ? AND account_id = ?", tenantID, accountID)
	if !filter.IncludeDeleted {
		query = query.Where("is_deleted = ?", false)
	}
	if len(filter.Statuses) > 0 {
		query = query.Where("status IN ?", filter.Statuses)
	}
	return query
}

// applyFilter applies sorting and pagination
func (r *GormLedgerEntryRepository) applyFilter(query *gorm.DB, filter fee.LedgerFilter) *gorm.DB {
	sortField := ValidateSortField(filter.OrderBy, LedgerEntrySortFields, "paid_at")
	sortOrder := ValidateSortOrder(filter.OrderDir)
	query = query.Order(sortField + " " + sortOrder).Order("id " + sortOrder)

	if filter.PageSize > 0 {
		query = query.Limit(filter.PageSize).Offset(filter.Offset())
	}
	return query
}

func toLedgerEntries(entryModels []models.LedgerEntryModel) []fee.LedgerEntry {
	entries := make([]fee.LedgerEntry, len(entryModels))
	for i := range entryModels {
		entries[i] = *entryModels[i].ToDomain()
	}
	return entries
}

// Ensure GormLedgerEntryRepository implements LedgerEntryRepository
var _ fee.LedgerEntryRepository = (*GormLedgerEntryRepository)(nil)
