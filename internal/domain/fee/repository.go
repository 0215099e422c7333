package fee

import (
	"context"
	"time"

	"github.com/academy/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// FeeAccountRepository persists fee accounts. Lookups return (nil, nil)
// when nothing matches.
type FeeAccountRepository interface {
	// FindByIDForTenant finds an account by ID within a tenant
	FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*FeeAccount, error)
	// FindByIDForUpdate is FindByIDForTenant holding a row lock until the
	// surrounding transaction ends
	FindByIDForUpdate(ctx context.Context, tenantID, id uuid.UUID) (*FeeAccount, error)
	// FindByEnrollment finds the account of a student in a course
	FindByEnrollment(ctx context.Context, tenantID, studentID, courseID uuid.UUID) (*FeeAccount, error)
	// Save inserts a new account or updates an existing one when its stored
	// version still matches, bumping Version. A stale version yields
	// shared.ErrConcurrencyConflict.
	Save(ctx context.Context, account *FeeAccount) error
	// FindDueForReminder lists active accounts across tenants whose reminder is due
	FindDueForReminder(ctx context.Context, now time.Time, limit int) ([]FeeAccount, error)
}

// LedgerFilter narrows a ledger listing.
type LedgerFilter struct {
	shared.Filter
	IncludeDeleted bool
	Statuses       []EntryStatus
}

// LedgerEntryRepository persists ledger entries. Entries are never deleted.
type LedgerEntryRepository interface {
	// FindByIDForTenant finds an entry by ID within a tenant
	FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*LedgerEntry, error)
	// FindByAccount lists entries of an account with paging and sorting
	FindByAccount(ctx context.Context, tenantID, accountID uuid.UUID, filter LedgerFilter) ([]LedgerEntry, error)
	// CountByAccount counts entries matching the filter, ignoring paging
	CountByAccount(ctx context.Context, tenantID, accountID uuid.UUID, filter LedgerFilter) (int64, error)
	// FindAllByAccount returns every entry of an account, deleted ones included
	FindAllByAccount(ctx context.Context, tenantID, accountID uuid.UUID) ([]LedgerEntry, error)
	// Create inserts a new entry
	Create(ctx context.Context, entry *LedgerEntry) error
	// Update writes the mutable fields of an existing entry
	Update(ctx context.Context, entry *LedgerEntry) error
}

// SequenceCounter hands out per-tenant, per-period sequence values. Next
// must be a single atomic increment-and-return in the backing store.
type SequenceCounter interface {
	Next(ctx context.Context, tenantID uuid.UUID, scope, periodKey string) (int64, error)
}
