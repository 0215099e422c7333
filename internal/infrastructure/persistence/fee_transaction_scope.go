package persistence

import (
	"context"

	appfee "github.com/academy/backend/internal/application/fee"
	"github.com/academy/backend/internal/domain/fee"
	"gorm.io/gorm"
)

// GormTransactionScope implements TransactionScope using GORM transactions.
// It provides atomic execution of multiple repository operations.
type GormTransactionScope struct {
	db *gorm.DB
}

// NewGormTransactionScope creates a new GormTransactionScope.
func NewGormTransactionScope(db *gorm.DB) *GormTransactionScope {
	return &GormTransactionScope{db: db}
}

// Execute runs the given function within a database transaction.
// If the function returns an error, the transaction is rolled back.
// If the function succeeds, the transaction is committed.
func (s *GormTransactionScope) Execute(ctx context.Context, fn func(repos appfee.TransactionalRepositories) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormTransactionalRepositories{tx: tx})
	})
}

// gormTransactionalRepositories provides access to all repositories within a transaction.
type gormTransactionalRepositories struct {
	tx *gorm.DB
}

// Accounts returns the fee account repository scoped to the current transaction.
func (r *gormTransactionalRepositories) Accounts() fee.FeeAccountRepository {
	return NewGormFeeAccountRepository(r.tx)
}

// Entries returns the ledger entry repository scoped to the current transaction.
func (r *gormTransactionalRepositories) Entries() fee.LedgerEntryRepository {
	return NewGormLedgerEntryRepository(r.tx)
}

// Ensure GormTransactionScope implements TransactionScope
var _ appfee.TransactionScope = (*GormTransactionScope)(nil)

// Ensure gormTransactionalRepositories implements TransactionalRepositories
var _ appfee.TransactionalRepositories = (*gormTransactionalRepositories)(nil)
