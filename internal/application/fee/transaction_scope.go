package fee

import (
	"context"

	"github.com/academy/backend/internal/domain/fee"
)

// TransactionScope runs ledger writes atomically. The entry insert and the
// account recompute that follows it commit or roll back together.
type TransactionScope interface {
	// Execute runs fn inside one database transaction. An error from fn
	// rolls the transaction back.
	Execute(ctx context.Context, fn func(repos TransactionalRepositories) error) error
}

// TransactionalRepositories gives access to the fee repositories bound to
// the current transaction.
type TransactionalRepositories interface {
	// Accounts returns the fee account repository scoped to the transaction
	Accounts() fee.FeeAccountRepository
	// Entries returns the ledger entry repository scoped to the transaction
	Entries() fee.LedgerEntryRepository
}

// NoOpTransactionScope hands out plain repositories without a transaction.
// It is meant for tests and for stores without transaction support.
type NoOpTransactionScope struct {
	accounts fee.FeeAccountRepository
	entries  fee.LedgerEntryRepository
}

// NewNoOpTransactionScope creates a NoOpTransactionScope with the given repositories.
func NewNoOpTransactionScope(accounts fee.FeeAccountRepository, entries fee.LedgerEntryRepository) *NoOpTransactionScope {
	return &NoOpTransactionScope{accounts: accounts, entries: entries}
}

// Execute runs fn directly.
func (s *NoOpTransactionScope) Execute(_ context.Context, fn func(repos TransactionalRepositories) error) error {
	return fn(s)
}

// Accounts returns the fee account repository.
func (s *NoOpTransactionScope) Accounts() fee.FeeAccountRepository {
	return s.accounts
}

// Entries returns the ledger entry repository.
func (s *NoOpTransactionScope) Entries() fee.LedgerEntryRepository {
	return s.entries
}

var _ TransactionScope = (*NoOpTransactionScope)(nil)
var _ TransactionalRepositories = (*NoOpTransactionScope)(nil)
