package fee

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/academy/backend/internal/domain/fee"
	"github.com/academy/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
)

// memoryAccounts is an in-memory FeeAccountRepository with the same
// optimistic version check as the gorm repository.
type memoryAccounts struct {
	mu    sync.Mutex
	items map[uuid.UUID]fee.FeeAccount
	saves int
}

func newMemoryAccounts() *memoryAccounts {
	return &memoryAccounts{items: make(map[uuid.UUID]fee.FeeAccount)}
}

func cloneAccount(a fee.FeeAccount) fee.FeeAccount {
	c := a
	c.EMISchedule = fee.CloneSchedule(a.EMISchedule)
	c.ClearDomainEvents()
	return c
}

func (r *memoryAccounts) FindByIDForTenant(_ context.Context, tenantID, id uuid.UUID) (*fee.FeeAccount, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.items[id]
	if !ok || a.TenantID != tenantID {
		return nil, nil
	}
	c := cloneAccount(a)
	return &c, nil
}

func (r *memoryAccounts) FindByIDForUpdate(ctx context.Context, tenantID, id uuid.UUID) (*fee.FeeAccount, error) {
	return r.FindByIDForTenant(ctx, tenantID, id)
}

func (r *memoryAccounts) FindByEnrollment(_ context.Context, tenantID, studentID, courseID uuid.UUID) (*fee.FeeAccount, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.items {
		if a.TenantID == tenantID && a.StudentID == studentID && a.CourseID == courseID {
			c := cloneAccount(a)
			return &c, nil
		}
	}
	return nil, nil
}

func (r *memoryAccounts) Save(_ context.Context, a *fee.FeeAccount) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.saves++
	stored, ok := r.items[a.ID]
	if ok {
		if stored.Version != a.Version {
			return shared.ErrConcurrencyConflict
		}
		a.Version++
	}
	r.items[a.ID] = cloneAccount(*a)
	return nil
}

func (r *memoryAccounts) FindDueForReminder(_ context.Context, now time.Time, limit int) ([]fee.FeeAccount, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []fee.FeeAccount
	for _, a := range r.items {
		if a.IsReminderDue(now) {
			out = append(out, cloneAccount(a))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].NextReminderDate.Before(*out[j].NextReminderDate) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *memoryAccounts) setNextReminder(id uuid.UUID, at time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a := r.items[id]
	a.NextReminderDate = &at
	r.items[id] = a
}

func (r *memoryAccounts) saveCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.saves
}

// corrupt overwrites the stored cache fields the way a buggy writer would.
func (r *memoryAccounts) corrupt(id uuid.UUID, received decimal.Decimal, status fee.PaymentStatus) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a := r.items[id]
	a.TotalReceived = received
	a.Status = status
	r.items[id] = a
}

type memoryEntries struct {
	mu    sync.Mutex
	items map[uuid.UUID]fee.LedgerEntry
}

func newMemoryEntries() *memoryEntries {
	return &memoryEntries{items: make(map[uuid.UUID]fee.LedgerEntry)}
}

func cloneEntry(e fee.LedgerEntry) fee.LedgerEntry {
	c := e
	c.ClearDomainEvents()
	return c
}

func (r *memoryEntries) FindByIDForTenant(_ context.Context, tenantID, id uuid.UUID) (*fee.LedgerEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.items[id]
	if !ok || e.TenantID != tenantID {
		return nil, nil
	}
	c := cloneEntry(e)
	return &c, nil
}

func (r *memoryEntries) matching(tenantID, accountID uuid.UUID, filter fee.LedgerFilter) []fee.LedgerEntry {
	var out []fee.LedgerEntry
	for _, e := range r.items {
		if e.TenantID != tenantID || e.AccountID != accountID {
			continue
		}
		if e.IsDeleted && !filter.IncludeDeleted {
			continue
		}
		if len(filter.Statuses) > 0 && !containsStatus(filter.Statuses, e.Status) {
			continue
		}
		out = append(out, cloneEntry(e))
	}
	desc := filter.OrderDir != "asc"
	sort.Slice(out, func(i, j int) bool {
		if desc {
			return out[i].PaidAt.After(out[j].PaidAt)
		}
		return out[i].PaidAt.Before(out[j].PaidAt)
	})
	return out
}

func containsStatus(list []fee.EntryStatus, s fee.EntryStatus) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func (r *memoryEntries) FindByAccount(_ context.Context, tenantID, accountID uuid.UUID, filter fee.LedgerFilter) ([]fee.LedgerEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.matching(tenantID, accountID, filter)
	start := min(filter.Offset(), len(out))
	end := min(start+filter.PageSize, len(out))
	return out[start:end], nil
}

func (r *memoryEntries) CountByAccount(_ context.Context, tenantID, accountID uuid.UUID, filter fee.LedgerFilter) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return int64(len(r.matching(tenantID, accountID, filter))), nil
}

func (r *memoryEntries) FindAllByAccount(_ context.Context, tenantID, accountID uuid.UUID) ([]fee.LedgerEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.matching(tenantID, accountID, fee.LedgerFilter{IncludeDeleted: true}), nil
}

func (r *memoryEntries) Create(_ context.Context, e *fee.LedgerEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[e.ID]; ok {
		return fmt.Errorf("duplicate ledger entry %s", e.ID)
	}
	r.items[e.ID] = cloneEntry(*e)
	return nil
}

func (r *memoryEntries) Update(_ context.Context, e *fee.LedgerEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[e.ID]; !ok {
		return fee.ErrEntryNotFound
	}
	r.items[e.ID] = cloneEntry(*e)
	return nil
}

// serialScope runs one transaction at a time, standing in for the row lock
// a database scope takes on the fee account.
type serialScope struct {
	mu sync.Mutex
	*NoOpTransactionScope
}

func (s *serialScope) Execute(ctx context.Context, fn func(repos TransactionalRepositories) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.NoOpTransactionScope.Execute(ctx, fn)
}

type memoryCounter struct {
	mu     sync.Mutex
	values map[string]int64
}

func newMemoryCounter() *memoryCounter {
	return &memoryCounter{values: make(map[string]int64)}
}

func (c *memoryCounter) Next(_ context.Context, tenantID uuid.UUID, scope, periodKey string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	key := tenantID.String() + "|" + scope + "|" + periodKey
	c.values[key]++
	return c.values[key], nil
}

// MockSequenceCounter is a mock implementation of fee.SequenceCounter
type MockSequenceCounter struct {
	mock.Mock
}

func (m *MockSequenceCounter) Next(ctx context.Context, tenantID uuid.UUID, scope, periodKey string) (int64, error) {
	args := m.Called(ctx, tenantID, scope, periodKey)
	return args.Get(0).(int64), args.Error(1)
}

// MockInvoiceArchive is a mock implementation of InvoiceArchive
type MockInvoiceArchive struct {
	mock.Mock
}

func (m *MockInvoiceArchive) Archive(ctx context.Context, tenantID uuid.UUID, invoice fee.InvoiceBreakdown) (string, error) {
	args := m.Called(ctx, tenantID, invoice)
	return args.String(0), args.Error(1)
}

// MockEventPublisher records published events
type MockEventPublisher struct {
	mu     sync.Mutex
	events []shared.DomainEvent
}

func (m *MockEventPublisher) Publish(_ context.Context, events ...shared.DomainEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, events...)
	return nil
}

func (m *MockEventPublisher) Types() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.events))
	for i, e := range m.events {
		out[i] = e.EventType()
	}
	return out
}

type stubCourseFees map[uuid.UUID]decimal.Decimal

func (s stubCourseFees) CourseFee(_ context.Context, _, courseID uuid.UUID) (decimal.Decimal, bool, error) {
	v, ok := s[courseID]
	return v, ok, nil
}
