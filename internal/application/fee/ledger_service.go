package fee

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/academy/backend/internal/domain/fee"
	"github.com/academy/backend/internal/domain/shared"
	"github.com/academy/backend/internal/infrastructure/logger"
	"github.com/academy/backend/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

var (
	ErrStudentMismatch = shared.NewDomainError("STUDENT_MISMATCH", "Payment student does not match the fee account")
	ErrAccountIDInUse  = shared.NewDomainError("ENROLLMENT_HAS_ACCOUNT", "The enrollment already has a fee account under another ID")
)

// LedgerService records payments and keeps fee accounts in step with their
// ledger. Every operation is tenant-scoped and returns a Result.
type LedgerService struct {
	scope     TransactionScope
	accounts  fee.FeeAccountRepository
	entries   fee.LedgerEntryRepository
	numbers   *NumberGenerator
	cohorts   fee.CohortFeeLookup
	courses   fee.CourseFeeLookup
	policy    fee.Policy
	publisher shared.EventPublisher
	archive   InvoiceArchive
	metrics   *telemetry.PaymentMetrics
	logger    *zap.Logger
	now       func() time.Time
	balances  singleflight.Group
}

// LedgerServiceOption configures a LedgerService
type LedgerServiceOption func(*LedgerService)

// WithPolicy overrides the reminder policy
func WithPolicy(p fee.Policy) LedgerServiceOption {
	return func(s *LedgerService) { s.policy = p }
}

// WithFeeLookups sets where course fees are resolved from for new accounts
func WithFeeLookups(cohorts fee.CohortFeeLookup, courses fee.CourseFeeLookup) LedgerServiceOption {
	return func(s *LedgerService) {
		s.cohorts = cohorts
		s.courses = courses
	}
}

// WithEventPublisher sets the domain event publisher
func WithEventPublisher(p shared.EventPublisher) LedgerServiceOption {
	return func(s *LedgerService) { s.publisher = p }
}

// WithInvoiceArchive stores a snapshot of every generated invoice
func WithInvoiceArchive(a InvoiceArchive) LedgerServiceOption {
	return func(s *LedgerService) { s.archive = a }
}

// WithMetrics enables payment metrics
func WithMetrics(m *telemetry.PaymentMetrics) LedgerServiceOption {
	return func(s *LedgerService) { s.metrics = m }
}

// WithLogger sets the fallback logger used when the context carries none
func WithLogger(l *zap.Logger) LedgerServiceOption {
	return func(s *LedgerService) { s.logger = l }
}

// WithClock replaces time.Now
func WithClock(now func() time.Time) LedgerServiceOption {
	return func(s *LedgerService) { s.now = now }
}

// NewLedgerService creates a new LedgerService
func NewLedgerService(
	scope TransactionScope,
	accounts fee.FeeAccountRepository,
	entries fee.LedgerEntryRepository,
	numbers *NumberGenerator,
	opts ...LedgerServiceOption,
) *LedgerService {
	s := &LedgerService{
		scope:    scope,
		accounts: accounts,
		entries:  entries,
		numbers:  numbers,
		policy:   fee.DefaultPolicy(),
		logger:   zap.NewNop(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// execute wraps one service call: span, tenant guard, panic recovery and
// error-to-Result conversion.
func execute[T any](
	ctx context.Context,
	s *LedgerService,
	method string,
	tenantID uuid.UUID,
	fn func(ctx context.Context, span trace.Span, log *zap.Logger) (T, []fee.ValidationIssue, error),
) (res Result[T]) {
	ctx, span := telemetry.StartServiceSpan(ctx, "ledger", method)
	defer span.End()
	log := logger.L(ctx, s.logger).With(zap.String("operation", method), zap.String("tenant_id", tenantID.String()))

	defer func() {
		if r := recover(); r != nil {
			telemetry.RecordError(span, fmt.Errorf("panic: %v", r))
			log.Error("ledger operation panicked", zap.Any("panic", r), zap.Stack("stack"))
			res = failure[T](shared.ErrInternal)
		}
	}()

	if tenantID == uuid.Nil {
		telemetry.RecordError(span, shared.ErrTenantRequired)
		return failure[T](shared.ErrTenantRequired)
	}
	telemetry.SetAttribute(span, telemetry.SpanAttrTenantID, tenantID.String())

	record, warnings, err := fn(ctx, span, log)
	if err != nil {
		telemetry.RecordError(span, err)
		res = failure[T](err)
		if res.Error.Code == CodeInternal {
			log.Error("ledger operation failed", zap.Error(err))
		} else {
			log.Warn("ledger operation rejected", zap.String("code", res.Error.Code), zap.Error(err))
		}
		return res
	}
	telemetry.SetOK(span)
	return success(record, warnings)
}

// Validate checks a payment against the account's ledger balance without
// recording it. An account that does not exist yet is validated as it
// would be opened from the enrollment.
func (s *LedgerService) Validate(ctx context.Context, tenantID uuid.UUID, in AddPaymentInput) Result[fee.ValidationResult] {
	return execute(ctx, s, "validate", tenantID, func(ctx context.Context, _ trace.Span, _ *zap.Logger) (fee.ValidationResult, []fee.ValidationIssue, error) {
		now := s.now()
		current := fee.Balance{TotalPaid: decimal.Zero, TotalDue: decimal.Zero, OutstandingAmount: decimal.Zero, CollectionRate: decimal.Zero}

		account, _, err := s.resolveAccount(ctx, tenantID, in, now)
		switch {
		case err == nil:
			entries, err := s.entries.FindAllByAccount(ctx, tenantID, account.ID)
			if err != nil {
				return fee.ValidationResult{}, nil, fmt.Errorf("failed to load ledger: %w", err)
			}
			current = currentBalance(account, fee.FoldLedger(entries))
		case shared.CodeOf(err) == "":
			return fee.ValidationResult{}, nil, err
		}
		return fee.Validate(in.Payment, current, now), nil, nil
	})
}

// AddRecord records a payment. The account is opened on first use when an
// enrollment is supplied. The entry gets a receipt number, the plan
// processor moves the schedule, and the account totals are rebuilt from
// the full ledger in the same transaction.
func (s *LedgerService) AddRecord(ctx context.Context, tenantID uuid.UUID, in AddPaymentInput) Result[*fee.LedgerEntry] {
	return execute(ctx, s, "add_record", tenantID, func(ctx context.Context, span trace.Span, log *zap.Logger) (*fee.LedgerEntry, []fee.ValidationIssue, error) {
		now := s.now()
		draft := in.Payment
		telemetry.SetAttributes(span,
			telemetry.SpanAttrAccountID, draft.AccountID.String(),
			telemetry.SpanAttrPlanType, string(draft.PlanType),
			telemetry.SpanAttrAmount, draft.Amount.String(),
		)

		// shape check first so nothing is stored or numbered for a bad draft
		if shape := fee.Validate(draft, fee.Balance{}, now); !shape.IsValid {
			s.metrics.RecordValidationFailure(ctx, tenantID.String(), string(draft.PlanType))
			return nil, nil, &ValidationError{Issues: shape.Errors}
		}

		account, isNew, err := s.resolveAccount(ctx, tenantID, in, now)
		if err != nil {
			return nil, nil, err
		}
		if err := checkDraftAgainst(account, draft); err != nil {
			return nil, nil, err
		}

		// dry run on the unlocked state so a doomed payment burns no receipt number
		existing, err := s.entries.FindAllByAccount(ctx, tenantID, account.ID)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to load ledger: %w", err)
		}
		if _, err := s.process(account, fee.FoldLedger(existing), draft, now); err != nil {
			return nil, nil, err
		}

		receipt, err := s.numbers.NextReceiptNumber(ctx, tenantID, now)
		if err != nil {
			return nil, nil, err
		}
		telemetry.SetAttribute(span, telemetry.SpanAttrReceiptNumber, receipt)

		var (
			entry    *fee.LedgerEntry
			warnings []fee.ValidationIssue
		)
		err = s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
			acc := account
			if isNew {
				if err := repos.Accounts().Save(ctx, acc); err != nil {
					return fmt.Errorf("failed to open fee account: %w", err)
				}
			} else {
				locked, err := repos.Accounts().FindByIDForUpdate(ctx, tenantID, account.ID)
				if err != nil {
					return fmt.Errorf("failed to lock fee account: %w", err)
				}
				if locked == nil {
					return fee.ErrAccountNotFound
				}
				acc = locked
				if in.Enrollment != nil {
					acc.SetRegistrationFees(in.Enrollment.CourseRegistrationFee, in.Enrollment.StudentRegistrationFee)
				}
			}

			ledger, err := repos.Entries().FindAllByAccount(ctx, tenantID, acc.ID)
			if err != nil {
				return fmt.Errorf("failed to load ledger: %w", err)
			}
			totals := fee.FoldLedger(ledger)
			check := fee.Validate(draft, currentBalance(acc, totals), now)
			if !check.IsValid {
				return &ValidationError{Issues: check.Errors}
			}
			warnings = check.Warnings

			patch, err := s.process(acc, totals, draft, now)
			if err != nil {
				return err
			}

			entry, err = fee.NewLedgerEntry(tenantID, acc.ID, receipt, draft)
			if err != nil {
				return err
			}
			if err := repos.Entries().Create(ctx, entry); err != nil {
				return fmt.Errorf("failed to save ledger entry: %w", err)
			}

			acc.ApplyPatch(patch, now)
			if _, err := recompute(ctx, repos, acc, s.policy, now, true); err != nil {
				return err
			}
			account = acc
			return nil
		})
		if err != nil {
			return nil, nil, err
		}

		account.AddDomainEvent(fee.NewPaymentRecordedEvent(entry, account))
		s.publish(ctx, log, account)
		s.metrics.RecordPayment(ctx, tenantID.String(), string(account.PlanType), string(entry.Mode), string(account.Status), entry.Amount)

		log.Info("payment recorded",
			zap.String("fee_account_id", account.ID.String()),
			zap.String("entry_id", entry.ID.String()),
			zap.String("receipt_number", entry.ReceiptNumber),
			zap.String("amount", entry.Amount.String()),
			zap.String("status", string(account.Status)),
			zap.Int("warnings", len(warnings)),
		)
		return entry, warnings, nil
	})
}

// CalculateRemainingBalance derives the balance of an account from its
// ledger. Concurrent calls for the same account share one load.
func (s *LedgerService) CalculateRemainingBalance(ctx context.Context, tenantID, accountID uuid.UUID) Result[fee.PaymentBalance] {
	return execute(ctx, s, "calculate_remaining_balance", tenantID, func(ctx context.Context, span trace.Span, _ *zap.Logger) (fee.PaymentBalance, []fee.ValidationIssue, error) {
		telemetry.SetAttribute(span, telemetry.SpanAttrAccountID, accountID.String())

		// shared by every caller in the flight, so detached from this caller's cancellation
		flightCtx := context.WithoutCancel(ctx)
		v, err, deduped := s.balances.Do(tenantID.String()+":"+accountID.String(), func() (any, error) {
			account, err := s.findAccount(flightCtx, tenantID, accountID)
			if err != nil {
				return nil, err
			}
			entries, err := s.entries.FindAllByAccount(flightCtx, tenantID, accountID)
			if err != nil {
				return nil, fmt.Errorf("failed to load ledger: %w", err)
			}
			return fee.BalanceFromLedger(account, entries), nil
		})
		if err != nil {
			return fee.PaymentBalance{}, nil, err
		}
		telemetry.SetAttribute(span, "singleflight_shared", deduped)
		return v.(fee.PaymentBalance), nil, nil
	})
}

// GetHistory pages through an account's ledger. Deleted entries are left
// out unless asked for.
func (s *LedgerService) GetHistory(ctx context.Context, tenantID, accountID uuid.UUID, q HistoryQuery) Result[*shared.Paginated[fee.LedgerEntry]] {
	return execute(ctx, s, "get_history", tenantID, func(ctx context.Context, span trace.Span, _ *zap.Logger) (*shared.Paginated[fee.LedgerEntry], []fee.ValidationIssue, error) {
		telemetry.SetAttribute(span, telemetry.SpanAttrAccountID, accountID.String())
		if _, err := s.findAccount(ctx, tenantID, accountID); err != nil {
			return nil, nil, err
		}

		filter := q.filter()
		items, err := s.entries.FindByAccount(ctx, tenantID, accountID, filter)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to list ledger entries: %w", err)
		}
		total, err := s.entries.CountByAccount(ctx, tenantID, accountID, filter)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to count ledger entries: %w", err)
		}
		page := shared.NewPaginated(items, total, filter.Page, filter.PageSize)
		return &page, nil, nil
	})
}

// UpdateRecord corrects descriptive fields, the verification status or,
// explicitly, the amount of an entry. Status and amount changes rebuild the
// account from its ledger.
func (s *LedgerService) UpdateRecord(ctx context.Context, tenantID, entryID uuid.UUID, in UpdateRecordInput) Result[*fee.LedgerEntry] {
	return execute(ctx, s, "update_record", tenantID, func(ctx context.Context, span trace.Span, log *zap.Logger) (*fee.LedgerEntry, []fee.ValidationIssue, error) {
		telemetry.SetAttribute(span, telemetry.SpanAttrEntryID, entryID.String())
		now := s.now()

		var (
			entry   *fee.LedgerEntry
			account *fee.FeeAccount
		)
		err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
			var err error
			entry, err = repos.Entries().FindByIDForTenant(ctx, tenantID, entryID)
			if err != nil {
				return fmt.Errorf("failed to get ledger entry: %w", err)
			}
			if entry == nil {
				return fee.ErrEntryNotFound
			}

			if err := entry.UpdateDetails(in.Details, now); err != nil {
				return err
			}
			affectsBalance := false
			if in.Status != nil && *in.Status != entry.Status {
				if err := entry.SetStatus(*in.Status, in.UpdatedBy, now); err != nil {
					return err
				}
				affectsBalance = true
			}
			if in.Amount != nil && !in.Amount.Equal(entry.Amount) {
				if err := entry.ChangeAmount(*in.Amount, now); err != nil {
					return err
				}
				affectsBalance = true
			}
			if err := repos.Entries().Update(ctx, entry); err != nil {
				return fmt.Errorf("failed to update ledger entry: %w", err)
			}
			if !affectsBalance {
				return nil
			}

			account, err = lockAccount(ctx, repos, tenantID, entry.AccountID)
			if err != nil {
				return err
			}
			_, err = recompute(ctx, repos, account, s.policy, now, false)
			return err
		})
		if err != nil {
			return nil, nil, err
		}

		var warnings []fee.ValidationIssue
		if account != nil {
			s.publish(ctx, log, account)
			if account.Status == fee.PaymentStatusOverpaid {
				excess := account.TotalReceived.Sub(account.Fees().TotalDue())
				warnings = append(warnings, fee.ValidationIssue{
					Field:   "amount",
					Code:    "OVERPAYMENT",
					Message: fmt.Sprintf("account is overpaid by %s", excess.StringFixed(2)),
				})
			}
		}
		log.Info("ledger entry updated",
			zap.String("entry_id", entry.ID.String()),
			zap.Bool("recomputed", account != nil),
		)
		return entry, warnings, nil
	})
}

// SoftDeleteRecord flags an entry as deleted and rebuilds its account. The
// row stays in storage.
func (s *LedgerService) SoftDeleteRecord(ctx context.Context, tenantID, entryID uuid.UUID, deletedBy string) Result[*fee.LedgerEntry] {
	return execute(ctx, s, "soft_delete_record", tenantID, func(ctx context.Context, span trace.Span, log *zap.Logger) (*fee.LedgerEntry, []fee.ValidationIssue, error) {
		telemetry.SetAttribute(span, telemetry.SpanAttrEntryID, entryID.String())
		now := s.now()

		var (
			entry   *fee.LedgerEntry
			account *fee.FeeAccount
		)
		err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
			var err error
			entry, err = repos.Entries().FindByIDForTenant(ctx, tenantID, entryID)
			if err != nil {
				return fmt.Errorf("failed to get ledger entry: %w", err)
			}
			if entry == nil {
				return fee.ErrEntryNotFound
			}
			if err := entry.SoftDelete(deletedBy, now); err != nil {
				return err
			}
			if err := repos.Entries().Update(ctx, entry); err != nil {
				return fmt.Errorf("failed to update ledger entry: %w", err)
			}

			account, err = lockAccount(ctx, repos, tenantID, entry.AccountID)
			if err != nil {
				return err
			}
			_, err = recompute(ctx, repos, account, s.policy, now, false)
			return err
		})
		if err != nil {
			return nil, nil, err
		}

		s.publishEvents(ctx, log, entry.GetDomainEvents()...)
		entry.ClearDomainEvents()
		s.publish(ctx, log, account)

		log.Info("ledger entry deleted",
			zap.String("entry_id", entry.ID.String()),
			zap.String("fee_account_id", account.ID.String()),
			zap.String("deleted_by", deletedBy),
		)
		return entry, nil, nil
	})
}

// GenerateInvoiceBreakdown rebuilds what was billed and paid from the
// ledger alone and stamps it with a fresh invoice number.
func (s *LedgerService) GenerateInvoiceBreakdown(ctx context.Context, tenantID, accountID uuid.UUID) Result[fee.InvoiceBreakdown] {
	return execute(ctx, s, "generate_invoice_breakdown", tenantID, func(ctx context.Context, span trace.Span, log *zap.Logger) (fee.InvoiceBreakdown, []fee.ValidationIssue, error) {
		telemetry.SetAttribute(span, telemetry.SpanAttrAccountID, accountID.String())
		now := s.now()

		account, err := s.findAccount(ctx, tenantID, accountID)
		if err != nil {
			return fee.InvoiceBreakdown{}, nil, err
		}
		entries, err := s.entries.FindAllByAccount(ctx, tenantID, accountID)
		if err != nil {
			return fee.InvoiceBreakdown{}, nil, fmt.Errorf("failed to load ledger: %w", err)
		}
		breakdown := fee.BuildInvoiceBreakdown(account, entries, now)

		number, err := s.numbers.NextInvoiceNumber(ctx, tenantID, now)
		if err != nil {
			return fee.InvoiceBreakdown{}, nil, err
		}
		breakdown.InvoiceNumber = number

		if s.archive == nil {
			return breakdown, nil, nil
		}
		key, err := s.archive.Archive(ctx, tenantID, breakdown)
		if err != nil {
			// the number is already spent, so the invoice is still returned
			log.Warn("invoice archive failed",
				zap.String("invoice_number", number),
				zap.Error(err),
			)
			return breakdown, []fee.ValidationIssue{{
				Field:   "invoice",
				Code:    WarningArchiveFailed,
				Message: "invoice was generated but could not be archived",
			}}, nil
		}
		breakdown.ArchiveKey = key
		return breakdown, nil, nil
	})
}

// Recompute rebuilds an account's cached totals from its ledger. Running it
// on an unchanged ledger writes nothing.
func (s *LedgerService) Recompute(ctx context.Context, tenantID, accountID uuid.UUID) Result[*fee.FeeAccount] {
	return execute(ctx, s, "recompute", tenantID, func(ctx context.Context, span trace.Span, log *zap.Logger) (*fee.FeeAccount, []fee.ValidationIssue, error) {
		telemetry.SetAttribute(span, telemetry.SpanAttrAccountID, accountID.String())

		var (
			account *fee.FeeAccount
			changed bool
		)
		err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
			var err error
			account, err = lockAccount(ctx, repos, tenantID, accountID)
			if err != nil {
				return err
			}
			changed, err = recompute(ctx, repos, account, s.policy, s.now(), false)
			return err
		})
		if err != nil {
			return nil, nil, err
		}
		s.publish(ctx, log, account)
		telemetry.SetAttribute(span, "changed", changed)
		return account, nil, nil
	})
}

// OpenAccount opens the fee account of an enrollment. Opening an
// enrollment that already has an account returns the existing one.
func (s *LedgerService) OpenAccount(ctx context.Context, tenantID uuid.UUID, in OpenAccountInput) Result[*fee.FeeAccount] {
	return execute(ctx, s, "open_account", tenantID, func(ctx context.Context, span trace.Span, log *zap.Logger) (*fee.FeeAccount, []fee.ValidationIssue, error) {
		telemetry.SetAttribute(span, telemetry.SpanAttrPlanType, string(in.PlanType))

		existing, err := s.accounts.FindByEnrollment(ctx, tenantID, in.StudentID, in.Enrollment.CourseID)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to look up enrollment: %w", err)
		}
		if existing != nil {
			account, err := s.fillRegistrationFees(ctx, tenantID, existing, in.Enrollment)
			if err != nil {
				return nil, nil, err
			}
			s.publish(ctx, log, account)
			return account, nil, nil
		}

		account, err := s.buildAccount(ctx, tenantID, in, s.now())
		if err != nil {
			return nil, nil, err
		}
		if err := s.accounts.Save(ctx, account); err != nil {
			return nil, nil, fmt.Errorf("failed to save fee account: %w", err)
		}
		s.publish(ctx, log, account)
		log.Info("fee account opened",
			zap.String("fee_account_id", account.ID.String()),
			zap.String("plan_type", string(account.PlanType)),
		)
		return account, nil, nil
	})
}

// fillRegistrationFees sets registration fees an existing account is still
// missing and rebuilds its totals. The account is returned as is when the
// enrollment adds nothing.
func (s *LedgerService) fillRegistrationFees(ctx context.Context, tenantID uuid.UUID, account *fee.FeeAccount, e EnrollmentInput) (*fee.FeeAccount, error) {
	candidate := *account
	if !candidate.SetRegistrationFees(e.CourseRegistrationFee, e.StudentRegistrationFee) {
		return account, nil
	}
	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		locked, err := lockAccount(ctx, repos, tenantID, account.ID)
		if err != nil {
			return err
		}
		locked.SetRegistrationFees(e.CourseRegistrationFee, e.StudentRegistrationFee)
		if _, err := recompute(ctx, repos, locked, s.policy, s.now(), true); err != nil {
			return err
		}
		account = locked
		return nil
	})
	if err != nil {
		return nil, err
	}
	return account, nil
}

// GetAccount returns a fee account as stored, cached totals included.
func (s *LedgerService) GetAccount(ctx context.Context, tenantID, accountID uuid.UUID) Result[*fee.FeeAccount] {
	return execute(ctx, s, "get_account", tenantID, func(ctx context.Context, _ trace.Span, _ *zap.Logger) (*fee.FeeAccount, []fee.ValidationIssue, error) {
		account, err := s.findAccount(ctx, tenantID, accountID)
		return account, nil, err
	})
}

func (s *LedgerService) findAccount(ctx context.Context, tenantID, accountID uuid.UUID) (*fee.FeeAccount, error) {
	account, err := s.accounts.FindByIDForTenant(ctx, tenantID, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to get fee account: %w", err)
	}
	if account == nil {
		return nil, fee.ErrAccountNotFound
	}
	return account, nil
}

// resolveAccount finds the payment's account, or builds an unsaved one from
// the enrollment. isNew tells the caller it still has to be stored.
func (s *LedgerService) resolveAccount(ctx context.Context, tenantID uuid.UUID, in AddPaymentInput, now time.Time) (account *fee.FeeAccount, isNew bool, err error) {
	d := in.Payment
	if d.AccountID != uuid.Nil {
		account, err = s.accounts.FindByIDForTenant(ctx, tenantID, d.AccountID)
		if err != nil {
			return nil, false, fmt.Errorf("failed to get fee account: %w", err)
		}
		if account != nil {
			return account, false, nil
		}
	}
	if in.Enrollment == nil || in.Enrollment.CourseID == uuid.Nil {
		return nil, false, fee.ErrAccountNotFound
	}

	existing, err := s.accounts.FindByEnrollment(ctx, tenantID, d.StudentID, in.Enrollment.CourseID)
	if err != nil {
		return nil, false, fmt.Errorf("failed to look up enrollment: %w", err)
	}
	if existing != nil {
		return nil, false, ErrAccountIDInUse
	}

	account, err = s.buildAccount(ctx, tenantID, OpenAccountInput{
		AccountID:   d.AccountID,
		StudentID:   d.StudentID,
		StudentName: d.StudentName,
		PlanType:    d.PlanType,
		Enrollment:  *in.Enrollment,
	}, now)
	if err != nil {
		return nil, false, err
	}
	return account, true, nil
}

// buildAccount resolves the course fee and, for EMI plans without an
// explicit schedule, splits the total into monthly installments.
func (s *LedgerService) buildAccount(ctx context.Context, tenantID uuid.UUID, in OpenAccountInput, now time.Time) (*fee.FeeAccount, error) {
	e := in.Enrollment
	resolved, err := fee.ResolveCourseFee(ctx, tenantID, fee.FeeQuery{
		Override: e.CourseFee,
		CohortID: e.CohortID,
		CourseID: e.CourseID,
	}, s.cohorts, s.courses)
	if err != nil {
		return nil, err
	}

	schedule := e.Schedule
	if in.PlanType == fee.PlanEMI && len(schedule) == 0 && e.InstallmentCount > 0 {
		first := fee.NextDueDate(now.Day(), now, 1)
		if e.FirstDueDate != nil {
			first = *e.FirstDueDate
		}
		total := resolved.Amount.Add(e.CourseRegistrationFee).Add(e.StudentRegistrationFee)
		schedule, err = fee.BuildEMISchedule(total, e.InstallmentCount, first)
		if err != nil {
			return nil, err
		}
	}

	account, err := fee.NewFeeAccount(tenantID, fee.NewAccountParams{
		ID:                     in.AccountID,
		StudentID:              in.StudentID,
		StudentName:            in.StudentName,
		CourseID:               e.CourseID,
		CohortID:               e.CohortID,
		PlanType:               in.PlanType,
		CourseFee:              resolved.Amount,
		CourseRegistrationFee:  e.CourseRegistrationFee,
		StudentRegistrationFee: e.StudentRegistrationFee,
		MonthlyDueDay:          e.MonthlyDueDay,
		Schedule:               schedule,
		FirstDueDate:           e.FirstDueDate,
	})
	if err != nil {
		return nil, err
	}
	s.logger.Debug("fee account built",
		zap.String("fee_account_id", account.ID.String()),
		zap.String("fee_source", string(resolved.Source)),
	)
	return account, nil
}

func (s *LedgerService) process(account *fee.FeeAccount, totals fee.LedgerTotals, draft fee.PaymentDraft, now time.Time) (fee.Patch, error) {
	processor, err := fee.ProcessorFor(account.PlanType, s.policy)
	if err != nil {
		return fee.Patch{}, err
	}
	state := account.State()
	state.TotalReceived = totals.TotalPaid
	return processor.Process(state, draft.Event(), now)
}

func (s *LedgerService) publish(ctx context.Context, log *zap.Logger, account *fee.FeeAccount) {
	s.publishEvents(ctx, log, account.GetDomainEvents()...)
	account.ClearDomainEvents()
}

// publishEvents hands events to the bus. A publish failure does not undo
// the committed write.
func (s *LedgerService) publishEvents(ctx context.Context, log *zap.Logger, events ...shared.DomainEvent) {
	if s.publisher == nil || len(events) == 0 {
		return
	}
	if err := s.publisher.Publish(ctx, events...); err != nil {
		log.Warn("failed to publish domain events", zap.Int("count", len(events)), zap.Error(err))
	}
}

func checkDraftAgainst(account *fee.FeeAccount, d fee.PaymentDraft) error {
	if account.StudentID != d.StudentID {
		return ErrStudentMismatch
	}
	if account.PlanType != d.PlanType {
		return fee.ErrPlanMismatch
	}
	return nil
}

func lockAccount(ctx context.Context, repos TransactionalRepositories, tenantID, accountID uuid.UUID) (*fee.FeeAccount, error) {
	account, err := repos.Accounts().FindByIDForUpdate(ctx, tenantID, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to lock fee account: %w", err)
	}
	if account == nil {
		return nil, fee.ErrAccountNotFound
	}
	return account, nil
}

// recompute folds the stored ledger into the account. It saves when a
// derived field moved, or unconditionally with always, and reports whether
// anything changed.
func recompute(ctx context.Context, repos TransactionalRepositories, account *fee.FeeAccount, policy fee.Policy, now time.Time, always bool) (bool, error) {
	entries, err := repos.Entries().FindAllByAccount(ctx, account.TenantID, account.ID)
	if err != nil {
		return false, fmt.Errorf("failed to load ledger: %w", err)
	}
	before := snapshotOf(account)
	account.ApplyLedgerTotals(fee.FoldLedger(entries), policy, now)
	changed := snapshotOf(account) != before
	if !changed && !always {
		return false, nil
	}
	if changed {
		account.AddDomainEvent(fee.NewFeeAccountRecomputedEvent(account))
	}
	if err := repos.Accounts().Save(ctx, account); err != nil {
		return false, fmt.Errorf("failed to save fee account: %w", err)
	}
	return changed, nil
}

// aggregateSnapshot is the comparable form of an account's derived fields.
type aggregateSnapshot struct {
	totalReceived   string
	outstanding     string
	collectionRate  string
	status          fee.PaymentStatus
	lifecycle       fee.AccountLifecycle
	paymentCount    int
	lastPaymentDate string
	currentEMIIndex int
	reminderEnabled bool
	nextDueDate     string
	nextReminder    string
	schedule        string
}

func snapshotOf(a *fee.FeeAccount) aggregateSnapshot {
	return aggregateSnapshot{
		totalReceived:   a.TotalReceived.String(),
		outstanding:     a.OutstandingAmount.String(),
		collectionRate:  a.CollectionRate.String(),
		status:          a.Status,
		lifecycle:       a.Lifecycle,
		paymentCount:    a.PaymentCount,
		lastPaymentDate: formatTime(a.LastPaymentDate),
		currentEMIIndex: a.CurrentEMIIndex,
		reminderEnabled: a.ReminderEnabled,
		nextDueDate:     formatTime(a.NextDueDate),
		nextReminder:    formatTime(a.NextReminderDate),
		schedule:        scheduleFingerprint(a.EMISchedule),
	}
}

func formatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

// scheduleFingerprint covers what a recompute can change on installments.
func scheduleFingerprint(items []fee.EMIItem) string {
	var b strings.Builder
	for _, it := range items {
		fmt.Fprintf(&b, "%d:%s:%s;", it.Index, it.Status, it.PaidAmount.String())
	}
	return b.String()
}

func currentBalance(account *fee.FeeAccount, totals fee.LedgerTotals) fee.Balance {
	return fee.NormalizeForPlan(account.PlanType, fee.CalculateBalance(account.Fees(), totals.TotalPaid, decimal.Zero))
}
