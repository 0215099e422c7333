package fee

import (
	"time"

	"github.com/academy/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AggregateTypeFeeAccount is the aggregate type name used in events
const AggregateTypeFeeAccount = "FeeAccount"

// FeeAccount is the per-enrollment fee record. Its money and status fields
// are a cache over the ledger and are rebuilt by ApplyLedgerTotals.
type FeeAccount struct {
	shared.TenantAggregateRoot
	StudentID   uuid.UUID
	StudentName string
	CourseID    uuid.UUID
	CohortID    *uuid.UUID
	PlanType    PlanType

	CourseFee              decimal.Decimal
	CourseRegistrationFee  decimal.Decimal
	StudentRegistrationFee decimal.Decimal

	MonthlyDueDay   int
	EMISchedule     []EMIItem
	CurrentEMIIndex int

	TotalReceived     decimal.Decimal
	OutstandingAmount decimal.Decimal
	CollectionRate    decimal.Decimal
	Status            PaymentStatus
	Lifecycle         AccountLifecycle
	PaymentCount      int
	LastPaymentDate   *time.Time

	NextDueDate       *time.Time
	NextReminderDate  *time.Time
	ReminderEnabled   bool
	ReminderFrequency ReminderFrequency
	LastReminderAt    *time.Time
}

// NewAccountParams holds what is known about an enrollment when its fee
// account is opened.
type NewAccountParams struct {
	ID                     uuid.UUID // generated when zero
	StudentID              uuid.UUID
	StudentName            string
	CourseID               uuid.UUID
	CohortID               *uuid.UUID
	PlanType               PlanType
	CourseFee              decimal.Decimal
	CourseRegistrationFee  decimal.Decimal
	StudentRegistrationFee decimal.Decimal
	MonthlyDueDay          int
	Schedule               []EMIItem
	FirstDueDate           *time.Time
}

// NewFeeAccount opens a fee account with nothing received yet.
func NewFeeAccount(tenantID uuid.UUID, p NewAccountParams) (*FeeAccount, error) {
	if tenantID == uuid.Nil {
		return nil, shared.ErrTenantRequired
	}
	if p.StudentID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_STUDENT", "Student ID cannot be empty")
	}
	if !p.PlanType.IsValid() {
		return nil, ErrInvalidPlanType
	}
	if p.CourseFee.IsNegative() || p.CourseRegistrationFee.IsNegative() || p.StudentRegistrationFee.IsNegative() {
		return nil, ErrNegativeFee
	}
	if p.MonthlyDueDay < 0 || p.MonthlyDueDay > 31 {
		return nil, ErrInvalidDueDay
	}
	if p.PlanType == PlanEMI && len(p.Schedule) == 0 {
		return nil, ErrEMIScheduleMissing
	}
	if err := ValidateSchedule(p.Schedule); err != nil {
		return nil, err
	}

	a := &FeeAccount{
		TenantAggregateRoot:    shared.NewTenantAggregateRoot(tenantID),
		StudentID:              p.StudentID,
		StudentName:            p.StudentName,
		CourseID:               p.CourseID,
		CohortID:               p.CohortID,
		PlanType:               p.PlanType,
		CourseFee:              p.CourseFee,
		CourseRegistrationFee:  p.CourseRegistrationFee,
		StudentRegistrationFee: p.StudentRegistrationFee,
		MonthlyDueDay:          p.MonthlyDueDay,
		EMISchedule:            CloneSchedule(p.Schedule),
		TotalReceived:          decimal.Zero,
		CollectionRate:         decimal.Zero,
		Status:                 PaymentStatusPending,
		Lifecycle:              LifecycleActive,
		ReminderFrequency:      ReminderNone,
	}
	if p.ID != uuid.Nil {
		a.ID = p.ID
	}
	a.OutstandingAmount = NormalizeForPlan(a.PlanType, CalculateBalance(a.Fees(), decimal.Zero, decimal.Zero)).OutstandingAmount

	switch {
	case p.PlanType == PlanEMI:
		due := a.EMISchedule[0].DueDate
		a.NextDueDate = &due
	case p.FirstDueDate != nil:
		due := StartOfDay(*p.FirstDueDate)
		a.NextDueDate = &due
	}
	if a.PlanType == PlanMonthlySubscription && a.MonthlyDueDay == 0 {
		a.MonthlyDueDay = 1
		if a.NextDueDate != nil {
			a.MonthlyDueDay = a.NextDueDate.Day()
		}
	}

	a.AddDomainEvent(NewFeeAccountCreatedEvent(a))
	return a, nil
}

// Fees returns the fee structure used by the balance calculator.
func (a *FeeAccount) Fees() FeeStructure {
	return FeeStructure{
		PlanType:               a.PlanType,
		CourseFee:              a.CourseFee,
		CourseRegistrationFee:  a.CourseRegistrationFee,
		StudentRegistrationFee: a.StudentRegistrationFee,
		Schedule:               a.EMISchedule,
	}
}

// State snapshots the account for a plan processor.
func (a *FeeAccount) State() AccountState {
	fs := a.Fees()
	fs.Schedule = CloneSchedule(a.EMISchedule)
	return AccountState{
		Fees:              fs,
		TotalReceived:     a.TotalReceived,
		MonthlyDueDay:     a.MonthlyDueDay,
		CurrentEMIIndex:   a.CurrentEMIIndex,
		NextDueDate:       copyTime(a.NextDueDate),
		NextReminderDate:  copyTime(a.NextReminderDate),
		ReminderEnabled:   a.ReminderEnabled,
		ReminderFrequency: a.ReminderFrequency,
	}
}

// SetRegistrationFees fills registration fees that are still zero and
// reports whether anything changed. A registration fee that has been set is
// never overwritten. An installment schedule already fixes what is owed, so
// scheduled plans are left alone.
func (a *FeeAccount) SetRegistrationFees(courseReg, studentReg decimal.Decimal) bool {
	if a.PlanType.UsesSchedule() && len(a.EMISchedule) > 0 {
		return false
	}
	changed := false
	if a.CourseRegistrationFee.IsZero() && courseReg.IsPositive() {
		a.CourseRegistrationFee = courseReg
		changed = true
	}
	if a.StudentRegistrationFee.IsZero() && studentReg.IsPositive() {
		a.StudentRegistrationFee = studentReg
		changed = true
	}
	return changed
}

// ApplyPatch writes a processor result onto the account.
func (a *FeeAccount) ApplyPatch(p Patch, at time.Time) {
	wasSettled := a.Status.IsSettled()
	a.TotalReceived = p.Balance.TotalPaid
	a.OutstandingAmount = p.Balance.OutstandingAmount
	a.CollectionRate = p.Balance.CollectionRate
	a.Status = p.Status
	a.Lifecycle = p.Lifecycle
	a.NextDueDate = copyTime(p.NextDueDate)
	a.NextReminderDate = copyTime(p.NextReminderDate)
	a.ReminderEnabled = p.ReminderEnabled
	a.ReminderFrequency = p.ReminderFrequency
	if p.Schedule != nil {
		a.EMISchedule = CloneSchedule(p.Schedule)
	}
	if p.CurrentEMIIndex > a.CurrentEMIIndex {
		a.CurrentEMIIndex = p.CurrentEMIIndex
	}
	a.noteSettlement(wasSettled)
	a.Touch(at)
}

// ApplyLedgerTotals rebuilds every cached money field from a ledger fold.
// EMI installments are rebuilt from the entries that name them. When a
// ledger correction leaves money owed on an account that had settled, or
// reopens an earlier installment, follow-up is scheduled again from at.
// Applying the same totals twice leaves the account unchanged.
func (a *FeeAccount) ApplyLedgerTotals(t LedgerTotals, policy Policy, at time.Time) {
	wasSettled := a.Status.IsSettled()
	wasCompleted := a.Lifecycle == LifecycleCompleted
	prevIndex := a.CurrentEMIIndex

	if a.PlanType == PlanEMI {
		a.EMISchedule = rebuildSchedule(a.EMISchedule, t.Installments)
	}

	fs := a.Fees()
	b := NormalizeForPlan(a.PlanType, CalculateBalance(fs, t.TotalPaid, decimal.Zero))
	a.TotalReceived = b.TotalPaid
	a.OutstandingAmount = b.OutstandingAmount
	a.CollectionRate = b.CollectionRate
	a.Status = DeriveStatus(fs, b)
	a.PaymentCount = t.Count
	a.LastPaymentDate = copyTime(t.LastPaymentDate)
	a.Lifecycle = lifecycleFor(a.PlanType, a.Status)

	derived := FirstPendingIndex(a.EMISchedule)
	if derived == -1 {
		derived = len(a.EMISchedule)
	}
	switch {
	case a.PlanType == PlanEMI:
		a.CurrentEMIIndex = derived
	case derived > a.CurrentEMIIndex:
		a.CurrentEMIIndex = derived
	}

	switch {
	case a.Lifecycle == LifecycleCompleted:
		a.clearReminders()
	case wasCompleted || a.CurrentEMIIndex < prevIndex:
		a.reopen(policy, at)
	}
	a.noteSettlement(wasSettled)
	a.Touch(at)
}

// rebuildSchedule derives installment payments from the ledger. An
// installment no entry has ever named keeps its stored state, so a schedule
// imported with paid items survives.
func rebuildSchedule(items []EMIItem, ledger map[int]InstallmentTotals) []EMIItem {
	out := CloneSchedule(items)
	for i := range out {
		t, ok := ledger[out[i].Index]
		if !ok {
			continue
		}
		out[i].PaidAmount = t.Paid
		out[i].TransactionID = t.TransactionID
		out[i].Status = EMIStatusPending
		out[i].PaidDate = nil
		if t.Paid.GreaterThanOrEqual(out[i].Amount) {
			out[i].Status = EMIStatusPaid
			out[i].PaidDate = copyTime(t.LastPaidAt)
		}
	}
	return out
}

// reopen schedules follow-up for an account that owes money again.
func (a *FeeAccount) reopen(policy Policy, at time.Time) {
	var p Patch
	switch a.PlanType {
	case PlanOneTime:
		followUpPartial(&p, policy, at)
	case PlanEMI:
		idx := FirstPendingIndex(a.EMISchedule)
		if idx == -1 {
			return
		}
		followUpInstallment(&p, a.EMISchedule[idx], policy, at)
	default:
		return
	}
	a.NextDueDate = p.NextDueDate
	a.NextReminderDate = p.NextReminderDate
	a.ReminderEnabled = p.ReminderEnabled
	a.ReminderFrequency = p.ReminderFrequency
}

// MarkReminderSent records a dispatched reminder and moves the next one.
func (a *FeeAccount) MarkReminderSent(sentAt, next time.Time) {
	a.LastReminderAt = &sentAt
	a.NextReminderDate = &next
	a.Touch(sentAt)
}

// DeferReminder pushes a reminder that could not be delivered to
// now+backoff without recording it as sent.
func (a *FeeAccount) DeferReminder(now time.Time, backoff time.Duration) {
	next := now.Add(backoff)
	a.NextReminderDate = &next
	a.Touch(now)
}

// AdvanceReminder records a reminder sent at sentAt and moves the next one
// forward by the account's cadence. A one-off reminder (cadence NONE) is
// switched off once sent.
func (a *FeeAccount) AdvanceReminder(sentAt time.Time) {
	last := sentAt
	if a.NextReminderDate != nil {
		last = *a.NextReminderDate
	}
	next, ok := NextReminderAfter(a.ReminderFrequency, last, sentAt)
	if !ok {
		a.LastReminderAt = &sentAt
		a.clearReminders()
		a.Touch(sentAt)
		return
	}
	a.MarkReminderSent(sentAt, next)
}

// IsReminderDue reports whether a reminder should go out at now.
func (a *FeeAccount) IsReminderDue(now time.Time) bool {
	return a.ReminderEnabled &&
		a.Lifecycle == LifecycleActive &&
		a.NextReminderDate != nil &&
		!a.NextReminderDate.After(now)
}

// noteSettlement raises the settled event on the transition into a
// completed state only.
func (a *FeeAccount) noteSettlement(wasSettled bool) {
	if !wasSettled && a.Status.IsSettled() && a.Lifecycle == LifecycleCompleted {
		a.AddDomainEvent(NewFeeAccountSettledEvent(a))
	}
}

func (a *FeeAccount) clearReminders() {
	a.ReminderEnabled = false
	a.NextReminderDate = nil
	a.ReminderFrequency = ReminderNone
}

func lifecycleFor(plan PlanType, status PaymentStatus) AccountLifecycle {
	if plan != PlanMonthlySubscription && status.IsSettled() {
		return LifecycleCompleted
	}
	return LifecycleActive
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
