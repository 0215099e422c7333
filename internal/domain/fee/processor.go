package fee

import (
	"time"

	"github.com/shopspring/decimal"
)

// Default scheduling constants. They are carried in Policy so deployments
// can override them from configuration.
const (
	DefaultEMIReminderLeadDays     = 3
	DefaultMonthlyReminderLeadDays = 3
	DefaultPartialPaymentCadence   = ReminderDaily
)

// Policy holds the tunable reminder rules shared by all processors.
type Policy struct {
	EMIReminderLeadDays     int
	MonthlyReminderLeadDays int
	PartialPaymentCadence   ReminderFrequency
}

// DefaultPolicy returns the built-in reminder rules
func DefaultPolicy() Policy {
	return Policy{
		EMIReminderLeadDays:     DefaultEMIReminderLeadDays,
		MonthlyReminderLeadDays: DefaultMonthlyReminderLeadDays,
		PartialPaymentCadence:   DefaultPartialPaymentCadence,
	}
}

// AccountState is the read-only view of a fee account a processor works on.
type AccountState struct {
	Fees              FeeStructure
	TotalReceived     decimal.Decimal
	MonthlyDueDay     int
	CurrentEMIIndex   int
	NextDueDate       *time.Time
	NextReminderDate  *time.Time
	ReminderEnabled   bool
	ReminderFrequency ReminderFrequency
}

// PaymentEvent is a newly recorded payment as seen by a processor.
type PaymentEvent struct {
	Amount           decimal.Decimal
	PaidAt           time.Time
	TransactionID    string
	EMIIndex         *int
	ReminderEnabled  *bool
	NextReminderDate *time.Time
	StopReminders    bool
}

// Patch lists every account field a processor decided on. Applying it
// replaces the corresponding fields wholesale.
type Patch struct {
	Balance           Balance
	Status            PaymentStatus
	Lifecycle         AccountLifecycle
	NextDueDate       *time.Time
	NextReminderDate  *time.Time
	ReminderEnabled   bool
	ReminderFrequency ReminderFrequency
	Schedule          []EMIItem
	CurrentEMIIndex   int
	MonthsCovered     *MonthsCovered
}

// Settled reports whether the patch leaves nothing to collect.
func (p Patch) Settled() bool {
	return p.Status.IsSettled()
}

func (p *Patch) clearReminders() {
	p.ReminderEnabled = false
	p.NextReminderDate = nil
	p.ReminderFrequency = ReminderNone
}

// Processor turns (state, payment) into a patch without side effects.
type Processor interface {
	PlanType() PlanType
	Process(state AccountState, event PaymentEvent, now time.Time) (Patch, error)
}

// ProcessorFor returns the processor for a plan type.
func ProcessorFor(plan PlanType, policy Policy) (Processor, error) {
	switch plan {
	case PlanOneTime:
		return oneTimeProcessor{policy: policy}, nil
	case PlanMonthlySubscription:
		return monthlyProcessor{policy: policy}, nil
	case PlanEMI:
		return emiProcessor{policy: policy}, nil
	case PlanCustom:
		return customProcessor{}, nil
	}
	return nil, ErrInvalidPlanType
}

// basePatch carries the current scheduling fields forward unchanged.
func basePatch(state AccountState, b Balance) Patch {
	return Patch{
		Balance:           b,
		Lifecycle:         LifecycleActive,
		NextDueDate:       copyTime(state.NextDueDate),
		NextReminderDate:  copyTime(state.NextReminderDate),
		ReminderEnabled:   state.ReminderEnabled,
		ReminderFrequency: state.ReminderFrequency,
		CurrentEMIIndex:   state.CurrentEMIIndex,
	}
}

type oneTimeProcessor struct {
	policy Policy
}

func (oneTimeProcessor) PlanType() PlanType { return PlanOneTime }

// Process settles the lump sum or switches to aggressive follow-up on a
// partial payment.
func (p oneTimeProcessor) Process(state AccountState, ev PaymentEvent, now time.Time) (Patch, error) {
	b := CalculateBalance(state.Fees, state.TotalReceived, ev.Amount)
	patch := basePatch(state, b)
	patch.Status = DetermineStatus(b.TotalPaid, b.TotalDue, false)

	switch {
	case patch.Settled():
		patch.clearReminders()
		patch.NextDueDate = nil
		patch.Lifecycle = LifecycleCompleted
	case ev.StopReminders:
		patch.clearReminders()
	default:
		followUpPartial(&patch, p.policy, now)
	}
	return patch, nil
}

// followUpPartial puts an unsettled one-time balance on the partial-payment
// cadence starting tomorrow.
func followUpPartial(p *Patch, policy Policy, now time.Time) {
	due := TomorrowDue(now)
	reminder := TomorrowReminder(now)
	p.NextDueDate = &due
	p.NextReminderDate = &reminder
	p.ReminderEnabled = true
	p.ReminderFrequency = policy.PartialPaymentCadence
}

type monthlyProcessor struct {
	policy Policy
}

func (monthlyProcessor) PlanType() PlanType { return PlanMonthlySubscription }

// Process rolls the due date one month forward. A subscription never carries
// an outstanding balance.
func (p monthlyProcessor) Process(state AccountState, ev PaymentEvent, now time.Time) (Patch, error) {
	b := CalculateBalance(state.Fees, state.TotalReceived, ev.Amount)
	b.OutstandingAmount = decimal.Zero
	patch := basePatch(state, b)
	patch.Status = DeriveStatus(state.Fees, b)

	base := ev.PaidAt
	if state.NextDueDate != nil {
		base = *state.NextDueDate
	}
	dueDay := state.MonthlyDueDay
	if dueDay <= 0 {
		dueDay = base.Day()
	}
	next := NextDueDate(dueDay, base, 1)
	patch.NextDueDate = &next

	if installment := state.Fees.CourseFee; installment.IsPositive() {
		covered := MonthsCoveredByAmount(ev.Amount, installment)
		patch.MonthsCovered = &covered
	}

	if ev.StopReminders {
		patch.clearReminders()
		return patch, nil
	}
	reminder := FloorReminder(ReminderDate(next, p.policy.MonthlyReminderLeadDays), now)
	patch.NextReminderDate = &reminder
	patch.ReminderEnabled = true
	patch.ReminderFrequency = ReminderMonthly
	return patch, nil
}

type emiProcessor struct {
	policy Policy
}

func (emiProcessor) PlanType() PlanType { return PlanEMI }

// Process applies a payment to the installment named by the event's EMI
// index. The installment is paid once its payments cover its amount; a
// short payment leaves it pending with the amount credited.
func (p emiProcessor) Process(state AccountState, ev PaymentEvent, now time.Time) (Patch, error) {
	schedule := CloneSchedule(state.Fees.Schedule)
	if len(schedule) == 0 {
		return Patch{}, ErrEMIScheduleMissing
	}
	if ev.EMIIndex == nil {
		return Patch{}, ErrEMIIndexRequired
	}
	idx := *ev.EMIIndex
	if idx < 0 || idx >= len(schedule) {
		return Patch{}, ErrEMIIndexOutOfRange
	}
	if schedule[idx].IsPaid() {
		return Patch{}, ErrEMIAlreadyPaid
	}
	if idx != FirstPendingIndex(schedule) {
		return Patch{}, ErrEMIOutOfOrder
	}

	schedule[idx].credit(ev.Amount, ev.PaidAt, ev.TransactionID)
	covered := schedule[idx].IsPaid()

	fs := state.Fees
	fs.Schedule = schedule
	b := CalculateBalance(fs, state.TotalReceived, ev.Amount)
	patch := basePatch(state, b)
	patch.Schedule = schedule
	if covered && idx+1 > patch.CurrentEMIIndex {
		patch.CurrentEMIIndex = idx + 1
	}

	last := idx == len(schedule)-1
	patch.Status = DetermineStatus(b.TotalPaid, b.TotalDue, last && covered)

	if last && covered {
		patch.NextDueDate = nil
		patch.clearReminders()
		if patch.Settled() {
			patch.Lifecycle = LifecycleCompleted
		}
		return patch, nil
	}

	next := idx
	if covered {
		next = idx + 1
	}
	followUpInstallment(&patch, schedule[next], p.policy, now)
	if ev.StopReminders {
		patch.clearReminders()
	}
	return patch, nil
}

// followUpInstallment points the account at an open installment.
func followUpInstallment(p *Patch, item EMIItem, policy Policy, now time.Time) {
	due := FloorDueDate(item.DueDate, now)
	reminder := FloorReminder(ReminderDate(item.DueDate, policy.EMIReminderLeadDays), now)
	p.NextDueDate = &due
	p.NextReminderDate = &reminder
	p.ReminderEnabled = true
	p.ReminderFrequency = ReminderMonthly
}

type customProcessor struct{}

func (customProcessor) PlanType() PlanType { return PlanCustom }

// Process does the balance math only. Reminder settings come from the
// caller because a custom plan has no cadence to infer.
func (customProcessor) Process(state AccountState, ev PaymentEvent, now time.Time) (Patch, error) {
	b := CalculateBalance(state.Fees, state.TotalReceived, ev.Amount)
	patch := basePatch(state, b)
	patch.Status = DetermineStatus(b.TotalPaid, b.TotalDue, false)
	patch.Lifecycle = lifecycleFor(PlanCustom, patch.Status)

	if ev.StopReminders {
		patch.clearReminders()
		return patch, nil
	}
	if ev.ReminderEnabled != nil {
		patch.ReminderEnabled = *ev.ReminderEnabled
	}
	if ev.NextReminderDate != nil {
		reminder := FloorReminder(*ev.NextReminderDate, now)
		patch.NextReminderDate = &reminder
	}
	return patch, nil
}
