package fee

import (
	"time"

	"github.com/shopspring/decimal"
)

// ReminderHour is the wall-clock hour every scheduled reminder fires at.
const ReminderHour = 9

// DueHour and DueMinute put a computed follow-up due date at the end of
// its day, so a payment made any time that day is on time.
const (
	DueHour   = 23
	DueMinute = 59
)

// LastDayOfMonth returns the number of days in the given month.
func LastDayOfMonth(year int, month time.Month) int {
	// day 0 of the following month normalizes to the last day of this one
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// ClampDayToMonth returns min(day, last day of the month), where monthIndex
// is zero-based (0 = January). Days below 1 clamp to 1.
func ClampDayToMonth(year, monthIndex, day int) int {
	last := LastDayOfMonth(year, time.Month(monthIndex+1))
	if day > last {
		return last
	}
	if day < 1 {
		return 1
	}
	return day
}

// StartOfDay truncates t to midnight in its own location.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// EndOfDay returns the last nanosecond of t's day.
func EndOfDay(t time.Time) time.Time {
	return StartOfDay(t).AddDate(0, 0, 1).Add(-time.Nanosecond)
}

// NextDueDate moves monthsAhead calendar months from from and pins the
// day-of-month to dueDay, clamped for short months.
func NextDueDate(dueDay int, from time.Time, monthsAhead int) time.Time {
	first := time.Date(from.Year(), from.Month()+time.Month(monthsAhead), 1, 0, 0, 0, 0, from.Location())
	day := ClampDayToMonth(first.Year(), int(first.Month())-1, dueDay)
	return time.Date(first.Year(), first.Month(), day, 0, 0, 0, 0, from.Location())
}

// ReminderDate returns leadDays before due at ReminderHour. It does not
// check whether the result is in the past; see FloorReminder.
func ReminderDate(due time.Time, leadDays int) time.Time {
	d := due.AddDate(0, 0, -leadDays)
	return time.Date(d.Year(), d.Month(), d.Day(), ReminderHour, 0, 0, 0, d.Location())
}

// Tomorrow returns the start of the day after now.
func Tomorrow(now time.Time) time.Time {
	return StartOfDay(now).AddDate(0, 0, 1)
}

// TomorrowDue returns tomorrow at DueHour:DueMinute.
func TomorrowDue(now time.Time) time.Time {
	t := Tomorrow(now)
	return time.Date(t.Year(), t.Month(), t.Day(), DueHour, DueMinute, 0, 0, t.Location())
}

// TomorrowReminder returns tomorrow at ReminderHour.
func TomorrowReminder(now time.Time) time.Time {
	t := Tomorrow(now)
	return time.Date(t.Year(), t.Month(), t.Day(), ReminderHour, 0, 0, 0, t.Location())
}

// FloorReminder replaces a reminder that falls today or earlier with
// tomorrow's reminder slot.
func FloorReminder(candidate, now time.Time) time.Time {
	if !candidate.After(EndOfDay(now)) {
		return TomorrowReminder(now)
	}
	return candidate
}

// FloorDueDate replaces a due date that has already passed with tomorrow.
func FloorDueDate(due, now time.Time) time.Time {
	if due.Before(StartOfDay(now)) {
		return Tomorrow(now)
	}
	return due
}

// NextReminderAfter steps last forward by the cadence until it lands after
// today. ok is false for a cadence that does not repeat.
func NextReminderAfter(freq ReminderFrequency, last, now time.Time) (next time.Time, ok bool) {
	var step func(time.Time) time.Time
	switch freq {
	case ReminderDaily:
		step = func(t time.Time) time.Time { return t.AddDate(0, 0, 1) }
	case ReminderWeekly:
		step = func(t time.Time) time.Time { return t.AddDate(0, 0, 7) }
	case ReminderMonthly:
		step = func(t time.Time) time.Time {
			d := NextDueDate(t.Day(), t, 1)
			return time.Date(d.Year(), d.Month(), d.Day(), t.Hour(), t.Minute(), 0, 0, t.Location())
		}
	default:
		return time.Time{}, false
	}
	next = step(last)
	for !next.After(EndOfDay(now)) {
		next = step(next)
	}
	return next, true
}

// MonthsBetween counts calendar months from start to end, both inclusive.
func MonthsBetween(start, end time.Time) int {
	return (end.Year()-start.Year())*12 + int(end.Month()) - int(start.Month()) + 1
}

// MonthsCovered is how many whole installments an amount pays for.
type MonthsCovered struct {
	MonthsPaid int             `json:"months_paid"`
	Remainder  decimal.Decimal `json:"remainder"`
}

// MonthsCoveredByAmount divides amount into whole installments. A
// non-positive installment covers nothing and leaves amount as remainder.
func MonthsCoveredByAmount(amount, installment decimal.Decimal) MonthsCovered {
	if !installment.IsPositive() || !amount.IsPositive() {
		return MonthsCovered{MonthsPaid: 0, Remainder: amount}
	}
	q, r := amount.QuoRem(installment, 0)
	return MonthsCovered{MonthsPaid: int(q.IntPart()), Remainder: r}
}
