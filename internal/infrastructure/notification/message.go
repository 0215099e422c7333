package notification

import (
	"fmt"
	"strings"

	appfee "github.com/academy/backend/internal/application/fee"
	"github.com/academy/backend/internal/domain/fee"
)

const dueDateLayout = "02 Jan 2006"

// message is a rendered notice
type message struct {
	Subject string
	Text    string
}

func greeting(name string) string {
	if name = strings.TrimSpace(name); name == "" {
		return "Hello,"
	}
	return "Hello " + name + ","
}

func reminderMessage(r appfee.Reminder) message {
	var b strings.Builder
	b.WriteString(greeting(r.StudentName))
	b.WriteString("\n\n")

	switch r.PlanType {
	case fee.PlanMonthlySubscription:
		b.WriteString("Your monthly subscription payment")
	case fee.PlanEMI:
		b.WriteString("Your next installment")
	default:
		b.WriteString("A course fee payment")
	}
	if r.AmountDue.IsPositive() {
		fmt.Fprintf(&b, " of %s", r.AmountDue.StringFixed(2))
	}
	if r.DueDate != nil {
		fmt.Fprintf(&b, " is due on %s.", r.DueDate.Format(dueDateLayout))
	} else {
		b.WriteString(" is due.")
	}
	b.WriteString("\n\nIf you have already paid, please ignore this message.\n")

	subject := "Payment reminder"
	if r.DueDate != nil {
		subject += ": due " + r.DueDate.Format(dueDateLayout)
	}
	return message{Subject: subject, Text: b.String()}
}

func settlementMessage(n appfee.SettlementNotice, name string) message {
	var b strings.Builder
	b.WriteString(greeting(name))
	b.WriteString("\n\n")
	fmt.Fprintf(&b, "We have received %s in total and your fees are fully paid.", n.TotalPaid.StringFixed(2))
	if n.Status == fee.PaymentStatusOverpaid {
		b.WriteString(" You have paid more than was due; the office will contact you about the difference.")
	}
	b.WriteString("\n\nThank you.\n")
	return message{Subject: "Your fees are fully paid", Text: b.String()}
}
