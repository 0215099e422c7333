package notification

import (
	"context"
	"fmt"
	"net/http"

	appfee "github.com/academy/backend/internal/application/fee"
	"github.com/academy/backend/internal/infrastructure/logger"
	"github.com/google/uuid"
	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"
	"go.uber.org/zap"
)

const (
	defaultSendGridHost = "https://api.sendgrid.com"
	sendGridEndpoint    = "/v3/mail/send"
)

// SendGridConfig configures the SendGrid notifier
type SendGridConfig struct {
	APIKey      string
	FromAddress string
	FromName    string
	Host        string // defaults to the public API
}

// SendGridNotifier emails notices through the SendGrid v3 API. Students
// without a contact are skipped, not failed, so the reminder sweep moves on.
type SendGridNotifier struct {
	key      string
	host     string
	from     *sgmail.Email
	contacts appfee.ContactDirectory
	logger   *zap.Logger
}

// NewSendGridNotifier creates a new SendGridNotifier
func NewSendGridNotifier(cfg SendGridConfig, contacts appfee.ContactDirectory, log *zap.Logger) *SendGridNotifier {
	if log == nil {
		log = zap.NewNop()
	}
	host := cfg.Host
	if host == "" {
		host = defaultSendGridHost
	}
	return &SendGridNotifier{
		key:      cfg.APIKey,
		host:     host,
		from:     sgmail.NewEmail(cfg.FromName, cfg.FromAddress),
		contacts: contacts,
		logger:   log,
	}
}

// Dispatch emails a payment reminder
func (n *SendGridNotifier) Dispatch(ctx context.Context, r appfee.Reminder) error {
	contact, ok, err := n.contacts.Contact(ctx, r.TenantID, r.StudentID)
	if err != nil {
		return fmt.Errorf("failed to look up contact for student %s: %w", r.StudentID, err)
	}
	if !ok {
		n.skip(ctx, r.TenantID, r.StudentID, "reminder")
		return nil
	}
	if contact.Name == "" {
		contact.Name = r.StudentName
	}
	return n.send(contact, reminderMessage(r))
}

// NotifySettled emails a settlement notice
func (n *SendGridNotifier) NotifySettled(ctx context.Context, s appfee.SettlementNotice) error {
	contact, ok, err := n.contacts.Contact(ctx, s.TenantID, s.StudentID)
	if err != nil {
		return fmt.Errorf("failed to look up contact for student %s: %w", s.StudentID, err)
	}
	if !ok {
		n.skip(ctx, s.TenantID, s.StudentID, "settlement")
		return nil
	}
	return n.send(contact, settlementMessage(s, contact.Name))
}

func (n *SendGridNotifier) skip(ctx context.Context, tenantID, studentID uuid.UUID, kind string) {
	logger.L(ctx, n.logger).Debug("no contact on file, notice skipped",
		zap.String("tenant_id", tenantID.String()),
		zap.String("student_id", studentID.String()),
		zap.String("kind", kind),
	)
}

func (n *SendGridNotifier) prepare(to appfee.Contact, msg message) *sgmail.SGMailV3 {
	p := sgmail.NewPersonalization()
	p.Subject = msg.Subject
	p.AddTos(sgmail.NewEmail(to.Name, to.Email))

	m := sgmail.NewV3Mail()
	m.SetFrom(n.from)
	m.AddPersonalizations(p)
	m.AddContent(sgmail.NewContent("text/plain", msg.Text))
	return m
}

func (n *SendGridNotifier) send(to appfee.Contact, msg message) error {
	req := sendgrid.GetRequest(n.key, sendGridEndpoint, n.host)
	req.Method = http.MethodPost
	req.Body = sgmail.GetRequestBody(n.prepare(to, msg))

	res, err := sendgrid.API(req)
	if err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	if res.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("sendgrid rejected email: status %d: %s", res.StatusCode, res.Body)
	}
	return nil
}

var _ Notifier = (*SendGridNotifier)(nil)
