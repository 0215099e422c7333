package handler

import (
	"time"

	appfee "github.com/academy/backend/internal/application/fee"
	"github.com/academy/backend/internal/domain/fee"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Wire formats for dates and wall-clock times
const (
	dateLayout = "2006-01-02"
	timeLayout = "15:04"
)

// EnrollmentRequest describes the enrollment behind a fee account. On a
// payment it is only used when the account does not exist yet.
type EnrollmentRequest struct {
	CourseID               string           `json:"course_id" binding:"required,uuid"`
	CohortID               *string          `json:"cohort_id" binding:"omitempty,uuid"`
	CourseFee              *decimal.Decimal `json:"course_fee" binding:"omitempty,gte=0"`
	CourseRegistrationFee  decimal.Decimal  `json:"course_registration_fee" binding:"gte=0"`
	StudentRegistrationFee decimal.Decimal  `json:"student_registration_fee" binding:"gte=0"`
	MonthlyDueDay          int              `json:"monthly_due_day" binding:"omitempty,min=1,max=31"`
	InstallmentCount       int              `json:"installment_count" binding:"omitempty,min=1,max=120"`
	FirstDueDate           string           `json:"first_due_date" binding:"omitempty,datetime=2006-01-02"`
	Schedule               []EMIItemRequest `json:"schedule" binding:"omitempty,dive"`
}

// EMIItemRequest is one installment of an explicit EMI schedule
type EMIItemRequest struct {
	DueDate string          `json:"due_date" binding:"required,datetime=2006-01-02"`
	Amount  decimal.Decimal `json:"amount" binding:"gt=0"`
}

// RecordPaymentRequest is a payment to validate or record. Field rules that
// depend on the account's balance are checked by the ledger, which reports
// every problem at once.
type RecordPaymentRequest struct {
	AccountID        string             `json:"account_id" binding:"required,uuid"`
	StudentID        string             `json:"student_id" binding:"required,uuid"`
	StudentName      string             `json:"student_name" binding:"max=200"`
	Amount           decimal.Decimal    `json:"amount"`
	Date             string             `json:"date" binding:"omitempty,datetime=2006-01-02"`
	Time             string             `json:"time" binding:"omitempty,datetime=15:04"`
	Mode             string             `json:"mode"`
	PayerType        string             `json:"payer_type"`
	PayerName        string             `json:"payer_name" binding:"max=200"`
	Discount         decimal.Decimal    `json:"discount"`
	SpecialCharges   decimal.Decimal    `json:"special_charges"`
	TaxAmount        decimal.Decimal    `json:"tax_amount"`
	TransactionID    string             `json:"transaction_id" binding:"max=100"`
	ReferenceID      string             `json:"reference_id" binding:"max=100"`
	Remarks          string             `json:"remarks" binding:"max=1000"`
	ReceivedBy       string             `json:"received_by" binding:"max=100"`
	PlanType         string             `json:"plan_type"`
	EMIIndex         *int               `json:"emi_index" binding:"omitempty,min=0"`
	ReminderEnabled  *bool              `json:"reminder_enabled"`
	NextReminderDate string             `json:"next_reminder_date" binding:"omitempty,datetime=2006-01-02"`
	StopReminders    bool               `json:"stop_reminders"`
	Enrollment       *EnrollmentRequest `json:"enrollment"`
}

// toInput converts the request; binding has already checked every format.
// receivedBy fills in a missing received_by.
func (r RecordPaymentRequest) toInput(loc *time.Location, receivedBy string) appfee.AddPaymentInput {
	d := fee.PaymentDraft{
		AccountID:       uuid.MustParse(r.AccountID),
		StudentID:       uuid.MustParse(r.StudentID),
		StudentName:     r.StudentName,
		Amount:          r.Amount,
		Date:            parseDate(r.Date, loc),
		Time:            r.Time,
		Mode:            fee.PaymentMode(r.Mode),
		PayerType:       fee.PayerType(r.PayerType),
		PayerName:       r.PayerName,
		Discount:        r.Discount,
		SpecialCharges:  r.SpecialCharges,
		TaxAmount:       r.TaxAmount,
		TransactionID:   r.TransactionID,
		ReferenceID:     r.ReferenceID,
		Remarks:         r.Remarks,
		ReceivedBy:      r.ReceivedBy,
		PlanType:        fee.PlanType(r.PlanType),
		EMIIndex:        r.EMIIndex,
		ReminderEnabled: r.ReminderEnabled,
		StopReminders:   r.StopReminders,
	}
	if d.ReceivedBy == "" {
		d.ReceivedBy = receivedBy
	}
	if r.NextReminderDate != "" {
		next := parseDate(r.NextReminderDate, loc)
		d.NextReminderDate = &next
	}

	in := appfee.AddPaymentInput{Payment: d}
	if r.Enrollment != nil {
		e := r.Enrollment.toInput(loc)
		in.Enrollment = &e
	}
	return in
}

func (r EnrollmentRequest) toInput(loc *time.Location) appfee.EnrollmentInput {
	e := appfee.EnrollmentInput{
		CourseID:               uuid.MustParse(r.CourseID),
		CourseFee:              r.CourseFee,
		CourseRegistrationFee:  r.CourseRegistrationFee,
		StudentRegistrationFee: r.StudentRegistrationFee,
		MonthlyDueDay:          r.MonthlyDueDay,
		InstallmentCount:       r.InstallmentCount,
	}
	if r.CohortID != nil {
		id := uuid.MustParse(*r.CohortID)
		e.CohortID = &id
	}
	if r.FirstDueDate != "" {
		first := parseDate(r.FirstDueDate, loc)
		e.FirstDueDate = &first
	}
	for i, item := range r.Schedule {
		e.Schedule = append(e.Schedule, fee.EMIItem{
			Index:   i,
			DueDate: parseDate(item.DueDate, loc),
			Amount:  item.Amount,
			Status:  fee.EMIStatusPending,
		})
	}
	return e
}

// OpenAccountRequest opens a fee account for an enrollment
type OpenAccountRequest struct {
	AccountID   string            `json:"account_id" binding:"omitempty,uuid"`
	StudentID   string            `json:"student_id" binding:"required,uuid"`
	StudentName string            `json:"student_name" binding:"max=200"`
	PlanType    string            `json:"plan_type" binding:"required"`
	Enrollment  EnrollmentRequest `json:"enrollment"`
}

func (r OpenAccountRequest) toInput(loc *time.Location) appfee.OpenAccountInput {
	in := appfee.OpenAccountInput{
		StudentID:   uuid.MustParse(r.StudentID),
		StudentName: r.StudentName,
		PlanType:    fee.PlanType(r.PlanType),
		Enrollment:  r.Enrollment.toInput(loc),
	}
	if r.AccountID != "" {
		in.AccountID = uuid.MustParse(r.AccountID)
	}
	return in
}

// UpdateEntryRequest corrects a ledger entry. Omitted fields stay unchanged.
type UpdateEntryRequest struct {
	Mode          *string          `json:"mode"`
	PayerType     *string          `json:"payer_type"`
	PayerName     *string          `json:"payer_name" binding:"omitempty,max=200"`
	ReferenceID   *string          `json:"reference_id" binding:"omitempty,max=100"`
	TransactionID *string          `json:"transaction_id" binding:"omitempty,max=100"`
	Remarks       *string          `json:"remarks" binding:"omitempty,max=1000"`
	Status        *string          `json:"status" binding:"omitempty,oneof=PENDING CONFIRMED VERIFIED FAILED REFUNDED"`
	Amount        *decimal.Decimal `json:"amount" binding:"omitempty,gt=0"`
}

func (r UpdateEntryRequest) toInput(updatedBy string) appfee.UpdateRecordInput {
	in := appfee.UpdateRecordInput{
		Details: fee.EntryDetails{
			PayerName:     r.PayerName,
			ReferenceID:   r.ReferenceID,
			TransactionID: r.TransactionID,
			Remarks:       r.Remarks,
		},
		Amount:    r.Amount,
		UpdatedBy: updatedBy,
	}
	if r.Mode != nil {
		m := fee.PaymentMode(*r.Mode)
		in.Details.Mode = &m
	}
	if r.PayerType != nil {
		p := fee.PayerType(*r.PayerType)
		in.Details.PayerType = &p
	}
	if r.Status != nil {
		s := fee.EntryStatus(*r.Status)
		in.Status = &s
	}
	return in
}

// HistoryRequest holds the ledger history query string
type HistoryRequest struct {
	Page           int      `form:"page" binding:"omitempty,min=1"`
	PageSize       int      `form:"page_size" binding:"omitempty,min=1,max=100"`
	SortBy         string   `form:"sort_by" binding:"omitempty,oneof=paid_at amount created_at receipt_number status"`
	SortDir        string   `form:"sort_dir" binding:"omitempty,oneof=asc desc ASC DESC"`
	IncludeDeleted bool     `form:"include_deleted"`
	Status         []string `form:"status" binding:"omitempty,dive,oneof=PENDING CONFIRMED VERIFIED FAILED REFUNDED"`
}

func (r HistoryRequest) toQuery() appfee.HistoryQuery {
	q := appfee.HistoryQuery{
		SortBy:         r.SortBy,
		SortDir:        r.SortDir,
		Page:           r.Page,
		PageSize:       r.PageSize,
		IncludeDeleted: r.IncludeDeleted,
	}
	for _, s := range r.Status {
		q.Statuses = append(q.Statuses, fee.EntryStatus(s))
	}
	return q
}

// LedgerEntryResponse is a ledger entry as returned by the API
type LedgerEntryResponse struct {
	ID             string          `json:"id"`
	AccountID      string          `json:"account_id"`
	StudentID      string          `json:"student_id"`
	StudentName    string          `json:"student_name,omitempty"`
	ReceiptNumber  string          `json:"receipt_number"`
	Amount         decimal.Decimal `json:"amount"`
	PaidAt         time.Time       `json:"paid_at"`
	Mode           string          `json:"mode"`
	PayerType      string          `json:"payer_type"`
	PayerName      string          `json:"payer_name,omitempty"`
	Discount       decimal.Decimal `json:"discount"`
	SpecialCharges decimal.Decimal `json:"special_charges"`
	TaxAmount      decimal.Decimal `json:"tax_amount"`
	TransactionID  string          `json:"transaction_id,omitempty"`
	ReferenceID    string          `json:"reference_id,omitempty"`
	Remarks        string          `json:"remarks,omitempty"`
	ReceivedBy     string          `json:"received_by"`
	Status         string          `json:"status"`
	PlanType       string          `json:"plan_type"`
	EMIIndex       *int            `json:"emi_index,omitempty"`
	IsDeleted      bool            `json:"is_deleted"`
	DeletedAt      *time.Time      `json:"deleted_at,omitempty"`
	DeletedBy      string          `json:"deleted_by,omitempty"`
	VerifiedAt     *time.Time      `json:"verified_at,omitempty"`
	VerifiedBy     string          `json:"verified_by,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

func toLedgerEntryResponse(e *fee.LedgerEntry) LedgerEntryResponse {
	return LedgerEntryResponse{
		ID:             e.ID.String(),
		AccountID:      e.AccountID.String(),
		StudentID:      e.StudentID.String(),
		StudentName:    e.StudentName,
		ReceiptNumber:  e.ReceiptNumber,
		Amount:         e.Amount,
		PaidAt:         e.PaidAt,
		Mode:           string(e.Mode),
		PayerType:      string(e.PayerType),
		PayerName:      e.PayerName,
		Discount:       e.Discount,
		SpecialCharges: e.SpecialCharges,
		TaxAmount:      e.TaxAmount,
		TransactionID:  e.TransactionID,
		ReferenceID:    e.ReferenceID,
		Remarks:        e.Remarks,
		ReceivedBy:     e.ReceivedBy,
		Status:         string(e.Status),
		PlanType:       string(e.PlanType),
		EMIIndex:       e.EMIIndex,
		IsDeleted:      e.IsDeleted,
		DeletedAt:      e.DeletedAt,
		DeletedBy:      e.DeletedBy,
		VerifiedAt:     e.VerifiedAt,
		VerifiedBy:     e.VerifiedBy,
		CreatedAt:      e.CreatedAt,
		UpdatedAt:      e.UpdatedAt,
	}
}

// FeeAccountResponse is a fee account as returned by the API
type FeeAccountResponse struct {
	ID                     string          `json:"id"`
	StudentID              string          `json:"student_id"`
	StudentName            string          `json:"student_name,omitempty"`
	CourseID               string          `json:"course_id"`
	CohortID               *string         `json:"cohort_id,omitempty"`
	PlanType               string          `json:"plan_type"`
	CourseFee              decimal.Decimal `json:"course_fee"`
	CourseRegistrationFee  decimal.Decimal `json:"course_registration_fee"`
	StudentRegistrationFee decimal.Decimal `json:"student_registration_fee"`
	TotalDue               decimal.Decimal `json:"total_due"`
	TotalReceived          decimal.Decimal `json:"total_received"`
	OutstandingAmount      decimal.Decimal `json:"outstanding_amount"`
	CollectionRate         decimal.Decimal `json:"collection_rate"`
	Status                 string          `json:"status"`
	Lifecycle              string          `json:"lifecycle"`
	PaymentCount           int             `json:"payment_count"`
	LastPaymentDate        *time.Time      `json:"last_payment_date,omitempty"`
	MonthlyDueDay          int             `json:"monthly_due_day,omitempty"`
	EMISchedule            []fee.EMIItem   `json:"emi_schedule,omitempty"`
	CurrentEMIIndex        int             `json:"current_emi_index"`
	NextDueDate            *time.Time      `json:"next_due_date,omitempty"`
	NextReminderDate       *time.Time      `json:"next_reminder_date,omitempty"`
	ReminderEnabled        bool            `json:"reminder_enabled"`
	ReminderFrequency      string          `json:"reminder_frequency,omitempty"`
	Version                int             `json:"version"`
	CreatedAt              time.Time       `json:"created_at"`
	UpdatedAt              time.Time       `json:"updated_at"`
}

func toFeeAccountResponse(a *fee.FeeAccount) FeeAccountResponse {
	resp := FeeAccountResponse{
		ID:                     a.ID.String(),
		StudentID:              a.StudentID.String(),
		StudentName:            a.StudentName,
		CourseID:               a.CourseID.String(),
		PlanType:               string(a.PlanType),
		CourseFee:              a.CourseFee,
		CourseRegistrationFee:  a.CourseRegistrationFee,
		StudentRegistrationFee: a.StudentRegistrationFee,
		TotalDue:               a.Fees().TotalDue(),
		TotalReceived:          a.TotalReceived,
		OutstandingAmount:      a.OutstandingAmount,
		CollectionRate:         a.CollectionRate,
		Status:                 string(a.Status),
		Lifecycle:              string(a.Lifecycle),
		PaymentCount:           a.PaymentCount,
		LastPaymentDate:        a.LastPaymentDate,
		MonthlyDueDay:          a.MonthlyDueDay,
		EMISchedule:            a.EMISchedule,
		CurrentEMIIndex:        a.CurrentEMIIndex,
		NextDueDate:            a.NextDueDate,
		NextReminderDate:       a.NextReminderDate,
		ReminderEnabled:        a.ReminderEnabled,
		ReminderFrequency:      string(a.ReminderFrequency),
		Version:                a.Version,
		CreatedAt:              a.CreatedAt,
		UpdatedAt:              a.UpdatedAt,
	}
	if a.CohortID != nil {
		id := a.CohortID.String()
		resp.CohortID = &id
	}
	return resp
}

// ReminderRunResponse reports the reminder scheduler's state
type ReminderRunResponse struct {
	Running   bool                       `json:"running"`
	LastRunAt *time.Time                 `json:"last_run_at,omitempty"`
	LastRun   appfee.ReminderSweepResult `json:"last_run"`
}

// parseDate reads a date that binding has already checked. The zero time
// is returned for "", leaving the required check to the ledger.
func parseDate(s string, loc *time.Location) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.ParseInLocation(dateLayout, s, loc)
	if err != nil {
		return time.Time{}
	}
	return t
}
