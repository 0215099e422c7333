package models

import (
	"time"

	"github.com/academy/backend/internal/domain/fee"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// FeeAccountModel is the persistence model for the FeeAccount aggregate root.
type FeeAccountModel struct {
	TenantAggregateModel
	StudentID   uuid.UUID    `gorm:"type:uuid;not null;index:idx_fee_accounts_enrollment"`
	StudentName string       `gorm:"type:varchar(200)"`
	CourseID    uuid.UUID    `gorm:"type:uuid;not null;index:idx_fee_accounts_enrollment"`
	CohortID    *uuid.UUID   `gorm:"type:uuid"`
	PlanType    fee.PlanType `gorm:"type:varchar(30);not null"`

	CourseFee              decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	CourseRegistrationFee  decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	StudentRegistrationFee decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`

	MonthlyDueDay   int                              `gorm:"not null;default:0"`
	EMISchedule     datatypes.JSONSlice[fee.EMIItem] `gorm:"column:emi_schedule"`
	CurrentEMIIndex int                              `gorm:"column:current_emi_index;not null;default:0"`

	TotalReceived     decimal.Decimal      `gorm:"type:decimal(18,4);not null;default:0"`
	OutstandingAmount decimal.Decimal      `gorm:"type:decimal(18,4);not null;default:0"`
	CollectionRate    decimal.Decimal      `gorm:"type:decimal(7,2);not null;default:0"`
	Status            fee.PaymentStatus    `gorm:"type:varchar(20);not null;index"`
	Lifecycle         fee.AccountLifecycle `gorm:"type:varchar(20);not null"`
	PaymentCount      int                  `gorm:"not null;default:0"`
	LastPaymentDate   *time.Time

	NextDueDate       *time.Time
	NextReminderDate  *time.Time            `gorm:"index"`
	ReminderEnabled   bool                  `gorm:"not null;default:false"`
	ReminderFrequency fee.ReminderFrequency `gorm:"type:varchar(20);not null;default:'NONE'"`
	LastReminderAt    *time.Time
}

// TableName returns the table name for GORM
func (FeeAccountModel) TableName() string {
	return "fee_accounts"
}

// ToDomain converts the persistence model to a domain FeeAccount.
func (m *FeeAccountModel) ToDomain() *fee.FeeAccount {
	a := &fee.FeeAccount{
		StudentID:              m.StudentID,
		StudentName:            m.StudentName,
		CourseID:               m.CourseID,
		CohortID:               m.CohortID,
		PlanType:               m.PlanType,
		CourseFee:              m.CourseFee,
		CourseRegistrationFee:  m.CourseRegistrationFee,
		StudentRegistrationFee: m.StudentRegistrationFee,
		MonthlyDueDay:          m.MonthlyDueDay,
		EMISchedule:            fee.CloneSchedule(m.EMISchedule),
		CurrentEMIIndex:        m.CurrentEMIIndex,
		TotalReceived:          m.TotalReceived,
		OutstandingAmount:      m.OutstandingAmount,
		CollectionRate:         m.CollectionRate,
		Status:                 m.Status,
		Lifecycle:              m.Lifecycle,
		PaymentCount:           m.PaymentCount,
		LastPaymentDate:        m.LastPaymentDate,
		NextDueDate:            m.NextDueDate,
		NextReminderDate:       m.NextReminderDate,
		ReminderEnabled:        m.ReminderEnabled,
		ReminderFrequency:      m.ReminderFrequency,
		LastReminderAt:         m.LastReminderAt,
	}
	m.PopulateTenantAggregateRoot(&a.TenantAggregateRoot)
	return a
}

// FromDomain populates the model from a domain FeeAccount.
func (m *FeeAccountModel) FromDomain(a *fee.FeeAccount) {
	m.FromDomainTenantAggregateRoot(a.TenantAggregateRoot)
	m.StudentID = a.StudentID
	m.StudentName = a.StudentName
	m.CourseID = a.CourseID
	m.CohortID = a.CohortID
	m.PlanType = a.PlanType
	m.CourseFee = a.CourseFee
	m.CourseRegistrationFee = a.CourseRegistrationFee
	m.StudentRegistrationFee = a.StudentRegistrationFee
	m.MonthlyDueDay = a.MonthlyDueDay
	m.EMISchedule = datatypes.NewJSONSlice(fee.CloneSchedule(a.EMISchedule))
	m.CurrentEMIIndex = a.CurrentEMIIndex
	m.TotalReceived = a.TotalReceived
	m.OutstandingAmount = a.OutstandingAmount
	m.CollectionRate = a.CollectionRate
	m.Status = a.Status
	m.Lifecycle = a.Lifecycle
	m.PaymentCount = a.PaymentCount
	m.LastPaymentDate = a.LastPaymentDate
	m.NextDueDate = a.NextDueDate
	m.NextReminderDate = a.NextReminderDate
	m.ReminderEnabled = a.ReminderEnabled
	m.ReminderFrequency = a.ReminderFrequency
	m.LastReminderAt = a.LastReminderAt
}

// FeeAccountModelFromDomain creates a new persistence model from a domain FeeAccount.
func FeeAccountModelFromDomain(a *fee.FeeAccount) *FeeAccountModel {
	m := &FeeAccountModel{}
	m.FromDomain(a)
	return m
}

// LedgerEntryModel is the persistence model for one payment ledger entry.
type LedgerEntryModel struct {
	TenantAggregateModel
	AccountID      uuid.UUID       `gorm:"type:uuid;not null;index:idx_ledger_account_paid_at,priority:1"`
	StudentID      uuid.UUID       `gorm:"type:uuid;not null;index"`
	StudentName    string          `gorm:"type:varchar(200)"`
	Amount         decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	PaidAt         time.Time       `gorm:"not null;index:idx_ledger_account_paid_at,priority:2"`
	Mode           fee.PaymentMode `gorm:"type:varchar(20);not null"`
	PayerType      fee.PayerType   `gorm:"type:varchar(20)"`
	PayerName      string          `gorm:"type:varchar(200)"`
	Discount       decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	SpecialCharges decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	TaxAmount      decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	TransactionID  string          `gorm:"type:varchar(100)"`
	ReferenceID    string          `gorm:"type:varchar(100)"`
	Remarks        string          `gorm:"type:text"`
	ReceivedBy     string          `gorm:"type:varchar(100);not null"`
	ReceiptNumber  string          `gorm:"type:varchar(50);not null;index"`
	Status         fee.EntryStatus `gorm:"type:varchar(20);not null"`
	PlanType       fee.PlanType    `gorm:"type:varchar(30);not null"`
	EMIIndex       *int            `gorm:"column:emi_index"`

	IsDeleted  bool `gorm:"not null;default:false"`
	DeletedAt  *time.Time
	DeletedBy  string `gorm:"type:varchar(100)"`
	VerifiedAt *time.Time
	VerifiedBy string `gorm:"type:varchar(100)"`
}

// TableName returns the table name for GORM
func (LedgerEntryModel) TableName() string {
	return "payment_ledger_entries"
}

// ToDomain converts the persistence model to a domain LedgerEntry.
func (m *LedgerEntryModel) ToDomain() *fee.LedgerEntry {
	e := &fee.LedgerEntry{
		AccountID:      m.AccountID,
		StudentID:      m.StudentID,
		StudentName:    m.StudentName,
		Amount:         m.Amount,
		PaidAt:         m.PaidAt,
		Mode:           m.Mode,
		PayerType:      m.PayerType,
		PayerName:      m.PayerName,
		Discount:       m.Discount,
		SpecialCharges: m.SpecialCharges,
		TaxAmount:      m.TaxAmount,
		TransactionID:  m.TransactionID,
		ReferenceID:    m.ReferenceID,
		Remarks:        m.Remarks,
		ReceivedBy:     m.ReceivedBy,
		ReceiptNumber:  m.ReceiptNumber,
		Status:         m.Status,
		PlanType:       m.PlanType,
		EMIIndex:       m.EMIIndex,
		IsDeleted:      m.IsDeleted,
		DeletedAt:      m.DeletedAt,
		DeletedBy:      m.DeletedBy,
		VerifiedAt:     m.VerifiedAt,
		VerifiedBy:     m.VerifiedBy,
	}
	m.PopulateTenantAggregateRoot(&e.TenantAggregateRoot)
	return e
}

// FromDomain populates the model from a domain LedgerEntry.
func (m *LedgerEntryModel) FromDomain(e *fee.LedgerEntry) {
	m.FromDomainTenantAggregateRoot(e.TenantAggregateRoot)
	m.AccountID = e.AccountID
	m.StudentID = e.StudentID
	m.StudentName = e.StudentName
	m.Amount = e.Amount
	m.PaidAt = e.PaidAt
	m.Mode = e.Mode
	m.PayerType = e.PayerType
	m.PayerName = e.PayerName
	m.Discount = e.Discount
	m.SpecialCharges = e.SpecialCharges
	m.TaxAmount = e.TaxAmount
	m.TransactionID = e.TransactionID
	m.ReferenceID = e.ReferenceID
	m.Remarks = e.Remarks
	m.ReceivedBy = e.ReceivedBy
	m.ReceiptNumber = e.ReceiptNumber
	m.Status = e.Status
	m.PlanType = e.PlanType
	m.EMIIndex = e.EMIIndex
	m.IsDeleted = e.IsDeleted
	m.DeletedAt = e.DeletedAt
	m.DeletedBy = e.DeletedBy
	m.VerifiedAt = e.VerifiedAt
	m.VerifiedBy = e.VerifiedBy
}

// LedgerEntryModelFromDomain creates a new persistence model from a domain LedgerEntry.
func LedgerEntryModelFromDomain(e *fee.LedgerEntry) *LedgerEntryModel {
	m := &LedgerEntryModel{}
	m.FromDomain(e)
	return m
}
