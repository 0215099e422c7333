package models

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CourseFeeModel is the catalog fee of a course.
type CourseFeeModel struct {
	BaseModel
	TenantID uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:idx_course_fee_tenant_course,priority:1"`
	CourseID uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:idx_course_fee_tenant_course,priority:2"`
	Name     string          `gorm:"type:varchar(200)"`
	Fee      decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
}

// TableName returns the table name for GORM
func (CourseFeeModel) TableName() string {
	return "course_fees"
}

// CohortFeeModel is a fee that overrides the course fee for one cohort.
type CohortFeeModel struct {
	BaseModel
	TenantID uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:idx_cohort_fee_tenant_cohort,priority:1"`
	CohortID uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:idx_cohort_fee_tenant_cohort,priority:2"`
	CourseID uuid.UUID       `gorm:"type:uuid;not null;index"`
	Fee      decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
}

// TableName returns the table name for GORM
func (CohortFeeModel) TableName() string {
	return "cohort_fees"
}

// StudentContactModel is where payment notices for a student are sent.
type StudentContactModel struct {
	BaseModel
	TenantID  uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_student_contact_tenant_student,priority:1"`
	StudentID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_student_contact_tenant_student,priority:2"`
	Name      string    `gorm:"type:varchar(200)"`
	Email     string    `gorm:"type:varchar(320);not null"`
	OptedOut  bool      `gorm:"not null;default:false"`
}

// TableName returns the table name for GORM
func (StudentContactModel) TableName() string {
	return "student_contacts"
}
