package persistence

import (
	"context"
	"errors"
	"strings"
	"time"

	appfee "github.com/academy/backend/internal/application/fee"
	"github.com/academy/backend/internal/domain/shared"
	"github.com/academy/backend/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormStudentContactDirectory stores the addresses payment notices go to
type GormStudentContactDirectory struct {
	db *gorm.DB
}

// NewGormStudentContactDirectory creates a new GormStudentContactDirectory
func NewGormStudentContactDirectory(db *gorm.DB) *GormStudentContactDirectory {
	return &GormStudentContactDirectory{db: db}
}

// Contact returns the contact of a student, if they have one and have not opted out
func (d *GormStudentContactDirectory) Contact(ctx context.Context, tenantID, studentID uuid.UUID) (appfee.Contact, bool, error) {
	var model models.StudentContactModel
	err := d.db.WithContext(ctx).
		Where("tenant_id = ? AND student_id = ?", tenantID, studentID).
		First(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return appfee.Contact{}, false, nil
	}
	if err != nil {
		return appfee.Contact{}, false, err
	}
	if model.OptedOut || model.Email == "" {
		return appfee.Contact{}, false, nil
	}
	return appfee.Contact{Name: model.Name, Email: model.Email}, true, nil
}

// SetContact creates or replaces a student's contact
func (d *GormStudentContactDirectory) SetContact(ctx context.Context, tenantID, studentID uuid.UUID, c appfee.Contact, optedOut bool) error {
	email := strings.TrimSpace(c.Email)
	if email == "" {
		return shared.NewDomainError("INVALID_EMAIL", "Contact email cannot be empty")
	}
	now := time.Now()
	model := models.StudentContactModel{
		BaseModel: models.BaseModel{ID: uuid.New(), CreatedAt: now, UpdatedAt: now},
		TenantID:  tenantID,
		StudentID: studentID,
		Name:      strings.TrimSpace(c.Name),
		Email:     email,
		OptedOut:  optedOut,
	}
	return d.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "tenant_id"}, {Name: "student_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"name", "email", "opted_out", "updated_at"}),
		}).
		Create(&model).Error
}

var _ appfee.ContactDirectory = (*GormStudentContactDirectory)(nil)
