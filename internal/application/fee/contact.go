package fee

import (
	"context"

	"github.com/google/uuid"
)

// Contact is where a student's payment notices go
type Contact struct {
	Name  string
	Email string
}

// ContactDirectory resolves the contact of a student. ok is false when the
// student has no address on file or has opted out.
type ContactDirectory interface {
	Contact(ctx context.Context, tenantID, studentID uuid.UUID) (c Contact, ok bool, err error)
}
