package fee

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// FeeSource says which step of the resolution supplied the course fee.
type FeeSource string

const (
	FeeSourcePayment FeeSource = "PAYMENT"
	FeeSourceCohort  FeeSource = "COHORT"
	FeeSourceCourse  FeeSource = "COURSE"
	FeeSourceNone    FeeSource = "NONE"
)

// CohortFeeLookup finds a cohort-specific fee. found is false when the
// cohort has no fee of its own.
type CohortFeeLookup interface {
	CohortFee(ctx context.Context, tenantID, cohortID uuid.UUID) (fee decimal.Decimal, found bool, err error)
}

// CourseFeeLookup finds the catalog fee of a course.
type CourseFeeLookup interface {
	CourseFee(ctx context.Context, tenantID, courseID uuid.UUID) (fee decimal.Decimal, found bool, err error)
}

// FeeQuery is what the payment knows about its enrollment.
type FeeQuery struct {
	Override *decimal.Decimal
	CohortID *uuid.UUID
	CourseID uuid.UUID
}

// ResolvedFee is a course fee together with where it came from.
type ResolvedFee struct {
	Amount decimal.Decimal
	Source FeeSource
}

// ResolveCourseFee picks the course fee in a fixed order:
//
//  1. an explicit amount on the payment
//  2. the cohort's own fee
//  3. the course catalog fee
//  4. zero
//
// A positive value is required for steps 1-3 to win. Nil lookups are skipped.
func ResolveCourseFee(ctx context.Context, tenantID uuid.UUID, q FeeQuery, cohorts CohortFeeLookup, courses CourseFeeLookup) (ResolvedFee, error) {
	if q.Override != nil && q.Override.IsPositive() {
		return ResolvedFee{Amount: *q.Override, Source: FeeSourcePayment}, nil
	}
	if cohorts != nil && q.CohortID != nil && *q.CohortID != uuid.Nil {
		fee, found, err := cohorts.CohortFee(ctx, tenantID, *q.CohortID)
		if err != nil {
			return ResolvedFee{}, fmt.Errorf("failed to look up cohort fee: %w", err)
		}
		if found && fee.IsPositive() {
			return ResolvedFee{Amount: fee, Source: FeeSourceCohort}, nil
		}
	}
	if courses != nil && q.CourseID != uuid.Nil {
		fee, found, err := courses.CourseFee(ctx, tenantID, q.CourseID)
		if err != nil {
			return ResolvedFee{}, fmt.Errorf("failed to look up course fee: %w", err)
		}
		if found && fee.IsPositive() {
			return ResolvedFee{Amount: fee, Source: FeeSourceCourse}, nil
		}
	}
	return ResolvedFee{Amount: decimal.Zero, Source: FeeSourceNone}, nil
}
