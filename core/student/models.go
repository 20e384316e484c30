package student

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/admissions/core"
	"github.com/trezcool/admissions/core/fees"
)

// Profile holds the identity, contact and demographic fields of a student.
type Profile struct {
	FirstName     string    `json:"first_name" db:"first_name" validate:"required,notblank,max=100"`
	MiddleName    string    `json:"middle_name" db:"middle_name" validate:"max=100"`
	LastName      string    `json:"last_name" db:"last_name" validate:"required,notblank,max=100"`
	Email         string    `json:"email" db:"email" validate:"omitempty,email"`
	Mobile        string    `json:"mobile" db:"mobile" validate:"omitempty,max=20"`
	AltMobile     string    `json:"alt_mobile" db:"alt_mobile" validate:"omitempty,max=20"`
	Gender        string    `json:"gender" db:"gender" validate:"omitempty,oneof=female male other"`
	BirthDate     null.Time `json:"birth_date" db:"birth_date"`
	Address       string    `json:"address" db:"address"`
	City          string    `json:"city" db:"city"`
	Qualification string    `json:"qualification" db:"qualification"`
}

// Clean trims every field and lowers the email & gender.
func (p *Profile) Clean() {
	p.FirstName = core.CleanString(p.FirstName)
	p.MiddleName = core.CleanString(p.MiddleName)
	p.LastName = core.CleanString(p.LastName)
	p.Email = core.CleanString(p.Email, true /* lower */)
	p.Mobile = core.CleanString(p.Mobile)
	p.AltMobile = core.CleanString(p.AltMobile)
	p.Gender = core.CleanString(p.Gender, true /* lower */)
	p.Address = core.CleanString(p.Address)
	p.City = core.CleanString(p.City)
	p.Qualification = core.CleanString(p.Qualification)
}

func (p Profile) FullName() string {
	parts := make([]string, 0, 3)
	for _, part := range []string{p.FirstName, p.MiddleName, p.LastName} {
		if part != "" {
			parts = append(parts, part)
		}
	}
	return strings.Join(parts, " ")
}

type Student struct {
	ID       string `json:"id" db:"id"`
	Profile         // identity fields
	CourseID string `json:"course_id" db:"course_id"`
	BatchID  string `json:"batch_id" db:"batch_id"`

	// financial snapshot taken at enrolment
	PaymentPlan         fees.Plan       `json:"payment_plan" db:"payment_plan"`
	TotalFees           decimal.Decimal `json:"total_fees" db:"total_fees"`
	AdmissionFees       decimal.Decimal `json:"admission_fees" db:"admission_fees"`
	PendingFees         decimal.Decimal `json:"pending_fees" db:"pending_fees"` // derived from receipts
	Schedule            *fees.Schedule  `json:"schedule,omitempty" db:"-"`
	IsAdmissionFeesPaid bool            `json:"is_admission_fees_paid" db:"is_admission_fees_paid"`

	State        State       `json:"state" db:"state"`
	InquiryID    null.String `json:"inquiry_id" db:"inquiry_id"`
	Username     null.String `json:"username" db:"username"`
	CancelReason string      `json:"cancel_reason,omitempty" db:"cancel_reason"`
	Version      int         `json:"version" db:"version"`

	EnrolledAt   time.Time `json:"enrolled_at" db:"enrolled_at"` // UTC
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`   // UTC
	RegisteredAt null.Time `json:"registered_at" db:"registered_at"`
	CancelledAt  null.Time `json:"cancelled_at" db:"cancelled_at"`
}

func (s Student) IsMonthly() bool {
	return s.PaymentPlan == fees.Monthly
}

// QueryFilter applies an AND operation on the set fields.
type QueryFilter struct {
	IDs            []string
	States         []State
	CourseID       string
	EnrolledFrom   time.Time
	EnrolledTo     time.Time
	MinPendingFees decimal.NullDecimal
}

type Repository interface {
	CreateStudent(ctx context.Context, std Student) (Student, error)
	GetStudent(ctx context.Context, id string) (Student, error)
	// GetStudentForUpdate reads the latest committed student and locks it until the end of the unit of work.
	GetStudentForUpdate(ctx context.Context, id string) (Student, error)
	// UpdateStudent persists `std` if its Version is still current, and bumps the Version.
	UpdateStudent(ctx context.Context, std Student) (Student, error)
	// FindStudentsByName does a case-insensitive exact match on first & last names.
	FindStudentsByName(ctx context.Context, firstName, lastName string) ([]Student, error)
	QueryStudents(ctx context.Context, filter QueryFilter, ordering []core.DBOrdering) ([]Student, error)
}
