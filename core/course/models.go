package course

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/volatiletech/null/v8"
)

// Course is read-only master data. Students snapshot its prices at enrolment.
type Course struct {
	ID               string          `json:"id" db:"id"`
	Name             string          `json:"name" db:"name"`
	CourseFees       decimal.Decimal `json:"course_fees" db:"course_fees"` // total sticker price
	AdmissionFees    decimal.Decimal `json:"admission_fees" db:"admission_fees"`
	RegistrationFees decimal.Decimal `json:"registration_fees" db:"registration_fees"`
	TotalInstallment int             `json:"total_installment" db:"total_installment"`
	Duration         int             `json:"duration" db:"duration"` // months
	CreatedAt        time.Time       `json:"created_at" db:"created_at"`
}

type Batch struct {
	ID        string    `json:"id" db:"id"`
	CourseID  string    `json:"course_id" db:"course_id"`
	Name      string    `json:"name" db:"name"`
	StartsOn  null.Time `json:"starts_on" db:"starts_on"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Repository is the master-data lookup. Create* only serve seeding and tests.
type Repository interface {
	CreateCourse(ctx context.Context, crs Course) (Course, error)
	CreateBatch(ctx context.Context, b Batch) (Batch, error)
	GetCourse(ctx context.Context, id string) (Course, error)
	GetBatch(ctx context.Context, id string) (Batch, error)
}
