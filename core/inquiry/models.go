package inquiry

import (
	"context"
	"time"

	"github.com/volatiletech/null/v8"
)

type Status string

const (
	StatusOpen       Status = "open"
	StatusInProgress Status = "in_progress"
	StatusConverted  Status = "converted"
	StatusClosed     Status = "closed"
)

// Inquiry is a pre-admission contact record. The admission engine only reads it,
// except for marking it converted.
type Inquiry struct {
	ID                 string      `json:"id" db:"id"`
	FirstName          string      `json:"first_name" db:"first_name"`
	MiddleName         string      `json:"middle_name" db:"middle_name"`
	LastName           string      `json:"last_name" db:"last_name"`
	Email              string      `json:"email" db:"email"`
	Mobile             string      `json:"mobile" db:"mobile"`
	AltMobile          string      `json:"alt_mobile" db:"alt_mobile"`
	Gender             string      `json:"gender" db:"gender"`
	BirthDate          null.Time   `json:"birth_date" db:"birth_date"`
	Address            string      `json:"address" db:"address"`
	City               string      `json:"city" db:"city"`
	Qualification      string      `json:"qualification" db:"qualification"`
	InterestedCourseID null.String `json:"interested_course_id" db:"interested_course_id"`
	Notes              string      `json:"notes" db:"notes"`
	Status             Status      `json:"status" db:"status"`
	CreatedAt          time.Time   `json:"created_at" db:"created_at"`
	UpdatedAt          time.Time   `json:"updated_at" db:"updated_at"`
}

// IsConvertible reports whether the inquiry may still be marked converted.
func (inq Inquiry) IsConvertible() bool {
	return inq.Status == StatusOpen || inq.Status == StatusInProgress
}

type Repository interface {
	CreateInquiry(ctx context.Context, inq Inquiry) (Inquiry, error)
	GetInquiry(ctx context.Context, id string) (Inquiry, error)
	// FindInquiriesByName does a case-insensitive exact match on first & last names, restricted to `statuses`.
	FindInquiriesByName(ctx context.Context, firstName, lastName string, statuses ...Status) ([]Inquiry, error)
	// UpdateInquiryStatus sets the status of an inquiry. When `from` is given, the inquiry must
	// currently be in one of those statuses, otherwise core.ErrStateViolation is returned.
	UpdateInquiryStatus(ctx context.Context, id string, status Status, from ...Status) (Inquiry, error)
}
