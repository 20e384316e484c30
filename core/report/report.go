// Package report lists the students and exam requests waiting for an action.
// Reports are read-only: building one never changes a student.
package report

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/trezcool/admissions/core"
	"github.com/trezcool/admissions/core/exam"
	"github.com/trezcool/admissions/core/fees"
	"github.com/trezcool/admissions/core/store"
	"github.com/trezcool/admissions/core/student"
)

// Exam aging buckets, by pending days.
const (
	BucketOver30 = ">30"
	BucketOver15 = ">15"
	BucketRecent = "<=15"
)

// Filter applies an AND operation on the set fields.
// The date range is on the enrolment date for students and on the request date for exams;
// `To` is exclusive.
type Filter struct {
	CourseID       string              `query:"course_id"`
	From           time.Time           `query:"from"`
	To             time.Time           `query:"to"`
	MinPendingFees decimal.NullDecimal `query:"min_pending_fees"`
	MinPendingDays int                 `query:"min_pending_days" validate:"gte=0"`

	// Ordering sorts the student reports; by enrolment date when empty.
	Ordering []core.DBOrdering `query:"-"`
}

func (f *Filter) Clean() {
	f.CourseID = core.CleanString(f.CourseID)
}

type StudentRow struct {
	StudentID   string          `json:"student_id"`
	Name        string          `json:"name"`
	Mobile      string          `json:"mobile"`
	CourseID    string          `json:"course_id"`
	BatchID     string          `json:"batch_id"`
	Plan        fees.Plan       `json:"payment_plan"`
	State       student.State   `json:"state"`
	TotalFees   decimal.Decimal `json:"total_fees"`
	PendingFees decimal.Decimal `json:"pending_fees"`
	EnrolledAt  time.Time       `json:"enrolled_at"`
	PendingDays int             `json:"pending_days"` // since enrolment
}

type ExamRow struct {
	RequestID   string    `json:"request_id"`
	StudentID   string    `json:"student_id"`
	Name        string    `json:"name"`
	CourseID    string    `json:"course_id"`
	RequestedAt time.Time `json:"requested_at"`
	PendingDays int       `json:"pending_days"`
	Bucket      string    `json:"bucket"`
}

// PendingDays returns the number of whole days between the day of `since` and today (UTC).
func PendingDays(since time.Time) int {
	days := int(core.Today().Sub(core.TruncateDay(since)).Hours() / 24)
	if days < 0 {
		return 0
	}
	return days
}

// Bucket groups pending days for display. The days themselves stay the source of truth.
func Bucket(days int) string {
	switch {
	case days > 30:
		return BucketOver30
	case days > 15:
		return BucketOver15
	default:
		return BucketRecent
	}
}

type Service struct {
	store store.Store
}

func NewService(st store.Store) *Service {
	return &Service{store: st}
}

var studentOrdering = []core.DBOrdering{{Field: "enrolled_at", Ascending: true}}

// PendingAdmissionFees lists the students who still owe their admission fee.
func (svc *Service) PendingAdmissionFees(ctx context.Context, f Filter) ([]StudentRow, error) {
	return svc.students(ctx, f, student.StateFeesDue)
}

// PendingRegistration lists the cleared students not registered yet.
func (svc *Service) PendingRegistration(ctx context.Context, f Filter) ([]StudentRow, error) {
	return svc.students(ctx, f, student.StateFeesCleared, student.StateRegistrationPending)
}

func (svc *Service) students(ctx context.Context, f Filter, states ...student.State) ([]StudentRow, error) {
	f.Clean()
	ordering := f.Ordering
	if len(ordering) == 0 {
		ordering = studentOrdering
	}
	students, err := svc.store.Repos().Students().QueryStudents(ctx, student.QueryFilter{
		States:         states,
		CourseID:       f.CourseID,
		EnrolledFrom:   f.From,
		EnrolledTo:     f.To,
		MinPendingFees: f.MinPendingFees,
	}, ordering)
	if err != nil {
		return nil, errors.Wrap(err, "querying students")
	}

	rows := make([]StudentRow, 0, len(students))
	for _, std := range students {
		days := PendingDays(std.EnrolledAt)
		if days < f.MinPendingDays {
			continue
		}
		rows = append(rows, StudentRow{
			StudentID:   std.ID,
			Name:        std.FullName(),
			Mobile:      std.Mobile,
			CourseID:    std.CourseID,
			BatchID:     std.BatchID,
			Plan:        std.PaymentPlan,
			State:       std.State,
			TotalFees:   std.TotalFees,
			PendingFees: std.PendingFees,
			EnrolledAt:  std.EnrolledAt,
			PendingDays: days,
		})
	}
	return rows, nil
}

// PendingExams lists the open exam requests, oldest first.
func (svc *Service) PendingExams(ctx context.Context, f Filter) ([]ExamRow, error) {
	f.Clean()
	repos := svc.store.Repos()
	reqs, err := repos.ExamRequests().QueryOpenExamRequests(ctx, exam.QueryFilter{
		CourseID:      f.CourseID,
		RequestedFrom: f.From,
		RequestedTo:   f.To,
	})
	if err != nil {
		return nil, errors.Wrap(err, "querying exam requests")
	}

	pending := make([]exam.Request, 0, len(reqs))
	ids := make([]string, 0, len(reqs))
	for _, req := range reqs {
		if PendingDays(req.RequestedAt) >= f.MinPendingDays {
			pending = append(pending, req)
			ids = append(ids, req.StudentID)
		}
	}
	if len(pending) == 0 {
		return make([]ExamRow, 0), nil
	}

	students, err := repos.Students().QueryStudents(ctx, student.QueryFilter{IDs: ids}, nil)
	if err != nil {
		return nil, errors.Wrap(err, "querying students")
	}
	names := make(map[string]string, len(students))
	for _, std := range students {
		names[std.ID] = std.FullName()
	}

	rows := make([]ExamRow, 0, len(pending))
	for _, req := range pending {
		days := PendingDays(req.RequestedAt)
		rows = append(rows, ExamRow{
			RequestID:   req.ID,
			StudentID:   req.StudentID,
			Name:        names[req.StudentID],
			CourseID:    req.CourseID,
			RequestedAt: req.RequestedAt,
			PendingDays: days,
			Bucket:      Bucket(days),
		})
	}
	return rows, nil
}
