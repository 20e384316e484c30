package exam

import (
	"context"
	"time"

	"github.com/volatiletech/null/v8"
)

// Request is an exam requested for a student, open until completed.
type Request struct {
	ID          string    `json:"id" db:"id"`
	StudentID   string    `json:"student_id" db:"student_id"`
	CourseID    string    `json:"course_id" db:"course_id"`
	RequestedAt time.Time `json:"requested_at" db:"requested_at"` // UTC
	CompletedAt null.Time `json:"completed_at" db:"completed_at"`
	Remarks     string    `json:"remarks" db:"remarks"`
}

func (r Request) IsOpen() bool {
	return !r.CompletedAt.Valid
}

type QueryFilter struct {
	CourseID      string
	RequestedFrom time.Time
	RequestedTo   time.Time
}

type Repository interface {
	CreateExamRequest(ctx context.Context, req Request) (Request, error)
	GetExamRequest(ctx context.Context, id string) (Request, error)
	CompleteExamRequest(ctx context.Context, id string, at time.Time) (Request, error)
	// QueryOpenExamRequests returns the requests not completed yet, oldest first.
	QueryOpenExamRequests(ctx context.Context, filter QueryFilter) ([]Request, error)
}
