package pgdb

import (
	"context"
	"database/sql"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/pkg/errors"

	"github.com/trezcool/admissions/core"
	"github.com/trezcool/admissions/core/exam"
)

type examRepository struct {
	q querier
}

func (repo examRepository) CreateExamRequest(ctx context.Context, req exam.Request) (exam.Request, error) {
	_, err := exec(ctx, repo.q, psql.Insert("exam_requests").SetMap(map[string]interface{}{
		"id":           req.ID,
		"student_id":   req.StudentID,
		"course_id":    req.CourseID,
		"requested_at": req.RequestedAt,
		"completed_at": req.CompletedAt,
		"remarks":      req.Remarks,
	}))
	if err != nil {
		if pqCode(err) == foreignKeyViolation {
			return exam.Request{}, errors.Wrapf(core.ErrNotFound, "student %q", req.StudentID)
		}
		return exam.Request{}, errors.Wrapf(err, "creating exam request %q", req.ID)
	}
	return req, nil
}

func (repo examRepository) GetExamRequest(ctx context.Context, id string) (exam.Request, error) {
	var req exam.Request
	if err := get(ctx, repo.q, &req, psql.Select("*").From("exam_requests").Where("id = ?", id)); err != nil {
		return exam.Request{}, notFound(err, "exam request %q", id)
	}
	return req, nil
}

func (repo examRepository) CompleteExamRequest(ctx context.Context, id string, at time.Time) (exam.Request, error) {
	var req exam.Request
	err := get(ctx, repo.q, &req, psql.Update("exam_requests").
		Set("completed_at", at.UTC()).
		Where("id = ? AND completed_at IS NULL", id).
		Suffix("RETURNING *"))
	if err == nil {
		return req, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return exam.Request{}, errors.Wrapf(err, "completing exam request %q", id)
	}
	if _, err = repo.GetExamRequest(ctx, id); err != nil {
		return exam.Request{}, err
	}
	return exam.Request{}, errors.Wrapf(core.ErrStateViolation, "exam request %q is already completed", id)
}

func (repo examRepository) QueryOpenExamRequests(ctx context.Context, filter exam.QueryFilter) ([]exam.Request, error) {
	b := psql.Select("*").From("exam_requests").Where("completed_at IS NULL")
	if filter.CourseID != "" {
		b = b.Where(sq.Eq{"course_id": filter.CourseID})
	}
	if !filter.RequestedFrom.IsZero() {
		b = b.Where(sq.GtOrEq{"requested_at": filter.RequestedFrom})
	}
	if !filter.RequestedTo.IsZero() {
		b = b.Where(sq.Lt{"requested_at": filter.RequestedTo})
	}

	reqs := make([]exam.Request, 0)
	if err := sel(ctx, repo.q, &reqs, b.OrderBy("requested_at", "id")); err != nil {
		return nil, errors.Wrap(err, "querying exam requests")
	}
	return reqs, nil
}
