package inmemdb

import (
	"context"
	"sort"
	"time"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/admissions/core"
	"github.com/trezcool/admissions/core/exam"
)

type examRepository struct {
	db *DB
}

func (repo examRepository) CreateExamRequest(_ context.Context, req exam.Request) (exam.Request, error) {
	repo.db.lock()
	defer repo.db.unlock()

	if _, ok := repo.db.data.students[req.StudentID]; !ok {
		return exam.Request{}, errors.Wrapf(core.ErrNotFound, "student %q", req.StudentID)
	}
	repo.db.data.exams[req.ID] = req
	return req, nil
}

func (repo examRepository) GetExamRequest(_ context.Context, id string) (exam.Request, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if req, ok := repo.db.data.exams[id]; ok {
		return req, nil
	}
	return exam.Request{}, errors.Wrapf(core.ErrNotFound, "exam request %q", id)
}

func (repo examRepository) CompleteExamRequest(_ context.Context, id string, at time.Time) (exam.Request, error) {
	repo.db.lock()
	defer repo.db.unlock()

	req, ok := repo.db.data.exams[id]
	if !ok {
		return exam.Request{}, errors.Wrapf(core.ErrNotFound, "exam request %q", id)
	}
	if !req.IsOpen() {
		return exam.Request{}, errors.Wrapf(core.ErrStateViolation, "exam request %q is already completed", id)
	}
	req.CompletedAt = null.TimeFrom(at.UTC())
	repo.db.data.exams[id] = req
	return req, nil
}

func (repo examRepository) QueryOpenExamRequests(_ context.Context, filter exam.QueryFilter) ([]exam.Request, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	reqs := make([]exam.Request, 0)
	for _, req := range repo.db.data.exams {
		if !req.IsOpen() {
			continue
		}
		if filter.CourseID != "" && req.CourseID != filter.CourseID {
			continue
		}
		if !filter.RequestedFrom.IsZero() && req.RequestedAt.Before(filter.RequestedFrom) {
			continue
		}
		if !filter.RequestedTo.IsZero() && !req.RequestedAt.Before(filter.RequestedTo) {
			continue
		}
		reqs = append(reqs, req)
	}
	sort.Slice(reqs, func(i, j int) bool {
		if !reqs[i].RequestedAt.Equal(reqs[j].RequestedAt) {
			return reqs[i].RequestedAt.Before(reqs[j].RequestedAt)
		}
		return reqs[i].ID < reqs[j].ID
	})
	return reqs, nil
}
