package inmemdb

import (
	"context"

	"github.com/pkg/errors"

	"github.com/trezcool/admissions/core"
	"github.com/trezcool/admissions/core/course"
)

type courseRepository struct {
	db *DB
}

func (repo courseRepository) CreateCourse(_ context.Context, crs course.Course) (course.Course, error) {
	repo.db.lock()
	defer repo.db.unlock()

	if crs.CreatedAt.IsZero() {
		crs.CreatedAt = core.NowFunc().UTC()
	}
	repo.db.data.courses[crs.ID] = crs
	return crs, nil
}

func (repo courseRepository) CreateBatch(_ context.Context, b course.Batch) (course.Batch, error) {
	repo.db.lock()
	defer repo.db.unlock()

	if _, ok := repo.db.data.courses[b.CourseID]; !ok {
		return course.Batch{}, errors.Wrapf(core.ErrNotFound, "course %q", b.CourseID)
	}
	if b.CreatedAt.IsZero() {
		b.CreatedAt = core.NowFunc().UTC()
	}
	repo.db.data.batches[b.ID] = b
	return b, nil
}

func (repo courseRepository) GetCourse(_ context.Context, id string) (course.Course, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if crs, ok := repo.db.data.courses[id]; ok {
		return crs, nil
	}
	return course.Course{}, errors.Wrapf(core.ErrNotFound, "course %q", id)
}

func (repo courseRepository) GetBatch(_ context.Context, id string) (course.Batch, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if b, ok := repo.db.data.batches[id]; ok {
		return b, nil
	}
	return course.Batch{}, errors.Wrapf(core.ErrNotFound, "batch %q", id)
}
