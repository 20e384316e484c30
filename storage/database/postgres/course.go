package pgdb

import (
	"context"

	"github.com/pkg/errors"

	"github.com/trezcool/admissions/core"
	"github.com/trezcool/admissions/core/course"
)

type courseRepository struct {
	q querier
}

func (repo courseRepository) CreateCourse(ctx context.Context, crs course.Course) (course.Course, error) {
	if crs.CreatedAt.IsZero() {
		crs.CreatedAt = core.NowFunc().UTC()
	}
	_, err := exec(ctx, repo.q, psql.Insert("courses").SetMap(map[string]interface{}{
		"id":                crs.ID,
		"name":              crs.Name,
		"course_fees":       crs.CourseFees,
		"admission_fees":    crs.AdmissionFees,
		"registration_fees": crs.RegistrationFees,
		"total_installment": crs.TotalInstallment,
		"duration":          crs.Duration,
		"created_at":        crs.CreatedAt,
	}))
	if err != nil {
		return course.Course{}, errors.Wrapf(err, "creating course %q", crs.ID)
	}
	return crs, nil
}

func (repo courseRepository) CreateBatch(ctx context.Context, b course.Batch) (course.Batch, error) {
	if b.CreatedAt.IsZero() {
		b.CreatedAt = core.NowFunc().UTC()
	}
	_, err := exec(ctx, repo.q, psql.Insert("batches").SetMap(map[string]interface{}{
		"id":         b.ID,
		"course_id":  b.CourseID,
		"name":       b.Name,
		"starts_on":  b.StartsOn,
		"created_at": b.CreatedAt,
	}))
	if err != nil {
		if pqCode(err) == foreignKeyViolation {
			return course.Batch{}, errors.Wrapf(core.ErrNotFound, "course %q", b.CourseID)
		}
		return course.Batch{}, errors.Wrapf(err, "creating batch %q", b.ID)
	}
	return b, nil
}

func (repo courseRepository) GetCourse(ctx context.Context, id string) (course.Course, error) {
	var crs course.Course
	if err := get(ctx, repo.q, &crs, psql.Select("*").From("courses").Where("id = ?", id)); err != nil {
		return course.Course{}, notFound(err, "course %q", id)
	}
	return crs, nil
}

func (repo courseRepository) GetBatch(ctx context.Context, id string) (course.Batch, error) {
	var b course.Batch
	if err := get(ctx, repo.q, &b, psql.Select("*").From("batches").Where("id = ?", id)); err != nil {
		return course.Batch{}, notFound(err, "batch %q", id)
	}
	return b, nil
}
