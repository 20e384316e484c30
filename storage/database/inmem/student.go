package inmemdb

import (
	"context"
	"sort"
	"strings"

	"github.com/pkg/errors"

	"github.com/trezcool/admissions/core"
	"github.com/trezcool/admissions/core/student"
)

type studentRepository struct {
	db *DB
}

func (repo studentRepository) query() []student.Student {
	students := make([]student.Student, 0, len(repo.db.data.students))
	for _, std := range repo.db.data.students {
		students = append(students, cloneStudent(std))
	}
	return students
}

func (repo studentRepository) CreateStudent(_ context.Context, std student.Student) (student.Student, error) {
	repo.db.lock()
	defer repo.db.unlock()

	if _, ok := repo.db.data.students[std.ID]; ok {
		return student.Student{}, errors.Errorf("student %q already exists", std.ID)
	}
	std.Version = 1
	repo.db.data.students[std.ID] = cloneStudent(std)
	return std, nil
}

func (repo studentRepository) GetStudent(_ context.Context, id string) (student.Student, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if std, ok := repo.db.data.students[id]; ok {
		return cloneStudent(std), nil
	}
	return student.Student{}, errors.Wrapf(core.ErrNotFound, "student %q", id)
}

// GetStudentForUpdate needs no lock of its own: units of work are already serialised.
func (repo studentRepository) GetStudentForUpdate(ctx context.Context, id string) (student.Student, error) {
	return repo.GetStudent(ctx, id)
}

func (repo studentRepository) UpdateStudent(_ context.Context, std student.Student) (student.Student, error) {
	repo.db.lock()
	defer repo.db.unlock()

	orig, ok := repo.db.data.students[std.ID]
	if !ok {
		return student.Student{}, errors.Wrapf(core.ErrNotFound, "student %q", std.ID)
	}
	if orig.Version != std.Version {
		return student.Student{}, errors.Wrapf(core.ErrConcurrentUpdate, "student %q: version %d, got %d", std.ID, orig.Version, std.Version)
	}
	std.Version++
	repo.db.data.students[std.ID] = cloneStudent(std)
	return std, nil
}

func (repo studentRepository) FindStudentsByName(_ context.Context, firstName, lastName string) ([]student.Student, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	first, last := core.CleanString(firstName), core.CleanString(lastName)
	matches := make([]student.Student, 0)
	for _, std := range repo.query() {
		if strings.EqualFold(std.FirstName, first) && strings.EqualFold(std.LastName, last) {
			matches = append(matches, std)
		}
	}
	sortStudents(matches, nil)
	return matches, nil
}

func (repo studentRepository) QueryStudents(_ context.Context, filter student.QueryFilter, ordering []core.DBOrdering) ([]student.Student, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	matches := make([]student.Student, 0)
	for _, std := range repo.query() {
		if matchStudent(std, filter) {
			matches = append(matches, std)
		}
	}
	sortStudents(matches, ordering)
	return matches, nil
}

func matchStudent(std student.Student, filter student.QueryFilter) bool {
	if len(filter.IDs) > 0 && !containsString(filter.IDs, std.ID) {
		return false
	}
	if len(filter.States) > 0 {
		found := false
		for _, st := range filter.States {
			if std.State == st {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if filter.CourseID != "" && std.CourseID != filter.CourseID {
		return false
	}
	if !filter.EnrolledFrom.IsZero() && std.EnrolledAt.Before(filter.EnrolledFrom) {
		return false
	}
	if !filter.EnrolledTo.IsZero() && !std.EnrolledAt.Before(filter.EnrolledTo) {
		return false
	}
	if filter.MinPendingFees.Valid && std.PendingFees.LessThan(filter.MinPendingFees.Decimal) {
		return false
	}
	return true
}

// sortStudents applies `ordering` (column names), falling back to the enrolment date then the ID.
func sortStudents(students []student.Student, ordering []core.DBOrdering) {
	sort.SliceStable(students, func(i, j int) bool {
		a, b := students[i], students[j]
		for _, ord := range ordering {
			cmp := compareStudents(a, b, ord.Field)
			if cmp == 0 {
				continue
			}
			if ord.Ascending {
				return cmp < 0
			}
			return cmp > 0
		}
		if !a.EnrolledAt.Equal(b.EnrolledAt) {
			return a.EnrolledAt.Before(b.EnrolledAt)
		}
		return a.ID < b.ID
	})
}

func compareStudents(a, b student.Student, column string) int {
	switch column {
	case "enrolled_at":
		switch {
		case a.EnrolledAt.Before(b.EnrolledAt):
			return -1
		case a.EnrolledAt.After(b.EnrolledAt):
			return 1
		}
	case "pending_fees":
		return a.PendingFees.Cmp(b.PendingFees)
	case "first_name":
		return strings.Compare(strings.ToLower(a.FirstName), strings.ToLower(b.FirstName))
	case "last_name":
		return strings.Compare(strings.ToLower(a.LastName), strings.ToLower(b.LastName))
	}
	return 0
}

func containsString(values []string, s string) bool {
	for _, v := range values {
		if v == s {
			return true
		}
	}
	return false
}
