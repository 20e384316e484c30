package pgdb

import (
	"context"

	sq "github.com/Masterminds/squirrel"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/admissions/core"
	"github.com/trezcool/admissions/core/fees"
	"github.com/trezcool/admissions/core/student"
)

// studentRow flattens the installment schedule into nullable columns.
type studentRow struct {
	student.Student
	RegistrationFees   decimal.NullDecimal `db:"registration_fees"`
	MonthlyInstallment decimal.NullDecimal `db:"monthly_installment"`
	InstallmentMonths  null.Int            `db:"installment_months"`
}

func (row studentRow) toStudent() student.Student {
	std := row.Student
	std.Schedule = nil
	if row.InstallmentMonths.Valid {
		std.Schedule = &fees.Schedule{
			RegistrationFees:   row.RegistrationFees.Decimal,
			MonthlyInstallment: row.MonthlyInstallment.Decimal,
			Months:             row.InstallmentMonths.Int,
		}
	}
	return std
}

func studentColumns(std student.Student) map[string]interface{} {
	cols := map[string]interface{}{
		"first_name":             std.FirstName,
		"middle_name":            std.MiddleName,
		"last_name":              std.LastName,
		"email":                  std.Email,
		"mobile":                 std.Mobile,
		"alt_mobile":             std.AltMobile,
		"gender":                 std.Gender,
		"birth_date":             std.BirthDate,
		"address":                std.Address,
		"city":                   std.City,
		"qualification":          std.Qualification,
		"course_id":              std.CourseID,
		"batch_id":               std.BatchID,
		"payment_plan":           std.PaymentPlan,
		"total_fees":             std.TotalFees,
		"admission_fees":         std.AdmissionFees,
		"pending_fees":           std.PendingFees,
		"registration_fees":      decimal.NullDecimal{},
		"monthly_installment":    decimal.NullDecimal{},
		"installment_months":     null.Int{},
		"is_admission_fees_paid": std.IsAdmissionFeesPaid,
		"state":                  std.State,
		"inquiry_id":             std.InquiryID,
		"username":               std.Username,
		"cancel_reason":          std.CancelReason,
		"enrolled_at":            std.EnrolledAt,
		"updated_at":             std.UpdatedAt,
		"registered_at":          std.RegisteredAt,
		"cancelled_at":           std.CancelledAt,
	}
	if sched := std.Schedule; sched != nil {
		cols["registration_fees"] = decimal.NewNullDecimal(sched.RegistrationFees)
		cols["monthly_installment"] = decimal.NewNullDecimal(sched.MonthlyInstallment)
		cols["installment_months"] = null.IntFrom(sched.Months)
	}
	return cols
}

// orderable student fields (API name -> column)
var studentOrderings = map[string]string{
	"enrolled_at":  "enrolled_at",
	"pending_fees": "pending_fees",
	"first_name":   "lower(first_name)",
	"last_name":    "lower(last_name)",
}

type studentRepository struct {
	q    querier
	inTx bool
}

func (repo studentRepository) CreateStudent(ctx context.Context, std student.Student) (student.Student, error) {
	std.Version = 1
	cols := studentColumns(std)
	cols["id"] = std.ID
	cols["version"] = std.Version

	if _, err := exec(ctx, repo.q, psql.Insert("students").SetMap(cols)); err != nil {
		if pqCode(err) == foreignKeyViolation {
			return student.Student{}, errors.Wrapf(core.ErrNotFound, "creating student %q: %v", std.ID, err)
		}
		return student.Student{}, errors.Wrapf(err, "creating student %q", std.ID)
	}
	return std, nil
}

func (repo studentRepository) get(ctx context.Context, id string, forUpdate bool) (student.Student, error) {
	b := psql.Select("*").From("students").Where("id = ?", id)
	if forUpdate && repo.inTx {
		b = b.Suffix("FOR UPDATE")
	}
	var row studentRow
	if err := get(ctx, repo.q, &row, b); err != nil {
		return student.Student{}, notFound(err, "student %q", id)
	}
	return row.toStudent(), nil
}

func (repo studentRepository) GetStudent(ctx context.Context, id string) (student.Student, error) {
	return repo.get(ctx, id, false)
}

func (repo studentRepository) GetStudentForUpdate(ctx context.Context, id string) (student.Student, error) {
	return repo.get(ctx, id, true)
}

func (repo studentRepository) UpdateStudent(ctx context.Context, std student.Student) (student.Student, error) {
	res, err := exec(ctx, repo.q, psql.Update("students").
		SetMap(studentColumns(std)).
		Set("version", sq.Expr("version + 1")).
		Where(sq.Eq{"id": std.ID, "version": std.Version}))
	if err != nil {
		return student.Student{}, errors.Wrapf(err, "updating student %q", std.ID)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return student.Student{}, errors.Wrapf(err, "updating student %q", std.ID)
	}
	if n == 0 {
		// either gone or updated by someone else
		if _, err = repo.GetStudent(ctx, std.ID); err != nil {
			return student.Student{}, err
		}
		return student.Student{}, errors.Wrapf(core.ErrConcurrentUpdate, "student %q: version %d", std.ID, std.Version)
	}
	std.Version++
	return std, nil
}

func (repo studentRepository) FindStudentsByName(ctx context.Context, firstName, lastName string) ([]student.Student, error) {
	return repo.query(ctx, psql.Select("*").From("students").
		Where("lower(first_name) = lower(?)", core.CleanString(firstName)).
		Where("lower(last_name) = lower(?)", core.CleanString(lastName)).
		OrderBy("enrolled_at", "id"))
}

func (repo studentRepository) QueryStudents(ctx context.Context, filter student.QueryFilter, ordering []core.DBOrdering) ([]student.Student, error) {
	b := psql.Select("*").From("students")
	if len(filter.IDs) > 0 {
		b = b.Where(sq.Eq{"id": filter.IDs})
	}
	if len(filter.States) > 0 {
		states := make([]string, 0, len(filter.States))
		for _, st := range filter.States {
			states = append(states, string(st))
		}
		b = b.Where(sq.Eq{"state": states})
	}
	if filter.CourseID != "" {
		b = b.Where(sq.Eq{"course_id": filter.CourseID})
	}
	if !filter.EnrolledFrom.IsZero() {
		b = b.Where(sq.GtOrEq{"enrolled_at": filter.EnrolledFrom})
	}
	if !filter.EnrolledTo.IsZero() {
		b = b.Where(sq.Lt{"enrolled_at": filter.EnrolledTo})
	}
	if filter.MinPendingFees.Valid {
		b = b.Where(sq.GtOrEq{"pending_fees": filter.MinPendingFees.Decimal})
	}

	for _, ord := range core.CleanOrderings(ordering, studentOrderings) {
		b = b.OrderBy(ord.String())
	}
	return repo.query(ctx, b.OrderBy("enrolled_at", "id"))
}

func (repo studentRepository) query(ctx context.Context, b sq.SelectBuilder) ([]student.Student, error) {
	var rows []studentRow
	if err := sel(ctx, repo.q, &rows, b); err != nil {
		return nil, errors.Wrap(err, "querying students")
	}
	students := make([]student.Student, 0, len(rows))
	for _, row := range rows {
		students = append(students, row.toStudent())
	}
	return students, nil
}
