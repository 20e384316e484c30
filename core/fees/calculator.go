package fees

import (
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/trezcool/admissions/core"
	"github.com/trezcool/admissions/core/course"
)

type Plan string

const (
	OneTime Plan = "one_time"
	Monthly Plan = "monthly"
)

var Plans = []Plan{OneTime, Monthly}

func (p Plan) IsValid() bool {
	return p == OneTime || p == Monthly
}

// Schedule is the installment plan of a monthly student.
// It is derived once at enrolment and never recomputed from the course afterwards.
type Schedule struct {
	RegistrationFees   decimal.Decimal `json:"registration_fees"`
	MonthlyInstallment decimal.Decimal `json:"monthly_installment"`
	Months             int             `json:"months"`
}

// InstallmentDue returns the amount of the next installment given the outstanding balance.
// The last installment is capped at what is left.
func (s Schedule) InstallmentDue(pending decimal.Decimal) decimal.Decimal {
	if pending.LessThan(s.MonthlyInstallment) {
		return pending
	}
	return s.MonthlyInstallment
}

// Quote is the fee snapshot taken for a course and plan.
type Quote struct {
	Plan         Plan            `json:"plan"`
	TotalFees    decimal.Decimal `json:"total_fees"`
	AdmissionDue decimal.Decimal `json:"admission_due"` // due before the admission is cleared
	Schedule     *Schedule       `json:"schedule,omitempty"`
}

// Calculator turns a course's price fields and a payment plan into a payable schedule.
// It never touches persisted state.
type Calculator struct {
	// DefaultRegistrationFees applies to monthly plans of courses without a registration fee.
	DefaultRegistrationFees decimal.Decimal
}

func NewCalculator(conf *core.Config) Calculator {
	return Calculator{DefaultRegistrationFees: conf.Fees.DefaultRegistrationFees}
}

func invalidConf(format string, args ...interface{}) error {
	return errors.Wrapf(core.ErrInvalidConfiguration, format, args...)
}

func (c Calculator) Quote(crs course.Course, plan Plan) (Quote, error) {
	if crs.CourseFees.IsNegative() || crs.AdmissionFees.IsNegative() || crs.RegistrationFees.IsNegative() {
		return Quote{}, invalidConf("course %q: negative price", crs.ID)
	}

	switch plan {
	case OneTime:
		return Quote{
			Plan:         OneTime,
			TotalFees:    crs.CourseFees,
			AdmissionDue: crs.CourseFees,
		}, nil

	case Monthly:
		sched, err := c.Schedule(crs)
		if err != nil {
			return Quote{}, err
		}
		if crs.AdmissionFees.Add(sched.RegistrationFees).GreaterThan(crs.CourseFees) {
			return Quote{}, invalidConf("course %q: admission and registration fees exceed the course fees", crs.ID)
		}
		return Quote{
			Plan:         Monthly,
			TotalFees:    crs.CourseFees,
			AdmissionDue: crs.AdmissionFees,
			Schedule:     &sched,
		}, nil

	default:
		return Quote{}, core.NewValidationError(nil, core.FieldError{Field: "payment_plan", Error: "invalid payment plan"})
	}
}

// Schedule computes the monthly installment schedule of a course:
// ceil((courseFees - registrationFees) / totalInstallment) every month for totalInstallment months.
func (c Calculator) Schedule(crs course.Course) (Schedule, error) {
	if crs.TotalInstallment <= 0 {
		return Schedule{}, invalidConf("course %q: total installment must be positive, got %d", crs.ID, crs.TotalInstallment)
	}

	regFees := crs.RegistrationFees
	if regFees.IsZero() {
		regFees = c.DefaultRegistrationFees
	}
	if regFees.IsNegative() {
		return Schedule{}, invalidConf("course %q: negative registration fees", crs.ID)
	}
	if regFees.GreaterThan(crs.CourseFees) {
		return Schedule{}, invalidConf("course %q: registration fees exceed the course fees", crs.ID)
	}

	months := decimal.NewFromInt(int64(crs.TotalInstallment))
	return Schedule{
		RegistrationFees:   regFees,
		MonthlyInstallment: crs.CourseFees.Sub(regFees).Div(months).Ceil(),
		Months:             crs.TotalInstallment,
	}, nil
}
