package testutil

import (
	"context"
	"io"
	"log"
	"net/mail"
	"testing"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/trezcool/admissions/core"
	"github.com/trezcool/admissions/core/account"
	"github.com/trezcool/admissions/core/course"
	"github.com/trezcool/admissions/core/fees"
	"github.com/trezcool/admissions/core/inquiry"
	"github.com/trezcool/admissions/core/receipt"
	"github.com/trezcool/admissions/core/store"
	"github.com/trezcool/admissions/core/student"
	"github.com/trezcool/admissions/services/logger"
)

// Dec parses a decimal literal.
func Dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func NewConfig() *core.Config {
	conf := &core.Config{
		Env:              "TEST",
		TestMode:         true,
		AppName:          "Masomo Admissions",
		SecretKey:        "test-secret-key",
		FrontendBaseURL:  "http://localhost:3000",
		DefaultFromEmail: mail.Address{Name: "Masomo Admissions", Address: "admissions@masomo.test"},
	}
	conf.Server.OperatorRole = "admin:admissions"
	conf.Server.DisableReqLogs = true
	conf.Drafts.Backend = "memory"
	conf.Drafts.TTL = time.Hour
	conf.Fees.DefaultRegistrationFees = decimal.Zero
	conf.Fees.Currency = "INR"
	return conf
}

// NewLogger returns a logger that prints nothing and reports nothing.
func NewLogger(conf *core.Config) core.Logger {
	return logsvc.NewRollbarLogger(log.New(io.Discard, "", 0), conf)
}

// NewValidator returns a validator with every custom tag registered.
func NewValidator() *validator.Validate {
	validate, _ := NewValidatorAndTranslator()
	return validate
}

// NewValidatorAndTranslator also returns the translator holding the validation messages.
func NewValidatorAndTranslator() (*validator.Validate, ut.Translator) {
	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	fees.InitValidators(validate, translator)
	receipt.InitValidators(validate, translator)
	account.InitValidators(validate, translator)
	return validate, translator
}

// FreezeTime makes core.NowFunc return `at` until the test ends.
func FreezeTime(t *testing.T, at time.Time) {
	orig := core.NowFunc
	core.NowFunc = func() time.Time { return at }
	t.Cleanup(func() { core.NowFunc = orig })
}

func CreateCourse(t *testing.T, repos store.Repos, courseFees, admissionFees, registrationFees string, installments int) course.Course {
	crs, err := repos.Courses().CreateCourse(context.Background(), course.Course{
		ID:               uuid.NewString(),
		Name:             "Course " + courseFees,
		CourseFees:       Dec(courseFees),
		AdmissionFees:    Dec(admissionFees),
		RegistrationFees: Dec(registrationFees),
		TotalInstallment: installments,
		Duration:         installments,
	})
	if err != nil {
		t.Fatalf("createCourse() failed: %v", err)
	}
	return crs
}

func CreateBatch(t *testing.T, repos store.Repos, crs course.Course) course.Batch {
	b, err := repos.Courses().CreateBatch(context.Background(), course.Batch{
		ID:       uuid.NewString(),
		CourseID: crs.ID,
		Name:     crs.Name + " / morning",
	})
	if err != nil {
		t.Fatalf("createBatch() failed: %v", err)
	}
	return b
}

// CreateStudent inserts a student straight into the repository, bypassing the lifecycle.
func CreateStudent(
	t *testing.T,
	repos store.Repos,
	firstName, lastName string,
	crs course.Course,
	plan fees.Plan,
	state student.State,
	enrolledAt ...time.Time,
) student.Student {
	tstamp := core.NowFunc().UTC()
	if len(enrolledAt) > 0 {
		tstamp = enrolledAt[0].UTC()
	}
	quote, err := fees.Calculator{}.Quote(crs, plan)
	if err != nil {
		t.Fatalf("createStudent() failed: %v", err)
	}
	b := CreateBatch(t, repos, crs)
	std := student.Student{
		ID:            uuid.NewString(),
		Profile:       student.Profile{FirstName: firstName, LastName: lastName},
		CourseID:      crs.ID,
		BatchID:       b.ID,
		PaymentPlan:   plan,
		TotalFees:     quote.TotalFees,
		AdmissionFees: crs.AdmissionFees,
		PendingFees:   quote.TotalFees,
		Schedule:      quote.Schedule,
		State:         state,
		EnrolledAt:    tstamp,
		UpdatedAt:     tstamp,
	}
	std, err = repos.Students().CreateStudent(context.Background(), std)
	if err != nil {
		t.Fatalf("createStudent() failed: %v", err)
	}
	return std
}

func CreateInquiry(t *testing.T, repos store.Repos, firstName, lastName string, status inquiry.Status) inquiry.Inquiry {
	inq, err := repos.Inquiries().CreateInquiry(context.Background(), inquiry.Inquiry{
		ID:        uuid.NewString(),
		FirstName: firstName,
		LastName:  lastName,
		Status:    status,
	})
	if err != nil {
		t.Fatalf("createInquiry() failed: %v", err)
	}
	return inq
}
