// Package admission drives a student through its lifecycle: enrolment, fee collection,
// registration and cancellation. Every operation runs in one unit of work.
package admission

import (
	"context"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/kat-co/vala"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/admissions/core"
	"github.com/trezcool/admissions/core/account"
	"github.com/trezcool/admissions/core/exam"
	"github.com/trezcool/admissions/core/fees"
	"github.com/trezcool/admissions/core/inquiry"
	"github.com/trezcool/admissions/core/ledger"
	"github.com/trezcool/admissions/core/matcher"
	"github.com/trezcool/admissions/core/receipt"
	"github.com/trezcool/admissions/core/store"
	"github.com/trezcool/admissions/core/student"
)

// AccountIssuer issues the login credentials of a registered student.
// It runs inside the registration unit of work.
type AccountIssuer interface {
	Issue(ctx context.Context, repo account.Repository, na account.NewAccount) (account.Account, error)
}

type Options struct {
	Store      store.Store
	Calculator fees.Calculator
	Issuer     AccountIssuer
	Drafts     DraftStore
	MailSvc    core.EmailService
	Logger     core.Logger
	Validate   *validator.Validate
	Conf       *core.Config
}

type Service struct {
	store    store.Store
	calc     fees.Calculator
	matcher  *matcher.Matcher
	issuer   AccountIssuer
	drafts   DraftStore
	mailSvc  core.EmailService
	logger   core.Logger
	validate *validator.Validate
	conf     *core.Config
}

func NewService(opts Options) *Service {
	vala.BeginValidation().Validate(
		vala.IsNotNil(opts.Store, "Store"),
		vala.IsNotNil(opts.Issuer, "Issuer"),
		vala.IsNotNil(opts.Drafts, "Drafts"),
		vala.IsNotNil(opts.MailSvc, "MailSvc"),
		vala.IsNotNil(opts.Logger, "Logger"),
		vala.IsNotNil(opts.Validate, "Validate"),
		vala.IsNotNil(opts.Conf, "Conf"),
	).CheckAndPanic()

	repos := opts.Store.Repos()
	return &Service{
		store:    opts.Store,
		calc:     opts.Calculator,
		matcher:  matcher.New(repos.Students(), repos.Inquiries()),
		issuer:   opts.Issuer,
		drafts:   opts.Drafts,
		mailSvc:  opts.MailSvc,
		logger:   opts.Logger,
		validate: opts.Validate,
		conf:     opts.Conf,
	}
}

// atomic runs `fn` in a unit of work. When the receipt number `fn` used turns out to be taken,
// the whole unit is run once more with a freshly allocated number.
func (svc *Service) atomic(ctx context.Context, receiptNo *int64, fn func(repos store.Repos) error) error {
	err := svc.store.Atomic(ctx, fn)
	if receiptNo != nil && errors.Cause(err) == core.ErrDuplicateReceiptNo {
		svc.logger.Warn(fmt.Sprintf("receipt #%d already used, retrying with a new number", *receiptNo))
		*receiptNo = 0
		err = svc.store.Atomic(ctx, fn)
	}
	return err
}

// Match looks for students & open inquiries with the candidate's name.
func (svc *Service) Match(ctx context.Context, firstName, lastName string) (matcher.Result, error) {
	return svc.matcher.Check(ctx, firstName, lastName)
}

// Quote returns the fees of a course for a payment plan, without enrolling anyone.
func (svc *Service) Quote(ctx context.Context, courseID string, plan fees.Plan) (fees.Quote, error) {
	crs, err := svc.store.Repos().Courses().GetCourse(ctx, courseID)
	if err != nil {
		return fees.Quote{}, err
	}
	return svc.calc.Quote(crs, plan)
}

func (svc *Service) Enroll(ctx context.Context, er EnrollRequest) (student.Student, *receipt.Receipt, error) {
	if err := er.Validate(svc.validate); err != nil {
		return student.Student{}, nil, err
	}

	var (
		std  student.Student
		rcpt *receipt.Receipt
	)
	err := svc.atomic(ctx, &er.ReceiptNo, func(repos store.Repos) error {
		rcpt = nil
		crs, err := repos.Courses().GetCourse(ctx, er.CourseID)
		if err != nil {
			return err
		}
		b, err := repos.Courses().GetBatch(ctx, er.BatchID)
		if err != nil {
			return err
		}
		if b.CourseID != crs.ID {
			return core.NewValidationError(nil, core.FieldError{Field: "batch_id", Error: "batch does not belong to the course"})
		}
		quote, err := svc.calc.Quote(crs, er.Plan)
		if err != nil {
			return err
		}
		if er.PayNow && quote.AdmissionDue.IsZero() {
			return core.NewValidationError(nil, core.FieldError{Field: "pay_now", Error: errNothingDueAtAdmission})
		}

		now := core.NowFunc().UTC()
		std = student.Student{
			ID:            uuid.NewString(),
			Profile:       er.Profile,
			CourseID:      crs.ID,
			BatchID:       b.ID,
			PaymentPlan:   quote.Plan,
			TotalFees:     quote.TotalFees,
			AdmissionFees: crs.AdmissionFees,
			PendingFees:   quote.TotalFees,
			Schedule:      quote.Schedule,
			State:         student.StateDraft,
			EnrolledAt:    now,
			UpdatedAt:     now,
		}
		if er.InquiryID != "" {
			if _, err = repos.Inquiries().GetInquiry(ctx, er.InquiryID); err != nil {
				return err
			}
			std.InquiryID = null.StringFrom(er.InquiryID)
		}

		dues := ledger.ComputeDues(std, decimal.Zero, decimal.Zero)
		std.IsAdmissionFeesPaid = dues.Admission.IsZero()
		initial := student.StateFeesDue
		if std.IsAdmissionFeesPaid {
			initial = student.StateFeesCleared
		}
		if err = std.TransitionTo(initial); err != nil {
			return err
		}
		if std, err = repos.Students().CreateStudent(ctx, std); err != nil {
			return errors.Wrap(err, "creating student")
		}

		if !er.PayNow {
			return nil
		}
		std, rcpt, err = svc.payAdmission(ctx, repos, std, er.payment())
		return err
	})
	if err != nil {
		return student.Student{}, nil, err
	}

	if rcpt != nil {
		svc.notifyPayment(std, *rcpt)
	}
	return std, rcpt, nil
}

// payAdmission records an admission payment and clears the admission once nothing is left due for it.
func (svc *Service) payAdmission(ctx context.Context, repos store.Repos, std student.Student, pr PaymentRequest) (student.Student, *receipt.Receipt, error) {
	std, rcpt, err := ledger.RecordPayment(ctx, repos, pr.toPayment(std.ID, receipt.PurposeAdmission))
	if err != nil {
		return student.Student{}, nil, err
	}
	if std.IsAdmissionFeesPaid && std.State == student.StateFeesDue {
		if err = std.TransitionTo(student.StateFeesCleared); err != nil {
			return student.Student{}, nil, err
		}
		if std, err = svc.update(ctx, repos, std); err != nil {
			return student.Student{}, nil, err
		}
	}
	return std, &rcpt, nil
}

func (svc *Service) update(ctx context.Context, repos store.Repos, std student.Student) (student.Student, error) {
	std.UpdatedAt = core.NowFunc().UTC()
	std, err := repos.Students().UpdateStudent(ctx, std)
	if err != nil {
		return student.Student{}, errors.Wrap(err, "updating student")
	}
	return std, nil
}

// lock reads the latest committed student and checks it is in one of the `allowed` states.
func lock(ctx context.Context, repos store.Repos, op, studentID string, allowed ...student.State) (student.Student, error) {
	std, err := repos.Students().GetStudentForUpdate(ctx, studentID)
	if err != nil {
		return student.Student{}, err
	}
	if len(allowed) > 0 {
		if err = std.RequireState(op, allowed...); err != nil {
			return student.Student{}, err
		}
	}
	return std, nil
}

func (svc *Service) PayAdmissionFee(ctx context.Context, studentID string, pr PaymentRequest) (student.Student, receipt.Receipt, error) {
	if err := pr.Validate(svc.validate); err != nil {
		return student.Student{}, receipt.Receipt{}, err
	}

	var (
		std  student.Student
		rcpt *receipt.Receipt
	)
	err := svc.atomic(ctx, &pr.ReceiptNo, func(repos store.Repos) (err error) {
		if std, err = lock(ctx, repos, "pay admission fee", studentID, student.StateFeesDue); err != nil {
			return err
		}
		std, rcpt, err = svc.payAdmission(ctx, repos, std, pr)
		return err
	})
	if err != nil {
		return student.Student{}, receipt.Receipt{}, err
	}

	svc.notifyPayment(std, *rcpt)
	return std, *rcpt, nil
}

// BeginRegistration starts the registration of a cleared student.
// Monthly students then owe the registration fee; one-time students can be confirmed right away.
func (svc *Service) BeginRegistration(ctx context.Context, studentID string) (student.Student, error) {
	var std student.Student
	err := svc.store.Atomic(ctx, func(repos store.Repos) (err error) {
		if std, err = lock(ctx, repos, "begin registration", studentID, student.StateFeesCleared); err != nil {
			return err
		}
		if !std.IsMonthly() {
			return nil
		}
		if err = std.TransitionTo(student.StateRegistrationPending); err != nil {
			return err
		}
		std, err = svc.update(ctx, repos, std)
		return err
	})
	if err != nil {
		return student.Student{}, err
	}
	return std, nil
}

func (svc *Service) PayRegistrationFee(ctx context.Context, studentID string, pr PaymentRequest) (student.Student, receipt.Receipt, error) {
	return svc.pay(ctx, studentID, pr, receipt.PurposeRegistration, "pay registration fee", student.StateRegistrationPending)
}

// PayInstallment records an installment of a registered student. It is capped by the pending balance.
func (svc *Service) PayInstallment(ctx context.Context, studentID string, pr PaymentRequest) (student.Student, receipt.Receipt, error) {
	return svc.pay(ctx, studentID, pr, receipt.PurposeInstallment, "pay installment", student.StateRegistered)
}

func (svc *Service) pay(
	ctx context.Context,
	studentID string,
	pr PaymentRequest,
	purpose receipt.Purpose,
	op string,
	allowed ...student.State,
) (student.Student, receipt.Receipt, error) {
	if err := pr.Validate(svc.validate); err != nil {
		return student.Student{}, receipt.Receipt{}, err
	}

	var (
		std  student.Student
		rcpt receipt.Receipt
	)
	err := svc.atomic(ctx, &pr.ReceiptNo, func(repos store.Repos) (err error) {
		if std, err = lock(ctx, repos, op, studentID, allowed...); err != nil {
			return err
		}
		if std.PendingFees.IsZero() {
			return errors.Wrapf(core.ErrStateViolation, "%s: student %s has nothing left to pay", op, std.ID)
		}
		std, rcpt, err = ledger.RecordPayment(ctx, repos, pr.toPayment(std.ID, purpose))
		return err
	})
	if err != nil {
		return student.Student{}, receipt.Receipt{}, err
	}

	svc.notifyPayment(std, rcpt)
	return std, rcpt, nil
}

// ConfirmRegistration issues the student's credentials and completes the registration.
// Monthly students must have paid their registration fee in full.
func (svc *Service) ConfirmRegistration(ctx context.Context, studentID string, creds account.Credentials) (student.Student, error) {
	var std student.Student
	err := svc.store.Atomic(ctx, func(repos store.Repos) (err error) {
		const op = "confirm registration"
		if std, err = lock(ctx, repos, op, studentID); err != nil {
			return err
		}

		if std.IsMonthly() {
			if err = std.RequireState(op, student.StateRegistrationPending); err != nil {
				return err
			}
			dues, err := ledger.DuesOf(ctx, repos, std)
			if err != nil {
				return err
			}
			if dues.Registration.IsPositive() {
				return errors.Wrapf(core.ErrStateViolation, "%s: student %s still owes %s of registration fee", op, std.ID, dues.Registration)
			}
		} else if err = std.RequireState(op, student.StateFeesCleared); err != nil {
			return err
		}

		acc, err := svc.issuer.Issue(ctx, repos.Accounts(), account.NewAccount{
			Credentials: creds,
			StudentID:   std.ID,
			Name:        std.FullName(),
			Email:       std.Email,
		})
		if err != nil {
			return err
		}

		if err = std.TransitionTo(student.StateRegistered); err != nil {
			return err
		}
		std.Username = null.StringFrom(acc.Username)
		std.RegisteredAt = null.TimeFrom(core.NowFunc().UTC())
		std, err = svc.update(ctx, repos, std)
		return err
	})
	if err != nil {
		return student.Student{}, err
	}

	svc.notifyRegistration(std)
	return std, nil
}

// Cancel cancels the admission of a student that is not registered yet. Its receipts are kept.
func (svc *Service) Cancel(ctx context.Context, studentID string, cr CancelRequest) (student.Student, error) {
	if err := cr.Validate(svc.validate); err != nil {
		return student.Student{}, err
	}

	var std student.Student
	err := svc.store.Atomic(ctx, func(repos store.Repos) (err error) {
		if std, err = lock(ctx, repos, "cancel", studentID); err != nil {
			return err
		}
		if std.State.IsTerminal() {
			return errors.Wrapf(core.ErrStateViolation, "cancel: student %s is %s", std.ID, std.State)
		}
		if err = std.TransitionTo(student.StateCancelled); err != nil {
			return err
		}
		std.CancelReason = cr.Reason
		std.CancelledAt = null.TimeFrom(core.NowFunc().UTC())
		std, err = svc.update(ctx, repos, std)
		return err
	})
	if err != nil {
		return student.Student{}, err
	}

	svc.logger.Info(fmt.Sprintf("admission of student %s cancelled", std.ID), map[string]interface{}{"reason": std.CancelReason})
	return std, nil
}

// ConvertInquiry marks an inquiry converted once the admission it led to went through,
// and links it to the student.
func (svc *Service) ConvertInquiry(ctx context.Context, inquiryID, studentID string) (inquiry.Inquiry, student.Student, error) {
	var (
		inq inquiry.Inquiry
		std student.Student
	)
	err := svc.store.Atomic(ctx, func(repos store.Repos) (err error) {
		if inq, err = repos.Inquiries().GetInquiry(ctx, inquiryID); err != nil {
			return err
		}
		if !inq.IsConvertible() {
			return errors.Wrapf(core.ErrStateViolation, "inquiry %s is %s", inq.ID, inq.Status)
		}
		if std, err = lock(ctx, repos, "convert inquiry", studentID); err != nil {
			return err
		}
		if std.State == student.StateCancelled {
			return errors.Wrapf(core.ErrStateViolation, "convert inquiry: student %s is %s", std.ID, std.State)
		}
		if std.InquiryID.Valid && std.InquiryID.String != inq.ID {
			return errors.Wrapf(core.ErrStateViolation, "convert inquiry: student %s comes from inquiry %s", std.ID, std.InquiryID.String)
		}

		if inq, err = repos.Inquiries().UpdateInquiryStatus(ctx, inq.ID, inquiry.StatusConverted, inquiry.StatusOpen, inquiry.StatusInProgress); err != nil {
			return errors.Wrap(err, "updating inquiry")
		}
		if !std.InquiryID.Valid {
			std.InquiryID = null.StringFrom(inq.ID)
			std, err = svc.update(ctx, repos, std)
		}
		return err
	})
	if err != nil {
		return inquiry.Inquiry{}, student.Student{}, err
	}
	return inq, std, nil
}

func (svc *Service) GetStudent(ctx context.Context, studentID string) (Overview, error) {
	repos := svc.store.Repos()
	std, err := repos.Students().GetStudent(ctx, studentID)
	if err != nil {
		return Overview{}, err
	}
	dues, err := ledger.DuesOf(ctx, repos, std)
	if err != nil {
		return Overview{}, err
	}

	ov := Overview{Student: std, Dues: dues}
	if std.State == student.StateRegistered && std.Schedule != nil && std.PendingFees.IsPositive() {
		ov.NextInstallment = decimal.NullDecimal{Decimal: std.Schedule.InstallmentDue(std.PendingFees), Valid: true}
	}
	return ov, nil
}

func (svc *Service) QueryReceipts(ctx context.Context, studentID string) ([]receipt.Receipt, error) {
	repos := svc.store.Repos()
	if _, err := repos.Students().GetStudent(ctx, studentID); err != nil {
		return nil, err
	}
	return repos.Receipts().QueryReceipts(ctx, studentID)
}

// NextReceiptNo allocates a receipt number. A number is never handed out twice, even if unused.
func (svc *Service) NextReceiptNo(ctx context.Context) (int64, error) {
	return svc.store.Repos().Receipts().NextReceiptNo(ctx)
}

// RequestExam opens an exam request for a registered student.
func (svc *Service) RequestExam(ctx context.Context, studentID string, in ExamRequestInput) (exam.Request, error) {
	in.Remarks = core.CleanString(in.Remarks)
	if err := svc.validate.Struct(in); err != nil {
		return exam.Request{}, err
	}

	var req exam.Request
	err := svc.store.Atomic(ctx, func(repos store.Repos) (err error) {
		std, err := lock(ctx, repos, "request exam", studentID, student.StateRegistered)
		if err != nil {
			return err
		}
		req, err = repos.ExamRequests().CreateExamRequest(ctx, exam.Request{
			ID:          uuid.NewString(),
			StudentID:   std.ID,
			CourseID:    std.CourseID,
			RequestedAt: core.NowFunc().UTC(),
			Remarks:     in.Remarks,
		})
		return err
	})
	if err != nil {
		return exam.Request{}, err
	}
	return req, nil
}

func (svc *Service) CompleteExamRequest(ctx context.Context, requestID string) (exam.Request, error) {
	var req exam.Request
	err := svc.store.Atomic(ctx, func(repos store.Repos) (err error) {
		req, err = repos.ExamRequests().CompleteExamRequest(ctx, requestID, core.NowFunc().UTC())
		return err
	})
	if err != nil {
		return exam.Request{}, err
	}
	return req, nil
}

// Reconcile re-derives the balance of every student from its receipts and returns the students that drifted.
func (svc *Service) Reconcile(ctx context.Context) ([]student.Student, error) {
	all, err := svc.store.Repos().Students().QueryStudents(ctx, student.QueryFilter{}, nil)
	if err != nil {
		return nil, err
	}

	fixed := make([]student.Student, 0)
	for _, s := range all {
		var (
			std     student.Student
			changed bool
		)
		err = svc.store.Atomic(ctx, func(repos store.Repos) (err error) {
			std, changed, err = ledger.Recompute(ctx, repos, s.ID)
			return err
		})
		if err != nil {
			return fixed, errors.Wrapf(err, "reconciling student %s", s.ID)
		}
		if changed {
			svc.logger.Warn(fmt.Sprintf("student %s balance fixed: %s -> %s", std.ID, s.PendingFees, std.PendingFees))
			fixed = append(fixed, std)
		}
	}
	return fixed, nil
}
