package admission

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/trezcool/admissions/core"
	"github.com/trezcool/admissions/core/fees"
	"github.com/trezcool/admissions/core/matcher"
	"github.com/trezcool/admissions/core/receipt"
	"github.com/trezcool/admissions/core/student"
)

type DraftStep string

const (
	StepProfile DraftStep = "profile"
	StepCourse  DraftStep = "course"
	StepPayment DraftStep = "payment"
)

// Draft is an admission being filled in over several steps. It lives in the DraftStore
// until it is submitted, cancelled or expires.
type Draft struct {
	ID          string          `json:"id"`
	Profile     student.Profile `json:"profile"`
	Match       *matcher.Result `json:"match,omitempty"`
	InquiryID   string          `json:"inquiry_id"`
	CourseID    string          `json:"course_id"`
	BatchID     string          `json:"batch_id"`
	Plan        fees.Plan       `json:"payment_plan"`
	Quote       *fees.Quote     `json:"quote,omitempty"`
	PayNow      bool            `json:"pay_now"`
	AmountNow   decimal.Decimal `json:"amount_now"`
	PaymentMode receipt.Mode    `json:"payment_mode"`
	ReceiptNo   int64           `json:"receipt_no"`
	Steps       []DraftStep     `json:"steps"` // completed steps
	CreatedBy   string          `json:"created_by"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

func (d Draft) HasStep(step DraftStep) bool {
	for _, s := range d.Steps {
		if s == step {
			return true
		}
	}
	return false
}

func (d *Draft) completeStep(step DraftStep) {
	if !d.HasStep(step) {
		d.Steps = append(d.Steps, step)
	}
}

// DraftStore keeps drafts for a limited time. An expired draft is reported as core.ErrNotFound.
type DraftStore interface {
	SaveDraft(ctx context.Context, d Draft) error
	GetDraft(ctx context.Context, id string) (Draft, error)
	DeleteDraft(ctx context.Context, id string) error
}

type DraftProfile struct {
	Profile student.Profile `json:"profile"`
	// InquiryID links the draft to a matched inquiry. With ApplyAutofill, its contact
	// fields fill in the blank profile fields.
	InquiryID     string `json:"inquiry_id"`
	ApplyAutofill bool   `json:"apply_autofill"`
}

type DraftCourse struct {
	CourseID string    `json:"course_id" validate:"required"`
	BatchID  string    `json:"batch_id" validate:"required"`
	Plan     fees.Plan `json:"payment_plan" validate:"required,plan"`
}

type DraftPayment struct {
	PayNow      bool            `json:"pay_now"`
	AmountNow   decimal.Decimal `json:"amount_now"`
	PaymentMode receipt.Mode    `json:"payment_mode" validate:"omitempty,paymentmode"`
	ReceiptNo   int64           `json:"receipt_no" validate:"gte=0"`
}

// DraftUpdate fills in one step of a draft; only the payload of `Step` is read.
type DraftUpdate struct {
	Step    DraftStep     `json:"step" validate:"required,oneof=profile course payment"`
	Profile *DraftProfile `json:"profile" validate:"required_if=Step profile"`
	Course  *DraftCourse  `json:"course" validate:"required_if=Step course"`
	Payment *DraftPayment `json:"payment" validate:"required_if=Step payment"`
}

func (svc *Service) StartDraft(ctx context.Context, createdBy string) (Draft, error) {
	now := core.NowFunc().UTC()
	d := Draft{
		ID:        uuid.NewString(),
		Steps:     make([]DraftStep, 0, 3),
		CreatedBy: createdBy,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := svc.drafts.SaveDraft(ctx, d); err != nil {
		return Draft{}, errors.Wrap(err, "saving draft")
	}
	return d, nil
}

func (svc *Service) GetDraft(ctx context.Context, id string) (Draft, error) {
	return svc.drafts.GetDraft(ctx, id)
}

// UpdateDraft validates and records one step of a draft.
// The profile step runs the matcher; its result is advisory and kept on the draft.
func (svc *Service) UpdateDraft(ctx context.Context, id string, du DraftUpdate) (Draft, error) {
	if err := svc.validate.Struct(du); err != nil {
		return Draft{}, err
	}
	d, err := svc.drafts.GetDraft(ctx, id)
	if err != nil {
		return Draft{}, err
	}

	switch du.Step {
	case StepProfile:
		err = svc.draftProfile(ctx, &d, *du.Profile)
	case StepCourse:
		err = svc.draftCourse(ctx, &d, *du.Course)
	case StepPayment:
		err = svc.draftPayment(&d, *du.Payment)
	}
	if err != nil {
		return Draft{}, err
	}

	d.completeStep(du.Step)
	d.UpdatedAt = core.NowFunc().UTC()
	if err = svc.drafts.SaveDraft(ctx, d); err != nil {
		return Draft{}, errors.Wrap(err, "saving draft")
	}
	return d, nil
}

func (svc *Service) draftProfile(ctx context.Context, d *Draft, dp DraftProfile) error {
	dp.Profile.Clean()
	dp.InquiryID = core.CleanString(dp.InquiryID)
	if err := svc.validate.Struct(dp.Profile); err != nil {
		return err
	}

	res, err := svc.matcher.Check(ctx, dp.Profile.FirstName, dp.Profile.LastName)
	if err != nil {
		return err
	}
	d.Profile = dp.Profile
	d.Match = &res
	d.InquiryID = ""

	if dp.InquiryID == "" {
		return nil
	}
	for _, inq := range res.Inquiries {
		if inq.ID != dp.InquiryID {
			continue
		}
		d.InquiryID = inq.ID
		if dp.ApplyAutofill {
			d.Profile = matcher.Merge(d.Profile, matcher.Autofill(inq))
		}
		return nil
	}
	return core.NewValidationError(nil, core.FieldError{Field: "inquiry_id", Error: "inquiry does not match the candidate"})
}

func (svc *Service) draftCourse(ctx context.Context, d *Draft, dc DraftCourse) error {
	dc.CourseID = core.CleanString(dc.CourseID)
	dc.BatchID = core.CleanString(dc.BatchID)
	if err := svc.validate.Struct(dc); err != nil {
		return err
	}

	repos := svc.store.Repos()
	crs, err := repos.Courses().GetCourse(ctx, dc.CourseID)
	if err != nil {
		return err
	}
	b, err := repos.Courses().GetBatch(ctx, dc.BatchID)
	if err != nil {
		return err
	}
	if b.CourseID != crs.ID {
		return core.NewValidationError(nil, core.FieldError{Field: "batch_id", Error: "batch does not belong to the course"})
	}
	quote, err := svc.calc.Quote(crs, dc.Plan)
	if err != nil {
		return err
	}

	d.CourseID, d.BatchID, d.Plan, d.Quote = crs.ID, b.ID, dc.Plan, &quote
	return nil
}

func (svc *Service) draftPayment(d *Draft, dp DraftPayment) error {
	if !d.HasStep(StepCourse) || d.Quote == nil {
		return errors.Wrap(core.ErrStateViolation, "draft: the course must be chosen before the payment")
	}
	if err := svc.validate.Struct(dp); err != nil {
		return err
	}
	if dp.PayNow {
		flds := make([]core.FieldError, 0, 2)
		if msg := receipt.CheckAmount(dp.AmountNow); msg != "" {
			flds = append(flds, core.FieldError{Field: "amount_now", Error: msg})
		}
		if dp.PaymentMode == "" {
			flds = append(flds, core.FieldError{Field: "payment_mode", Error: "this field is required"})
		}
		if len(flds) > 0 {
			return core.NewValidationError(nil, flds...)
		}
		if d.Quote.AdmissionDue.IsZero() {
			return core.NewValidationError(nil, core.FieldError{Field: "pay_now", Error: errNothingDueAtAdmission})
		}
		if dp.AmountNow.GreaterThan(d.Quote.AdmissionDue) {
			return errors.Wrapf(core.ErrOverpayment, "draft: paying %s, only %s due at admission", dp.AmountNow, d.Quote.AdmissionDue)
		}
	}

	d.PayNow, d.AmountNow, d.PaymentMode, d.ReceiptNo = dp.PayNow, dp.AmountNow, dp.PaymentMode, dp.ReceiptNo
	return nil
}

// SubmitDraft enrolls the drafted candidate and discards the draft.
func (svc *Service) SubmitDraft(ctx context.Context, id, recordedBy string) (student.Student, *receipt.Receipt, error) {
	d, err := svc.drafts.GetDraft(ctx, id)
	if err != nil {
		return student.Student{}, nil, err
	}
	if !d.HasStep(StepProfile) || !d.HasStep(StepCourse) {
		return student.Student{}, nil, errors.Wrap(core.ErrStateViolation, "draft: the profile and course steps are required")
	}

	std, rcpt, err := svc.Enroll(ctx, EnrollRequest{
		Profile:     d.Profile,
		CourseID:    d.CourseID,
		BatchID:     d.BatchID,
		Plan:        d.Plan,
		PayNow:      d.PayNow,
		AmountNow:   d.AmountNow,
		PaymentMode: d.PaymentMode,
		ReceiptNo:   d.ReceiptNo,
		InquiryID:   d.InquiryID,
		RecordedBy:  recordedBy,
	})
	if err != nil {
		return student.Student{}, nil, err
	}

	if err = svc.drafts.DeleteDraft(ctx, id); err != nil {
		svc.logger.Error("deleting submitted draft "+id, err)
	}
	return std, rcpt, nil
}

func (svc *Service) CancelDraft(ctx context.Context, id string) error {
	if _, err := svc.drafts.GetDraft(ctx, id); err != nil {
		return err
	}
	return svc.drafts.DeleteDraft(ctx, id)
}
