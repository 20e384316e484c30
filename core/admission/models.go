package admission

import (
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/trezcool/admissions/core"
	"github.com/trezcool/admissions/core/fees"
	"github.com/trezcool/admissions/core/ledger"
	"github.com/trezcool/admissions/core/receipt"
	"github.com/trezcool/admissions/core/student"
)

const errNothingDueAtAdmission = "nothing is due at admission for this course and payment plan"

// EnrollRequest contains the information needed to admit a candidate.
type EnrollRequest struct {
	Profile     student.Profile `json:"profile"`
	CourseID    string          `json:"course_id" validate:"required"`
	BatchID     string          `json:"batch_id" validate:"required"`
	Plan        fees.Plan       `json:"payment_plan" validate:"required,plan"`
	PayNow      bool            `json:"pay_now"`
	AmountNow   decimal.Decimal `json:"amount_now"`
	PaymentMode receipt.Mode    `json:"payment_mode" validate:"omitempty,paymentmode"`
	ReceiptNo   int64           `json:"receipt_no" validate:"gte=0"`
	Remarks     string          `json:"remarks" validate:"max=500"`
	InquiryID   string          `json:"inquiry_id"`
	RecordedBy  string          `json:"-"`
}

func (er *EnrollRequest) Clean() {
	er.Profile.Clean()
	er.CourseID = core.CleanString(er.CourseID)
	er.BatchID = core.CleanString(er.BatchID)
	er.InquiryID = core.CleanString(er.InquiryID)
	er.Remarks = core.CleanString(er.Remarks)
}

func (er *EnrollRequest) Validate(validate *validator.Validate) error {
	er.Clean()
	if err := validate.Struct(er); err != nil {
		return err
	}
	if !er.PayNow {
		return nil
	}
	flds := make([]core.FieldError, 0, 2)
	if msg := receipt.CheckAmount(er.AmountNow); msg != "" {
		flds = append(flds, core.FieldError{Field: "amount_now", Error: msg})
	}
	if er.PaymentMode == "" {
		flds = append(flds, core.FieldError{Field: "payment_mode", Error: "this field is required"})
	}
	if len(flds) > 0 {
		return core.NewValidationError(nil, flds...)
	}
	return nil
}

func (er EnrollRequest) payment() PaymentRequest {
	return PaymentRequest{
		Amount:      er.AmountNow,
		PaymentMode: er.PaymentMode,
		Remarks:     er.Remarks,
		ReceiptNo:   er.ReceiptNo,
		RecordedBy:  er.RecordedBy,
	}
}

// PaymentRequest is a payment taken at the counter.
// ReceiptNo is the number fetched beforehand from the next-receipt-no endpoint; zero allocates one.
type PaymentRequest struct {
	Amount      decimal.Decimal `json:"amount" validate:"required,gt=0"`
	PaymentMode receipt.Mode    `json:"payment_mode" validate:"required,paymentmode"`
	Remarks     string          `json:"remarks" validate:"max=500"`
	ReceiptNo   int64           `json:"receipt_no" validate:"gte=0"`
	RecordedBy  string          `json:"-"`
}

func (pr *PaymentRequest) Validate(validate *validator.Validate) error {
	pr.Remarks = core.CleanString(pr.Remarks)
	return validate.Struct(pr)
}

func (pr PaymentRequest) toPayment(studentID string, purpose receipt.Purpose) ledger.Payment {
	return ledger.Payment{
		StudentID:  studentID,
		Amount:     pr.Amount,
		Mode:       pr.PaymentMode,
		Purpose:    purpose,
		Remarks:    pr.Remarks,
		ReceiptNo:  pr.ReceiptNo,
		RecordedBy: pr.RecordedBy,
	}
}

type CancelRequest struct {
	Reason string `json:"reason" validate:"required,notblank,max=500"`
}

func (cr *CancelRequest) Validate(validate *validator.Validate) error {
	cr.Reason = core.CleanString(cr.Reason)
	return validate.Struct(cr)
}

type ExamRequestInput struct {
	Remarks string `json:"remarks" validate:"max=500"`
}

// Overview is a student along with what it still owes.
type Overview struct {
	student.Student
	Dues ledger.Dues `json:"dues"`
	// NextInstallment is only set for monthly students in the installment stage.
	NextInstallment decimal.NullDecimal `json:"next_installment"`
}
