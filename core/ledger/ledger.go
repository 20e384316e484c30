// Package ledger records fee receipts and keeps the student balance in line with them.
// The balance is always re-derived from the full receipt sum, never adjusted incrementally.
package ledger

import (
	"context"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/trezcool/admissions/core"
	"github.com/trezcool/admissions/core/receipt"
	"github.com/trezcool/admissions/core/store"
	"github.com/trezcool/admissions/core/student"
)

// Payment is a payment to record against a student.
type Payment struct {
	StudentID  string
	Amount     decimal.Decimal
	Mode       receipt.Mode
	Purpose    receipt.Purpose
	Remarks    string
	ReceiptNo  int64 // allocated when zero
	RecordedBy string
}

// Dues is what a student still owes, per payment purpose.
type Dues struct {
	Admission    decimal.Decimal `json:"admission"`
	Registration decimal.Decimal `json:"registration"`
	Installment  decimal.Decimal `json:"installment"`
}

func (d Dues) For(purpose receipt.Purpose) decimal.Decimal {
	switch purpose {
	case receipt.PurposeAdmission:
		return d.Admission
	case receipt.PurposeRegistration:
		return d.Registration
	case receipt.PurposeInstallment:
		return d.Installment
	}
	return decimal.Zero
}

// ComputeDues derives the dues of `std` from the amounts already paid for admission and registration.
// One-time students owe their whole balance at admission; monthly students owe the admission fee,
// then the registration fee, then installments. Nothing is ever due above the pending balance.
func ComputeDues(std student.Student, admissionPaid, registrationPaid decimal.Decimal) Dues {
	pending := nonNegative(std.PendingFees)
	dues := Dues{Installment: pending}
	if !std.IsMonthly() {
		dues.Admission = pending
		dues.Registration = decimal.Zero
		return dues
	}

	dues.Admission = decimal.Min(nonNegative(std.AdmissionFees.Sub(admissionPaid)), pending)
	if std.Schedule != nil {
		dues.Registration = decimal.Min(nonNegative(std.Schedule.RegistrationFees.Sub(registrationPaid)), pending)
	}
	return dues
}

func nonNegative(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}

// DuesOf loads the receipt sums of `std` and computes its dues.
func DuesOf(ctx context.Context, repos store.Repos, std student.Student) (Dues, error) {
	admissionPaid, err := repos.Receipts().SumPaid(ctx, std.ID, receipt.PurposeAdmission)
	if err != nil {
		return Dues{}, errors.Wrap(err, "summing admission receipts")
	}
	registrationPaid, err := repos.Receipts().SumPaid(ctx, std.ID, receipt.PurposeRegistration)
	if err != nil {
		return Dues{}, errors.Wrap(err, "summing registration receipts")
	}
	return ComputeDues(std, admissionPaid, registrationPaid), nil
}

// RecordPayment records a receipt for `p` and recomputes the balance of the student.
// It must run inside the caller's unit of work: the student is locked until it ends.
func RecordPayment(ctx context.Context, repos store.Repos, p Payment) (student.Student, receipt.Receipt, error) {
	if msg := receipt.CheckAmount(p.Amount); msg != "" {
		return student.Student{}, receipt.Receipt{}, core.NewValidationError(nil,
			core.FieldError{Field: "amount", Error: msg})
	}
	if p.ReceiptNo < 0 {
		return student.Student{}, receipt.Receipt{}, core.NewValidationError(nil,
			core.FieldError{Field: "receipt_no", Error: "invalid receipt number"})
	}
	if !p.Mode.IsValid() {
		return student.Student{}, receipt.Receipt{}, core.NewValidationError(nil,
			core.FieldError{Field: "payment_mode", Error: "invalid payment mode"})
	}

	std, err := repos.Students().GetStudentForUpdate(ctx, p.StudentID)
	if err != nil {
		return student.Student{}, receipt.Receipt{}, errors.Wrap(err, "locking student")
	}

	dues, err := DuesOf(ctx, repos, std)
	if err != nil {
		return student.Student{}, receipt.Receipt{}, err
	}
	if due := dues.For(p.Purpose); p.Amount.GreaterThan(due) {
		return student.Student{}, receipt.Receipt{}, errors.Wrapf(core.ErrOverpayment,
			"%s payment of %s for student %s, only %s due", p.Purpose, p.Amount, std.ID, due)
	}

	rcptNo, err := receiptNo(ctx, repos.Receipts(), p.ReceiptNo)
	if err != nil {
		return student.Student{}, receipt.Receipt{}, err
	}

	rcpt, err := repos.Receipts().CreateReceipt(ctx, receipt.Receipt{
		ReceiptNo:   rcptNo,
		StudentID:   std.ID,
		CourseID:    std.CourseID,
		AmountPaid:  p.Amount,
		Purpose:     p.Purpose,
		PaymentMode: p.Mode,
		Remarks:     core.CleanString(p.Remarks),
		RecordedBy:  p.RecordedBy,
		Date:        core.NowFunc().UTC(),
	})
	if err != nil {
		return student.Student{}, receipt.Receipt{}, errors.Wrap(err, "creating receipt")
	}

	std, _, err = recompute(ctx, repos, std)
	if err != nil {
		return student.Student{}, receipt.Receipt{}, err
	}
	return std, rcpt, nil
}

// receiptNo allocates a number when `requested` is zero. A requested number is only honoured
// once the allocator has handed it out, so that it never collides with a later allocation.
func receiptNo(ctx context.Context, repo receipt.Repository, requested int64) (int64, error) {
	if requested == 0 {
		no, err := repo.NextReceiptNo(ctx)
		if err != nil {
			return 0, errors.Wrap(err, "allocating receipt number")
		}
		return no, nil
	}
	last, err := repo.LastReceiptNo(ctx)
	if err != nil {
		return 0, errors.Wrap(err, "reading last receipt number")
	}
	if requested > last {
		return 0, core.NewValidationError(nil,
			core.FieldError{Field: "receipt_no", Error: "receipt number has not been issued yet"})
	}
	return requested, nil
}

// Recompute re-derives the balance of a student from its receipts and persists it when it drifted.
// It reports whether the student had to be updated.
func Recompute(ctx context.Context, repos store.Repos, studentID string) (student.Student, bool, error) {
	std, err := repos.Students().GetStudentForUpdate(ctx, studentID)
	if err != nil {
		return student.Student{}, false, errors.Wrap(err, "locking student")
	}
	return recompute(ctx, repos, std)
}

func recompute(ctx context.Context, repos store.Repos, std student.Student) (student.Student, bool, error) {
	paid, err := repos.Receipts().SumPaid(ctx, std.ID)
	if err != nil {
		return student.Student{}, false, errors.Wrap(err, "summing receipts")
	}
	pending := std.TotalFees.Sub(paid)
	if pending.IsNegative() {
		return student.Student{}, false, errors.Wrapf(core.ErrOverpayment,
			"student %s paid %s of %s", std.ID, paid, std.TotalFees)
	}

	updated := std
	updated.PendingFees = pending
	dues, err := DuesOf(ctx, repos, updated)
	if err != nil {
		return student.Student{}, false, err
	}
	updated.IsAdmissionFeesPaid = dues.Admission.IsZero()

	if updated.PendingFees.Equal(std.PendingFees) && updated.IsAdmissionFeesPaid == std.IsAdmissionFeesPaid {
		return std, false, nil
	}
	updated.UpdatedAt = core.NowFunc().UTC()
	if updated, err = repos.Students().UpdateStudent(ctx, updated); err != nil {
		return student.Student{}, false, errors.Wrap(err, "updating balance")
	}
	return updated, true, nil
}
