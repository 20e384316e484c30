package receipt

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

type Purpose string

const (
	PurposeAdmission    Purpose = "admission"
	PurposeRegistration Purpose = "registration"
	PurposeInstallment  Purpose = "installment"
)

type Mode string

const (
	ModeCash         Mode = "cash"
	ModeCheque       Mode = "cheque"
	ModeCard         Mode = "card"
	ModeUPI          Mode = "upi"
	ModeBankTransfer Mode = "bank_transfer"
	ModeOnline       Mode = "online"
)

// Amounts are stored as numeric(12,2).
const AmountPlaces = 2

var MaxAmount = decimal.New(1, 10).Sub(decimal.New(1, -AmountPlaces)) // 9999999999.99

// CheckAmount returns why `amount` cannot be recorded, or "" when it can.
func CheckAmount(amount decimal.Decimal) string {
	switch {
	case !amount.IsPositive():
		return "amount must be greater than 0"
	case !amount.Equal(amount.Round(AmountPlaces)):
		return "amount cannot have more than 2 decimal places"
	case amount.GreaterThan(MaxAmount):
		return "amount is too large"
	}
	return ""
}

var Modes = []Mode{ModeCash, ModeCheque, ModeCard, ModeUPI, ModeBankTransfer, ModeOnline}

func (m Mode) IsValid() bool {
	for _, mode := range Modes {
		if m == mode {
			return true
		}
	}
	return false
}

// Receipt is one payment event. Receipts are append-only: the sum of a student's receipts
// is the only source of truth for the amount paid.
type Receipt struct {
	ReceiptNo   int64           `json:"receipt_no" db:"receipt_no"`
	StudentID   string          `json:"student_id" db:"student_id"`
	CourseID    string          `json:"course_id" db:"course_id"`
	AmountPaid  decimal.Decimal `json:"amount_paid" db:"amount_paid"`
	Purpose     Purpose         `json:"purpose" db:"purpose"`
	PaymentMode Mode            `json:"payment_mode" db:"payment_mode"`
	Remarks     string          `json:"remarks" db:"remarks"`
	RecordedBy  string          `json:"recorded_by" db:"recorded_by"`
	Date        time.Time       `json:"date" db:"date"` // UTC
}

type Repository interface {
	// NextReceiptNo atomically allocates a receipt number. Numbers are never handed out twice.
	NextReceiptNo(ctx context.Context) (int64, error)
	// LastReceiptNo returns the last number handed out by NextReceiptNo, 0 when none was.
	LastReceiptNo(ctx context.Context) (int64, error)
	// CreateReceipt fails with core.ErrDuplicateReceiptNo when the number is already used.
	CreateReceipt(ctx context.Context, rcpt Receipt) (Receipt, error)
	QueryReceipts(ctx context.Context, studentID string) ([]Receipt, error)
	// SumPaid sums the amounts paid by a student, optionally restricted to `purposes`.
	SumPaid(ctx context.Context, studentID string, purposes ...Purpose) (decimal.Decimal, error)
}
