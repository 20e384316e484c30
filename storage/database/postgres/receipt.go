package pgdb

import (
	"context"

	sq "github.com/Masterminds/squirrel"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/trezcool/admissions/core"
	"github.com/trezcool/admissions/core/receipt"
)

type receiptRepository struct {
	q querier
}

// NextReceiptNo draws from a sequence: numbers are never reused, even by rolled back transactions.
func (repo receiptRepository) NextReceiptNo(ctx context.Context) (int64, error) {
	var no int64
	if err := repo.q.GetContext(ctx, &no, "SELECT nextval('fee_receipt_no_seq')"); err != nil {
		return 0, errors.Wrap(err, "allocating receipt number")
	}
	return no, nil
}

// LastReceiptNo reads the sequence state: `last_value` only counts once `is_called` is set.
func (repo receiptRepository) LastReceiptNo(ctx context.Context) (int64, error) {
	var no int64
	query := "SELECT CASE WHEN is_called THEN last_value ELSE 0 END FROM fee_receipt_no_seq"
	if err := repo.q.GetContext(ctx, &no, query); err != nil {
		return 0, errors.Wrap(err, "reading last receipt number")
	}
	return no, nil
}

func (repo receiptRepository) CreateReceipt(ctx context.Context, rcpt receipt.Receipt) (receipt.Receipt, error) {
	_, err := exec(ctx, repo.q, psql.Insert("fee_receipts").SetMap(map[string]interface{}{
		"receipt_no":   rcpt.ReceiptNo,
		"student_id":   rcpt.StudentID,
		"course_id":    rcpt.CourseID,
		"amount_paid":  rcpt.AmountPaid,
		"purpose":      rcpt.Purpose,
		"payment_mode": rcpt.PaymentMode,
		"remarks":      rcpt.Remarks,
		"recorded_by":  rcpt.RecordedBy,
		"date":         rcpt.Date,
	}))
	if err != nil {
		switch pqCode(err) {
		case uniqueViolation:
			return receipt.Receipt{}, errors.Wrapf(core.ErrDuplicateReceiptNo, "receipt #%d", rcpt.ReceiptNo)
		case foreignKeyViolation:
			return receipt.Receipt{}, errors.Wrapf(core.ErrNotFound, "receipt #%d: %v", rcpt.ReceiptNo, err)
		case checkViolation:
			return receipt.Receipt{}, core.NewValidationError(err, core.FieldError{Field: "amount", Error: "invalid amount"})
		}
		return receipt.Receipt{}, errors.Wrapf(err, "creating receipt #%d", rcpt.ReceiptNo)
	}
	return rcpt, nil
}

func (repo receiptRepository) QueryReceipts(ctx context.Context, studentID string) ([]receipt.Receipt, error) {
	receipts := make([]receipt.Receipt, 0)
	err := sel(ctx, repo.q, &receipts, psql.Select("*").From("fee_receipts").
		Where("student_id = ?", studentID).
		OrderBy("date", "receipt_no"))
	if err != nil {
		return nil, errors.Wrap(err, "querying receipts")
	}
	return receipts, nil
}

func (repo receiptRepository) SumPaid(ctx context.Context, studentID string, purposes ...receipt.Purpose) (decimal.Decimal, error) {
	b := psql.Select("COALESCE(SUM(amount_paid), 0)").From("fee_receipts").Where("student_id = ?", studentID)
	if len(purposes) > 0 {
		ps := make([]string, 0, len(purposes))
		for _, p := range purposes {
			ps = append(ps, string(p))
		}
		b = b.Where(sq.Eq{"purpose": ps})
	}

	var sum decimal.Decimal
	if err := get(ctx, repo.q, &sum, b); err != nil {
		return decimal.Zero, errors.Wrapf(err, "summing receipts of student %q", studentID)
	}
	return sum, nil
}
