package inmemdb

import (
	"context"
	"sort"
	"sync/atomic"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/trezcool/admissions/core"
	"github.com/trezcool/admissions/core/receipt"
)

type receiptRepository struct {
	db *DB
}

func (repo receiptRepository) NextReceiptNo(ctx context.Context) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return repo.db.nextReceiptNo(), nil
}

func (repo receiptRepository) LastReceiptNo(ctx context.Context) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return atomic.LoadInt64(repo.db.receiptSeq), nil
}

func (repo receiptRepository) CreateReceipt(_ context.Context, rcpt receipt.Receipt) (receipt.Receipt, error) {
	repo.db.lock()
	defer repo.db.unlock()

	if _, ok := repo.db.data.receipts[rcpt.ReceiptNo]; ok {
		return receipt.Receipt{}, errors.Wrapf(core.ErrDuplicateReceiptNo, "receipt #%d", rcpt.ReceiptNo)
	}
	if _, ok := repo.db.data.students[rcpt.StudentID]; !ok {
		return receipt.Receipt{}, errors.Wrapf(core.ErrNotFound, "student %q", rcpt.StudentID)
	}
	repo.db.data.receipts[rcpt.ReceiptNo] = rcpt
	return rcpt, nil
}

func (repo receiptRepository) QueryReceipts(_ context.Context, studentID string) ([]receipt.Receipt, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	receipts := make([]receipt.Receipt, 0)
	for _, rcpt := range repo.db.data.receipts {
		if rcpt.StudentID == studentID {
			receipts = append(receipts, rcpt)
		}
	}
	sort.Slice(receipts, func(i, j int) bool {
		if !receipts[i].Date.Equal(receipts[j].Date) {
			return receipts[i].Date.Before(receipts[j].Date)
		}
		return receipts[i].ReceiptNo < receipts[j].ReceiptNo
	})
	return receipts, nil
}

func (repo receiptRepository) SumPaid(_ context.Context, studentID string, purposes ...receipt.Purpose) (decimal.Decimal, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	sum := decimal.Zero
	for _, rcpt := range repo.db.data.receipts {
		if rcpt.StudentID != studentID {
			continue
		}
		if len(purposes) > 0 && !hasPurpose(purposes, rcpt.Purpose) {
			continue
		}
		sum = sum.Add(rcpt.AmountPaid)
	}
	return sum, nil
}

func hasPurpose(purposes []receipt.Purpose, p receipt.Purpose) bool {
	for _, purpose := range purposes {
		if purpose == p {
			return true
		}
	}
	return false
}
