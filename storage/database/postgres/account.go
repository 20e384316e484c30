package pgdb

import (
	"context"

	sq "github.com/Masterminds/squirrel"
	"github.com/pkg/errors"

	"github.com/trezcool/admissions/core"
	"github.com/trezcool/admissions/core/account"
)

type accountRepository struct {
	q querier
}

func (repo accountRepository) CheckUsernameUniqueness(ctx context.Context, username string) error {
	var exists bool
	err := get(ctx, repo.q, &exists, psql.Select().Column(sq.Expr(
		"EXISTS (SELECT 1 FROM accounts WHERE lower(username) = lower(?))", username,
	)))
	if err != nil {
		return errors.Wrap(err, "checking username uniqueness")
	}
	if exists {
		return account.ErrUsernameExists
	}
	return nil
}

func (repo accountRepository) CreateAccount(ctx context.Context, acc account.Account) (account.Account, error) {
	_, err := exec(ctx, repo.q, psql.Insert("accounts").SetMap(map[string]interface{}{
		"id":            acc.ID,
		"student_id":    acc.StudentID,
		"username":      acc.Username,
		"password_hash": acc.PasswordHash,
		"is_active":     acc.IsActive,
		"created_at":    acc.CreatedAt,
	}))
	if err != nil {
		switch pqCode(err) {
		case uniqueViolation:
			return account.Account{}, errors.Wrapf(account.ErrUsernameExists, "creating account for student %q", acc.StudentID)
		case foreignKeyViolation:
			return account.Account{}, errors.Wrapf(core.ErrNotFound, "student %q", acc.StudentID)
		}
		return account.Account{}, errors.Wrapf(err, "creating account for student %q", acc.StudentID)
	}
	return acc, nil
}

func (repo accountRepository) GetAccountByStudent(ctx context.Context, studentID string) (account.Account, error) {
	var acc account.Account
	if err := get(ctx, repo.q, &acc, psql.Select("*").From("accounts").Where("student_id = ?", studentID)); err != nil {
		return account.Account{}, notFound(err, "account of student %q", studentID)
	}
	return acc, nil
}
