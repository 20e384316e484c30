package inmemdb

import (
	"context"

	"github.com/pkg/errors"

	"github.com/trezcool/admissions/core"
	"github.com/trezcool/admissions/core/account"
)

type accountRepository struct {
	db *DB
}

func (repo accountRepository) CheckUsernameUniqueness(_ context.Context, username string) error {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	for _, acc := range repo.db.data.accounts {
		if acc.Username == username {
			return account.ErrUsernameExists
		}
	}
	return nil
}

func (repo accountRepository) CreateAccount(_ context.Context, acc account.Account) (account.Account, error) {
	repo.db.lock()
	defer repo.db.unlock()

	for _, other := range repo.db.data.accounts {
		if other.Username == acc.Username {
			return account.Account{}, account.ErrUsernameExists
		}
		if other.StudentID == acc.StudentID {
			return account.Account{}, errors.Errorf("student %q already has an account", acc.StudentID)
		}
	}
	repo.db.data.accounts[acc.ID] = acc
	return acc, nil
}

func (repo accountRepository) GetAccountByStudent(_ context.Context, studentID string) (account.Account, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	for _, acc := range repo.db.data.accounts {
		if acc.StudentID == studentID {
			return acc, nil
		}
	}
	return account.Account{}, errors.Wrapf(core.ErrNotFound, "account of student %q", studentID)
}
