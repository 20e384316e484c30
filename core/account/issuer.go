package account

import (
	"context"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/admissions/core"
)

// Issuer creates student accounts. It runs inside the caller's unit of work,
// so an account is never left behind when the registration fails.
type Issuer struct {
	validate *validator.Validate
}

func NewIssuer(validate *validator.Validate) *Issuer {
	return &Issuer{validate: validate}
}

func cleanUsername(uname string) string {
	return core.CleanString(uname, true /* lower */)
}

// Validate checks the credentials against the password policy and the existing usernames.
func (iss *Issuer) Validate(ctx context.Context, repo Repository, na *NewAccount) error {
	na.Clean()
	if err := iss.validate.Struct(na); err != nil {
		return err
	}
	if err := repo.CheckUsernameUniqueness(ctx, na.Username); err != nil {
		if errors.Cause(err) == ErrUsernameExists {
			return core.NewValidationError(err, core.FieldError{Field: "username", Error: ErrUsernameExists.Error()})
		}
		return err
	}
	return nil
}

func (iss *Issuer) Issue(ctx context.Context, repo Repository, na NewAccount) (Account, error) {
	if err := iss.Validate(ctx, repo, &na); err != nil {
		return Account{}, err
	}

	acc := Account{
		ID:        uuid.NewString(),
		StudentID: na.StudentID,
		Username:  na.Username,
		IsActive:  true,
		CreatedAt: core.NowFunc().UTC(),
	}
	if err := acc.SetPassword(na.Password); err != nil {
		return Account{}, errors.Wrap(err, "hashing password")
	}
	acc, err := repo.CreateAccount(ctx, acc)
	if err != nil {
		return Account{}, errors.Wrapf(err, "creating account %q", strings.ToLower(na.Username))
	}
	return acc, nil
}
