package account

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/crypto/bcrypt"
)

var ErrUsernameExists = errors.New("an account with this username already exists")

// Account holds the login credentials issued to a registered student.
type Account struct {
	ID           string    `json:"id" db:"id"`
	StudentID    string    `json:"student_id" db:"student_id"`
	Username     string    `json:"username" db:"username"`
	PasswordHash []byte    `json:"-" db:"password_hash"`
	IsActive     bool      `json:"is_active" db:"is_active"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"` // UTC
}

func (a *Account) SetPassword(pwd string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(pwd), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	a.PasswordHash = hash
	return nil
}

func (a *Account) CheckPassword(pwd string) error {
	return bcrypt.CompareHashAndPassword(a.PasswordHash, []byte(pwd))
}

// Credentials are chosen by the operator when confirming a registration.
type Credentials struct {
	Username        string `json:"username" validate:"required,min=6,max=50,alphanum_"`
	Password        string `json:"password" validate:"required"`
	PasswordConfirm string `json:"password_confirm" validate:"required,eqfield=Password"`
}

func (c *Credentials) Clean() {
	c.Username = cleanUsername(c.Username)
}

// NewAccount contains the information needed to issue an Account.
// Name and Email are only used by the password policy.
type NewAccount struct {
	Credentials
	StudentID string `json:"-"`
	Name      string `json:"-"`
	Email     string `json:"-"`
}

type Repository interface {
	// CheckUsernameUniqueness fails with ErrUsernameExists when the username is taken.
	CheckUsernameUniqueness(ctx context.Context, username string) error
	CreateAccount(ctx context.Context, acc Account) (Account, error)
	GetAccountByStudent(ctx context.Context, studentID string) (Account, error)
}
