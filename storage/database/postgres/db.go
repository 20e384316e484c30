// Package pgdb implements the store on PostgreSQL with sqlx, building the dynamic queries with squirrel.
package pgdb

import (
	"context"
	"database/sql"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/trezcool/admissions/core"
	"github.com/trezcool/admissions/core/account"
	"github.com/trezcool/admissions/core/course"
	"github.com/trezcool/admissions/core/exam"
	"github.com/trezcool/admissions/core/inquiry"
	"github.com/trezcool/admissions/core/receipt"
	"github.com/trezcool/admissions/core/store"
	"github.com/trezcool/admissions/core/student"
)

// postgres error codes
const (
	uniqueViolation     = "23505"
	foreignKeyViolation = "23503"
	checkViolation      = "23514"
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// querier is satisfied by both *sqlx.DB and *sqlx.Tx.
type querier interface {
	sqlx.ExtContext
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
}

type DB struct {
	db *sqlx.DB
}

func New(db *sqlx.DB) *DB {
	return &DB{db: db}
}

// compile-time check
var _ store.Store = (*DB)(nil)

func (db *DB) Repos() store.Repos {
	return repos{q: db.db}
}

// Atomic runs `fn` in a transaction. Student rows read for update stay locked until it ends.
func (db *DB) Atomic(ctx context.Context, fn func(repos store.Repos) error) (err error) {
	tx, err := db.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "beginning transaction")
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err = fn(repos{q: tx, inTx: true}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return errors.Wrapf(err, "rolling back: %v", rbErr)
		}
		return err
	}
	return errors.Wrap(tx.Commit(), "committing transaction")
}

type repos struct {
	q    querier
	inTx bool
}

func (r repos) Courses() course.Repository { return courseRepository{q: r.q} }
func (r repos) Students() student.Repository { return studentRepository{q: r.q, inTx: r.inTx} }
func (r repos) Receipts() receipt.Repository { return receiptRepository{q: r.q} }
func (r repos) Inquiries() inquiry.Repository { return inquiryRepository{q: r.q} }
func (r repos) ExamRequests() exam.Repository { return examRepository{q: r.q} }
func (r repos) Accounts() account.Repository { return accountRepository{q: r.q} }

// get runs a squirrel SELECT and scans the single row into `dest`.
func get(ctx context.Context, q querier, dest interface{}, b sq.Sqlizer) error {
	query, args, err := b.ToSql()
	if err != nil {
		return errors.Wrap(err, "building query")
	}
	return q.GetContext(ctx, dest, query, args...)
}

func sel(ctx context.Context, q querier, dest interface{}, b sq.Sqlizer) error {
	query, args, err := b.ToSql()
	if err != nil {
		return errors.Wrap(err, "building query")
	}
	return q.SelectContext(ctx, dest, query, args...)
}

func exec(ctx context.Context, q querier, b sq.Sqlizer) (sql.Result, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "building query")
	}
	return q.ExecContext(ctx, query, args...)
}

// notFound turns sql.ErrNoRows into core.ErrNotFound.
func notFound(err error, format string, args ...interface{}) error {
	if errors.Is(err, sql.ErrNoRows) {
		return errors.Wrapf(core.ErrNotFound, format, args...)
	}
	return errors.Wrapf(err, format, args...)
}

func pqCode(err error) string {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code)
	}
	return ""
}
