package inmemdb

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/trezcool/admissions/core/account"
	"github.com/trezcool/admissions/core/course"
	"github.com/trezcool/admissions/core/exam"
	"github.com/trezcool/admissions/core/inquiry"
	"github.com/trezcool/admissions/core/receipt"
	"github.com/trezcool/admissions/core/store"
	"github.com/trezcool/admissions/core/student"
)

type tables struct {
	courses   map[string]course.Course
	batches   map[string]course.Batch
	students  map[string]student.Student
	receipts  map[int64]receipt.Receipt
	inquiries map[string]inquiry.Inquiry
	exams     map[string]exam.Request
	accounts  map[string]account.Account
}

func newTables() tables {
	return tables{
		courses:   make(map[string]course.Course),
		batches:   make(map[string]course.Batch),
		students:  make(map[string]student.Student),
		receipts:  make(map[int64]receipt.Receipt),
		inquiries: make(map[string]inquiry.Inquiry),
		exams:     make(map[string]exam.Request),
		accounts:  make(map[string]account.Account),
	}
}

func (t tables) clone() tables {
	c := newTables()
	for k, v := range t.courses {
		c.courses[k] = v
	}
	for k, v := range t.batches {
		c.batches[k] = v
	}
	for k, v := range t.students {
		c.students[k] = cloneStudent(v)
	}
	for k, v := range t.receipts {
		c.receipts[k] = v
	}
	for k, v := range t.inquiries {
		c.inquiries[k] = v
	}
	for k, v := range t.exams {
		c.exams[k] = v
	}
	for k, v := range t.accounts {
		c.accounts[k] = v
	}
	return c
}

func cloneStudent(std student.Student) student.Student {
	if std.Schedule != nil {
		sched := *std.Schedule
		std.Schedule = &sched
	}
	return std
}

// DB is an in-memory Store, used by tests and local runs.
// Units of work are serialised and run against a private copy of the tables, committed only when
// the unit succeeds, so reads made outside a unit never see a half-applied one.
// Writes made outside a unit wait for the running unit to finish.
type DB struct {
	mutex sync.RWMutex
	data  tables

	unit       *sync.Mutex // nil on a unit's working copy
	receiptSeq *int64
}

func NewDB() *DB {
	return &DB{data: newTables(), unit: new(sync.Mutex), receiptSeq: new(int64)}
}

// compile-time check
var _ store.Store = (*DB)(nil)

func (db *DB) Repos() store.Repos {
	return repos{db: db}
}

func (db *DB) Atomic(ctx context.Context, fn func(repos store.Repos) error) error {
	db.unit.Lock()
	defer db.unit.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	db.mutex.RLock()
	work := &DB{data: db.data.clone(), receiptSeq: db.receiptSeq}
	db.mutex.RUnlock()

	if err := fn(repos{db: work}); err != nil {
		return err
	}

	db.mutex.Lock()
	db.data = work.data
	db.mutex.Unlock()
	return nil
}

func (db *DB) lock() {
	if db.unit != nil {
		db.unit.Lock()
	}
	db.mutex.Lock()
}

func (db *DB) unlock() {
	db.mutex.Unlock()
	if db.unit != nil {
		db.unit.Unlock()
	}
}

func (db *DB) nextReceiptNo() int64 {
	return atomic.AddInt64(db.receiptSeq, 1)
}

type repos struct {
	db *DB
}

func (r repos) Courses() course.Repository { return courseRepository{db: r.db} }
func (r repos) Students() student.Repository { return studentRepository{db: r.db} }
func (r repos) Receipts() receipt.Repository { return receiptRepository{db: r.db} }
func (r repos) Inquiries() inquiry.Repository { return inquiryRepository{db: r.db} }
func (r repos) ExamRequests() exam.Repository { return examRepository{db: r.db} }
func (r repos) Accounts() account.Repository { return accountRepository{db: r.db} }
