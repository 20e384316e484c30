package store

import (
	"context"

	"github.com/trezcool/admissions/core/account"
	"github.com/trezcool/admissions/core/course"
	"github.com/trezcool/admissions/core/exam"
	"github.com/trezcool/admissions/core/inquiry"
	"github.com/trezcool/admissions/core/receipt"
	"github.com/trezcool/admissions/core/student"
)

// Repos groups the repositories bound to one unit of work.
type Repos interface {
	Courses() course.Repository
	Students() student.Repository
	Receipts() receipt.Repository
	Inquiries() inquiry.Repository
	ExamRequests() exam.Repository
	Accounts() account.Repository
}

// Store gives access to the repositories.
// Repos() operates outside of any unit of work, which is fine for reads.
// Atomic runs `fn` in a unit of work: every write done through the given Repos
// is committed when `fn` returns nil, and discarded otherwise.
type Store interface {
	Repos() Repos
	Atomic(ctx context.Context, fn func(repos Repos) error) error
}
