package inmemdb

import (
	"context"
	"sort"
	"strings"

	"github.com/pkg/errors"

	"github.com/trezcool/admissions/core"
	"github.com/trezcool/admissions/core/inquiry"
)

type inquiryRepository struct {
	db *DB
}

func (repo inquiryRepository) CreateInquiry(_ context.Context, inq inquiry.Inquiry) (inquiry.Inquiry, error) {
	repo.db.lock()
	defer repo.db.unlock()

	now := core.NowFunc().UTC()
	if inq.CreatedAt.IsZero() {
		inq.CreatedAt = now
	}
	inq.UpdatedAt = now
	if inq.Status == "" {
		inq.Status = inquiry.StatusOpen
	}
	repo.db.data.inquiries[inq.ID] = inq
	return inq, nil
}

func (repo inquiryRepository) GetInquiry(_ context.Context, id string) (inquiry.Inquiry, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if inq, ok := repo.db.data.inquiries[id]; ok {
		return inq, nil
	}
	return inquiry.Inquiry{}, errors.Wrapf(core.ErrNotFound, "inquiry %q", id)
}

func (repo inquiryRepository) FindInquiriesByName(_ context.Context, firstName, lastName string, statuses ...inquiry.Status) ([]inquiry.Inquiry, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	first, last := core.CleanString(firstName), core.CleanString(lastName)
	matches := make([]inquiry.Inquiry, 0)
	for _, inq := range repo.db.data.inquiries {
		if !strings.EqualFold(inq.FirstName, first) || !strings.EqualFold(inq.LastName, last) {
			continue
		}
		if len(statuses) > 0 && !hasStatus(statuses, inq.Status) {
			continue
		}
		matches = append(matches, inq)
	}
	// most recent first
	sort.Slice(matches, func(i, j int) bool {
		if !matches[i].CreatedAt.Equal(matches[j].CreatedAt) {
			return matches[i].CreatedAt.After(matches[j].CreatedAt)
		}
		return matches[i].ID < matches[j].ID
	})
	return matches, nil
}

func (repo inquiryRepository) UpdateInquiryStatus(_ context.Context, id string, status inquiry.Status, from ...inquiry.Status) (inquiry.Inquiry, error) {
	repo.db.lock()
	defer repo.db.unlock()

	inq, ok := repo.db.data.inquiries[id]
	if !ok {
		return inquiry.Inquiry{}, errors.Wrapf(core.ErrNotFound, "inquiry %q", id)
	}
	if len(from) > 0 && !hasStatus(from, inq.Status) {
		return inquiry.Inquiry{}, errors.Wrapf(core.ErrStateViolation, "inquiry %q is %s", id, inq.Status)
	}
	inq.Status = status
	inq.UpdatedAt = core.NowFunc().UTC()
	repo.db.data.inquiries[id] = inq
	return inq, nil
}

func hasStatus(statuses []inquiry.Status, s inquiry.Status) bool {
	for _, st := range statuses {
		if st == s {
			return true
		}
	}
	return false
}
