package pgdb

import (
	"context"
	"database/sql"

	sq "github.com/Masterminds/squirrel"
	"github.com/pkg/errors"

	"github.com/trezcool/admissions/core"
	"github.com/trezcool/admissions/core/inquiry"
)

type inquiryRepository struct {
	q querier
}

func (repo inquiryRepository) CreateInquiry(ctx context.Context, inq inquiry.Inquiry) (inquiry.Inquiry, error) {
	now := core.NowFunc().UTC()
	if inq.CreatedAt.IsZero() {
		inq.CreatedAt = now
	}
	inq.UpdatedAt = now
	if inq.Status == "" {
		inq.Status = inquiry.StatusOpen
	}

	_, err := exec(ctx, repo.q, psql.Insert("inquiries").SetMap(map[string]interface{}{
		"id":                   inq.ID,
		"first_name":           inq.FirstName,
		"middle_name":          inq.MiddleName,
		"last_name":            inq.LastName,
		"email":                inq.Email,
		"mobile":               inq.Mobile,
		"alt_mobile":           inq.AltMobile,
		"gender":               inq.Gender,
		"birth_date":           inq.BirthDate,
		"address":              inq.Address,
		"city":                 inq.City,
		"qualification":        inq.Qualification,
		"interested_course_id": inq.InterestedCourseID,
		"notes":                inq.Notes,
		"status":               inq.Status,
		"created_at":           inq.CreatedAt,
		"updated_at":           inq.UpdatedAt,
	}))
	if err != nil {
		return inquiry.Inquiry{}, errors.Wrapf(err, "creating inquiry %q", inq.ID)
	}
	return inq, nil
}

func (repo inquiryRepository) GetInquiry(ctx context.Context, id string) (inquiry.Inquiry, error) {
	var inq inquiry.Inquiry
	if err := get(ctx, repo.q, &inq, psql.Select("*").From("inquiries").Where("id = ?", id)); err != nil {
		return inquiry.Inquiry{}, notFound(err, "inquiry %q", id)
	}
	return inq, nil
}

func (repo inquiryRepository) FindInquiriesByName(ctx context.Context, firstName, lastName string, statuses ...inquiry.Status) ([]inquiry.Inquiry, error) {
	b := psql.Select("*").From("inquiries").
		Where("lower(first_name) = lower(?)", core.CleanString(firstName)).
		Where("lower(last_name) = lower(?)", core.CleanString(lastName))
	if len(statuses) > 0 {
		sts := make([]string, 0, len(statuses))
		for _, st := range statuses {
			sts = append(sts, string(st))
		}
		b = b.Where(sq.Eq{"status": sts})
	}

	inquiries := make([]inquiry.Inquiry, 0)
	if err := sel(ctx, repo.q, &inquiries, b.OrderBy("created_at DESC", "id")); err != nil {
		return nil, errors.Wrap(err, "finding inquiries")
	}
	return inquiries, nil
}

func (repo inquiryRepository) UpdateInquiryStatus(ctx context.Context, id string, status inquiry.Status, from ...inquiry.Status) (inquiry.Inquiry, error) {
	b := psql.Update("inquiries").
		Set("status", status).
		Set("updated_at", core.NowFunc().UTC()).
		Where("id = ?", id)
	if len(from) > 0 {
		sts := make([]string, 0, len(from))
		for _, st := range from {
			sts = append(sts, string(st))
		}
		b = b.Where(sq.Eq{"status": sts})
	}

	var inq inquiry.Inquiry
	err := get(ctx, repo.q, &inq, b.Suffix("RETURNING *"))
	if errors.Is(err, sql.ErrNoRows) && len(from) > 0 {
		// tell a missing inquiry apart from one in the wrong status
		cur, gErr := repo.GetInquiry(ctx, id)
		if gErr != nil {
			return inquiry.Inquiry{}, gErr
		}
		return inquiry.Inquiry{}, errors.Wrapf(core.ErrStateViolation, "inquiry %q is %s", id, cur.Status)
	}
	if err != nil {
		return inquiry.Inquiry{}, notFound(err, "updating inquiry %q", id)
	}
	return inq, nil
}
