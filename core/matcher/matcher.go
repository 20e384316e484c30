// Package matcher cross-references a candidate admission with the existing students and inquiries.
// Matching is on exact first & last names, ignoring case. It is advisory: it never blocks an
// admission and never changes an inquiry.
package matcher

import (
	"context"

	"github.com/pkg/errors"

	"github.com/trezcool/admissions/core"
	"github.com/trezcool/admissions/core/inquiry"
	"github.com/trezcool/admissions/core/student"
)

type Result struct {
	Duplicates []student.Student `json:"duplicates"`
	Inquiries  []inquiry.Inquiry `json:"inquiries"`
	// Autofill is built from the most recent matching inquiry.
	Autofill *student.Profile `json:"autofill,omitempty"`
}

func (r Result) HasMatches() bool {
	return len(r.Duplicates) > 0 || len(r.Inquiries) > 0
}

type Matcher struct {
	students  student.Repository
	inquiries inquiry.Repository
}

func New(students student.Repository, inquiries inquiry.Repository) *Matcher {
	return &Matcher{students: students, inquiries: inquiries}
}

func (m *Matcher) Check(ctx context.Context, firstName, lastName string) (Result, error) {
	res := Result{
		Duplicates: make([]student.Student, 0),
		Inquiries:  make([]inquiry.Inquiry, 0),
	}
	firstName, lastName = core.CleanString(firstName), core.CleanString(lastName)
	if firstName == "" || lastName == "" {
		return res, nil
	}

	dups, err := m.students.FindStudentsByName(ctx, firstName, lastName)
	if err != nil {
		return Result{}, errors.Wrap(err, "finding duplicate students")
	}
	inqs, err := m.inquiries.FindInquiriesByName(ctx, firstName, lastName, inquiry.StatusOpen)
	if err != nil {
		return Result{}, errors.Wrap(err, "finding open inquiries")
	}

	res.Duplicates = append(res.Duplicates, dups...)
	res.Inquiries = append(res.Inquiries, inqs...)
	if len(inqs) > 0 {
		fill := Autofill(inqs[0])
		res.Autofill = &fill
	}
	return res, nil
}

// Autofill maps the contact & demographic fields of an inquiry onto a student profile.
func Autofill(inq inquiry.Inquiry) student.Profile {
	return student.Profile{
		FirstName:     inq.FirstName,
		MiddleName:    inq.MiddleName,
		LastName:      inq.LastName,
		Email:         inq.Email,
		Mobile:        inq.Mobile,
		AltMobile:     inq.AltMobile,
		Gender:        inq.Gender,
		BirthDate:     inq.BirthDate,
		Address:       inq.Address,
		City:          inq.City,
		Qualification: inq.Qualification,
	}
}

// Merge fills the blank fields of `candidate` from `fill`. Fields already set are kept.
func Merge(candidate, fill student.Profile) student.Profile {
	merged := candidate
	for _, f := range []struct {
		dst *string
		src string
	}{
		{&merged.FirstName, fill.FirstName},
		{&merged.MiddleName, fill.MiddleName},
		{&merged.LastName, fill.LastName},
		{&merged.Email, fill.Email},
		{&merged.Mobile, fill.Mobile},
		{&merged.AltMobile, fill.AltMobile},
		{&merged.Gender, fill.Gender},
		{&merged.Address, fill.Address},
		{&merged.City, fill.City},
		{&merged.Qualification, fill.Qualification},
	} {
		if core.CleanString(*f.dst) == "" {
			*f.dst = f.src
		}
	}
	if !merged.BirthDate.Valid {
		merged.BirthDate = fill.BirthDate
	}
	return merged
}
