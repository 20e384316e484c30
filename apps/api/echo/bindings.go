package echoapi

import (
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"github.com/trezcool/admissions/core"
	"github.com/trezcool/admissions/core/report"
)

var orderingParam = "ordering"

type Ordering struct {
	Orderings []core.DBOrdering
}

func (ord *Ordering) Bind(ctx echo.Context) {
	data := ctx.QueryParams()
	if len(data) == 0 {
		return
	}
	val, ok := data[orderingParam]
	if !ok || len(val) == 0 || val[0] == "" {
		return
	}

	for _, field := range strings.Split(val[0], ",") {
		field = strings.TrimSpace(field)
		descending := strings.HasPrefix(field, "-")
		if descending {
			field = field[1:] // drop "-"
		}
		ord.Orderings = append(ord.Orderings, core.DBOrdering{Field: field, Ascending: !descending})
	}
}

// ReportFilter binds the query params of the report endpoints.
// Dates are accepted as `2006-01-02` or RFC3339; a bare `to` date includes that whole day.
type ReportFilter struct {
	report.Filter
}

func (rf *ReportFilter) Bind(ctx echo.Context) error {
	var flds []core.FieldError
	fail := func(field, msg string) {
		flds = append(flds, core.FieldError{Field: field, Error: msg})
	}

	rf.CourseID = ctx.QueryParam("course_id")

	if v := ctx.QueryParam("from"); v != "" {
		t, _, err := parseDate(v)
		if err != nil {
			fail("from", "invalid date")
		}
		rf.From = t
	}
	if v := ctx.QueryParam("to"); v != "" {
		t, dateOnly, err := parseDate(v)
		if err != nil {
			fail("to", "invalid date")
		}
		if dateOnly {
			t = t.AddDate(0, 0, 1)
		}
		rf.To = t
	}
	if v := ctx.QueryParam("min_pending_fees"); v != "" {
		d, err := decimal.NewFromString(v)
		if err != nil || d.IsNegative() {
			fail("min_pending_fees", "must be a positive amount")
		}
		rf.MinPendingFees = decimal.NewNullDecimal(d)
	}
	if v := ctx.QueryParam("min_pending_days"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			fail("min_pending_days", "must be a positive number of days")
		}
		rf.MinPendingDays = n
	}

	ordering := new(Ordering)
	ordering.Bind(ctx)
	rf.Ordering = ordering.Orderings

	if len(flds) > 0 {
		return core.NewValidationError(nil, flds...)
	}
	return nil
}

func parseDate(v string) (t time.Time, dateOnly bool, err error) {
	if t, err = time.Parse("2006-01-02", v); err == nil {
		return t, true, nil
	}
	t, err = time.Parse(time.RFC3339, v)
	return t.UTC(), false, err
}
