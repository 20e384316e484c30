package echoapi

import (
	"bytes"
	"context"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/admissions/core"
	"github.com/trezcool/admissions/core/report"
)

const mimeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type reportApi struct {
	svc *report.Service
}

func registerReportAPI(g *echo.Group, svc *report.Service) {
	api := reportApi{svc: svc}

	rg := g.Group("/reports")
	rg.GET("/pending-admission-fees", api.students("Pending admission fees", svc.PendingAdmissionFees))
	rg.GET("/pending-registration", api.students("Pending registration", svc.PendingRegistration))
	rg.GET("/pending-exams", api.exams)
}

func bindReportFilter(ctx echo.Context) (report.Filter, bool, error) {
	var rf ReportFilter
	if err := rf.Bind(ctx); err != nil {
		return report.Filter{}, false, err
	}
	switch format := ctx.QueryParam("format"); format {
	case "", "json":
		return rf.Filter, false, nil
	case "xlsx":
		return rf.Filter, true, nil
	default:
		return report.Filter{}, false, core.NewValidationError(nil, core.FieldError{Field: "format", Error: "must be one of json xlsx"})
	}
}

func (api *reportApi) students(title string, query func(ctx context.Context, f report.Filter) ([]report.StudentRow, error)) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		f, asXLSX, err := bindReportFilter(ctx)
		if err != nil {
			return err
		}
		rows, err := query(ctx.Request().Context(), f)
		if err != nil {
			return errors.Wrap(err, "building report")
		}
		if !asXLSX {
			return ctx.JSON(http.StatusOK, rows)
		}

		var buf bytes.Buffer
		if err = report.WriteStudentsXLSX(&buf, title, rows); err != nil {
			return errors.Wrap(err, "exporting report")
		}
		return attachment(ctx, title, buf.Bytes())
	}
}

func (api *reportApi) exams(ctx echo.Context) error {
	const title = "Pending exams"

	f, asXLSX, err := bindReportFilter(ctx)
	if err != nil {
		return err
	}
	rows, err := api.svc.PendingExams(ctx.Request().Context(), f)
	if err != nil {
		return errors.Wrap(err, "building report")
	}
	if !asXLSX {
		return ctx.JSON(http.StatusOK, rows)
	}

	var buf bytes.Buffer
	if err = report.WriteExamsXLSX(&buf, title, rows); err != nil {
		return errors.Wrap(err, "exporting report")
	}
	return attachment(ctx, title, buf.Bytes())
}

func attachment(ctx echo.Context, title string, data []byte) error {
	name := fmt.Sprintf("%s %s.xlsx", title, core.Today().Format("2006-01-02"))
	ctx.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", name))
	return ctx.Blob(http.StatusOK, mimeXLSX, data)
}
