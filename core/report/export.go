package report

import (
	"io"

	"github.com/pkg/errors"
	"github.com/xuri/excelize/v2"
)

const (
	dateLayout   = "2006-01-02"
	defaultSheet = "Sheet1"
)

// WriteStudentsXLSX writes `rows` as a one-sheet spreadsheet.
func WriteStudentsXLSX(w io.Writer, title string, rows []StudentRow) error {
	header := []interface{}{"Student ID", "Name", "Mobile", "Course", "Batch", "Plan", "State", "Total Fees", "Pending Fees", "Enrolled On", "Pending Days"}
	data := make([][]interface{}, 0, len(rows))
	for _, r := range rows {
		total, _ := r.TotalFees.Float64()
		pending, _ := r.PendingFees.Float64()
		data = append(data, []interface{}{
			r.StudentID, r.Name, r.Mobile, r.CourseID, r.BatchID, string(r.Plan), string(r.State),
			total, pending, r.EnrolledAt.Format(dateLayout), r.PendingDays,
		})
	}
	return writeXLSX(w, title, header, data)
}

// WriteExamsXLSX writes `rows` as a one-sheet spreadsheet.
func WriteExamsXLSX(w io.Writer, title string, rows []ExamRow) error {
	header := []interface{}{"Request ID", "Student ID", "Name", "Course", "Requested On", "Pending Days", "Bucket"}
	data := make([][]interface{}, 0, len(rows))
	for _, r := range rows {
		data = append(data, []interface{}{
			r.RequestID, r.StudentID, r.Name, r.CourseID, r.RequestedAt.Format(dateLayout), r.PendingDays, r.Bucket,
		})
	}
	return writeXLSX(w, title, header, data)
}

func writeXLSX(w io.Writer, title string, header []interface{}, data [][]interface{}) error {
	f := excelize.NewFile()
	//goland:noinspection GoUnhandledErrorResult
	defer f.Close()

	sheet := sheetName(title)
	f.SetSheetName(defaultSheet, sheet)

	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return errors.Wrap(err, "writing header")
	}
	lastCol, err := excelize.ColumnNumberToName(len(header))
	if err != nil {
		return errors.Wrap(err, "writing header")
	}
	if style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}}); err == nil {
		_ = f.SetCellStyle(sheet, "A1", lastCol+"1", style)
	}
	_ = f.SetColWidth(sheet, "A", lastCol, 18)

	for i, row := range data {
		row := row
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return errors.Wrap(err, "writing rows")
		}
		if err = f.SetSheetRow(sheet, cell, &row); err != nil {
			return errors.Wrapf(err, "writing row %d", i+1)
		}
	}
	return errors.Wrap(f.Write(w), "writing spreadsheet")
}

// sheetName keeps within the 31 characters a sheet name may have.
func sheetName(title string) string {
	if title == "" {
		return defaultSheet
	}
	if r := []rune(title); len(r) > 31 {
		return string(r[:31])
	}
	return title
}
