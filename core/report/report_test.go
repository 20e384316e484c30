package report_test

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/trezcool/admissions/core"
	"github.com/trezcool/admissions/core/exam"
	"github.com/trezcool/admissions/core/fees"
	"github.com/trezcool/admissions/core/report"
	"github.com/trezcool/admissions/core/student"
	"github.com/trezcool/admissions/storage/database/inmem"
	"github.com/trezcool/admissions/tests"
)

var now = time.Date(2024, time.March, 31, 10, 0, 0, 0, time.UTC)

func daysAgo(n int) time.Time {
	return now.AddDate(0, 0, -n)
}

func TestBucket(t *testing.T) {
	tests := []struct {
		days int
		want string
	}{
		{days: 0, want: report.BucketRecent},
		{days: 15, want: report.BucketRecent},
		{days: 16, want: report.BucketOver15},
		{days: 30, want: report.BucketOver15},
		{days: 31, want: report.BucketOver30},
		{days: 400, want: report.BucketOver30},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, report.Bucket(tt.days), tt.days)
	}
}

func TestPendingDays(t *testing.T) {
	testutil.FreezeTime(t, now)
	assert.Equal(t, 0, report.PendingDays(now.Add(-time.Hour)))
	assert.Equal(t, 1, report.PendingDays(time.Date(2024, time.March, 30, 23, 59, 0, 0, time.UTC)))
	assert.Equal(t, 31, report.PendingDays(daysAgo(31)))
	assert.Equal(t, 0, report.PendingDays(now.AddDate(0, 0, 2)), "future dates count as today")
}

func TestService_PendingStudents(t *testing.T) {
	testutil.FreezeTime(t, now)
	db := inmemdb.NewDB()
	repos := db.Repos()
	svc := report.NewService(db)
	ctx := context.Background()

	crs := testutil.CreateCourse(t, repos, "12000", "500", "2000", 10)
	other := testutil.CreateCourse(t, repos, "8000", "0", "0", 4)

	due1 := testutil.CreateStudent(t, repos, "Asha", "Patel", crs, fees.Monthly, student.StateFeesDue, daysAgo(40))
	due2 := testutil.CreateStudent(t, repos, "Ravi", "Kumar", other, fees.OneTime, student.StateFeesDue, daysAgo(3))
	cleared := testutil.CreateStudent(t, repos, "Meera", "Shah", crs, fees.OneTime, student.StateFeesCleared, daysAgo(20))
	regPending := testutil.CreateStudent(t, repos, "Kiran", "Rao", crs, fees.Monthly, student.StateRegistrationPending, daysAgo(10))
	testutil.CreateStudent(t, repos, "Done", "Already", crs, fees.OneTime, student.StateRegistered, daysAgo(50))
	testutil.CreateStudent(t, repos, "Gone", "Away", crs, fees.OneTime, student.StateCancelled, daysAgo(50))

	ids := func(rows []report.StudentRow) []string {
		res := make([]string, 0, len(rows))
		for _, r := range rows {
			res = append(res, r.StudentID)
		}
		return res
	}

	t.Run("admission fees", func(t *testing.T) {
		rows, err := svc.PendingAdmissionFees(ctx, report.Filter{})
		require.NoError(t, err)
		assert.Equal(t, []string{due1.ID, due2.ID}, ids(rows), "oldest enrolment first")
		assert.Equal(t, 40, rows[0].PendingDays)
		assert.Equal(t, "Asha Patel", rows[0].Name)
	})

	t.Run("registration", func(t *testing.T) {
		rows, err := svc.PendingRegistration(ctx, report.Filter{})
		require.NoError(t, err)
		assert.Equal(t, []string{cleared.ID, regPending.ID}, ids(rows))
	})

	filterTests := []struct {
		name   string
		filter report.Filter
		want   []string
	}{
		{name: "course", filter: report.Filter{CourseID: other.ID}, want: []string{due2.ID}},
		{name: "enrolment range", filter: report.Filter{From: daysAgo(45), To: daysAgo(30)}, want: []string{due1.ID}},
		{name: "min pending days", filter: report.Filter{MinPendingDays: 30}, want: []string{due1.ID}},
		{
			name:   "min pending fees",
			filter: report.Filter{MinPendingFees: decimal.NewNullDecimal(testutil.Dec("10000"))},
			want:   []string{due1.ID},
		},
		{
			name:   "ordering",
			filter: report.Filter{Ordering: []core.DBOrdering{{Field: "pending_fees", Ascending: true}}},
			want:   []string{due2.ID, due1.ID},
		},
		{name: "nothing matches", filter: report.Filter{MinPendingDays: 100}, want: []string{}},
	}
	for _, tt := range filterTests {
		t.Run(tt.name, func(t *testing.T) {
			rows, err := svc.PendingAdmissionFees(ctx, tt.filter)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ids(rows))
		})
	}

	t.Run("reports are read-only", func(t *testing.T) {
		before, err := repos.Students().GetStudent(ctx, due1.ID)
		require.NoError(t, err)
		for i := 0; i < 3; i++ {
			_, err = svc.PendingAdmissionFees(ctx, report.Filter{})
			require.NoError(t, err)
		}
		after, err := repos.Students().GetStudent(ctx, due1.ID)
		require.NoError(t, err)
		assert.Equal(t, before.Version, after.Version)
	})
}

func TestService_PendingExams(t *testing.T) {
	testutil.FreezeTime(t, now)
	db := inmemdb.NewDB()
	repos := db.Repos()
	svc := report.NewService(db)
	ctx := context.Background()

	crs := testutil.CreateCourse(t, repos, "12000", "500", "2000", 10)
	std1 := testutil.CreateStudent(t, repos, "Asha", "Patel", crs, fees.OneTime, student.StateRegistered, daysAgo(90))
	std2 := testutil.CreateStudent(t, repos, "Ravi", "Kumar", crs, fees.OneTime, student.StateRegistered, daysAgo(90))

	request := func(std student.Student, requestedAt time.Time) exam.Request {
		req, err := repos.ExamRequests().CreateExamRequest(ctx, exam.Request{
			ID:          uuid.NewString(),
			StudentID:   std.ID,
			CourseID:    std.CourseID,
			RequestedAt: requestedAt,
		})
		require.NoError(t, err)
		return req
	}
	old := request(std1, daysAgo(35))
	mid := request(std2, daysAgo(20))
	recent := request(std1, daysAgo(2))
	done := request(std2, daysAgo(60))
	_, err := repos.ExamRequests().CompleteExamRequest(ctx, done.ID, now)
	require.NoError(t, err)

	rows, err := svc.PendingExams(ctx, report.Filter{})
	require.NoError(t, err)
	require.Len(t, rows, 3)

	assert.Equal(t, old.ID, rows[0].RequestID)
	assert.Equal(t, 35, rows[0].PendingDays)
	assert.Equal(t, report.BucketOver30, rows[0].Bucket)
	assert.Equal(t, "Asha Patel", rows[0].Name)

	assert.Equal(t, mid.ID, rows[1].RequestID)
	assert.Equal(t, report.BucketOver15, rows[1].Bucket)
	assert.Equal(t, "Ravi Kumar", rows[1].Name)

	assert.Equal(t, recent.ID, rows[2].RequestID)
	assert.Equal(t, report.BucketRecent, rows[2].Bucket)

	rows, err = svc.PendingExams(ctx, report.Filter{MinPendingDays: 16})
	require.NoError(t, err)
	assert.Len(t, rows, 2)

	rows, err = svc.PendingExams(ctx, report.Filter{MinPendingDays: 365})
	require.NoError(t, err)
	assert.Empty(t, rows)
	assert.NotNil(t, rows)
}

func TestWriteXLSX(t *testing.T) {
	rows := []report.StudentRow{{
		StudentID:   "s1",
		Name:        "Asha Patel",
		CourseID:    "c1",
		Plan:        fees.Monthly,
		State:       student.StateFeesDue,
		TotalFees:   testutil.Dec("12000"),
		PendingFees: testutil.Dec("11500"),
		EnrolledAt:  daysAgo(40),
		PendingDays: 40,
	}}

	var buf bytes.Buffer
	require.NoError(t, report.WriteStudentsXLSX(&buf, "Pending admission fees", rows))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	sheet := f.GetSheetName(0)
	assert.Equal(t, "Pending admission fees", sheet)
	got, err := f.GetRows(sheet)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "Student ID", got[0][0])
	assert.Equal(t, "Asha Patel", got[1][1])
	assert.Equal(t, "2024-02-20", got[1][9])

	buf.Reset()
	require.NoError(t, report.WriteExamsXLSX(&buf, "A very long report title that overflows", nil))
	f2, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f2.Close()
	assert.Len(t, []rune(f2.GetSheetName(0)), 31)
}
