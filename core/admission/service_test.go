package admission_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/admissions/core"
	"github.com/trezcool/admissions/core/account"
	. "github.com/trezcool/admissions/core/admission"
	"github.com/trezcool/admissions/core/course"
	"github.com/trezcool/admissions/core/fees"
	"github.com/trezcool/admissions/core/inquiry"
	"github.com/trezcool/admissions/core/receipt"
	"github.com/trezcool/admissions/core/student"
	appfs "github.com/trezcool/admissions/fs"
	"github.com/trezcool/admissions/services/email"
	"github.com/trezcool/admissions/storage/cache"
	"github.com/trezcool/admissions/storage/database/inmem"
	"github.com/trezcool/admissions/tests"
)

var (
	dec   = testutil.Dec
	ctx   = context.Background()
	creds = account.Credentials{Username: "student_one", Password: "Tr0ub4dor&3x", PasswordConfirm: "Tr0ub4dor&3x"}
)

func setup(t *testing.T) (*Service, *inmemdb.DB) {
	conf := testutil.NewConfig()
	logger := testutil.NewLogger(conf)
	validate := testutil.NewValidator()
	core.ParseEmailTemplates(appfs.FS, "templates/email", conf, logger)
	emailsvc.ResetSentMessages()

	db := inmemdb.NewDB()
	svc := NewService(Options{
		Store:      db,
		Calculator: fees.NewCalculator(conf),
		Issuer:     account.NewIssuer(validate),
		Drafts:     draftcache.NewMemoryStore(conf.Drafts.TTL),
		MailSvc:    emailsvc.NewConsoleServiceMock(conf, logger),
		Logger:     logger,
		Validate:   validate,
		Conf:       conf,
	})
	return svc, db
}

func enrollRequest(crs course.Course, b course.Batch, plan fees.Plan) EnrollRequest {
	return EnrollRequest{
		Profile:    student.Profile{FirstName: "Meera", LastName: "Shah", Email: "meera@mail.com"},
		CourseID:   crs.ID,
		BatchID:    b.ID,
		Plan:       plan,
		RecordedBy: "operator",
	}
}

func cash(amount string) PaymentRequest {
	return PaymentRequest{Amount: dec(amount), PaymentMode: receipt.ModeCash, RecordedBy: "operator"}
}

func assertBalanceInvariant(t *testing.T, db *inmemdb.DB, studentID string) {
	t.Helper()
	std, err := db.Repos().Students().GetStudent(ctx, studentID)
	require.NoError(t, err)
	paid, err := db.Repos().Receipts().SumPaid(ctx, studentID)
	require.NoError(t, err)
	assert.True(t, std.PendingFees.Equal(std.TotalFees.Sub(paid)), "pending %s != total %s - paid %s", std.PendingFees, std.TotalFees, paid)
	assert.False(t, std.PendingFees.IsNegative())
}

func TestService_oneTimeLifecycle(t *testing.T) {
	svc, db := setup(t)
	crs := testutil.CreateCourse(t, db.Repos(), "10000", "500", "0", 0)
	b := testutil.CreateBatch(t, db.Repos(), crs)

	std, rcpt, err := svc.Enroll(ctx, enrollRequest(crs, b, fees.OneTime))
	require.NoError(t, err)
	assert.Nil(t, rcpt)
	assert.Equal(t, student.StateFeesDue, std.State)
	assert.Equal(t, "10000", std.PendingFees.String())
	assert.True(t, std.PendingFees.Equal(std.TotalFees))
	assert.Nil(t, std.Schedule)

	std, paid, err := svc.PayAdmissionFee(ctx, std.ID, cash("10000"))
	require.NoError(t, err)
	assert.Equal(t, student.StateFeesCleared, std.State)
	assert.True(t, std.PendingFees.IsZero())
	assert.True(t, std.IsAdmissionFeesPaid)
	assert.Equal(t, receipt.PurposeAdmission, paid.Purpose)
	assertBalanceInvariant(t, db, std.ID)

	require.Len(t, emailsvc.SentMessages, 1)
	assert.Equal(t, "meera@mail.com", emailsvc.SentMessages[0].To[0].Address)
	assert.Contains(t, emailsvc.SentMessages[0].TextContent, "INR 10000.00")

	std, err = svc.BeginRegistration(ctx, std.ID)
	require.NoError(t, err)
	assert.Equal(t, student.StateFeesCleared, std.State, "one-time students go straight to confirmation")

	std, err = svc.ConfirmRegistration(ctx, std.ID, creds)
	require.NoError(t, err)
	assert.Equal(t, student.StateRegistered, std.State)
	assert.Equal(t, "student_one", std.Username.String)
	assert.True(t, std.RegisteredAt.Valid)

	acc, err := db.Repos().Accounts().GetAccountByStudent(ctx, std.ID)
	require.NoError(t, err)
	assert.NoError(t, acc.CheckPassword(creds.Password))
	assert.Len(t, emailsvc.SentMessages, 2)
}

func TestService_monthlyLifecycle(t *testing.T) {
	svc, db := setup(t)
	crs := testutil.CreateCourse(t, db.Repos(), "12000", "500", "2000", 10)
	b := testutil.CreateBatch(t, db.Repos(), crs)

	er := enrollRequest(crs, b, fees.Monthly)
	er.PayNow, er.AmountNow, er.PaymentMode = true, dec("500"), receipt.ModeUPI
	std, rcpt, err := svc.Enroll(ctx, er)
	require.NoError(t, err)
	require.NotNil(t, rcpt)
	assert.Equal(t, student.StateFeesCleared, std.State)
	assert.Equal(t, "11500", std.PendingFees.String())
	require.NotNil(t, std.Schedule)
	assert.Equal(t, "1000", std.Schedule.MonthlyInstallment.String())

	std, err = svc.BeginRegistration(ctx, std.ID)
	require.NoError(t, err)
	assert.Equal(t, student.StateRegistrationPending, std.State)

	_, err = svc.ConfirmRegistration(ctx, std.ID, creds)
	assert.Equal(t, core.ErrStateViolation, errors.Cause(err), "registration fee not paid yet")

	std, _, err = svc.PayRegistrationFee(ctx, std.ID, cash("1500"))
	require.NoError(t, err)
	_, _, err = svc.PayRegistrationFee(ctx, std.ID, cash("501"))
	assert.Equal(t, core.ErrOverpayment, errors.Cause(err))
	std, _, err = svc.PayRegistrationFee(ctx, std.ID, cash("500"))
	require.NoError(t, err)
	assert.Equal(t, "9500", std.PendingFees.String())

	std, err = svc.ConfirmRegistration(ctx, std.ID, creds)
	require.NoError(t, err)
	assert.Equal(t, student.StateRegistered, std.State)

	std, _, err = svc.PayInstallment(ctx, std.ID, cash("1000"))
	require.NoError(t, err)
	assert.Equal(t, "8500", std.PendingFees.String())

	ov, err := svc.GetStudent(ctx, std.ID)
	require.NoError(t, err)
	assert.True(t, ov.NextInstallment.Valid)
	assert.Equal(t, "1000", ov.NextInstallment.Decimal.String())
	assert.Equal(t, "8500", ov.Dues.Installment.String())

	_, _, err = svc.PayInstallment(ctx, std.ID, cash("8500.01"))
	assert.Equal(t, core.ErrOverpayment, errors.Cause(err))
	std, _, err = svc.PayInstallment(ctx, std.ID, cash("8500"))
	require.NoError(t, err)
	assert.True(t, std.PendingFees.IsZero())

	_, _, err = svc.PayInstallment(ctx, std.ID, cash("1"))
	assert.Equal(t, core.ErrStateViolation, errors.Cause(err), "nothing left to pay")
	assertBalanceInvariant(t, db, std.ID)

	rcpts, err := svc.QueryReceipts(ctx, std.ID)
	require.NoError(t, err)
	assert.Len(t, rcpts, 5)
}

func TestService_monthlyWithoutAdmissionFee(t *testing.T) {
	svc, db := setup(t)
	crs := testutil.CreateCourse(t, db.Repos(), "6000", "0", "1000", 5)
	b := testutil.CreateBatch(t, db.Repos(), crs)

	std, _, err := svc.Enroll(ctx, enrollRequest(crs, b, fees.Monthly))
	require.NoError(t, err)
	assert.Equal(t, student.StateFeesCleared, std.State)
	assert.True(t, std.IsAdmissionFeesPaid)
	assert.Equal(t, "6000", std.PendingFees.String())

	// nothing can be taken at the counter before registration
	er := enrollRequest(crs, b, fees.Monthly)
	er.PayNow, er.AmountNow, er.PaymentMode = true, dec("100"), receipt.ModeCash
	_, _, err = svc.Enroll(ctx, er)
	var vErr *core.ValidationError
	require.True(t, errors.As(err, &vErr), "Enroll() error = %v", err)
	assert.Equal(t, "pay_now", vErr.Fields[0].Field)

	students, err := db.Repos().Students().QueryStudents(ctx, student.QueryFilter{CourseID: crs.ID}, nil)
	require.NoError(t, err)
	assert.Len(t, students, 1)
}

func TestService_Enroll_amountNow(t *testing.T) {
	svc, db := setup(t)
	crs := testutil.CreateCourse(t, db.Repos(), "1000", "0", "0", 0)
	b := testutil.CreateBatch(t, db.Repos(), crs)

	for _, amount := range []string{"0", "-5", "0.004", "10.005", "10000000000"} {
		t.Run(amount, func(t *testing.T) {
			er := enrollRequest(crs, b, fees.OneTime)
			er.PayNow, er.AmountNow, er.PaymentMode = true, dec(amount), receipt.ModeCash
			_, _, err := svc.Enroll(ctx, er)
			var vErr *core.ValidationError
			require.True(t, errors.As(err, &vErr), "Enroll() error = %v", err)
			assert.Equal(t, "amount_now", vErr.Fields[0].Field)
		})
	}

	students, err := db.Repos().Students().QueryStudents(ctx, student.QueryFilter{CourseID: crs.ID}, nil)
	require.NoError(t, err)
	assert.Empty(t, students)
}

func TestService_overpayment(t *testing.T) {
	svc, db := setup(t)
	crs := testutil.CreateCourse(t, db.Repos(), "1000", "0", "0", 0)
	b := testutil.CreateBatch(t, db.Repos(), crs)

	std, _, err := svc.Enroll(ctx, enrollRequest(crs, b, fees.OneTime))
	require.NoError(t, err)
	std, _, err = svc.PayAdmissionFee(ctx, std.ID, cash("500"))
	require.NoError(t, err)
	require.Equal(t, "500", std.PendingFees.String())

	_, _, err = svc.PayAdmissionFee(ctx, std.ID, cash("600"))
	assert.Equal(t, core.ErrOverpayment, errors.Cause(err))

	got, err := svc.GetStudent(ctx, std.ID)
	require.NoError(t, err)
	assert.Equal(t, "500", got.PendingFees.String())
	assert.Equal(t, student.StateFeesDue, got.State)
	assertBalanceInvariant(t, db, std.ID)
}

func TestService_stateViolations(t *testing.T) {
	svc, db := setup(t)
	crs := testutil.CreateCourse(t, db.Repos(), "1000", "0", "0", 0)
	due := testutil.CreateStudent(t, db.Repos(), "A", "Due", crs, fees.OneTime, student.StateFeesDue)
	cleared := testutil.CreateStudent(t, db.Repos(), "B", "Cleared", crs, fees.OneTime, student.StateFeesCleared)
	registered := testutil.CreateStudent(t, db.Repos(), "C", "Registered", crs, fees.OneTime, student.StateRegistered)
	cancelled := testutil.CreateStudent(t, db.Repos(), "D", "Cancelled", crs, fees.OneTime, student.StateCancelled)

	tests := []struct {
		name string
		run  func() error
	}{
		{"pay admission fee when cleared", func() error { _, _, err := svc.PayAdmissionFee(ctx, cleared.ID, cash("1")); return err }},
		{"begin registration when due", func() error { _, err := svc.BeginRegistration(ctx, due.ID); return err }},
		{"confirm registration when due", func() error { _, err := svc.ConfirmRegistration(ctx, due.ID, creds); return err }},
		{"pay registration fee when cleared", func() error { _, _, err := svc.PayRegistrationFee(ctx, cleared.ID, cash("1")); return err }},
		{"pay installment when due", func() error { _, _, err := svc.PayInstallment(ctx, due.ID, cash("1")); return err }},
		{"cancel registered", func() error { _, err := svc.Cancel(ctx, registered.ID, CancelRequest{Reason: "x"}); return err }},
		{"cancel cancelled", func() error { _, err := svc.Cancel(ctx, cancelled.ID, CancelRequest{Reason: "x"}); return err }},
		{"request exam when cleared", func() error { _, err := svc.RequestExam(ctx, cleared.ID, ExamRequestInput{}); return err }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, core.ErrStateViolation, errors.Cause(tt.run()))
		})
	}

	// no partial writes
	for _, std := range []student.Student{due, cleared, registered, cancelled} {
		got, err := db.Repos().Students().GetStudent(ctx, std.ID)
		require.NoError(t, err)
		assert.Equal(t, std.State, got.State)
		assert.Equal(t, std.Version, got.Version)
	}
}

func TestService_Cancel(t *testing.T) {
	svc, db := setup(t)
	crs := testutil.CreateCourse(t, db.Repos(), "1000", "0", "0", 0)
	b := testutil.CreateBatch(t, db.Repos(), crs)
	std, _, err := svc.Enroll(ctx, enrollRequest(crs, b, fees.OneTime))
	require.NoError(t, err)

	_, err = svc.Cancel(ctx, std.ID, CancelRequest{Reason: "  "})
	assert.Error(t, err)

	std, err = svc.Cancel(ctx, std.ID, CancelRequest{Reason: " changed course "})
	require.NoError(t, err)
	assert.Equal(t, student.StateCancelled, std.State)
	assert.Equal(t, "changed course", std.CancelReason)
	assert.True(t, std.CancelledAt.Valid)
}

func TestService_Enroll_rejected(t *testing.T) {
	svc, db := setup(t)
	crs := testutil.CreateCourse(t, db.Repos(), "12000", "500", "2000", 10)
	b := testutil.CreateBatch(t, db.Repos(), crs)
	badCrs := testutil.CreateCourse(t, db.Repos(), "12000", "0", "2000", 0)
	badBatch := testutil.CreateBatch(t, db.Repos(), badCrs)

	t.Run("batch of another course", func(t *testing.T) {
		er := enrollRequest(crs, badBatch, fees.OneTime)
		_, _, err := svc.Enroll(ctx, er)
		var vErr *core.ValidationError
		require.True(t, errors.As(err, &vErr))
		assert.Equal(t, "batch_id", vErr.Fields[0].Field)
	})

	t.Run("unknown course", func(t *testing.T) {
		er := enrollRequest(crs, b, fees.OneTime)
		er.CourseID = "nope"
		_, _, err := svc.Enroll(ctx, er)
		assert.Equal(t, core.ErrNotFound, errors.Cause(err))
	})

	t.Run("invalid course configuration", func(t *testing.T) {
		_, _, err := svc.Enroll(ctx, enrollRequest(badCrs, badBatch, fees.Monthly))
		assert.Equal(t, core.ErrInvalidConfiguration, errors.Cause(err))
	})

	t.Run("paying more than the admission fee", func(t *testing.T) {
		er := enrollRequest(crs, b, fees.Monthly)
		er.PayNow, er.AmountNow, er.PaymentMode = true, dec("600"), receipt.ModeCash
		_, _, err := svc.Enroll(ctx, er)
		assert.Equal(t, core.ErrOverpayment, errors.Cause(err))
	})

	t.Run("pay now without amount", func(t *testing.T) {
		er := enrollRequest(crs, b, fees.OneTime)
		er.PayNow = true
		_, _, err := svc.Enroll(ctx, er)
		var vErr *core.ValidationError
		require.True(t, errors.As(err, &vErr))
		assert.Len(t, vErr.Fields, 2)
	})

	t.Run("missing names", func(t *testing.T) {
		er := enrollRequest(crs, b, fees.OneTime)
		er.Profile.FirstName = " "
		_, _, err := svc.Enroll(ctx, er)
		assert.Error(t, err)
	})

	all, err := db.Repos().Students().QueryStudents(ctx, student.QueryFilter{}, nil)
	require.NoError(t, err)
	assert.Empty(t, all, "no student is left behind by a failed enrolment")
}

func TestService_duplicateReceiptNoIsRetried(t *testing.T) {
	svc, db := setup(t)
	crs := testutil.CreateCourse(t, db.Repos(), "1000", "0", "0", 0)
	b := testutil.CreateBatch(t, db.Repos(), crs)
	std, _, err := svc.Enroll(ctx, enrollRequest(crs, b, fees.OneTime))
	require.NoError(t, err)

	no, err := svc.NextReceiptNo(ctx)
	require.NoError(t, err)

	pr := cash("100")
	pr.ReceiptNo = no
	_, first, err := svc.PayAdmissionFee(ctx, std.ID, pr)
	require.NoError(t, err)
	assert.Equal(t, no, first.ReceiptNo)

	// the same number is submitted again, e.g. by a second counter
	_, second, err := svc.PayAdmissionFee(ctx, std.ID, pr)
	require.NoError(t, err)
	assert.NotEqual(t, no, second.ReceiptNo)
	assertBalanceInvariant(t, db, std.ID)
}

func TestService_concurrentAdmissionPayments(t *testing.T) {
	svc, db := setup(t)
	crs := testutil.CreateCourse(t, db.Repos(), "1000", "0", "0", 0)
	b := testutil.CreateBatch(t, db.Repos(), crs)
	std, _, err := svc.Enroll(ctx, enrollRequest(crs, b, fees.OneTime))
	require.NoError(t, err)

	const n = 10
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := svc.PayAdmissionFee(ctx, std.ID, cash("1000"))
			if err == nil {
				mu.Lock()
				successes++
				mu.Unlock()
				return
			}
			assert.Equal(t, core.ErrStateViolation, errors.Cause(err))
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, successes, "the balance is paid exactly once")
	assertBalanceInvariant(t, db, std.ID)
}

func TestService_ConvertInquiry(t *testing.T) {
	svc, db := setup(t)
	crs := testutil.CreateCourse(t, db.Repos(), "1000", "0", "0", 0)
	std := testutil.CreateStudent(t, db.Repos(), "Asha", "Patel", crs, fees.OneTime, student.StateFeesDue)
	cancelled := testutil.CreateStudent(t, db.Repos(), "Asha", "Patel", crs, fees.OneTime, student.StateCancelled)
	inq := testutil.CreateInquiry(t, db.Repos(), "Asha", "Patel", inquiry.StatusInProgress)
	other := testutil.CreateInquiry(t, db.Repos(), "Asha", "Patel", inquiry.StatusOpen)

	_, _, err := svc.ConvertInquiry(ctx, other.ID, cancelled.ID)
	assert.Equal(t, core.ErrStateViolation, errors.Cause(err))

	gotInq, gotStd, err := svc.ConvertInquiry(ctx, inq.ID, std.ID)
	require.NoError(t, err)
	assert.Equal(t, inquiry.StatusConverted, gotInq.Status)
	assert.Equal(t, inq.ID, gotStd.InquiryID.String)

	_, _, err = svc.ConvertInquiry(ctx, inq.ID, std.ID)
	assert.Equal(t, core.ErrStateViolation, errors.Cause(err), "already converted")

	_, _, err = svc.ConvertInquiry(ctx, other.ID, std.ID)
	assert.Equal(t, core.ErrStateViolation, errors.Cause(err), "student comes from another inquiry")

	_, _, err = svc.ConvertInquiry(ctx, "nope", std.ID)
	assert.Equal(t, core.ErrNotFound, errors.Cause(err))

	got, err := db.Repos().Inquiries().GetInquiry(ctx, other.ID)
	require.NoError(t, err)
	assert.Equal(t, inquiry.StatusOpen, got.Status)
}

func TestService_ConvertInquiry_concurrent(t *testing.T) {
	svc, db := setup(t)
	crs := testutil.CreateCourse(t, db.Repos(), "1000", "0", "0", 0)
	inq := testutil.CreateInquiry(t, db.Repos(), "Asha", "Patel", inquiry.StatusOpen)
	stds := []student.Student{
		testutil.CreateStudent(t, db.Repos(), "Asha", "Patel", crs, fees.OneTime, student.StateFeesDue),
		testutil.CreateStudent(t, db.Repos(), "Asha", "Patel", crs, fees.OneTime, student.StateFeesDue),
	}

	errs := make([]error, len(stds))
	var wg sync.WaitGroup
	for i := range stds {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _, errs[i] = svc.ConvertInquiry(ctx, inq.ID, stds[i].ID)
		}(i)
	}
	wg.Wait()

	var linked int
	for i, err := range errs {
		if err != nil {
			assert.Equal(t, core.ErrStateViolation, errors.Cause(err))
			continue
		}
		got, err := db.Repos().Students().GetStudent(ctx, stds[i].ID)
		require.NoError(t, err)
		assert.Equal(t, inq.ID, got.InquiryID.String)
		linked++
	}
	assert.Equal(t, 1, linked)
}

func TestService_examRequests(t *testing.T) {
	svc, db := setup(t)
	crs := testutil.CreateCourse(t, db.Repos(), "1000", "0", "0", 0)
	std := testutil.CreateStudent(t, db.Repos(), "Ravi", "Kumar", crs, fees.OneTime, student.StateRegistered)

	req, err := svc.RequestExam(ctx, std.ID, ExamRequestInput{Remarks: " final "})
	require.NoError(t, err)
	assert.True(t, req.IsOpen())
	assert.Equal(t, "final", req.Remarks)
	assert.Equal(t, crs.ID, req.CourseID)

	ist := time.FixedZone("IST", 5*60*60+30*60)
	core.NowFunc = func() time.Time { return time.Date(2022, 3, 1, 10, 0, 0, 0, ist) }
	defer func() { core.NowFunc = time.Now }()

	req, err = svc.CompleteExamRequest(ctx, req.ID)
	require.NoError(t, err)
	assert.False(t, req.IsOpen())
	assert.Equal(t, time.UTC, req.CompletedAt.Time.Location())
	assert.Equal(t, 4, req.CompletedAt.Time.Hour())

	_, err = svc.CompleteExamRequest(ctx, req.ID)
	assert.Equal(t, core.ErrStateViolation, errors.Cause(err))
}

func TestService_Reconcile(t *testing.T) {
	svc, db := setup(t)
	crs := testutil.CreateCourse(t, db.Repos(), "1000", "0", "0", 0)
	b := testutil.CreateBatch(t, db.Repos(), crs)
	std, _, err := svc.Enroll(ctx, enrollRequest(crs, b, fees.OneTime))
	require.NoError(t, err)
	ok, _, err := svc.Enroll(ctx, enrollRequest(crs, b, fees.OneTime))
	require.NoError(t, err)

	// a receipt written without going through the ledger
	_, err = db.Repos().Receipts().CreateReceipt(ctx, receipt.Receipt{
		ReceiptNo: 500, StudentID: std.ID, CourseID: crs.ID, AmountPaid: dec("250"),
		Purpose: receipt.PurposeAdmission, PaymentMode: receipt.ModeCash,
	})
	require.NoError(t, err)

	fixed, err := svc.Reconcile(ctx)
	require.NoError(t, err)
	require.Len(t, fixed, 1)
	assert.Equal(t, std.ID, fixed[0].ID)
	assert.Equal(t, "750", fixed[0].PendingFees.String())
	assertBalanceInvariant(t, db, std.ID)
	assertBalanceInvariant(t, db, ok.ID)

	fixed, err = svc.Reconcile(ctx)
	require.NoError(t, err)
	assert.Empty(t, fixed)
}
