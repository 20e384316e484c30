package echoapi_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	. "github.com/trezcool/admissions/apps/api/echo"
	"github.com/trezcool/admissions/core"
	"github.com/trezcool/admissions/core/account"
	"github.com/trezcool/admissions/core/admission"
	"github.com/trezcool/admissions/core/fees"
	"github.com/trezcool/admissions/core/report"
	appfs "github.com/trezcool/admissions/fs"
	"github.com/trezcool/admissions/services/email"
	"github.com/trezcool/admissions/storage/cache"
	"github.com/trezcool/admissions/storage/database/inmem"
	"github.com/trezcool/admissions/tests"
)

var errMissingToken = httpErr{Error: "missing or malformed jwt"}

type env struct {
	server *Server
	db     *inmemdb.DB
	conf   *core.Config
	token  string
}

func setup(t *testing.T) env {
	conf := testutil.NewConfig()
	logger := testutil.NewLogger(conf)
	validate, translator := testutil.NewValidatorAndTranslator()
	core.ParseEmailTemplates(appfs.FS, "templates/email", conf, logger)

	db := inmemdb.NewDB()
	admissionSvc := admission.NewService(admission.Options{
		Store:      db,
		Calculator: fees.NewCalculator(conf),
		Issuer:     account.NewIssuer(validate),
		Drafts:     draftcache.NewMemoryStore(conf.Drafts.TTL),
		MailSvc:    emailsvc.NewConsoleServiceMock(conf, logger),
		Logger:     logger,
		Validate:   validate,
		Conf:       conf,
	})
	server := NewServer(ServerDeps{
		Conf:         conf,
		Logger:       logger,
		Translator:   translator,
		AdmissionSvc: admissionSvc,
		ReportSvc:    report.NewService(db),
	})
	return env{
		server: server,
		db:     db,
		conf:   conf,
		token:  getToken(t, conf, conf.Server.OperatorRole),
	}
}

type httpErr struct {
	Error string `json:"error"`
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	token    string
	wantCode int
	wantData []byte
}

func newAuthRequest(method, path, token string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	return req, rec
}

func getToken(t *testing.T, conf *core.Config, roles ...string) string {
	claims := NewClaims(conf, "op-1", "operator", "operator@masomo.test", time.Hour, roles...)
	token, err := GenerateToken(conf, claims)
	if err != nil {
		t.Fatalf("getToken() failed: %v", err)
	}
	return token
}

func marchallObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marchallObj() failed: %v", err)
	}
	return data
}

func jsonBytesEqual(b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	return reflect.DeepEqual(j1, j2), nil
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	if rec.Code != tt.wantCode {
		t.Errorf("failed! code = %v; wantCode %v; body %s", rec.Code, tt.wantCode, rec.Body.String())
	}
	if tt.wantData == nil {
		return
	}
	ok, err := jsonBytesEqual(rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
	}
}

// do sends a request and decodes the JSON response into `dest` (when not nil).
func do(t *testing.T, e env, method, path string, body interface{}, wantCode int, dest interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var data []byte
	if body != nil {
		data = marchallObj(t, body)
	}
	req, rec := newAuthRequest(method, path, e.token, data)
	e.server.ServeHTTP(rec, req)
	require.Equal(t, wantCode, rec.Code, "%s %s: %s", method, path, rec.Body.String())
	if dest != nil {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), dest))
	}
	return rec
}

func TestServer_auth(t *testing.T) {
	e := setup(t)

	tests := []httpTest{
		{
			name:     "missing token",
			method:   http.MethodGet,
			path:     "/v1/receipts/next-no",
			wantCode: http.StatusUnauthorized,
			wantData: marchallObj(t, errMissingToken),
		},
		{
			name:     "invalid token",
			method:   http.MethodGet,
			path:     "/v1/receipts/next-no",
			token:    "not-a-token",
			wantCode: http.StatusUnauthorized,
		},
		{
			name:     "not an operator",
			method:   http.MethodGet,
			path:     "/v1/receipts/next-no",
			token:    getToken(t, e.conf, "student"),
			wantCode: http.StatusForbidden,
			wantData: marchallObj(t, httpErr{Error: "permission denied"}),
		},
		{
			name:     "operator",
			method:   http.MethodGet,
			path:     "/v1/receipts/next-no",
			token:    e.token,
			wantCode: http.StatusOK,
			wantData: []byte(`{"receipt_no": 1}`),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
			e.server.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}
}

func TestServer_nextReceiptNo(t *testing.T) {
	e := setup(t)

	var first, second NextReceiptNoResponse
	rec := do(t, e, http.MethodGet, "/v1/receipts/next-no", nil, http.StatusOK, &first)
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
	do(t, e, http.MethodGet, "/v1/receipts/next-no", nil, http.StatusOK, &second)
	assert.Greater(t, second.ReceiptNo, first.ReceiptNo)
}

type studentResp struct {
	ID          string `json:"id"`
	State       string `json:"state"`
	PendingFees string `json:"pending_fees"`
	Username    string `json:"username"`
}

type paymentResp struct {
	Student studentResp `json:"student"`
	Receipt *struct {
		ReceiptNo  int64  `json:"receipt_no"`
		AmountPaid string `json:"amount_paid"`
		RecordedBy string `json:"recorded_by"`
	} `json:"receipt"`
}

func TestServer_oneTimeLifecycle(t *testing.T) {
	e := setup(t)
	crs := testutil.CreateCourse(t, e.db.Repos(), "10000", "0", "0", 0)
	b := testutil.CreateBatch(t, e.db.Repos(), crs)

	var enrolled paymentResp
	do(t, e, http.MethodPost, "/v1/students", map[string]interface{}{
		"profile":      map[string]string{"first_name": "Ravi", "last_name": "Kumar"},
		"course_id":    crs.ID,
		"batch_id":     b.ID,
		"payment_plan": "one_time",
	}, http.StatusCreated, &enrolled)
	assert.Equal(t, "ADMITTED_FEES_DUE", enrolled.Student.State)
	assert.Nil(t, enrolled.Receipt)
	id := enrolled.Student.ID

	var paid paymentResp
	do(t, e, http.MethodPost, "/v1/students/"+id+"/admission-fee-payments", map[string]interface{}{
		"amount":       "10000",
		"payment_mode": "cash",
	}, http.StatusCreated, &paid)
	assert.Equal(t, "ADMITTED_FEES_CLEARED", paid.Student.State)
	assert.Equal(t, "0", paid.Student.PendingFees)
	require.NotNil(t, paid.Receipt)
	assert.Equal(t, "operator", paid.Receipt.RecordedBy)

	do(t, e, http.MethodPost, "/v1/students/"+id+"/registration", nil, http.StatusOK, nil)

	var registered studentResp
	do(t, e, http.MethodPost, "/v1/students/"+id+"/confirm-registration", map[string]string{
		"username":         "ravi_kumar",
		"password":         "Tr0ub4dor&3x",
		"password_confirm": "Tr0ub4dor&3x",
	}, http.StatusOK, &registered)
	assert.Equal(t, "REGISTERED", registered.State)
	assert.Equal(t, "ravi_kumar", registered.Username)

	var receipts []map[string]interface{}
	do(t, e, http.MethodGet, "/v1/students/"+id+"/receipts", nil, http.StatusOK, &receipts)
	assert.Len(t, receipts, 1)

	var req struct {
		ID string `json:"id"`
	}
	do(t, e, http.MethodPost, "/v1/students/"+id+"/exam-requests", map[string]string{"remarks": "theory"}, http.StatusCreated, &req)

	var pending []report.ExamRow
	do(t, e, http.MethodGet, "/v1/reports/pending-exams", nil, http.StatusOK, &pending)
	require.Len(t, pending, 1)
	assert.Equal(t, req.ID, pending[0].RequestID)
	assert.Equal(t, report.BucketRecent, pending[0].Bucket)

	do(t, e, http.MethodPost, "/v1/exam-requests/"+req.ID+"/complete", nil, http.StatusOK, nil)
	do(t, e, http.MethodPost, "/v1/exam-requests/"+req.ID+"/complete", nil, http.StatusConflict, nil)
}

func TestServer_errors(t *testing.T) {
	e := setup(t)
	crs := testutil.CreateCourse(t, e.db.Repos(), "10000", "0", "0", 0)
	due := testutil.CreateStudent(t, e.db.Repos(), "Ravi", "Kumar", crs, fees.OneTime, "ADMITTED_FEES_DUE")
	cancelled := testutil.CreateStudent(t, e.db.Repos(), "Gone", "Away", crs, fees.OneTime, "CANCELLED")

	tests := []httpTest{
		{
			name:     "unknown student",
			method:   http.MethodGet,
			path:     "/v1/students/unknown",
			wantCode: http.StatusNotFound,
		},
		{
			name:     "invalid payment",
			method:   http.MethodPost,
			path:     "/v1/students/" + due.ID + "/admission-fee-payments",
			body:     []byte(`{"amount": "0", "payment_mode": "barter"}`),
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "overpayment",
			method:   http.MethodPost,
			path:     "/v1/students/" + due.ID + "/admission-fee-payments",
			body:     []byte(`{"amount": "10000.01", "payment_mode": "cash"}`),
			wantCode: http.StatusUnprocessableEntity,
		},
		{
			name:     "wrong state",
			method:   http.MethodPost,
			path:     "/v1/students/" + cancelled.ID + "/admission-fee-payments",
			body:     []byte(`{"amount": "100", "payment_mode": "cash"}`),
			wantCode: http.StatusConflict,
		},
		{
			name:     "cancel without reason",
			method:   http.MethodPost,
			path:     "/v1/students/" + due.ID + "/cancel",
			body:     []byte(`{"reason": "  "}`),
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "invalid report filter",
			method:   http.MethodGet,
			path:     "/v1/reports/pending-admission-fees?min_pending_days=-1&from=yesterday",
			wantCode: http.StatusBadRequest,
			wantData: []byte(`{"from": "invalid date", "min_pending_days": "must be a positive number of days"}`),
		},
		{
			name:     "unknown report format",
			method:   http.MethodGet,
			path:     "/v1/reports/pending-exams?format=pdf",
			wantCode: http.StatusBadRequest,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(tt.method, tt.path, e.token, tt.body)
			e.server.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}
}

func TestServer_paymentValidation(t *testing.T) {
	e := setup(t)
	crs := testutil.CreateCourse(t, e.db.Repos(), "10000", "0", "0", 0)
	std := testutil.CreateStudent(t, e.db.Repos(), "Ravi", "Kumar", crs, fees.OneTime, "ADMITTED_FEES_DUE")

	var fldErrs map[string]string
	do(t, e, http.MethodPost, "/v1/students/"+std.ID+"/installment-payments", map[string]string{
		"amount":       "-5",
		"payment_mode": "barter",
	}, http.StatusBadRequest, &fldErrs)
	assert.Contains(t, fldErrs, "amount")
	assert.Equal(t, "payment mode must be one of: cash, cheque, card, upi, bank_transfer, online", fldErrs["payment_mode"])
}

func TestServer_reports(t *testing.T) {
	e := setup(t)
	crs := testutil.CreateCourse(t, e.db.Repos(), "10000", "0", "0", 0)
	std := testutil.CreateStudent(t, e.db.Repos(), "Ravi", "Kumar", crs, fees.OneTime, "ADMITTED_FEES_DUE")

	var rows []report.StudentRow
	do(t, e, http.MethodGet, "/v1/reports/pending-admission-fees?course_id="+crs.ID, nil, http.StatusOK, &rows)
	require.Len(t, rows, 1)
	assert.Equal(t, std.ID, rows[0].StudentID)

	do(t, e, http.MethodGet, "/v1/reports/pending-registration", nil, http.StatusOK, &rows)
	assert.Empty(t, rows)

	rec := do(t, e, http.MethodGet, "/v1/reports/pending-admission-fees?format=xlsx", nil, http.StatusOK, nil)
	assert.Equal(t, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "attachment")
	assert.NotZero(t, rec.Body.Len())
}

func TestServer_drafts(t *testing.T) {
	e := setup(t)
	crs := testutil.CreateCourse(t, e.db.Repos(), "12000", "500", "2000", 10)
	b := testutil.CreateBatch(t, e.db.Repos(), crs)

	var d struct {
		ID    string   `json:"id"`
		Steps []string `json:"steps"`
	}
	do(t, e, http.MethodPost, "/v1/admissions/drafts", nil, http.StatusCreated, &d)

	do(t, e, http.MethodPost, "/v1/admissions/drafts/"+d.ID+"/submit", nil, http.StatusConflict, nil)

	do(t, e, http.MethodPatch, "/v1/admissions/drafts/"+d.ID, map[string]interface{}{
		"step":    "profile",
		"profile": map[string]interface{}{"profile": map[string]string{"first_name": "Meera", "last_name": "Shah"}},
	}, http.StatusOK, nil)
	do(t, e, http.MethodPatch, "/v1/admissions/drafts/"+d.ID, map[string]interface{}{
		"step":   "course",
		"course": map[string]string{"course_id": crs.ID, "batch_id": b.ID, "payment_plan": "monthly"},
	}, http.StatusOK, &d)
	assert.ElementsMatch(t, []string{"profile", "course"}, d.Steps)

	var enrolled paymentResp
	do(t, e, http.MethodPost, "/v1/admissions/drafts/"+d.ID+"/submit", nil, http.StatusCreated, &enrolled)
	assert.Equal(t, "ADMITTED_FEES_DUE", enrolled.Student.State)

	do(t, e, http.MethodGet, "/v1/admissions/drafts/"+d.ID, nil, http.StatusNotFound, nil)
}
