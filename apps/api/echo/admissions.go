package echoapi

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/admissions/core/account"
	"github.com/trezcool/admissions/core/admission"
	"github.com/trezcool/admissions/core/fees"
	"github.com/trezcool/admissions/core/receipt"
	"github.com/trezcool/admissions/core/student"
)

type admissionApi struct {
	svc *admission.Service
}

func registerAdmissionAPI(g *echo.Group, svc *admission.Service) {
	api := admissionApi{svc: svc}

	ag := g.Group("/admissions")
	ag.POST("/match", api.match)
	ag.POST("/drafts", api.startDraft)
	ag.GET("/drafts/:id", api.retrieveDraft)
	ag.PATCH("/drafts/:id", api.updateDraft)
	ag.DELETE("/drafts/:id", api.cancelDraft)
	ag.POST("/drafts/:id/submit", api.submitDraft)

	g.GET("/courses/:id/quote", api.quote)

	sg := g.Group("/students")
	sg.POST("", api.enroll)
	sg.GET("/:id", api.retrieve)
	sg.GET("/:id/receipts", api.queryReceipts)
	sg.POST("/:id/admission-fee-payments", api.payment((*admission.Service).PayAdmissionFee))
	sg.POST("/:id/registration", api.beginRegistration)
	sg.POST("/:id/registration-fee-payments", api.payment((*admission.Service).PayRegistrationFee))
	sg.POST("/:id/confirm-registration", api.confirmRegistration)
	sg.POST("/:id/installment-payments", api.payment((*admission.Service).PayInstallment))
	sg.POST("/:id/cancel", api.cancel)
	sg.POST("/:id/exam-requests", api.requestExam)

	g.POST("/exam-requests/:id/complete", api.completeExamRequest)
	g.POST("/inquiries/:id/convert", api.convertInquiry)
	g.GET("/receipts/next-no", api.nextReceiptNo)
}

type (
	MatchRequest struct {
		FirstName string `json:"first_name"`
		LastName  string `json:"last_name"`
	}

	ConvertInquiryRequest struct {
		StudentID string `json:"student_id"`
	}

	// PaymentResponse is the student after a payment, along with the receipt to print.
	PaymentResponse struct {
		Student student.Student  `json:"student"`
		Receipt *receipt.Receipt `json:"receipt"`
	}

	NextReceiptNoResponse struct {
		ReceiptNo int64 `json:"receipt_no"`
	}
)

// Handlers

func (api *admissionApi) match(ctx echo.Context) error {
	var data MatchRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to MatchRequest")
	}
	res, err := api.svc.Match(ctx.Request().Context(), data.FirstName, data.LastName)
	if err != nil {
		return errors.Wrap(err, "matching candidate")
	}
	return ctx.JSON(http.StatusOK, res)
}

func (api *admissionApi) quote(ctx echo.Context) error {
	q, err := api.svc.Quote(ctx.Request().Context(), ctx.Param("id"), fees.Plan(ctx.QueryParam("payment_plan")))
	if err != nil {
		return errors.Wrap(err, "quoting fees")
	}
	return ctx.JSON(http.StatusOK, q)
}

func (api *admissionApi) startDraft(ctx echo.Context) error {
	d, err := api.svc.StartDraft(ctx.Request().Context(), contextOperator(ctx))
	if err != nil {
		return errors.Wrap(err, "starting draft")
	}
	return ctx.JSON(http.StatusCreated, d)
}

func (api *admissionApi) retrieveDraft(ctx echo.Context) error {
	d, err := api.svc.GetDraft(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting draft")
	}
	return ctx.JSON(http.StatusOK, d)
}

func (api *admissionApi) updateDraft(ctx echo.Context) error {
	var data admission.DraftUpdate
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to DraftUpdate")
	}
	d, err := api.svc.UpdateDraft(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating draft")
	}
	return ctx.JSON(http.StatusOK, d)
}

func (api *admissionApi) cancelDraft(ctx echo.Context) error {
	if err := api.svc.CancelDraft(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "cancelling draft")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *admissionApi) submitDraft(ctx echo.Context) error {
	std, rcpt, err := api.svc.SubmitDraft(ctx.Request().Context(), ctx.Param("id"), contextOperator(ctx))
	if err != nil {
		return errors.Wrap(err, "submitting draft")
	}
	return ctx.JSON(http.StatusCreated, PaymentResponse{Student: std, Receipt: rcpt})
}

func (api *admissionApi) enroll(ctx echo.Context) error {
	var data admission.EnrollRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to EnrollRequest")
	}
	data.RecordedBy = contextOperator(ctx)

	std, rcpt, err := api.svc.Enroll(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "enrolling student")
	}
	return ctx.JSON(http.StatusCreated, PaymentResponse{Student: std, Receipt: rcpt})
}

func (api *admissionApi) retrieve(ctx echo.Context) error {
	ov, err := api.svc.GetStudent(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting student")
	}
	return ctx.JSON(http.StatusOK, ov)
}

func (api *admissionApi) queryReceipts(ctx echo.Context) error {
	receipts, err := api.svc.QueryReceipts(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "querying receipts")
	}
	return ctx.JSON(http.StatusOK, receipts)
}

type payFunc func(svc *admission.Service, ctx context.Context, studentID string, pr admission.PaymentRequest) (student.Student, receipt.Receipt, error)

func (api *admissionApi) payment(pay payFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		var data admission.PaymentRequest
		if err := ctx.Bind(&data); err != nil {
			return errors.Wrap(err, "binding to PaymentRequest")
		}
		data.RecordedBy = contextOperator(ctx)

		std, rcpt, err := pay(api.svc, ctx.Request().Context(), ctx.Param("id"), data)
		if err != nil {
			return errors.Wrap(err, "recording payment")
		}
		return ctx.JSON(http.StatusCreated, PaymentResponse{Student: std, Receipt: &rcpt})
	}
}

func (api *admissionApi) beginRegistration(ctx echo.Context) error {
	std, err := api.svc.BeginRegistration(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "beginning registration")
	}
	return ctx.JSON(http.StatusOK, std)
}

func (api *admissionApi) confirmRegistration(ctx echo.Context) error {
	var data account.Credentials
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to Credentials")
	}
	std, err := api.svc.ConfirmRegistration(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "confirming registration")
	}
	return ctx.JSON(http.StatusOK, std)
}

func (api *admissionApi) cancel(ctx echo.Context) error {
	var data admission.CancelRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to CancelRequest")
	}
	std, err := api.svc.Cancel(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "cancelling admission")
	}
	return ctx.JSON(http.StatusOK, std)
}

func (api *admissionApi) requestExam(ctx echo.Context) error {
	var data admission.ExamRequestInput
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ExamRequestInput")
	}
	req, err := api.svc.RequestExam(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "requesting exam")
	}
	return ctx.JSON(http.StatusCreated, req)
}

func (api *admissionApi) completeExamRequest(ctx echo.Context) error {
	req, err := api.svc.CompleteExamRequest(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "completing exam request")
	}
	return ctx.JSON(http.StatusOK, req)
}

func (api *admissionApi) convertInquiry(ctx echo.Context) error {
	var data ConvertInquiryRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ConvertInquiryRequest")
	}
	inq, _, err := api.svc.ConvertInquiry(ctx.Request().Context(), ctx.Param("id"), data.StudentID)
	if err != nil {
		return errors.Wrap(err, "converting inquiry")
	}
	return ctx.JSON(http.StatusOK, inq)
}

func (api *admissionApi) nextReceiptNo(ctx echo.Context) error {
	no, err := api.svc.NextReceiptNo(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "allocating receipt number")
	}
	ctx.Response().Header().Set("Cache-Control", "no-store")
	return ctx.JSON(http.StatusOK, NextReceiptNoResponse{ReceiptNo: no})
}
