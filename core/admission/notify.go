package admission

import (
	"fmt"
	"net/mail"

	"github.com/trezcool/admissions/core"
	"github.com/trezcool/admissions/core/receipt"
	"github.com/trezcool/admissions/core/student"
)

func (svc *Service) recipients(std student.Student) []mail.Address {
	if std.Email == "" {
		return nil
	}
	return []mail.Address{{Name: std.FullName(), Address: std.Email}}
}

func (svc *Service) notifyPayment(std student.Student, rcpt receipt.Receipt) {
	to := svc.recipients(std)
	if to == nil {
		return
	}
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           to,
		Subject:      fmt.Sprintf("Payment receipt #%d", rcpt.ReceiptNo),
		TemplateName: "payment_receipt",
		TemplateData: map[string]interface{}{
			"Name":        std.FullName(),
			"ReceiptNo":   rcpt.ReceiptNo,
			"Purpose":     rcpt.Purpose,
			"Currency":    svc.conf.Fees.Currency,
			"Amount":      rcpt.AmountPaid.StringFixed(2),
			"Mode":        rcpt.PaymentMode,
			"Date":        rcpt.Date.Format("02 Jan 2006"),
			"PendingFees": std.PendingFees.StringFixed(2),
		},
	})
}

func (svc *Service) notifyRegistration(std student.Student) {
	to := svc.recipients(std)
	if to == nil {
		return
	}
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           to,
		Subject:      "Registration confirmed",
		TemplateName: "registration_confirmed",
		TemplateData: map[string]interface{}{
			"Name":     std.FullName(),
			"Username": std.Username.String,
		},
	})
}
