package receipt

import (
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/admissions/core"
)

var (
	paymentModeTag  = "paymentmode"
	paymentModeText = "payment mode must be one of: cash, cheque, card, upi, bank_transfer, online"
)

// InitValidators registers the payment mode validator.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(paymentModeTag, paymentModeValidation)
	core.RegisterCustomTranslation(validate, translator, paymentModeTag, paymentModeText)
}

func paymentModeValidation(fl validator.FieldLevel) bool {
	switch v := fl.Field().Interface().(type) {
	case Mode:
		return v.IsValid()
	case string:
		return Mode(v).IsValid()
	}
	return false
}
