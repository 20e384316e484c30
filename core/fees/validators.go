package fees

import (
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/admissions/core"
)

var (
	planTag  = "plan"
	planText = "payment plan must be one of: one_time, monthly"
)

// InitValidators registers the payment plan validator.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(planTag, planValidation)
	core.RegisterCustomTranslation(validate, translator, planTag, planText)
}

func planValidation(fl validator.FieldLevel) bool {
	switch v := fl.Field().Interface().(type) {
	case Plan:
		return v.IsValid()
	case string:
		return Plan(v).IsValid()
	}
	return false
}
