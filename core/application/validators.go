package application

import (
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/cts/core"
)

var (
	ctStatusTag  = "ctstatus"
	ctStatusText = "invalid credit transfer status"
)

// InitValidators registers the application validators & their translations.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(ctStatusTag, ctStatusValidation)
	core.RegisterCustomTranslation(validate, translator, ctStatusTag, ctStatusText)
}

// ctStatusValidation checks that a status is one of Statuses
func ctStatusValidation(fl validator.FieldLevel) bool {
	status := fl.Field().String()
	for _, s := range Statuses {
		if s == status {
			return true
		}
	}
	return false
}
