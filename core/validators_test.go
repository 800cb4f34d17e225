package core

import (
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitValidators_translations(t *testing.T) {
	validate := validator.New()
	translator := NewTranslator()
	InitValidators(validate, translator)

	type form struct {
		Action string  `json:"action" validate:"required,oneof=approve send_to_sme"`
		Pct    float64 `json:"pct" validate:"percentage"`
		Name   string  `json:"name" validate:"required"`
	}
	err := validate.Struct(form{Action: "lol", Pct: 120})
	require.Error(t, err)

	msgs := make(map[string]string)
	for _, fe := range err.(validator.ValidationErrors) {
		msgs[fe.Field()] = fe.Translate(translator)
	}
	assert.Equal(t, map[string]string{
		"action": "must be one of: approve, send_to_sme",
		"pct":    "must be a percentage between 0 and 100",
		"name":   "this field is required",
	}, msgs)
}
