package api

import (
	"github.com/go-playground/validator/v10"
	"github.com/yakoovad/teamhub/pkg/validation"
)

type Validator struct {
	validate *validator.Validate
}

func NewValidator() *Validator {
	return &Validator{validate: validation.Default()}
}

func (v *Validator) Validate(i any) error {
	return v.validate.Struct(i)
}
