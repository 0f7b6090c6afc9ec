package validation

import (
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/go-playground/validator/v10/non-standard/validators"
)

var (
	once     sync.Once
	instance *validator.Validate
)

// Default returns the process-wide validator with the custom tags registered.
func Default() *validator.Validate {
	once.Do(func() {
		instance = New()
	})
	return instance
}

func New() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := v.RegisterValidation("notblank", validators.NotBlank); err != nil {
		panic(err)
	}
	return v
}
