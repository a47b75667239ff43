package cart

import (
	"fmt"
	"regexp"

	"github.com/example/shopcart/pkg/models"
	"github.com/go-playground/validator/v10"
)

var phonePattern = regexp.MustCompile(`^\+?[0-9]{8,15}$`)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := registerValidations(v); err != nil {
		panic(err)
	}
	return v
}

// registerValidations adds the "phone" tag used by models.CustomerInfo to v.
func registerValidations(v *validator.Validate) error {
	return v.RegisterValidation("phone", func(fl validator.FieldLevel) bool {
		return phonePattern.MatchString(fl.Field().String())
	})
}

// ValidateCustomer reports whether info satisfies the checkout form rules.
// The returned error wraps ErrValidationFailed and validator.ValidationErrors.
func ValidateCustomer(info models.CustomerInfo) error {
	if err := validate.Struct(info); err != nil {
		return fmt.Errorf("%w: %w", ErrValidationFailed, err)
	}
	return nil
}
