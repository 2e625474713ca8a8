package service

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/99minutos/accounts-api/internal/core/domain"
)

// fieldRules are the validator tags applied to each user field, keyed by the
// field's wire name.
var fieldRules = map[string]string{
	"fullName": "required,min=2,max=100",
	"email":    "required,email,max=255",
	"password": "required,min=6,max=255",
	"avatar":   "omitempty,url",
	"role":     "required,oneof=admin user",
}

var validate = validator.New()

// validateField checks a single value against fieldRules and converts a failure
// into a *domain.ValidationError with a human-readable reason.
func validateField(name, value string) error {
	rule, ok := fieldRules[name]
	if !ok {
		return fmt.Errorf("validate: unknown field %q", name)
	}
	if err := validate.Var(value, rule); err != nil {
		var ve validator.ValidationErrors
		if errors.As(err, &ve) && len(ve) > 0 {
			return domain.NewValidationError(fieldMessage(name, ve[0]))
		}
		return err
	}
	return nil
}

func fieldMessage(name string, fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return name + " is required"
	case "email":
		return "Invalid email format"
	case "url":
		return name + " must be a valid URL"
	case "oneof":
		return `Role must be either "admin" or "user"`
	case "min":
		if name == "password" {
			return "Password must be at least " + fe.Param() + " characters long"
		}
		return fmt.Sprintf("%s must be at least %s characters long", name, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters long", name, fe.Param())
	default:
		return fmt.Sprintf("%s failed validation (%s)", name, fe.Tag())
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
