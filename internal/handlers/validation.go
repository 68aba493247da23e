package handlers

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
)

// Shared validator instance; validator.Validate is safe for concurrent use.
var validate = validator.New()

// ValidateRequest validates a request DTO against its struct tags and
// returns a user-facing error naming the first offending field.
func ValidateRequest(req interface{}) error {
	err := validate.Struct(req)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		fe := fieldErrs[0]
		return fmt.Errorf("validation failed: %s: %s", fe.Field(), describeRule(fe))
	}
	return fmt.Errorf("validation failed: %w", err)
}

func describeRule(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "this field is required"
	case "email":
		return "must be a valid email address"
	case "min":
		return "must have a minimum of " + fe.Param() + " characters"
	case "max":
		return "must have a maximum of " + fe.Param() + " characters"
	case "oneof":
		return "must be one of: " + fe.Param()
	case "gte":
		return "must be greater than or equal to " + fe.Param()
	case "lte":
		return "must be less than or equal to " + fe.Param()
	case "uuid":
		return "must be a valid UUID"
	case "dive":
		return "contains an invalid element"
	default:
		return "failed validation: " + fe.Tag()
	}
}
