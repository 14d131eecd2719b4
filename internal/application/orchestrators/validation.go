package orchestrators

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// validate is shared; validator.Validate caches struct metadata and is safe
// for concurrent use.
var validate = validator.New()

// ValidationError is an input problem detected before any backend call.
type ValidationError struct {
	Message string
}

// Error implements the error interface.
// PRE: e.Message is set.
// POST: returns the validation error message string.
func (e *ValidationError) Error() string {
	return e.Message
}

// IsValidationError reports whether err is (or wraps) a *ValidationError.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// checkStruct runs struct-tag validation and converts the first failure into a
// *ValidationError using labels for field names.
func checkStruct(v any, labels map[string]string) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return &ValidationError{Message: err.Error()}
	}
	fe := fieldErrs[0]
	label := labels[fe.Field()]
	if label == "" {
		label = fe.Field()
	}
	return &ValidationError{Message: fieldMessage(label, fe)}
}

func fieldMessage(label string, fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required.", label)
	case "email":
		return "Enter a valid email address."
	case "datetime":
		return fmt.Sprintf("%s must be a date in YYYY-MM-DD format.", label)
	case "gt", "min":
		return fmt.Sprintf("%s must be at least %s.", label, minimumFor(fe))
	default:
		return fmt.Sprintf("%s is invalid.", label)
	}
}

func minimumFor(fe validator.FieldError) string {
	if fe.Tag() == "gt" {
		return nextAfter(fe.Param())
	}
	return fe.Param()
}

// nextAfter turns a "gt=N" parameter into the smallest accepted integer.
func nextAfter(param string) string {
	var n int
	if _, err := fmt.Sscanf(strings.TrimSpace(param), "%d", &n); err != nil {
		return param
	}
	return fmt.Sprint(n + 1)
}
