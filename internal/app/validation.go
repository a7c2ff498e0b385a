package app

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator"
)

// ValidationError reports invalid user input.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func newValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// validateStruct runs struct-tag validation and reports the first failing field.
func (s *Service) validateStruct(input any) error {
	err := s.validate.Struct(input)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return err
	}

	fe := fieldErrs[0]
	field := strings.ToLower(fe.Field()[:1]) + fe.Field()[1:]
	switch fe.Tag() {
	case "required":
		return newValidationError(field, "is required")
	case "max":
		return newValidationError(field, "must be at most "+fe.Param()+" characters")
	default:
		return newValidationError(field, "is invalid")
	}
}
