package services

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"

	domain "github.com/orderfield/ordersync/internal/domain"
)

// ErrImportInvalidInput signals the incoming order record failed schema
// validation.
var ErrImportInvalidInput = errors.New("import: invalid order data")

// FieldViolation describes one failed constraint in a serializable form.
type FieldViolation struct {
	Field      string `json:"field"`
	Constraint string `json:"constraint"`
}

// ValidationError aggregates every violated constraint of one order record.
type ValidationError struct {
	Violations []FieldViolation
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("%v: %d constraint violation(s)", ErrImportInvalidInput, len(e.Violations))
}

// Unwrap ties the typed error to the ErrImportInvalidInput sentinel.
func (e *ValidationError) Unwrap() error { return ErrImportInvalidInput }

// OrderValidator checks incoming order records against the struct constraints
// declared on the domain types. Unknown wire fields are already dropped on
// decode, so validation only concerns shape and required fields.
type OrderValidator struct {
	validate *validator.Validate
}

// NewOrderValidator constructs the validator backing all import runs.
func NewOrderValidator() *OrderValidator {
	return &OrderValidator{validate: validator.New(validator.WithRequiredStructEnabled())}
}

// ValidateOrder returns a ValidationError listing every violated constraint,
// or nil when the order is acceptable.
func (v *OrderValidator) ValidateOrder(order domain.Order) error {
	err := v.validate.Struct(order)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		// Non-field errors mean the validator was misused; let it propagate.
		return err
	}

	violations := make([]FieldViolation, 0, len(fieldErrs))
	for _, fieldErr := range fieldErrs {
		violations = append(violations, FieldViolation{
			Field:      fieldErr.Namespace(),
			Constraint: fieldErr.Tag(),
		})
	}
	return &ValidationError{Violations: violations}
}
