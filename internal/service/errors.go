package service

import "errors"

// Common service errors
var (
	// ErrNotFound is returned when a resource is not found
	ErrNotFound = errors.New("resource not found")

	// ErrCustomerNotFound is returned when a referenced customer does not exist in the tenant
	ErrCustomerNotFound = errors.New("customer not found")

	// ErrSellerNotFound is returned when a referenced seller does not exist in the tenant
	ErrSellerNotFound = errors.New("seller not found")

	// ErrProductNotFound is returned when a referenced product does not exist in the tenant
	ErrProductNotFound = errors.New("product not found")

	// ErrInvalidStage is returned for a stage outside the pipeline
	ErrInvalidStage = errors.New("invalid stage")

	// ErrInvalidInput is returned when input validation fails
	ErrInvalidInput = errors.New("invalid input")

	// ErrConflict is returned when there's a conflict (e.g., duplicate)
	ErrConflict = errors.New("resource conflict")

	// ErrUnauthorized is returned when user is not authenticated
	ErrUnauthorized = errors.New("unauthorized")

	// ErrForbidden is returned when the user's role does not allow the action
	ErrForbidden = errors.New("forbidden")

	// ErrEmailTaken is returned when registering with an email that already signs in
	ErrEmailTaken = errors.New("email already registered")

	// ErrInvalidCredentials is returned when email and password do not match
	ErrInvalidCredentials = errors.New("invalid email or password")
)

// ValidationError reports a rejected field. It unwraps to ErrInvalidInput.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func (e *ValidationError) Unwrap() error {
	return ErrInvalidInput
}

func invalid(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}
