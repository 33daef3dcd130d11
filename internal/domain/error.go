package domain

import (
	"errors"
	"fmt"
)

var (
	// Common domain errors
	ErrNotFound        = errors.New("entity not found")
	ErrAlreadyExists   = errors.New("entity already exists")
	ErrInvalidArgument = errors.New("invalid argument")
	ErrUnauthenticated = errors.New("caller is not authenticated")

	// Payment lifecycle
	ErrAlreadySatisfied   = errors.New("registration fee already paid")
	ErrCourseNotPublished = errors.New("course is not published")
	ErrAlreadyEnrolled    = errors.New("user already enrolled in this course")
	ErrAlreadyProcessed   = errors.New("payment already processed")
	ErrSignatureMismatch  = errors.New("payment signature mismatch")
	ErrInvalidTransition  = errors.New("invalid payment status transition")
	ErrGatewayUnavailable = errors.New("payment gateway unavailable")

	// Enrollment and access
	ErrAlreadyActive           = errors.New("enrollment is already active")
	ErrNotEnrolled             = errors.New("user is not enrolled in this course")
	ErrEnrollmentExpired       = errors.New("enrollment has expired")
	ErrRegistrationFeeRequired = errors.New("registration fee required")

	// Persistence-side failures
	ErrOperationFailed    = errors.New("database operation failed")
	ErrInvalidExecContext = errors.New("invalid database execution context")
	ErrReadDatabaseRow    = errors.New("failed to read database row")
)

// NotEnrolledError is the access-gate denial for a course the caller has no
// active enrollment in. It carries the course price and title so the serving
// layer can render an upsell without a second catalog lookup.
// errors.Is(err, ErrNotEnrolled) still matches.
type NotEnrolledError struct {
	CourseID string
	Title    string
	Price    int64
	Currency string
}

func (e *NotEnrolledError) Error() string {
	return fmt.Sprintf("not enrolled in course %s", e.CourseID)
}

func (e *NotEnrolledError) Unwrap() error { return ErrNotEnrolled }

// RegistrationFeeRequiredError carries the configured fee amount so the caller
// can present the exact charge.
type RegistrationFeeRequiredError struct {
	Amount   int64
	Currency string
}

func (e *RegistrationFeeRequiredError) Error() string {
	return fmt.Sprintf("registration fee of %d %s required", e.Amount, e.Currency)
}

func (e *RegistrationFeeRequiredError) Unwrap() error { return ErrRegistrationFeeRequired }
