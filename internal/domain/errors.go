package domain

import "fmt"

// Error types for consistent error handling across the service.

// ErrConfiguration indicates an invalid or missing contract/config field.
// Fatal: the engine refuses to build a schedule from a bad contract.
type ErrConfiguration struct {
	Field   string
	Message string
}

func (e *ErrConfiguration) Error() string {
	return fmt.Sprintf("configuration error on '%s': %s", e.Field, e.Message)
}

// ErrCalendarDataMissing indicates the holiday table has no entry for a year
// the schedule spans. Never downgraded to "no holidays" — that would silently
// shift due dates.
type ErrCalendarDataMissing struct {
	Region string
	Year   int
}

func (e *ErrCalendarDataMissing) Error() string {
	return fmt.Sprintf("holiday calendar has no data for %s/%d", e.Region, e.Year)
}

// ErrInvalidInstant indicates an unusable evaluation instant ("now"):
// unparsable, zero, or outside the contract's sane range.
type ErrInvalidInstant struct {
	Value  string
	Reason string
}

func (e *ErrInvalidInstant) Error() string {
	return fmt.Sprintf("invalid evaluation instant %q: %s", e.Value, e.Reason)
}

// ErrExternalService indicates a failure in an external service call.
type ErrExternalService struct {
	Service string
	Err     error
}

func (e *ErrExternalService) Error() string {
	return fmt.Sprintf("external service error [%s]: %v", e.Service, e.Err)
}

func (e *ErrExternalService) Unwrap() error {
	return e.Err
}

// ErrCircuitOpen indicates the circuit breaker is open.
type ErrCircuitOpen struct {
	Service string
}

func (e *ErrCircuitOpen) Error() string {
	return fmt.Sprintf("circuit breaker open for service: %s", e.Service)
}

// ErrValidation indicates a validation error (bad input).
type ErrValidation struct {
	Field   string
	Message string
}

func (e *ErrValidation) Error() string {
	return fmt.Sprintf("validation error on '%s': %s", e.Field, e.Message)
}

// ErrNotFound indicates a resource was not found.
type ErrNotFound struct {
	Resource string
	ID       string
}

func (e *ErrNotFound) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

// ErrUnknownSender indicates an inbound message from a phone number that is
// not the configured debtor.
type ErrUnknownSender struct {
	From string
}

func (e *ErrUnknownSender) Error() string {
	return fmt.Sprintf("sender not recognized: %s", e.From)
}
