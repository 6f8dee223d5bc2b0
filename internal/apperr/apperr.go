// Package apperr defines the error taxonomy shared by the services and the
// HTTP layer: request-validation errors, not-found errors and the portfolio
// data-corruption signal. Everything else is treated as an internal error.
package apperr

import "fmt"

// ValidationError is a client-caused request error. It is raised before any
// side effect and maps to a 400 response.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// Validationf builds a ValidationError from a format string.
func Validationf(format string, args ...any) *ValidationError {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// NotFoundError reports an absent user, instrument or market-data record and
// maps to a 404 response.
type NotFoundError struct {
	Resource string
	Key      any
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %v not found", e.Resource, e.Key)
}

// NotFound builds a NotFoundError for the given resource and lookup key.
func NotFound(resource string, key any) *NotFoundError {
	return &NotFoundError{Resource: resource, Key: key}
}

// DataCorruptionError reports negative computed holdings for an instrument,
// raised only when the portfolio service runs with the fail policy.
type DataCorruptionError struct {
	Ticker string
}

func (e *DataCorruptionError) Error() string {
	return fmt.Sprintf("inconsistent trades detected for instrument %s, please check data source", e.Ticker)
}
