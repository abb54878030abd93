package service

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingFields is returned when from, to or amount is absent
	ErrMissingFields = errors.New("missing required fields")
	// ErrInvalidAmount is returned when the amount is not a finite non-negative number
	ErrInvalidAmount = errors.New("invalid amount")
	// ErrUnsupportedCurrency is returned for codes outside the registry
	ErrUnsupportedCurrency = errors.New("unsupported currency")
	// ErrRateUnavailable is returned when the snapshot has no rate for the target currency
	ErrRateUnavailable = errors.New("exchange rate not available")
	// ErrInvalidDays is returned for a historical period outside 0..365
	ErrInvalidDays = errors.New("invalid days")
)

// InputError is a caller mistake. Message is safe to return to clients as is.
type InputError struct {
	Err     error
	Message string
}

func (e *InputError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return e.Err.Error()
}

func (e *InputError) Unwrap() error {
	return e.Err
}

func newInputError(err error, format string, args ...interface{}) *InputError {
	return &InputError{Err: err, Message: fmt.Sprintf(format, args...)}
}

// UpstreamError means rates could not be obtained from any provider
type UpstreamError struct {
	Err error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream unavailable: %v", e.Err)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}
