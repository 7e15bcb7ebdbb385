package provider

import (
	"errors"
	"fmt"
)

// Errors returned by Outcome.Err, one per failure kind.
var (
	// ErrRateLimited is returned when the provider kept answering 429 until attempts ran out.
	ErrRateLimited = errors.New("provider rate limited")

	// ErrClientRejected is returned for any other 4xx answer.
	ErrClientRejected = errors.New("provider rejected request")

	// ErrTransport is returned for network failures and non-4xx error statuses.
	ErrTransport = errors.New("provider transport failure")

	// ErrInvalidResponse is returned when the body is unparsable or misses setup/punchline.
	ErrInvalidResponse = errors.New("invalid provider response")

	// ErrCancelled is returned when the context ends during a request or backoff.
	ErrCancelled = errors.New("fetch cancelled")
)

// StatusError carries the HTTP details of a non-2xx provider answer.
type StatusError struct {
	StatusCode int
	Kind       Kind
	Message    string
}

// Error implements the error interface.
func (e *StatusError) Error() string {
	return fmt.Sprintf("provider %s (status %d): %s", e.Kind, e.StatusCode, e.Message)
}

// Unwrap maps the error onto the sentinel for its kind so errors.Is works.
func (e *StatusError) Unwrap() error {
	return sentinelFor(e.Kind)
}

func sentinelFor(kind Kind) error {
	switch kind {
	case KindRateLimited:
		return ErrRateLimited
	case KindClientRejected:
		return ErrClientRejected
	case KindTransportFailed:
		return ErrTransport
	case KindInvalidBody:
		return ErrInvalidResponse
	case KindCancelled:
		return ErrCancelled
	default:
		return nil
	}
}
