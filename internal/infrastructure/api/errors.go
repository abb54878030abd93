package api

import (
	"fmt"
)

// FetchErrorKind classifies why an upstream fetch failed
type FetchErrorKind string

const (
	// KindTimeout means the call did not complete within the client timeout
	KindTimeout FetchErrorKind = "timeout"
	// KindUpstreamRejected means the provider answered with a non-success status
	KindUpstreamRejected FetchErrorKind = "upstream_rejected"
	// KindTransportFailure covers network failures and malformed responses
	KindTransportFailure FetchErrorKind = "transport_failure"
)

// FetchError is returned by the exchange rate client for every failed fetch
type FetchError struct {
	Kind     FetchErrorKind
	Provider string
	Status   int
	Detail   string
	Err      error
}

func (e *FetchError) Error() string {
	switch e.Kind {
	case KindUpstreamRejected:
		return fmt.Sprintf("%s provider rejected request with status %d: %s", e.Provider, e.Status, e.Detail)
	default:
		return fmt.Sprintf("%s provider %s: %s", e.Provider, e.Kind, e.Detail)
	}
}

func (e *FetchError) Unwrap() error {
	return e.Err
}
