package dexcom

import (
	"errors"
	"fmt"
)

// ValidationError reports a structurally invalid configuration, token
// envelope, time window, or authorization code. It is always raised
// before any network activity.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// TransportError wraps a network-layer failure (connection refused,
// timeout, DNS). It is propagated unmodified; the client never retries.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string { return e.Err.Error() }
func (e *TransportError) Unwrap() error { return e.Err }

// ProviderError reports a non-success HTTP status from the provider.
// The body is sanitized and truncated but otherwise not reinterpreted.
type ProviderError struct {
	Endpoint   string
	StatusCode int
	Body       string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider %s returned status %d: %s", e.Endpoint, e.StatusCode, e.Body)
}

// IsValidation reports whether err (or any error in its chain) is a
// ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsTransport reports whether err is a network-layer failure.
func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

// IsProvider reports whether err is a provider-side failure.
func IsProvider(err error) bool {
	var pe *ProviderError
	return errors.As(err, &pe)
}
