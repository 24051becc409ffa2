package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotRegistered means an unknown media type or category was requested
	// from the registry. This is a programmer error and fails loudly.
	ErrNotRegistered = errors.New("media type not registered")

	// ErrMalformedResponse means an upstream response body failed schema
	// validation. It is never silently coerced into an empty result.
	ErrMalformedResponse = errors.New("malformed upstream response")

	// ErrCredentialUnavailable means a backend's API credentials are missing
	// or invalid. This is a configuration gap, not a per-request fault;
	// callers degrade to empty results.
	ErrCredentialUnavailable = errors.New("backend credentials unavailable")
)

// UpstreamError is a non-2xx upstream response, surfaced with its status so
// the UI can show a transient "service busy" state. It is not retried
// automatically inside this layer.
type UpstreamError struct {
	Backend string
	Status  int
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s upstream HTTP %d", e.Backend, e.Status)
}

// IsUpstreamError unwraps err to an UpstreamError, if it carries one.
func IsUpstreamError(err error) (*UpstreamError, bool) {
	var upstream *UpstreamError
	if errors.As(err, &upstream) {
		return upstream, true
	}
	return nil, false
}
