package parse

import (
	"errors"
	"fmt"
)

// ErrContract marks a reply that does not have the documented shape.
var ErrContract = errors.New("response violates parse contract")

// TransportError is returned when no usable reply was obtained: the
// request failed, the service answered non-2xx, or the body broke the
// contract. Status is 0 when no HTTP status was received.
type TransportError struct {
	Status int
	Err    error
}

func (e *TransportError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("parse service: status %d: %v", e.Status, e.Err)
	}
	return fmt.Sprintf("parse service: %v", e.Err)
}

// Unwrap returns the underlying cause.
func (e *TransportError) Unwrap() error {
	return e.Err
}

// IsTransportError reports whether err is or wraps a *TransportError.
func IsTransportError(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}
