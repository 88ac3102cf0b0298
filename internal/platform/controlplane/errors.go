package controlplane

import (
	"errors"
	"fmt"
)

// SpuriousRejectionError is returned when the platform rejects a request
// because of a resource state that should have allowed it. Resubmitting the
// same request later is expected to succeed.
type SpuriousRejectionError struct {
	Op  OperationKind
	Err error
}

func (e *SpuriousRejectionError) Error() string {
	return fmt.Sprintf("%s rejected: %v", e.Op, e.Err)
}

func (e *SpuriousRejectionError) Unwrap() error { return e.Err }

// IsSpuriousRejection reports whether err is or wraps a SpuriousRejectionError.
func IsSpuriousRejection(err error) bool {
	var sr *SpuriousRejectionError
	return errors.As(err, &sr)
}

// AuthorizationError is returned when the credentials may not perform a call.
type AuthorizationError struct {
	Err error
}

func (e *AuthorizationError) Error() string {
	return fmt.Sprintf("not authorized: %v", e.Err)
}

func (e *AuthorizationError) Unwrap() error { return e.Err }

// IsAuthorization reports whether err is or wraps an AuthorizationError.
func IsAuthorization(err error) bool {
	var ae *AuthorizationError
	return errors.As(err, &ae)
}
