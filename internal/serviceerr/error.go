// Package serviceerr carries the operation.reason error codes shared by the storage services.
package serviceerr

import (
	"errors"
	"fmt"
)

// Error wraps a cause with a stable code of the form "<operation>.<reason>".
type Error struct {
	code string
	err  error
}

func (e *Error) Error() string {
	if e.err == nil {
		return e.code
	}
	return fmt.Sprintf("%s: %v", e.code, e.err)
}

func (e *Error) Unwrap() error {
	return e.err
}

// Code returns the stable error code.
func (e *Error) Code() string {
	return e.code
}

// New builds an Error for operation and reason.
func New(operation, reason string, cause error) error {
	code := fmt.Sprintf("%s.%s", operation, reason)
	return &Error{code: code, err: cause}
}

// CodeOf extracts the code from err when it wraps an Error.
func CodeOf(err error) (string, bool) {
	var serviceError *Error
	if errors.As(err, &serviceError) {
		return serviceError.Code(), true
	}
	return "", false
}
