package domain

import (
	"errors"
	"fmt"
)

// ErrorClass is the stage-boundary failure taxonomy. The orchestrator only
// ever inspects these classes, never raw provider errors.
type ErrorClass string

const (
	ErrClassNone              ErrorClass = ""
	ErrClassTransient         ErrorClass = "transient"
	ErrClassInvalidInput      ErrorClass = "invalid_input"
	ErrClassQuotaExceeded     ErrorClass = "quota_exceeded"
	ErrClassRemoteUnavailable ErrorClass = "remote_unavailable"
	ErrClassAuth              ErrorClass = "auth"
	ErrClassTTLExpired        ErrorClass = "ttl_expired"
)

// Retryable reports whether a stage may attempt one bounded retry.
func (c ErrorClass) Retryable() bool {
	return c == ErrClassTransient
}

// ClassifiedError carries an ErrorClass across the executor boundary.
type ClassifiedError struct {
	Class ErrorClass
	Err   error
}

func (e *ClassifiedError) Error() string {
	if e.Err == nil {
		return string(e.Class)
	}
	return fmt.Sprintf("%s: %v", e.Class, e.Err)
}

func (e *ClassifiedError) Unwrap() error {
	return e.Err
}

// Classified wraps err with the given class.
func Classified(class ErrorClass, err error) error {
	return &ClassifiedError{Class: class, Err: err}
}

// Classify extracts the ErrorClass from err, defaulting to transient for
// unclassified failures (timeouts, connection resets and the like).
func Classify(err error) ErrorClass {
	if err == nil {
		return ErrClassNone
	}
	var ce *ClassifiedError
	if errors.As(err, &ce) {
		return ce.Class
	}
	return ErrClassTransient
}
