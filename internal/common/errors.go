// Package common holds the error kinds shared by the render pipeline, its
// external clients and the HTTP layer.
package common

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned by stores when a record does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrRenderSettled is returned when a render that already reached a
	// terminal status receives another settlement write.
	ErrRenderSettled = errors.New("render already settled")
)

// DecodeError reports an image that could not be decoded.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("failed to decode image: %v", e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// ServiceError reports a transport failure, a timeout or a non-2xx answer
// from an external service. Message carries the upstream message when the
// service returned one.
type ServiceError struct {
	Service string
	Status  int
	Message string
	Err     error
}

func (e *ServiceError) Error() string {
	switch {
	case e.Status != 0 && e.Message != "":
		return fmt.Sprintf("%s: status %d: %s", e.Service, e.Status, e.Message)
	case e.Status != 0:
		return fmt.Sprintf("%s: status %d", e.Service, e.Status)
	case e.Message != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Service, e.Message, e.Err)
	case e.Message != "":
		return fmt.Sprintf("%s: %s", e.Service, e.Message)
	default:
		return fmt.Sprintf("%s: %v", e.Service, e.Err)
	}
}

func (e *ServiceError) Unwrap() error { return e.Err }

// TimeoutError is the ServiceError variant for calls that hit their deadline.
type TimeoutError struct {
	Service string
	Err     error
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s: request timed out", e.Service)
}

func (e *TimeoutError) Unwrap() error {
	return &ServiceError{Service: e.Service, Message: "request timed out", Err: e.Err}
}

// ParseError reports a malformed structured response. It is recovered
// locally by the parser that produced it and never leaves its package.
type ParseError struct {
	Body string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("malformed response: %v", e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// ConfigurationError reports a feature that cannot run because a required
// setting is missing.
type ConfigurationError struct {
	Setting string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error: %s is not set", e.Setting)
}

// LayoutMismatchError reports a render whose best faithfulness score stayed
// below the acceptance threshold.
type LayoutMismatchError struct {
	Score  int
	Reason string
}

func (e *LayoutMismatchError) Error() string {
	return fmt.Sprintf("generated layout does not match the floor plan (score %d): %s", e.Score, e.Reason)
}

// IsTimeout reports whether err is a TimeoutError or a raw deadline error.
func IsTimeout(err error) bool {
	var te *TimeoutError
	return errors.As(err, &te) || errors.Is(err, context.DeadlineExceeded)
}

// IsServiceError reports whether err (or anything it wraps) is a ServiceError
// or a TimeoutError.
func IsServiceError(err error) bool {
	var se *ServiceError
	if errors.As(err, &se) {
		return true
	}
	var te *TimeoutError
	return errors.As(err, &te)
}
