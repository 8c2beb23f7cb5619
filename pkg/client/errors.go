package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// Common errors returned by the client.
var (
	// ErrRetryExhausted is returned when all retry attempts are exhausted.
	ErrRetryExhausted = errors.New("retry attempts exhausted")

	// ErrContextCancelled is returned when the context is cancelled during retry.
	ErrContextCancelled = errors.New("context cancelled")
)

// TimeoutMessage is the UpstreamError message used when the upstream call
// runs out of time.
const TimeoutMessage = "upstream timeout"

// ErrorClass represents a classification of upstream errors.
type ErrorClass string

const (
	// ErrorClassClient represents 4xx client errors.
	ErrorClassClient ErrorClass = "client"

	// ErrorClassServer represents 5xx server errors.
	ErrorClassServer ErrorClass = "server"

	// ErrorClassRateLimit represents 429 quota errors.
	ErrorClassRateLimit ErrorClass = "rate_limit"

	// ErrorClassTimeout represents calls that hit the upstream timeout.
	ErrorClassTimeout ErrorClass = "timeout"

	// ErrorClassNetwork represents requests that could not be sent.
	ErrorClassNetwork ErrorClass = "network"
)

// UpstreamError is a non-2xx answer from NASA, or a timeout (status 504).
type UpstreamError struct {
	StatusCode int
	Message    string
}

// Error implements the error interface.
func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream error (status %d): %s", e.StatusCode, e.Message)
}

// Class returns the error class for the status code.
func (e *UpstreamError) Class() ErrorClass {
	switch {
	case e.StatusCode == http.StatusGatewayTimeout && e.Message == TimeoutMessage:
		return ErrorClassTimeout
	case e.StatusCode == http.StatusTooManyRequests:
		return ErrorClassRateLimit
	case e.StatusCode >= 500:
		return ErrorClassServer
	default:
		return ErrorClassClient
	}
}

// NetworkError means the request never got an answer: DNS failure,
// connection refused, reset mid-body.
type NetworkError struct {
	Err error
}

// Error implements the error interface.
func (e *NetworkError) Error() string {
	return fmt.Sprintf("upstream unreachable: %v", e.Err)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *NetworkError) Unwrap() error {
	return e.Err
}

// ClassifyError returns the class of err, or "" when err did not come from
// an upstream call (nil, cancellation, ...).
func ClassifyError(err error) ErrorClass {
	var upstreamErr *UpstreamError
	if errors.As(err, &upstreamErr) {
		return upstreamErr.Class()
	}
	var netErr *NetworkError
	if errors.As(err, &netErr) {
		return ErrorClassNetwork
	}
	return ""
}

// shouldRetry determines if an error should be retried based on its classification.
func shouldRetry(errorClass ErrorClass) bool {
	switch errorClass {
	case ErrorClassClient:
		// 4xx will not change on a second try
		return false
	case ErrorClassServer, ErrorClassRateLimit, ErrorClassTimeout, ErrorClassNetwork:
		return true
	default:
		return false
	}
}

// isCancellation reports whether err is the caller giving up rather than
// the upstream failing.
func isCancellation(err error) bool {
	return errors.Is(err, context.Canceled)
}
