package governor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/careerbase/apigov/pkg/models"
)

// Sentinel errors for governance rejections
var (
	ErrQuotaExhausted  = errors.New("quota exhausted")
	ErrRateLimited     = errors.New("rate limit exceeded")
	ErrServiceDisabled = errors.New("service disabled")
	ErrServiceUnknown  = errors.New("service not registered")
)

// CallError wraps an upstream failure with call context
type CallError struct {
	Service    string
	Endpoint   string
	StatusCode int
	Message    string
	Err        error
}

func (e *CallError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s %s failed (HTTP %d): %s", e.Service, e.Endpoint, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s %s failed: %s", e.Service, e.Endpoint, e.Message)
}

func (e *CallError) Unwrap() error {
	return e.Err
}

// NewCallError creates a new CallError
func NewCallError(service, endpoint string, statusCode int, message string, err error) *CallError {
	return &CallError{
		Service:    service,
		Endpoint:   endpoint,
		StatusCode: statusCode,
		Message:    message,
		Err:        err,
	}
}

// IsQuotaExhausted checks if the error is a quota rejection
func IsQuotaExhausted(err error) bool {
	return errors.Is(err, ErrQuotaExhausted)
}

// IsRateLimited checks if the error is a rate limit rejection
func IsRateLimited(err error) bool {
	if errors.Is(err, ErrRateLimited) {
		return true
	}
	var ce *CallError
	if errors.As(err, &ce) {
		return ce.StatusCode == http.StatusTooManyRequests
	}
	return false
}

// Classify maps an error to the failure taxonomy used by the error log.
// Quota and rate limit rejections count together as quota exhaustion;
// both mean the platform refused the call before the upstream saw it.
func Classify(err error) models.ErrorKind {
	switch {
	case err == nil:
		return ""
	case IsQuotaExhausted(err) || IsRateLimited(err):
		return models.KindQuotaExhausted
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		// Caller cancellation counts as a timeout failure
		return models.KindTimeout
	}

	var ce *CallError
	if errors.As(err, &ce) {
		switch {
		case ce.StatusCode >= 500:
			return models.KindUpstreamServer
		case ce.StatusCode >= 400:
			return models.KindUpstreamClient
		}
	}

	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) || errors.Is(err, ErrMalformedResponse) {
		return models.KindMalformed
	}
	return models.KindUnknown
}

// ErrMalformedResponse marks a response the caller could not decode.
// Wrap decode failures with this so they classify correctly.
var ErrMalformedResponse = errors.New("malformed response")

// StatusOf extracts the HTTP status carried by the error chain, or 0
func StatusOf(err error) int {
	var ce *CallError
	if errors.As(err, &ce) {
		return ce.StatusCode
	}
	return 0
}
