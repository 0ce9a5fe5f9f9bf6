package cumulo

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// APIError represents an application-level error returned by the Cumulo API.
// The service reports these inside an error envelope, sometimes with HTTP
// 200 depending on the action, so Code rather than StatusCode is the
// authoritative classification input.
type APIError struct {
	Code       string `json:"code"                  yaml:"code"`
	Message    string `json:"message"               yaml:"message"`
	RequestID  string `json:"request_id,omitempty"  yaml:"request_id,omitempty"`
	StatusCode int    `json:"status_code,omitempty" yaml:"status_code,omitempty"`
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.RequestID != "" {
		return fmt.Sprintf("%s: %s (request id: %s)", e.Code, e.Message, e.RequestID)
	}

	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// RequestError wraps the final failure of an API call, carrying how many
// attempts the transport made before giving up.
type RequestError struct {
	Action   string
	Attempts int
	Err      error
}

// Error implements the error interface.
func (e *RequestError) Error() string {
	return fmt.Sprintf("%s failed after %d attempt(s): %v", e.Action, e.Attempts, e.Err)
}

// Unwrap returns the underlying classified error.
func (e *RequestError) Unwrap() error {
	return e.Err
}

// MalformedResponseError reports a response body that could not be decoded.
// Never retried: resending the same parameters will not fix corrupted
// framing.
type MalformedResponseError struct {
	Snippet string
	Err     error
}

// Error implements the error interface.
func (e *MalformedResponseError) Error() string {
	if e.Snippet != "" {
		return fmt.Sprintf("malformed response body: %v (body starts %q)", e.Err, e.Snippet)
	}

	return fmt.Sprintf("malformed response body: %v", e.Err)
}

// Unwrap returns the underlying decode error.
func (e *MalformedResponseError) Unwrap() error {
	return e.Err
}

// Common remote error codes.
const (
	ErrorCodeThrottling            = "Throttling"
	ErrorCodeThrottlingException   = "ThrottlingException"
	ErrorCodeRequestThrottled      = "RequestThrottled"
	ErrorCodeRequestLimitExceeded  = "RequestLimitExceeded"
	ErrorCodeTooManyRequests       = "TooManyRequestsException"
	ErrorCodeServiceUnavailable    = "ServiceUnavailable"
	ErrorCodeInternalFailure       = "InternalFailure"
	ErrorCodeRequestExpired        = "RequestExpired"
	ErrorCodeAccessDenied          = "AccessDenied"
	ErrorCodeAuthFailure           = "AuthFailure"
	ErrorCodeUnauthorizedOperation = "UnauthorizedOperation"
	ErrorCodeInvalidParameterValue = "InvalidParameterValue"
	ErrorCodeMissingParameter      = "MissingParameter"
	ErrorCodeValidationError       = "ValidationError"
)

// retryableCodes lists the remote error codes policy treats as transient.
// RequestExpired is retryable because every retry is re-signed with a fresh
// timestamp.
var retryableCodes = map[string]bool{
	ErrorCodeThrottling:           true,
	ErrorCodeThrottlingException:  true,
	ErrorCodeRequestThrottled:     true,
	ErrorCodeRequestLimitExceeded: true,
	ErrorCodeTooManyRequests:      true,
	ErrorCodeServiceUnavailable:   true,
	ErrorCodeInternalFailure:      true,
	ErrorCodeRequestExpired:       true,
}

// throttlingCodes is the rate-limiting subset of retryableCodes.
var throttlingCodes = map[string]bool{
	ErrorCodeThrottling:           true,
	ErrorCodeThrottlingException:  true,
	ErrorCodeRequestThrottled:     true,
	ErrorCodeRequestLimitExceeded: true,
	ErrorCodeTooManyRequests:      true,
}

// Common static errors that can be wrapped with context.
var (
	ErrCredentialsRequired   = errors.New("credentials are required")
	ErrInvalidCredentials    = errors.New("invalid credentials")
	ErrConfigRequired        = errors.New("config is required")
	ErrEndpointRequired      = errors.New("endpoint or region is required")
	ErrUnsupportedProtocol   = errors.New("unsupported protocol")
	ErrUnknownService        = errors.New("unknown service")
	ErrNoMoreItems           = errors.New("no more items")
	ErrCollectionExhausted   = errors.New("collection exhausted; Reset before re-enumerating")
	ErrAttributeNotFound     = errors.New("attribute not found")
	ErrResourceNotFound      = errors.New("resource not found")
	ErrCircuitBreakerOpen    = errors.New("circuit breaker is open")
	ErrRateLimitExceeded     = errors.New("client-side rate limit exceeded")
	ErrBatchExecutorStopped  = errors.New("batch executor is stopped")
	ErrActionRequired        = errors.New("action is required")
	ErrIdentifierRequired    = errors.New("resource identifier is required")
	ErrUserNameRequired      = errors.New("user name is required")
	ErrEmptyResponse         = errors.New("empty response body")
	ErrUnexpectedContentType = errors.New("unexpected response content type")
)

// ErrorCode extracts the remote error code from err, or "" when err does not
// carry one.
func ErrorCode(err error) string {
	apiErr := &APIError{}
	if errors.As(err, &apiErr) {
		return apiErr.Code
	}

	return ""
}

// RequestIDFromError extracts the remote request ID from err, or "".
func RequestIDFromError(err error) string {
	apiErr := &APIError{}
	if errors.As(err, &apiErr) {
		return apiErr.RequestID
	}

	return ""
}

// IsThrottling checks if the error reports rate limiting by the service.
func IsThrottling(err error) bool {
	apiErr := &APIError{}
	if errors.As(err, &apiErr) {
		return throttlingCodes[apiErr.Code] || apiErr.StatusCode == http.StatusTooManyRequests
	}

	return false
}

// IsRetryable checks if the error is one the retry policy may retry:
// transient remote codes, HTTP 5xx, or throttling. Credential and malformed
// response failures are never retryable.
func IsRetryable(err error) bool {
	if errors.Is(err, ErrCredentialsRequired) || errors.Is(err, ErrInvalidCredentials) {
		return false
	}

	malformed := &MalformedResponseError{}
	if errors.As(err, &malformed) {
		return false
	}

	apiErr := &APIError{}
	if errors.As(err, &apiErr) {
		if retryableCodes[apiErr.Code] {
			return true
		}

		return apiErr.StatusCode >= http.StatusInternalServerError ||
			apiErr.StatusCode == http.StatusTooManyRequests
	}

	return false
}

// IsNotFound checks if the error reports a missing resource. The service
// uses per-resource codes with a ".NotFound" suffix (e.g.
// "InvalidVolume.NotFound").
func IsNotFound(err error) bool {
	apiErr := &APIError{}
	if errors.As(err, &apiErr) {
		if apiErr.StatusCode == http.StatusNotFound {
			return true
		}

		return apiErr.Code == "NotFound" || strings.HasSuffix(apiErr.Code, ".NotFound")
	}

	return false
}

// IsAccessDenied checks if the error reports missing authorization.
func IsAccessDenied(err error) bool {
	apiErr := &APIError{}
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case ErrorCodeAccessDenied, ErrorCodeAuthFailure, ErrorCodeUnauthorizedOperation:
			return true
		}

		return apiErr.StatusCode == http.StatusForbidden
	}

	return false
}

// IsCredentials checks if the error reports absent or malformed signing
// material.
func IsCredentials(err error) bool {
	return errors.Is(err, ErrCredentialsRequired) || errors.Is(err, ErrInvalidCredentials)
}
