// Package core provides the shared types, interfaces and error taxonomy of the
// advisory service.
package core

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/tidwall/gjson"
)

// ErrorType represents the type of error that occurred
type ErrorType string

const (
	// ErrorTypeQuotaPaused indicates the quota guard refused the call before any network attempt
	ErrorTypeQuotaPaused ErrorType = "quota_paused"
	// ErrorTypeQuotaExhausted indicates the upstream signaled rate limiting and the guard was tripped
	ErrorTypeQuotaExhausted ErrorType = "quota_exhausted"
	// ErrorTypeUpstream indicates any other upstream failure (network, 5xx, malformed body)
	ErrorTypeUpstream ErrorType = "upstream_error"
	// ErrorTypeCacheCorrupt indicates a cached value failed to parse
	ErrorTypeCacheCorrupt ErrorType = "cache_corrupt"
	// ErrorTypeRateLimit indicates a rate limit response from the provider (429)
	ErrorTypeRateLimit ErrorType = "rate_limit_error"
	// ErrorTypeInvalidRequest indicates a client error (4xx)
	ErrorTypeInvalidRequest ErrorType = "invalid_request_error"
	// ErrorTypeAuthentication indicates an authentication error (401/403)
	ErrorTypeAuthentication ErrorType = "authentication_error"
)

// StatusResourceExhausted is the status string Google APIs use for quota errors.
const StatusResourceExhausted = "RESOURCE_EXHAUSTED"

// ServiceError is the base error type for all advisory errors
type ServiceError struct {
	Type       ErrorType `json:"type"`
	Message    string    `json:"message"`
	StatusCode int       `json:"status_code"`
	Provider   string    `json:"provider,omitempty"`
	// Code is the numeric error code reported inside the provider body, if any
	Code int `json:"code,omitempty"`
	// Status is the symbolic status reported inside the provider body (e.g. RESOURCE_EXHAUSTED)
	Status string `json:"status,omitempty"`
	// Original error for debugging (not exposed to clients)
	Err error `json:"-"`
}

// Sentinels for errors.Is. Matching is by Type only.
var (
	ErrQuotaPaused    = &ServiceError{Type: ErrorTypeQuotaPaused}
	ErrQuotaExhausted = &ServiceError{Type: ErrorTypeQuotaExhausted}
	ErrUpstream       = &ServiceError{Type: ErrorTypeUpstream}
	ErrCacheCorrupt   = &ServiceError{Type: ErrorTypeCacheCorrupt}
	ErrRateLimit      = &ServiceError{Type: ErrorTypeRateLimit}
)

// Error implements the error interface
func (e *ServiceError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = string(e.Type)
	}
	if e.Provider != "" {
		return fmt.Sprintf("[%s] %s: %s", e.Provider, e.Type, msg)
	}
	return fmt.Sprintf("%s: %s", e.Type, msg)
}

// Unwrap implements the error unwrapping interface
func (e *ServiceError) Unwrap() error {
	return e.Err
}

// Is reports whether target is a ServiceError of the same type.
func (e *ServiceError) Is(target error) bool {
	t, ok := target.(*ServiceError)
	if !ok {
		return false
	}
	return e.Type == t.Type
}

// HTTPStatusCode returns the appropriate HTTP status code for this error
func (e *ServiceError) HTTPStatusCode() int {
	if e.StatusCode != 0 {
		return e.StatusCode
	}
	switch e.Type {
	case ErrorTypeRateLimit, ErrorTypeQuotaExhausted:
		return http.StatusTooManyRequests
	case ErrorTypeQuotaPaused:
		return http.StatusServiceUnavailable
	case ErrorTypeInvalidRequest:
		return http.StatusBadRequest
	case ErrorTypeAuthentication:
		return http.StatusUnauthorized
	case ErrorTypeUpstream:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// ToJSON converts the error to a JSON-compatible map
func (e *ServiceError) ToJSON() map[string]interface{} {
	return map[string]interface{}{
		"error": map[string]interface{}{
			"type":    e.Type,
			"message": e.Message,
		},
	}
}

// NewQuotaPausedError is returned when the guard is still cooling down.
func NewQuotaPausedError() *ServiceError {
	return &ServiceError{
		Type:    ErrorTypeQuotaPaused,
		Message: "upstream calls paused while quota recovers",
	}
}

// NewQuotaExhaustedError wraps the rate-limit error that tripped the guard.
func NewQuotaExhaustedError(err error) *ServiceError {
	return &ServiceError{
		Type:       ErrorTypeQuotaExhausted,
		Message:    "upstream quota exhausted",
		StatusCode: http.StatusTooManyRequests,
		Err:        err,
	}
}

// NewUpstreamError creates a new upstream failure
func NewUpstreamError(provider string, message string, err error) *ServiceError {
	return &ServiceError{
		Type:       ErrorTypeUpstream,
		Message:    message,
		StatusCode: http.StatusBadGateway,
		Provider:   provider,
		Err:        err,
	}
}

// NewCacheCorruptError reports an unreadable cache entry.
func NewCacheCorruptError(key string, err error) *ServiceError {
	return &ServiceError{
		Type:    ErrorTypeCacheCorrupt,
		Message: "corrupt cache entry " + key,
		Err:     err,
	}
}

// NewRateLimitError creates a new rate limit error (429)
func NewRateLimitError(provider string, message string) *ServiceError {
	return &ServiceError{
		Type:       ErrorTypeRateLimit,
		Message:    message,
		StatusCode: http.StatusTooManyRequests,
		Provider:   provider,
	}
}

// NewInvalidRequestError creates a new invalid request error (400)
func NewInvalidRequestError(message string, err error) *ServiceError {
	return &ServiceError{
		Type:       ErrorTypeInvalidRequest,
		Message:    message,
		StatusCode: http.StatusBadRequest,
		Err:        err,
	}
}

// NewAuthenticationError creates a new authentication error (401)
func NewAuthenticationError(provider string, message string) *ServiceError {
	return &ServiceError{
		Type:       ErrorTypeAuthentication,
		Message:    message,
		StatusCode: http.StatusUnauthorized,
		Provider:   provider,
	}
}

// ParseProviderError parses an error response from a provider and returns an appropriate ServiceError.
//
// Google APIs report errors as {"error":{"code":429,"message":"...","status":"RESOURCE_EXHAUSTED"}};
// OpenAI-compatible endpoints use a string code instead. Both shapes are accepted.
func ParseProviderError(provider string, statusCode int, body []byte, originalErr error) *ServiceError {
	message := strings.TrimSpace(string(body))
	var (
		code   int
		status string
	)
	if gjson.ValidBytes(body) {
		parsed := gjson.ParseBytes(body)
		if m := parsed.Get("error.message"); m.Exists() && m.String() != "" {
			message = m.String()
		}
		if c := parsed.Get("error.code"); c.Type == gjson.Number {
			code = int(c.Int())
		}
		status = parsed.Get("error.status").String()
	}

	var svcErr *ServiceError
	switch {
	case statusCode == http.StatusTooManyRequests || code == http.StatusTooManyRequests || status == StatusResourceExhausted:
		svcErr = NewRateLimitError(provider, message)
	case statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden:
		svcErr = NewAuthenticationError(provider, message)
	case statusCode >= 400 && statusCode < 500:
		svcErr = NewInvalidRequestError(message, originalErr)
		svcErr.StatusCode = statusCode
		svcErr.Provider = provider
	default:
		svcErr = NewUpstreamError(provider, message, originalErr)
	}
	svcErr.Code = code
	svcErr.Status = status
	return svcErr
}
