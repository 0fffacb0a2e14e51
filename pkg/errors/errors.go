package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"time"
)

// ErrorType represents the type of error
type ErrorType string

const (
	// ErrorTypeNetwork represents transport failures and 5xx responses
	ErrorTypeNetwork ErrorType = "network"
	// ErrorTypeParsing represents HTML or JSON parsing errors
	ErrorTypeParsing ErrorType = "parsing"
	// ErrorTypeRateLimit represents rate limiting errors
	ErrorTypeRateLimit ErrorType = "rate_limit"
	// ErrorTypeAuth represents rejected credentials
	ErrorTypeAuth ErrorType = "auth"
	// ErrorTypeValidation represents requests the remote side refused as invalid
	ErrorTypeValidation ErrorType = "validation"
	// ErrorTypeCache represents cache-related errors
	ErrorTypeCache ErrorType = "cache"
	// ErrorTypePublisher represents publisher-related errors
	ErrorTypePublisher ErrorType = "publisher"
	// ErrorTypeConfiguration represents configuration errors
	ErrorTypeConfiguration ErrorType = "configuration"
)

// PipelineError is an error raised by one stage of the sync pipeline
type PipelineError struct {
	Type       ErrorType
	Source     string
	Message    string
	Err        error
	Status     int
	RetryAfter time.Duration
	Time       time.Time
}

// Error implements the error interface
func (e *PipelineError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %s - %v", e.Type, e.Source, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Type, e.Source, e.Message)
}

// Unwrap returns the underlying error
func (e *PipelineError) Unwrap() error {
	return e.Err
}

// IsRetryable returns true if the error is retryable
func (e *PipelineError) IsRetryable() bool {
	switch e.Type {
	case ErrorTypeNetwork, ErrorTypeRateLimit:
		return true
	default:
		return false
	}
}

// IsFatal returns true if no further remote call in the same run can succeed
func (e *PipelineError) IsFatal() bool {
	return e.Type == ErrorTypeAuth || e.Type == ErrorTypeConfiguration
}

// New creates a new PipelineError
func New(errType ErrorType, source, message string, err error) *PipelineError {
	return &PipelineError{
		Type:    errType,
		Source:  source,
		Message: message,
		Err:     err,
		Time:    time.Now(),
	}
}

// NewNetwork creates a new network error
func NewNetwork(source, message string, err error) *PipelineError {
	return New(ErrorTypeNetwork, source, message, err)
}

// NewParsing creates a new parsing error
func NewParsing(source, message string, err error) *PipelineError {
	return New(ErrorTypeParsing, source, message, err)
}

// NewRateLimit creates a new rate limit error
func NewRateLimit(source string, duration time.Duration) *PipelineError {
	e := New(ErrorTypeRateLimit, source, fmt.Sprintf("rate limited; retry after %v", duration), nil)
	e.Status = http.StatusTooManyRequests
	e.RetryAfter = duration
	return e
}

// NewAuth creates a new authentication error
func NewAuth(source, message string) *PipelineError {
	return New(ErrorTypeAuth, source, message, nil)
}

// NewCache creates a new cache error
func NewCache(source, message string, err error) *PipelineError {
	return New(ErrorTypeCache, source, message, err)
}

// NewPublisher creates a new publisher error
func NewPublisher(source, message string, err error) *PipelineError {
	return New(ErrorTypePublisher, source, message, err)
}

// NewValidation creates a new validation error
func NewValidation(source, message string) *PipelineError {
	return New(ErrorTypeValidation, source, message, nil)
}

// NewConfiguration creates a new configuration error
func NewConfiguration(message string, err error) *PipelineError {
	return New(ErrorTypeConfiguration, "", message, err)
}

// FromStatus classifies a non-2xx HTTP response.
// 429 and 430 are rate limits, 401/403 are auth failures,
// 5xx are network errors and any other 4xx is a validation error.
func FromStatus(source string, status int, message string, retryAfter time.Duration) *PipelineError {
	var e *PipelineError
	switch {
	case status == http.StatusTooManyRequests || status == 430:
		e = NewRateLimit(source, retryAfter)
		e.Message = fmt.Sprintf("rate limited (%d); retry after %v: %s", status, retryAfter, message)
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		e = NewAuth(source, message)
	case status >= 500:
		e = NewNetwork(source, message, nil)
	default:
		e = NewValidation(source, message)
	}
	e.Status = status
	return e
}

// As returns the PipelineError wrapped in err, if any
func As(err error) (*PipelineError, bool) {
	var pe *PipelineError
	if stderrors.As(err, &pe) {
		return pe, true
	}
	return nil, false
}

// IsRetryable reports whether err carries a retryable PipelineError
func IsRetryable(err error) bool {
	pe, ok := As(err)
	return ok && pe.IsRetryable()
}

// IsRateLimit reports whether err carries a rate limit PipelineError
func IsRateLimit(err error) bool {
	pe, ok := As(err)
	return ok && pe.Type == ErrorTypeRateLimit
}

// IsFatal reports whether err carries a run-ending PipelineError
func IsFatal(err error) bool {
	pe, ok := As(err)
	return ok && pe.IsFatal()
}
