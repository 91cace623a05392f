package models

import (
	"errors"
	"fmt"
)

// Error codes shared by the render pipeline, the CLI and the HTTP API.
const (
	// Raised synchronously by setters.
	ErrCodeInvalidInput = "INVALID_INPUT"

	// Raised by Start when the job is missing required fields.
	ErrCodeConfiguration = "CONFIGURATION_ERROR"

	// Per-route failures. These are recorded in the report and never
	// returned from Start.
	ErrCodeTimeout      = "SCRAPE_TIMEOUT"
	ErrCodeNavigation   = "NAVIGATION_FAILED"
	ErrCodeSelectorWait = "SELECTOR_WAIT_FAILED"
	ErrCodeExtraction   = "CONTENT_EXTRACTION_FAILED"
	ErrCodeWrite        = "WRITE_FAILED"

	// The browser could not be launched or stopped answering. Fatal.
	ErrCodeBrowserCrash = "BROWSER_CRASH"

	// API-only codes.
	ErrCodeRateLimited  = "RATE_LIMITED"
	ErrCodeUnauthorized = "UNAUTHORIZED"
	ErrCodeNotFound     = "NOT_FOUND"
	ErrCodeQueueFull    = "QUEUE_FULL"
	ErrCodeInternal     = "INTERNAL_ERROR"
)

// ErrorDetail is the structured error in reports and API responses.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// PrerenderError is the internal error type carrying an error code.
// It implements the error interface and supports error wrapping via Unwrap.
type PrerenderError struct {
	Code    string
	Message string
	Err     error // wrapped original error
}

func (e *PrerenderError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *PrerenderError) Unwrap() error {
	return e.Err
}

// NewPrerenderError creates a new PrerenderError.
func NewPrerenderError(code, message string, err error) *PrerenderError {
	return &PrerenderError{Code: code, Message: message, Err: err}
}

// Invalid builds an INVALID_INPUT error with a formatted message.
func Invalid(format string, args ...any) *PrerenderError {
	return NewPrerenderError(ErrCodeInvalidInput, fmt.Sprintf(format, args...), nil)
}

// ToDetail converts an internal error to an API-facing ErrorDetail.
func (e *PrerenderError) ToDetail() *ErrorDetail {
	return &ErrorDetail{Code: e.Code, Message: e.Message}
}

// CodeOf returns the code of the first PrerenderError in err's chain,
// or "" if there is none.
func CodeOf(err error) string {
	var pe *PrerenderError
	if errors.As(err, &pe) {
		return pe.Code
	}
	return ""
}

// IsValidation reports whether err was raised by a setter.
func IsValidation(err error) bool { return CodeOf(err) == ErrCodeInvalidInput }

// IsConfiguration reports whether err is a pre-flight failure of Start.
func IsConfiguration(err error) bool { return CodeOf(err) == ErrCodeConfiguration }

// IsResource reports whether err means the browser session itself failed.
func IsResource(err error) bool { return CodeOf(err) == ErrCodeBrowserCrash }

// DetailOf flattens any error into an ErrorDetail, defaulting to
// INTERNAL_ERROR for errors that carry no code.
func DetailOf(err error) *ErrorDetail {
	if err == nil {
		return nil
	}
	var pe *PrerenderError
	if errors.As(err, &pe) {
		return pe.ToDetail()
	}
	return &ErrorDetail{Code: ErrCodeInternal, Message: err.Error()}
}
