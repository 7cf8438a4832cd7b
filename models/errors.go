package models

import (
	"errors"
	"fmt"
)

// Error codes used in API responses and internal error handling.
const (
	ErrCodeTimeout      = "SCRAPE_TIMEOUT"
	ErrCodeNavigation   = "NAVIGATION_FAILED"
	ErrCodeBrowserCrash = "BROWSER_CRASH"
	ErrCodeExtraction   = "EXTRACTION_FAILED"
	ErrCodeInvalidInput = "INVALID_INPUT"
	ErrCodeMethod       = "METHOD_NOT_ALLOWED"
	ErrCodeUnauthorized = "UNAUTHORIZED"
	ErrCodeBusy         = "SERVICE_BUSY"
	ErrCodeInternal     = "INTERNAL_ERROR"
)

// ScrapeError is the internal error type carrying an error code.
// It implements the error interface and supports error wrapping via Unwrap.
type ScrapeError struct {
	Code    string
	Message string
	Err     error // wrapped original error
}

func (e *ScrapeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *ScrapeError) Unwrap() error {
	return e.Err
}

// NewScrapeError creates a new ScrapeError.
func NewScrapeError(code, message string, err error) *ScrapeError {
	return &ScrapeError{Code: code, Message: message, Err: err}
}

// ToResponse converts an internal error to the API-facing error body.
func (e *ScrapeError) ToResponse() ErrorResponse {
	msg := e.Message
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return ErrorResponse{Error: msg, Code: e.Code}
}

// IsRenderFailure reports whether err belongs to the render failure family:
// the browser could not be launched, the navigation failed, or the page never
// settled before the hard ceiling.
func IsRenderFailure(err error) bool {
	var se *ScrapeError
	if !errors.As(err, &se) {
		return false
	}
	switch se.Code {
	case ErrCodeTimeout, ErrCodeNavigation, ErrCodeBrowserCrash:
		return true
	}
	return false
}
