package smartsheet

import (
	"errors"
	"fmt"
)

// APIError represents a non-2xx response from the sheet service.
type APIError struct {
	Method     string
	SheetID    int64
	StatusCode int
	Body       string
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return fmt.Sprintf("smartsheet %s sheet %d failed with status %d: %s",
		e.Method, e.SheetID, e.StatusCode, e.Body)
}

// IsRateLimited reports whether err is an APIError for HTTP 429.
func IsRateLimited(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == 429
}

// StatusOf returns the HTTP status carried by err, or 0 when err is not an
// APIError.
func StatusOf(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}
