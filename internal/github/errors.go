package github

import (
	"errors"
	"fmt"
	"strings"
)

// ErrAuthentication wraps failures to obtain credentials, such as a rejected
// installation token exchange. It never wraps an *APIError.
var ErrAuthentication = errors.New("github: authentication failed")

// APIError is a non-2xx response from the GitHub REST API.
type APIError struct {
	StatusCode       int
	Message          string
	DocumentationURL string
	// Errors holds field-level failures, present on 422 responses.
	Errors []ValidationError
}

type ValidationError struct {
	Resource string `json:"resource"`
	Code     string `json:"code"`
	Field    string `json:"field"`
	Message  string `json:"message"`
}

func (err *APIError) Error() string {
	var builder strings.Builder
	fmt.Fprintf(&builder, "github: HTTP %d: %s", err.StatusCode, err.Message)
	for _, validationError := range err.Errors {
		detail := validationError.Message
		if detail == "" {
			detail = validationError.Code
		}
		fmt.Fprintf(&builder, "; %s.%s: %s", validationError.Resource, validationError.Field, detail)
	}
	return builder.String()
}

// IsNotFound reports whether err is a 404 Not Found response.
func IsNotFound(err error) bool {
	return statusIs(err, 404)
}

// IsConflict reports whether err is a 409 Conflict response, which the
// contents API returns when the supplied sha is stale.
func IsConflict(err error) bool {
	return statusIs(err, 409)
}

// IsValidationFailed reports whether err is a 422 response.
func IsValidationFailed(err error) bool {
	return statusIs(err, 422)
}

func statusIs(err error, code int) bool {
	var apiError *APIError
	return errors.As(err, &apiError) && apiError.StatusCode == code
}
