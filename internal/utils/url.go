package utils

import (
	"fmt"
	"net/url"
	"strings"
)

// ValidationError is a configuration value that failed validation
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// ValidateHTTPURL checks that raw is an absolute http(s) URL with a host
func ValidateHTTPURL(field, raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return &ValidationError{Field: field, Message: err.Error()}
	}

	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return &ValidationError{Field: field, Message: fmt.Sprintf("unsupported scheme %q", u.Scheme)}
	}
	if u.Host == "" {
		return &ValidationError{Field: field, Message: "missing host"}
	}
	return nil
}
