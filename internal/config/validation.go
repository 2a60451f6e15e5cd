package config

import (
	"fmt"
	"net/url"
	"strings"

	"mcp-remote/internal/callback"
)

// ValidationError represents a validation error with context
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

// Error implements the error interface
func (ve ValidationError) Error() string {
	if ve.Field == "" {
		return ve.Message
	}
	return fmt.Sprintf("field '%s': %s", ve.Field, ve.Message)
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface for multiple validation errors
func (ve ValidationErrors) Error() string {
	if len(ve) == 0 {
		return "no validation errors"
	}
	if len(ve) == 1 {
		return ve[0].Error()
	}

	var messages []string
	for _, err := range ve {
		messages = append(messages, err.Error())
	}
	return fmt.Sprintf("validation failed: %s", strings.Join(messages, "; "))
}

// HasErrors returns true if there are any validation errors
func (ve ValidationErrors) HasErrors() bool {
	return len(ve) > 0
}

// Add adds a new validation error
func (ve *ValidationErrors) Add(field, message string, value ...interface{}) {
	var val interface{}
	if len(value) > 0 {
		val = value[0]
	}
	*ve = append(*ve, ValidationError{
		Field:   field,
		Value:   val,
		Message: message,
	})
}

// ValidateOneOf checks if a value is in a list of allowed values
func ValidateOneOf(field, value string, allowed []string) error {
	for _, allowedValue := range allowed {
		if value == allowedValue {
			return nil
		}
	}
	return ValidationError{
		Field:   field,
		Value:   value,
		Message: fmt.Sprintf("must be one of: %s", strings.Join(allowed, ", ")),
	}
}

// ValidateServerURL accepts https URLs, and plain http only for
// localhost and 127.0.0.1.
func ValidateServerURL(raw string) error {
	if strings.TrimSpace(raw) == "" {
		return ValidationError{Field: "serverURL", Value: raw, Message: "is required"}
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return ValidationError{Field: "serverURL", Value: raw, Message: "is not a valid URL"}
	}
	switch u.Scheme {
	case "https":
		return nil
	case "http":
		if h := u.Hostname(); h == "localhost" || h == "127.0.0.1" {
			return nil
		}
		return ValidationError{Field: "serverURL", Value: raw, Message: "must use https unless the host is localhost or 127.0.0.1"}
	default:
		return ValidationError{Field: "serverURL", Value: raw, Message: "must use https"}
	}
}

// Validate checks c and returns ValidationErrors when anything is wrong.
func (c Config) Validate() error {
	var errs ValidationErrors

	if err := ValidateServerURL(c.ServerURL); err != nil {
		errs = append(errs, err.(ValidationError))
	}
	if err := ValidateOneOf("transport", c.Transport, []string{TransportSSE, TransportStreamableHTTP}); err != nil {
		errs = append(errs, err.(ValidationError))
	}
	if c.CallbackPort < 0 || c.CallbackPort > 65535 {
		errs.Add("callbackPort", "must be between 0 and 65535", c.CallbackPort)
	}
	switch {
	case !strings.HasPrefix(c.CallbackPath, "/"):
		errs.Add("callbackPath", "must start with /", c.CallbackPath)
	case c.CallbackPath == callback.WaitPath:
		errs.Add("callbackPath", "is reserved for instance coordination", c.CallbackPath)
	case strings.ContainsAny(c.CallbackPath, "{}?# \t\r\n"):
		errs.Add("callbackPath", "must not contain braces, '?', '#' or whitespace", c.CallbackPath)
	}
	if c.LongPollTimeout < 0 {
		errs.Add("longPollTimeout", "must not be negative", c.LongPollTimeout)
	}

	if errs.HasErrors() {
		return errs
	}
	return nil
}
