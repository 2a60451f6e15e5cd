package transport

import (
	"errors"
	"fmt"
	"strings"

	mcptransport "github.com/mark3labs/mcp-go/client/transport"
)

// UnauthorizedError is returned by Remote.Start when the server requires
// authorization that has not been granted yet. When an Authorizer is
// configured the authorization flow has already been started.
type UnauthorizedError struct {
	Err error
}

func (e *UnauthorizedError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("Unauthorized: %v", e.Err)
	}
	return "Unauthorized"
}

func (e *UnauthorizedError) Unwrap() error {
	return e.Err
}

// IsUnauthorized reports whether err signals missing authorization. The
// typed checks cover this package and mcp-go; the text check covers
// libraries that only report the condition in the message.
func IsUnauthorized(err error) bool {
	if err == nil {
		return false
	}
	var unauthorized *UnauthorizedError
	if errors.As(err, &unauthorized) {
		return true
	}
	var required *mcptransport.OAuthAuthorizationRequiredError
	if errors.As(err, &required) || errors.Is(err, mcptransport.ErrOAuthAuthorizationRequired) {
		return true
	}
	return strings.Contains(err.Error(), "Unauthorized")
}
