package callback

import "fmt"

// MissingCodeError is reported to the browser when the redirect arrives
// without an authorization code.
type MissingCodeError struct {
	// OAuthError is the error query parameter sent by the authorization
	// server, if any.
	OAuthError       string
	ErrorDescription string
}

func (e *MissingCodeError) Error() string {
	if e.OAuthError != "" {
		return fmt.Sprintf("no authorization code received: %s", e.OAuthError)
	}
	return "no authorization code received"
}
