package remote

import "fmt"

// ConnectionError wraps a failure to connect that is not an authorization
// problem. It is not retried.
type ConnectionError struct {
	URL string
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("failed to connect to %s: %v", e.URL, e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// AuthorizationError wraps a failure during the re-authorization cycle.
type AuthorizationError struct {
	// Stage names the step that failed: "wait", "finish" or "reconnect".
	Stage string
	Err   error
}

func (e *AuthorizationError) Error() string {
	return fmt.Sprintf("authorization failed during %s: %v", e.Stage, e.Err)
}

func (e *AuthorizationError) Unwrap() error {
	return e.Err
}
