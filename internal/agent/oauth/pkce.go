package oauth

import (
	"fmt"

	"github.com/mark3labs/mcp-go/client/transport"
)

// PKCEChallenge is a PKCE verifier and its S256 challenge.
type PKCEChallenge struct {
	// CodeVerifier stays in this process and is never sent to the browser.
	CodeVerifier        string
	CodeChallenge       string
	CodeChallengeMethod string
}

// GeneratePKCE generates a new PKCE code verifier and challenge.
func GeneratePKCE() (*PKCEChallenge, error) {
	verifier, err := transport.GenerateCodeVerifier()
	if err != nil {
		return nil, fmt.Errorf("failed to generate code verifier: %w", err)
	}
	return &PKCEChallenge{
		CodeVerifier:        verifier,
		CodeChallenge:       transport.GenerateCodeChallenge(verifier),
		CodeChallengeMethod: "S256",
	}, nil
}

// GenerateState generates a random state parameter for OAuth.
func GenerateState() (string, error) {
	state, err := transport.GenerateState()
	if err != nil {
		return "", fmt.Errorf("failed to generate state: %w", err)
	}
	return state, nil
}
