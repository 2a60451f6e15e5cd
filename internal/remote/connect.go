// Package remote connects to the remote MCP server, running the OAuth
// authorization flow when the server rejects the first attempt.
package remote

import (
	"context"
	"fmt"
	"net/http"

	"mcp-remote/internal/headers"
	"mcp-remote/internal/transport"
	"mcp-remote/pkg/logging"
)

// Connection is a remote transport that can complete a pending
// authorization.
type Connection interface {
	transport.Transport
	FinishAuth(ctx context.Context, code string) error
}

// Dialer creates a new, unstarted connection with the given headers.
type Dialer func(hdrs map[string]string) (Connection, error)

// Config holds the inputs of Connect.
type Config struct {
	ServerURL     string
	TransportType transport.Type
	Authorizer    transport.Authorizer

	// WaitForAuthCode blocks until the authorization code is available.
	WaitForAuthCode func(ctx context.Context) (string, error)
	// SkipBrowserAuth is set when another instance owns the browser flow.
	SkipBrowserAuth bool

	// Headers is the raw --header value.
	Headers string
	Cipher  *headers.Cipher

	HTTPClient *http.Client

	// Dial overrides how connections are created.
	Dial Dialer
}

// Connect starts a connection to the remote server.
//
// When the first attempt fails as unauthorized, Connect waits for the
// authorization code, completes the authorization on the failed
// connection, discards it, and starts a new one. Any other failure is
// returned as a *ConnectionError.
func Connect(ctx context.Context, cfg Config) (Connection, error) {
	hdrs, err := headers.Parse(cfg.Headers, headers.DefaultEncryptedKeys, headers.DefaultSecretKey, cfg.Cipher)
	if err != nil {
		return nil, fmt.Errorf("invalid headers: %w", err)
	}
	if len(hdrs) > 0 {
		logging.Debug("Remote", "Sending custom headers: %v", headers.Names(hdrs))
	}

	dial := cfg.Dial
	if dial == nil {
		dial = defaultDialer(cfg)
	}

	conn, err := dial(hdrs)
	if err != nil {
		return nil, &ConnectionError{URL: cfg.ServerURL, Err: err}
	}

	logging.Info("Remote", "Connecting to remote server %s", cfg.ServerURL)
	err = conn.Start(ctx)
	if err == nil {
		logging.Info("Remote", "Connected to remote server %s", cfg.ServerURL)
		return conn, nil
	}

	if !transport.IsUnauthorized(err) {
		_ = conn.Close()
		logging.Error("Remote", err, "Connection failed")
		return nil, &ConnectionError{URL: cfg.ServerURL, Err: err}
	}

	if cfg.SkipBrowserAuth {
		logging.Info("Remote", "Authentication required, but skipping browser auth and using shared auth")
	} else {
		logging.Info("Remote", "Authentication required, waiting for authorization code")
	}

	return reauthorize(ctx, cfg, dial, hdrs, conn)
}

func reauthorize(ctx context.Context, cfg Config, dial Dialer, hdrs map[string]string, failed Connection) (Connection, error) {
	defer func() { _ = failed.Close() }()

	if cfg.WaitForAuthCode == nil {
		return nil, &AuthorizationError{Stage: "wait", Err: fmt.Errorf("no authorization code source configured")}
	}
	code, err := cfg.WaitForAuthCode(ctx)
	if err != nil {
		return nil, &AuthorizationError{Stage: "wait", Err: err}
	}

	logging.Info("Remote", "Completing authorization")
	if err := failed.FinishAuth(ctx, code); err != nil {
		return nil, &AuthorizationError{Stage: "finish", Err: err}
	}

	conn, err := dial(hdrs)
	if err != nil {
		return nil, &AuthorizationError{Stage: "reconnect", Err: err}
	}
	if err := conn.Start(ctx); err != nil {
		_ = conn.Close()
		return nil, &AuthorizationError{Stage: "reconnect", Err: err}
	}

	logging.Info("Remote", "Connected to remote server %s after authorization", cfg.ServerURL)
	return conn, nil
}

func defaultDialer(cfg Config) Dialer {
	return func(hdrs map[string]string) (Connection, error) {
		r, err := transport.NewRemote(transport.RemoteOptions{
			URL:        cfg.ServerURL,
			Type:       cfg.TransportType,
			Headers:    hdrs,
			Authorizer: cfg.Authorizer,
			HTTPClient: cfg.HTTPClient,
		})
		if err != nil {
			return nil, err
		}
		return r, nil
	}
}
