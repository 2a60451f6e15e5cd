package config

import (
	"os"
	"time"

	"mcp-remote/internal/agent/oauth"
)

const (
	// DefaultCallbackPort is tried first for the OAuth callback server.
	DefaultCallbackPort = 3334

	// DefaultCallbackPath is the default path for OAuth callbacks.
	DefaultCallbackPath = "/oauth/callback"

	// DefaultClientName is sent during dynamic client registration.
	DefaultClientName = "MCP CLI Proxy"

	// DefaultLongPollTimeout bounds one /wait-for-auth request.
	DefaultLongPollTimeout = 30 * time.Second

	// ConfigDirEnv overrides the configuration directory.
	ConfigDirEnv = "MCP_REMOTE_CONFIG_DIR"
)

// DefaultConfig returns the built-in defaults.
func DefaultConfig() Config {
	return Config{
		CallbackPort:    DefaultCallbackPort,
		CallbackPath:    DefaultCallbackPath,
		Transport:       TransportSSE,
		ClientName:      DefaultClientName,
		LongPollTimeout: DefaultLongPollTimeout,
	}
}

// DefaultConfigDir returns $MCP_REMOTE_CONFIG_DIR, or ~/.mcp-auth.
func DefaultConfigDir() (string, error) {
	if dir := os.Getenv(ConfigDirEnv); dir != "" {
		return dir, nil
	}
	return oauth.DefaultConfigDir()
}
