// Package config resolves the settings of an mcp-remote run.
//
// Values come from three layers, later ones winning:
//
//  1. built-in defaults (DefaultConfig)
//  2. an optional config.yaml in the configuration directory
//  3. command line arguments and flags
//
// The configuration directory defaults to ~/.mcp-auth and can be moved
// with the MCP_REMOTE_CONFIG_DIR environment variable or --config-dir. The
// same directory holds the stored OAuth credentials.
//
// Example config.yaml:
//
//	callbackPort: 3334
//	transport: streamable-http
//	clientName: My Editor
//	scopes: [openid, profile]
//	longPollTimeout: 45s
//	debug: false
package config
