// Package logging provides subsystem-tagged structured logging for mcp-remote.
//
// The package wraps Go's slog with a small set of helpers that take a
// subsystem name and a printf-style message:
//
//	logging.InitForCLI(logging.LevelInfo, os.Stderr)
//
//	logging.Info("Proxy", "Proxy established")
//	logging.Debug("Remote", "Dialing %s", serverURL)
//	logging.Error("Callback", err, "Failed to start callback server")
//
// Output always goes to the writer passed to InitForCLI. The proxy speaks
// MCP over stdout, so the CLI passes os.Stderr. Every record carries the
// process id because several proxy instances for the same server may log
// side by side while they share an authorization flow.
//
// MCPLogger adapts the package to the util.Logger interface expected by the
// mcp-go transports so their diagnostics end up in the same stream.
package logging
