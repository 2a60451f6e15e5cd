package cmd

import (
	"errors"
	"os"

	"github.com/spf13/cobra"

	"mcp-remote/internal/remote"
)

// Exit codes for CLI commands.
const (
	// ExitCodeSuccess indicates successful execution or an interrupt.
	ExitCodeSuccess = 0
	// ExitCodeError indicates a general error (command failed, invalid arguments).
	ExitCodeError = 1
	// ExitCodeAuthFailed indicates the OAuth flow failed.
	ExitCodeAuthFailed = 2
	// ExitCodeConnectionFailed indicates the remote server could not be reached.
	ExitCodeConnectionFailed = 3
)

var proxyOpts connectOptions

// rootCmd proxies a local stdio MCP client to a remote server.
var rootCmd = &cobra.Command{
	Use:   "mcp-remote <server-url> [callback-port]",
	Short: "Connect a stdio MCP client to a remote MCP server with OAuth",
	Long: `mcp-remote lets MCP clients that only speak stdio use remote MCP servers
over SSE or streamable HTTP, including servers protected by OAuth.

Messages read from stdin are forwarded to the remote server and its replies
are written to stdout. When the server requires authorization, a browser is
opened and the callback is received on 127.0.0.1:<callback-port>. Tokens are
stored in ~/.mcp-auth and shared with other mcp-remote processes.`,
	Example: `  mcp-remote https://example.com/sse
  mcp-remote https://example.com/mcp 9696 --transport streamable-http
  mcp-remote https://example.com/sse --header "Authorization:Bearer xyz"`,
	Args: cobra.RangeArgs(1, 2),
	// SilenceUsage prevents Cobra from printing the usage message on errors that are handled by the application.
	SilenceUsage: true,
	RunE:         runProxy,
}

// SetVersion sets the version for the root command.
// This function is typically called from the main package to inject the application version at build time.
func SetVersion(v string) {
	rootCmd.Version = v
}

// GetVersion returns the current version of the application.
func GetVersion() string {
	return rootCmd.Version
}

// Execute is the main entry point for the CLI application.
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "mcp-remote version %s\n" .Version}}`)

	err := rootCmd.Execute()
	if err != nil {
		os.Exit(getExitCode(err))
	}
}

// getExitCode determines the appropriate exit code based on the error type.
// This provides semantic exit codes for scripting and automation.
func getExitCode(err error) int {
	if err == nil {
		return ExitCodeSuccess
	}

	var authErr *remote.AuthorizationError
	if errors.As(err, &authErr) {
		return ExitCodeAuthFailed
	}

	var connErr *remote.ConnectionError
	if errors.As(err, &connErr) {
		return ExitCodeConnectionFailed
	}

	return ExitCodeError
}

func init() {
	proxyOpts.addFlags(rootCmd)

	rootCmd.AddCommand(newClientCmd())
	rootCmd.AddCommand(newAuthCmd())
	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newSelfUpdateCmd())
}
