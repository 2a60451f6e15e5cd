package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/briandowns/spinner"
	"github.com/jedib0t/go-pretty/v6/text"
	mcptransport "github.com/mark3labs/mcp-go/client/transport"
	"github.com/spf13/cobra"

	"mcp-remote/internal/agent"
)

type clientOptions struct {
	connectOptions
	jsonRPC bool
	quiet   bool
}

// newClientCmd creates the command that connects once and lists what the
// remote server offers.
func newClientCmd() *cobra.Command {
	opts := &clientOptions{}
	cmd := &cobra.Command{
		Use:   "client <server-url> [callback-port]",
		Short: "Connect to a remote MCP server and list its tools, resources and prompts",
		Long: `Connects to the remote server exactly like the proxy does, running the
OAuth flow when required, then opens an MCP session and prints the
server's tools, resources and prompts. Useful to check that a server and
its authorization work before configuring an MCP client.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runClient(cmd, args, opts)
		},
	}
	opts.addFlags(cmd)
	cmd.Flags().BoolVar(&opts.jsonRPC, "json-rpc", false, "Print full JSON-RPC requests and responses")
	cmd.Flags().BoolVarP(&opts.quiet, "quiet", "q", false, "Suppress the progress spinner")
	return cmd
}

func runClient(cmd *cobra.Command, args []string, opts *clientOptions) error {
	cfg, err := opts.resolve(cmd, args)
	if err != nil {
		return err
	}
	initLogging(cfg)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var s *spinner.Spinner
	if !opts.quiet {
		s = spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(os.Stderr))
		s.Suffix = fmt.Sprintf(" Connecting to %s...", cfg.ServerURL)
		s.Start()
	}

	session, err := openRemote(ctx, cfg)
	if s != nil {
		s.Stop()
	}
	if err != nil {
		if interrupted(ctx, err) {
			return nil
		}
		fmt.Fprintf(os.Stderr, "%s\n", text.FgRed.Sprint("Failed to connect to "+cfg.ServerURL))
		return err
	}
	defer session.Close()

	rc, ok := session.conn.(interface{ Client() mcptransport.Interface })
	if !ok {
		return fmt.Errorf("connection does not expose an MCP transport")
	}

	logger := agent.NewLogger(cfg.Debug, true, opts.jsonRPC)
	c := agent.NewClient(cfg.ServerURL, rc.Client(), logger)
	return c.Inspect(ctx, cmd.OutOrStdout())
}
