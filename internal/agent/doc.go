// Package agent inspects a remote MCP server through an already
// authorized transport.
//
// It is the engine of the `mcp-remote client` command: after the
// connection orchestrator has obtained a working transport (running the
// OAuth flow if needed), Client opens an MCP session over it and prints the
// server's tools, resources and prompts as tables.
//
//	conn, _ := remote.Connect(ctx, cfg)
//	c := agent.NewClient(serverURL, conn.Client(), agent.NewLogger(verbose, true, false))
//	defer c.Close()
//	err := c.Inspect(ctx, os.Stdout)
//
// Logger prints progress in either a simple mode or a JSON-RPC mode that
// shows every request and response.
package agent
