// Package transport provides the two message channels joined by the proxy:
// a newline-delimited JSON-RPC channel over stdio for the local MCP client,
// and an adapter over the mcp-go HTTP transports (SSE or streamable HTTP)
// for the remote server.
//
// Both implement Transport. Messages are raw JSON-RPC documents; the
// transports never interpret them beyond routing requests to responses.
// Handlers are registered with SetHandlers before Start and are invoked
// from a single goroutine per transport, so OnMessage calls for one
// transport never overlap and arrive in receipt order.
package transport
