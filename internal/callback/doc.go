// Package callback implements the local HTTP server that receives the OAuth
// authorization redirect.
//
// Besides the redirect endpoint the server exposes GET /wait-for-auth, a
// long-poll endpoint that lets another mcp-remote instance for the same
// remote server wait for this instance's browser flow to finish instead of
// starting its own:
//
//	200 Authentication completed    code received (the code itself is never sent)
//	202 Authentication in progress  poll=false, or no code within the timeout
//
// A waiting instance then reads the freshly stored tokens from disk.
package callback
