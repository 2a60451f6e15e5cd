// Package oauth implements the OAuth client side of mcp-remote.
//
// Provider plugs into the mcp-go transports: it hands them an OAuthConfig
// backed by a file token store, registers the client dynamically on first
// use, opens the browser for the authorization-code flow with PKCE, and
// exchanges the code received by the callback server for tokens.
//
// # Storage
//
// Credentials are kept per remote server under the configuration directory
// (default ~/.mcp-auth), keyed by the MD5 hash of the server URL:
//
//	{hash}_tokens.json       access and refresh token
//	{hash}_client_info.json  dynamically registered client id and secret
//	{hash}_lock.json         instance coordination lock (see package coordination)
//
// Files are written with 0600 permissions in a 0700 directory. Token
// values are never logged.
//
// Several mcp-remote processes may share these files. The token store
// watches its file with fsnotify and drops its cached copy when another
// process rewrites it.
package oauth
