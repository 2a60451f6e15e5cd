// Package coordination lets several mcp-remote processes for the same
// server share one browser authorization.
//
// The first process (primary) starts the callback server and records its
// port in a lockfile. A process that finds a live primary (secondary)
// attaches to the primary's /wait-for-auth endpoint instead of opening a
// browser, and then reads the tokens the primary stored on disk.
package coordination
