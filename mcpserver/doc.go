// Package mcpserver exposes the execution service as a Model Context
// Protocol tool.
//
// The run_pohlang tool accepts code and an optional mode, passes them
// through the same dispatcher as the HTTP route and returns the execution
// result JSON as text content. The server can be served on stdio or mounted
// on the HTTP router as a streamable HTTP endpoint.
package mcpserver
