// Package httpserver serves the execution service over HTTP.
//
// Routes:
//
//	POST /api/run     execute code, body {"code": "...", "mode": "run"}
//	GET  /api/health  liveness plus interpreter version and pool usage
//	GET  /metrics     Prometheus exposition
//	     /mcp         MCP streamable HTTP endpoint, when enabled
//
// Every /api/run response, including rejections, has the same JSON shape:
// {"ok", "stdout", "stderr", "exitCode", "ms", "error"}.
package httpserver
