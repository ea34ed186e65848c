package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/isdmx/pohrun/config"
	"github.com/isdmx/pohrun/dispatch"
	"github.com/isdmx/pohrun/sandbox"
)

// ToolName is the name of the execution tool.
const ToolName = "run_pohlang"

// defaultClientID identifies stdio callers without a session.
const defaultClientID = "mcp"

type clientAddrKey struct{}

// withClientAddr records the HTTP caller's address. Session IDs are minted
// on demand over HTTP, so they cannot key the throttle there.
func withClientAddr(ctx context.Context, r *http.Request) context.Context {
	return context.WithValue(ctx, clientAddrKey{}, dispatch.ClientIP(r))
}

// clientID keys MCP calls for throttling. HTTP callers share the budget of
// their address with /api/run; stdio callers are keyed by session.
func clientID(ctx context.Context) string {
	if addr, ok := ctx.Value(clientAddrKey{}).(string); ok && addr != "" {
		return addr
	}
	if session := server.ClientSessionFromContext(ctx); session != nil && session.SessionID() != "" {
		return defaultClientID + ":" + session.SessionID()
	}
	return defaultClientID
}

// Dispatcher is the subset of *dispatch.Dispatcher the tool needs.
type Dispatcher interface {
	Dispatch(ctx context.Context, clientID string, req dispatch.Request) (sandbox.Result, error)
}

// MCPServer represents the MCP server
type MCPServer struct {
	config     *config.Config
	logger     *zap.Logger
	dispatcher Dispatcher
	mcpServer  *server.MCPServer
}

// New creates a new MCPServer
func New(cfg *config.Config, logger *zap.Logger, dispatcher Dispatcher) (*MCPServer, error) {
	s := &MCPServer{
		config:     cfg,
		logger:     logger,
		dispatcher: dispatcher,
	}

	logger.Info("configuration loaded",
		zap.String("server.transport", cfg.Server.Transport),
		zap.Int("server.http_port", cfg.Server.HTTPPort),
		zap.Bool("server.mcp_enabled", cfg.Server.MCPEnabled),
		zap.String("interpreter.binary", cfg.Interpreter.Binary),
		zap.Int("sandbox.timeout_ms", cfg.Sandbox.TimeoutMs),
		zap.Int("sandbox.max_code_bytes", cfg.Sandbox.MaxCodeBytes),
		zap.Int("sandbox.max_output_bytes", cfg.Sandbox.MaxOutputBytes),
		zap.Int("sandbox.max_concurrent", cfg.Sandbox.MaxConcurrent),
		zap.String("rate_limit.backend", cfg.RateLimit.Backend),
		zap.Int("rate_limit.max_requests", cfg.RateLimit.MaxRequests),
	)

	s.mcpServer = server.NewMCPServer("pohrun", "PohLang playground execution service",
		server.WithToolCapabilities(false),
		server.WithRecovery(),
	)

	s.registerRunTool()

	return s, nil
}

func (s *MCPServer) registerRunTool() {
	tool := mcp.Tool{
		Name:        ToolName,
		Description: "Run a PohLang program with the pohlang interpreter under a timeout and output limits",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]any{
				"code": map[string]any{
					"type":        "string",
					"description": "PohLang source text",
				},
				"mode": map[string]any{
					"type":        "string",
					"description": "Interpreter mode (default run)",
					"enum":        []string{string(sandbox.ModeRun), string(sandbox.ModeBytecode), string(sandbox.ModeDisassemble)},
				},
			},
			Required: []string{"code"},
		},
	}

	s.mcpServer.AddTool(tool, s.handleRun)
}

// handleRun executes the run_pohlang tool. Rejections and failed runs come
// back as error results carrying the same JSON shape as the HTTP route.
func (s *MCPServer) handleRun(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	code, err := request.RequireString("code")
	if err != nil {
		return nil, fmt.Errorf("code parameter is required: %w", err)
	}

	req := dispatch.Request{
		Code: code,
		Mode: request.GetString("mode", ""),
	}

	res, dispatchErr := s.dispatcher.Dispatch(ctx, clientID(ctx), req)
	if dispatchErr != nil {
		s.logger.Debug("tool call rejected", zap.Error(dispatchErr))
	}

	body, err := json.Marshal(res)
	if err != nil {
		return nil, fmt.Errorf("encode result: %w", err)
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{
				Type: "text",
				Text: string(body),
			},
		},
		IsError: !res.OK,
	}, nil
}

// ServeStdio starts the server on stdio
func (s *MCPServer) ServeStdio() error {
	s.logger.Info("starting MCP server on stdio")
	return server.ServeStdio(s.mcpServer)
}

// Handler returns the streamable HTTP transport for mounting on a router.
func (s *MCPServer) Handler() http.Handler {
	return server.NewStreamableHTTPServer(s.mcpServer,
		server.WithHTTPContextFunc(withClientAddr),
	)
}

// GetMCPServer returns the underlying MCP server for fx
func (s *MCPServer) GetMCPServer() *server.MCPServer {
	return s.mcpServer
}
