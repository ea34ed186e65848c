package main

import (
	"context"
	"net/http"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"github.com/isdmx/pohrun/config"
	"github.com/isdmx/pohrun/dispatch"
	"github.com/isdmx/pohrun/httpserver"
	"github.com/isdmx/pohrun/logger"
	"github.com/isdmx/pohrun/mcpserver"
	"github.com/isdmx/pohrun/ratelimit"
	"github.com/isdmx/pohrun/sandbox"
)

func main() {
	fx.New(options()).Run()
}

func options() fx.Option {
	return fx.Options(
		fx.Provide(
			// Config
			config.New,

			// Logger with configuration
			logger.NewFromConfig,

			// Execution supervisor and throttle
			sandbox.New,
			ratelimit.New,

			newDispatcher,
			newMCPServer,
			newHTTPServer,
		),

		fx.Invoke(
			registerLimiter,
			runTransport,
		),

		// Use the application logger for fx logs
		fx.WithLogger(func(log *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: log}
		}),
	)
}

func newDispatcher(cfg *config.Config, log *zap.Logger, sup *sandbox.Supervisor, limiter ratelimit.Limiter) *dispatch.Dispatcher {
	return dispatch.New(log, sup, limiter, cfg.Sandbox.MaxCodeBytes)
}

func newMCPServer(cfg *config.Config, log *zap.Logger, d *dispatch.Dispatcher) (*mcpserver.MCPServer, error) {
	return mcpserver.New(cfg, log, d)
}

func newHTTPServer(cfg *config.Config, log *zap.Logger, d *dispatch.Dispatcher, sup *sandbox.Supervisor, mcp *mcpserver.MCPServer) *httpserver.Server {
	var mcpHandler http.Handler
	if cfg.Server.MCPEnabled {
		mcpHandler = mcp.Handler()
	}
	return httpserver.New(cfg, log, d, sup, mcpHandler)
}

// registerLimiter ties background sweeping or the Redis connection to the
// application lifecycle.
func registerLimiter(lc fx.Lifecycle, limiter ratelimit.Limiter) {
	if l, ok := limiter.(ratelimit.Lifecycle); ok {
		lc.Append(fx.Hook{
			OnStart: l.Start,
			OnStop:  l.Stop,
		})
	}
}

// runTransport starts the transport selected by server.transport.
func runTransport(lc fx.Lifecycle, shutdowner fx.Shutdowner, cfg *config.Config, log *zap.Logger, srv *httpserver.Server, mcp *mcpserver.MCPServer) {
	switch cfg.Server.Transport {
	case "stdio":
		lc.Append(fx.Hook{
			OnStart: func(context.Context) error {
				go func() {
					if err := mcp.ServeStdio(); err != nil {
						log.Error("stdio transport stopped", zap.Error(err))
					}
					_ = shutdowner.Shutdown()
				}()
				return nil
			},
		})
	default:
		lc.Append(fx.Hook{
			OnStart: srv.Start,
			OnStop: func(ctx context.Context) error {
				ctx, cancel := context.WithTimeout(ctx, cfg.GetShutdownTimeout())
				defer cancel()
				return srv.Stop(ctx)
			},
		})
	}
}
