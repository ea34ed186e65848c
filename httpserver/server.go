package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/isdmx/pohrun/apperror"
	"github.com/isdmx/pohrun/config"
	"github.com/isdmx/pohrun/dispatch"
	"github.com/isdmx/pohrun/metrics"
	"github.com/isdmx/pohrun/sandbox"
)

// ExecutionIDHeader carries the id of the execution behind a response.
const ExecutionIDHeader = "X-Execution-Id"

// minBodyBytes is the floor of the request body limit.
const minBodyBytes = 1 << 20

// cancelDrain bounds the wait for canceled executions after a shutdown
// deadline: SIGTERM, the kill escalation and the pipe drain.
const cancelDrain = 2*sandbox.GracePeriod + time.Second

var errTrailingData = errors.New("unexpected data after request body")

// Dispatcher runs execution requests.
type Dispatcher interface {
	Dispatch(ctx context.Context, clientID string, req dispatch.Request) (sandbox.Result, error)
	MaxCodeBytes() int
}

// HealthSource reports the state shown by the health route.
type HealthSource interface {
	Version() string
	InFlight() int
	Capacity() int
}

// HealthResponse is the body of GET /api/health.
type HealthResponse struct {
	OK          bool   `json:"ok"`
	Interpreter string `json:"interpreter"`
	InFlight    int    `json:"inFlight"`
	Capacity    int    `json:"capacity"`
}

// Server is the HTTP transport.
type Server struct {
	cfg        *config.Config
	logger     *zap.Logger
	router     *chi.Mux
	dispatcher Dispatcher
	health     HealthSource
	mcp        http.Handler
	srv        *http.Server
	addr       string

	// Request contexts derive from baseCtx so Stop can cancel running
	// executions.
	baseCtx    context.Context
	cancelBase context.CancelFunc
	active     atomic.Int64
}

// New creates a Server. mcp may be nil, in which case /mcp is not mounted.
func New(cfg *config.Config, logger *zap.Logger, dispatcher Dispatcher, health HealthSource, mcp http.Handler) *Server {
	s := &Server{
		cfg:        cfg,
		logger:     logger,
		router:     chi.NewRouter(),
		dispatcher: dispatcher,
		health:     health,
		mcp:        mcp,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(s.trackActive)
	s.router.Use(middleware.RequestID)
	s.router.Use(exposeRequestID)
	if s.cfg.Server.TrustProxyHeaders {
		s.router.Use(middleware.RealIP)
	}
	s.router.Use(requestLogger(s.logger))
	s.router.Use(middleware.Recoverer)
	s.router.Use(metrics.Middleware)
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.cfg.Server.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "Mcp-Session-Id", "Mcp-Protocol-Version"},
		ExposedHeaders: []string{middleware.RequestIDHeader, ExecutionIDHeader, "Mcp-Session-Id"},
		MaxAge:         300,
	}))

	s.router.Route("/api", func(r chi.Router) {
		r.Post("/run", s.handleRun)
		r.Get("/health", s.handleHealth)
	})
	s.router.Handle("/metrics", promhttp.Handler())

	if s.mcp != nil {
		s.router.Handle("/mcp", s.mcpStream(s.mcp))
	}
}

// ServeHTTP makes Server an http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) bodyLimit() int64 {
	// JSON escaping can grow source text up to six times.
	limit := int64(s.dispatcher.MaxCodeBytes()) * 6
	if limit < minBodyBytes {
		limit = minBodyBytes
	}
	return limit
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.bodyLimit())

	req, err := decodeRunRequest(r.Body)
	if err != nil {
		var appErr *apperror.AppError
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			appErr = apperror.TooLarge("request body", int(maxErr.Limit))
		} else {
			appErr = apperror.ValidationFailed("body", "Invalid request body")
		}
		s.logger.Info("invalid execution request body", zap.Error(err))
		writeJSON(s.logger, w, statusFor(appErr), sandbox.Rejected(appErr.Message))
		return
	}

	res, err := s.dispatcher.Dispatch(r.Context(), dispatch.ClientIP(r), req)
	if res.ExecutionID != "" {
		w.Header().Set(ExecutionIDHeader, res.ExecutionID)
	}
	writeJSON(s.logger, w, statusFor(err), res)
}

// decodeRunRequest reads exactly one JSON object from body.
func decodeRunRequest(body io.Reader) (dispatch.Request, error) {
	var req dispatch.Request
	dec := json.NewDecoder(body)
	if err := dec.Decode(&req); err != nil {
		return req, err
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		if err == nil {
			err = errTrailingData
		}
		return req, err
	}
	return req, nil
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(s.logger, w, http.StatusOK, HealthResponse{
		OK:          true,
		Interpreter: s.health.Version(),
		InFlight:    s.health.InFlight(),
		Capacity:    s.health.Capacity(),
	})
}

// Start listens on the configured port and serves in the background.
func (s *Server) Start(context.Context) error {
	addr := fmt.Sprintf(":%d", s.cfg.Server.HTTPPort)

	// Writes must outlast the slowest execution: queueing, the run itself
	// and the kill escalation.
	writeTimeout := s.cfg.GetQueueTimeout() + s.cfg.GetTimeout() + 2*sandbox.GracePeriod + 10*time.Second

	s.baseCtx, s.cancelBase = context.WithCancel(context.Background())
	s.srv = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		BaseContext:       func(net.Listener) context.Context { return s.baseCtx },
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       60 * time.Second,
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		s.cancelBase()
		return fmt.Errorf("listen on %s: %w", addr, err)
	}

	s.addr = ln.Addr().String()
	s.logger.Info("server starting",
		zap.String("addr", ln.Addr().String()),
		zap.Bool("mcp", s.mcp != nil))

	go func() {
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("server error", zap.Error(err))
		}
	}()

	return nil
}

// Addr returns the bound listen address once Start has succeeded.
func (s *Server) Addr() string {
	return s.addr
}

// Stop drains in-flight requests until ctx expires. Requests still running
// then have their contexts canceled, which terminates their executions and
// removes their workspaces before Stop returns.
func (s *Server) Stop(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	defer s.cancelBase()

	s.logger.Info("server stopping")
	if err := s.srv.Shutdown(ctx); err != nil {
		s.cancelBase()
		if !s.awaitIdle(cancelDrain) {
			s.logger.Warn("requests still running after cancellation",
				zap.Int64("active", s.active.Load()))
		}
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	s.logger.Info("server stopped gracefully")
	return nil
}

// awaitIdle waits up to d for every handler to return.
func (s *Server) awaitIdle(d time.Duration) bool {
	deadline := time.Now().Add(d)
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()

	for s.active.Load() > 0 {
		if time.Now().After(deadline) {
			return false
		}
		<-ticker.C
	}
	return true
}
