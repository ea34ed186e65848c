// Package dispatch validates execution requests, applies the per-client
// throttle and hands accepted requests to the execution supervisor. Every
// outcome, including rejections, comes back in the sandbox.Result shape.
package dispatch

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/isdmx/pohrun/apperror"
	"github.com/isdmx/pohrun/metrics"
	"github.com/isdmx/pohrun/ratelimit"
	"github.com/isdmx/pohrun/sandbox"
)

// Request is the body of an execution request.
type Request struct {
	Code string `json:"code"`
	Mode string `json:"mode,omitempty"`
}

// Executor runs accepted requests. *sandbox.Supervisor satisfies it.
type Executor interface {
	sandbox.Executor
	Supports(mode sandbox.Mode) bool
}

// Dispatcher is the single entry point shared by every transport.
type Dispatcher struct {
	logger       *zap.Logger
	exec         Executor
	limiter      ratelimit.Limiter
	maxCodeBytes int
}

// New creates a Dispatcher.
func New(logger *zap.Logger, exec Executor, limiter ratelimit.Limiter, maxCodeBytes int) *Dispatcher {
	return &Dispatcher{
		logger:       logger,
		exec:         exec,
		limiter:      limiter,
		maxCodeBytes: maxCodeBytes,
	}
}

// MaxCodeBytes returns the accepted source size limit.
func (d *Dispatcher) MaxCodeBytes() int {
	return d.maxCodeBytes
}

// Dispatch validates req, checks the client's throttle and runs it. A
// non-nil error classifies a rejection (see apperror); the returned Result
// is always safe to send to the caller.
func (d *Dispatcher) Dispatch(ctx context.Context, clientID string, req Request) (sandbox.Result, error) {
	mode, err := d.validate(req)
	if err != nil {
		return d.reject(clientID, err)
	}

	if !d.limiter.Admit(ctx, clientID) {
		return d.reject(clientID, apperror.Throttled())
	}

	res, err := d.exec.Run(ctx, req.Code, mode)
	if err != nil {
		if errors.Is(err, sandbox.ErrAtCapacity) {
			return d.reject(clientID, apperror.AtCapacity())
		}
		d.logger.Error("Execution failed",
			zap.String("client", clientID),
			zap.String("mode", string(mode)),
			zap.Error(err))
		return d.reject(clientID, apperror.Internal(err))
	}

	metrics.ExecutionsTotal.WithLabelValues(string(mode), res.Outcome.String()).Inc()
	metrics.ExecutionDuration.WithLabelValues(string(mode)).Observe(float64(res.Ms) / 1000)

	return res, nil
}

func (d *Dispatcher) validate(req Request) (sandbox.Mode, error) {
	if req.Code == "" {
		return "", apperror.ValidationFailed("code", "Missing code")
	}

	if len(req.Code) > d.maxCodeBytes {
		return "", apperror.TooLarge("code", d.maxCodeBytes)
	}

	mode, err := sandbox.ParseMode(req.Mode)
	if err != nil {
		return "", apperror.ValidationFailed("mode",
			fmt.Sprintf("Unknown mode %q, expected one of run, bytecode, disassemble", req.Mode))
	}

	if !d.exec.Supports(mode) {
		return "", apperror.NotImplemented(fmt.Sprintf("Mode %q", mode))
	}

	return mode, nil
}

func (d *Dispatcher) reject(clientID string, err error) (sandbox.Result, error) {
	kind := apperror.Kind(err)
	metrics.RejectionsTotal.WithLabelValues(kind).Inc()

	if kind != "internal" {
		d.logger.Info("Request rejected",
			zap.String("client", clientID),
			zap.String("reason", kind),
			zap.String("message", apperror.Message(err)))
	}

	return sandbox.Rejected(apperror.Message(err)), err
}
