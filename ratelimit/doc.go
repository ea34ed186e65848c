// Package ratelimit throttles execution requests per client.
//
// Two fixed-window limiters implement Limiter: InProcessLimiter keeps
// counters in a mutex-guarded map and anchors each window at the client's
// first request in it; RedisLimiter shares epoch-aligned counters between
// replicas through INCR and PEXPIRE in one MULTI transaction. Rejected
// requests count against the window in both.
//
// Usage:
//
//	limiter, err := ratelimit.New(logger, cfg)
//	if !limiter.Admit(ctx, clientIP) {
//	    // reject with 429
//	}
package ratelimit
