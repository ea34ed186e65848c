// Package logger provides structured logging capabilities.
//
// The logger package sets up the application's zap logger in either
// development (console, coloured levels) or production (JSON) mode.
//
// Usage:
//
//	log, err := logger.New("production", "info")
//	if err != nil {
//	    panic(err)
//	}
//	log.Info("execution completed", zap.String("mode", "run"))
package logger
