// Package main is the entry point for pohrun, the PohLang playground
// execution service.
//
// pohrun accepts untrusted PohLang source over HTTP (POST /api/run) or as
// the MCP tool run_pohlang, runs it through the external pohlang
// interpreter in a throwaway workspace under a timeout and output caps, and
// returns stdout, stderr, the exit status and timing. Requests are throttled
// per client, either in process or through Redis.
//
// The application uses Uber's fx framework for dependency injection and lifecycle
// management, with zap for structured logging and viper for configuration.
package main
