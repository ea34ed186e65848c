// Package config provides application configuration management.
//
// The config package handles loading and validation of the application's
// configuration from YAML files and environment variables. It covers the
// HTTP/MCP server, the interpreter binary and its mode flags, execution
// bounds, rate limiting and logging.
//
// Usage:
//
//	cfg, err := config.New()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Printf("Interpreter: %s\n", cfg.Interpreter.Binary)
package config
