package config

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the application configuration
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Interpreter InterpreterConfig `mapstructure:"interpreter"`
	Sandbox     SandboxConfig     `mapstructure:"sandbox"`
	RateLimit   RateLimitConfig   `mapstructure:"rate_limit"`
	Logging     LoggingConfig     `mapstructure:"logging"`
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Transport          string   `mapstructure:"transport"`
	HTTPPort           int      `mapstructure:"http_port"`
	AllowedOrigins     []string `mapstructure:"allowed_origins"`
	TrustProxyHeaders  bool     `mapstructure:"trust_proxy_headers"`
	MCPEnabled         bool     `mapstructure:"mcp_enabled"`
	ShutdownTimeoutSec int      `mapstructure:"shutdown_timeout_sec"`
}

// InterpreterConfig describes the external interpreter binary
type InterpreterConfig struct {
	Binary string    `mapstructure:"binary"`
	Modes  ModeFlags `mapstructure:"modes"`
	// Env holds extra KEY=VALUE pairs appended to the host environment.
	Env []string `mapstructure:"env"`
}

// ModeFlags maps execution modes to interpreter flags. An empty flag marks
// the mode as not implemented.
type ModeFlags struct {
	Run         string `mapstructure:"run"`
	Bytecode    string `mapstructure:"bytecode"`
	Disassemble string `mapstructure:"disassemble"`
}

// SandboxConfig holds execution bounds
type SandboxConfig struct {
	TimeoutMs      int    `mapstructure:"timeout_ms"`
	MaxCodeBytes   int    `mapstructure:"max_code_bytes"`
	MaxOutputBytes int    `mapstructure:"max_output_bytes"`
	MaxConcurrent  int    `mapstructure:"max_concurrent"`
	QueueTimeoutMs int    `mapstructure:"queue_timeout_ms"`
	WorkspaceRoot  string `mapstructure:"workspace_root"`
}

// RateLimitConfig holds execution route throttling settings
type RateLimitConfig struct {
	Backend       string `mapstructure:"backend"`
	WindowMs      int    `mapstructure:"window_ms"`
	MaxRequests   int    `mapstructure:"max_requests"`
	RedisAddr     string `mapstructure:"redis_addr"`
	RedisPassword string `mapstructure:"redis_password"`
	RedisDB       int    `mapstructure:"redis_db"`
	KeyPrefix     string `mapstructure:"key_prefix"`
}

// LoggingConfig holds logger settings
type LoggingConfig struct {
	Mode  string `mapstructure:"mode"`
	Level string `mapstructure:"level"`
}

// New loads and validates the application configuration from ./config.yaml
// or ./config/config.yaml, falling back to defaults when neither exists.
func New() (*Config, error) {
	return Load(".", "./config")
}

// Load reads config.yaml from the given search paths.
func Load(paths ...string) (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	for _, p := range paths {
		v.AddConfigPath(p)
	}

	setDefaults(v)

	v.SetEnvPrefix("POHRUN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// Unprefixed names used by existing playground deployments.
	if err := v.BindEnv("interpreter.binary", "POHRUN_INTERPRETER_BINARY", "POHLANG_BIN"); err != nil {
		return nil, fmt.Errorf("error binding env: %w", err)
	}
	if err := v.BindEnv("server.http_port", "POHRUN_SERVER_HTTP_PORT", "PORT"); err != nil {
		return nil, fmt.Errorf("error binding env: %w", err)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// If config file not found, continue with defaults
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("config validation error: %w", err)
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.transport", "http")
	v.SetDefault("server.http_port", 5173)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("server.trust_proxy_headers", false)
	v.SetDefault("server.mcp_enabled", true)
	v.SetDefault("server.shutdown_timeout_sec", 10)

	v.SetDefault("interpreter.binary", DefaultBinary())
	v.SetDefault("interpreter.modes.run", "--run")
	v.SetDefault("interpreter.modes.bytecode", "--bytecode")
	v.SetDefault("interpreter.modes.disassemble", "")
	v.SetDefault("interpreter.env", []string{})

	v.SetDefault("sandbox.timeout_ms", 10000)
	v.SetDefault("sandbox.max_code_bytes", 100000)
	v.SetDefault("sandbox.max_output_bytes", 64*1024)
	v.SetDefault("sandbox.max_concurrent", 8)
	v.SetDefault("sandbox.queue_timeout_ms", 5000)
	v.SetDefault("sandbox.workspace_root", "")

	v.SetDefault("rate_limit.backend", "memory")
	v.SetDefault("rate_limit.window_ms", 60000)
	v.SetDefault("rate_limit.max_requests", 30)
	v.SetDefault("rate_limit.redis_addr", "localhost:6379")
	v.SetDefault("rate_limit.redis_password", "")
	v.SetDefault("rate_limit.redis_db", 0)
	v.SetDefault("rate_limit.key_prefix", "pohrun:ratelimit:")

	v.SetDefault("logging.mode", "production")
	v.SetDefault("logging.level", "info")
}

// DefaultBinary returns the interpreter name looked up on PATH.
func DefaultBinary() string {
	if runtime.GOOS == "windows" {
		return "pohlang.exe"
	}
	return "pohlang"
}

// validate ensures the configuration is valid
//
//nolint:gocyclo // flat list of independent checks
func (c *Config) validate() error {
	if c.Server.Transport != "stdio" && c.Server.Transport != "http" {
		return fmt.Errorf("invalid server.transport: %s, must be 'stdio' or 'http'", c.Server.Transport)
	}

	if c.Server.Transport == "http" && (c.Server.HTTPPort <= 0 || c.Server.HTTPPort > 65535) {
		return fmt.Errorf("server.http_port out of range: %d", c.Server.HTTPPort)
	}

	if strings.TrimSpace(c.Interpreter.Binary) == "" {
		return errors.New("interpreter.binary must not be empty")
	}

	if c.Interpreter.Modes.Run == "" {
		return errors.New("interpreter.modes.run must not be empty")
	}

	for _, kv := range c.Interpreter.Env {
		if !strings.Contains(kv, "=") {
			return fmt.Errorf("interpreter.env entry %q must be KEY=VALUE", kv)
		}
	}

	if c.Sandbox.TimeoutMs <= 0 {
		return fmt.Errorf("sandbox.timeout_ms must be positive, got: %d", c.Sandbox.TimeoutMs)
	}

	if c.Sandbox.MaxCodeBytes <= 0 {
		return fmt.Errorf("sandbox.max_code_bytes must be positive, got: %d", c.Sandbox.MaxCodeBytes)
	}

	if c.Sandbox.MaxOutputBytes <= 0 {
		return fmt.Errorf("sandbox.max_output_bytes must be positive, got: %d", c.Sandbox.MaxOutputBytes)
	}

	if c.Sandbox.MaxConcurrent < 0 {
		return fmt.Errorf("sandbox.max_concurrent must not be negative, got: %d", c.Sandbox.MaxConcurrent)
	}

	if c.Sandbox.QueueTimeoutMs < 0 {
		return fmt.Errorf("sandbox.queue_timeout_ms must not be negative, got: %d", c.Sandbox.QueueTimeoutMs)
	}

	switch c.RateLimit.Backend {
	case "memory":
	case "redis":
		if c.RateLimit.RedisAddr == "" {
			return errors.New("rate_limit.redis_addr is required for the redis backend")
		}
	default:
		return fmt.Errorf("unsupported rate_limit.backend: %s", c.RateLimit.Backend)
	}

	if c.RateLimit.MaxRequests > 0 && c.RateLimit.WindowMs <= 0 {
		return fmt.Errorf("rate_limit.window_ms must be positive, got: %d", c.RateLimit.WindowMs)
	}

	if c.Logging.Mode != "production" && c.Logging.Mode != "development" {
		return fmt.Errorf("invalid logging.mode: %s, must be 'production' or 'development'", c.Logging.Mode)
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error", "dpanic", "panic", "fatal":
	default:
		return fmt.Errorf("invalid logging.level: %s", c.Logging.Level)
	}

	return nil
}

// GetTimeout returns the execution timeout as a duration
func (c *Config) GetTimeout() time.Duration {
	return time.Duration(c.Sandbox.TimeoutMs) * time.Millisecond
}

// GetQueueTimeout returns how long a request may wait for a free execution slot
func (c *Config) GetQueueTimeout() time.Duration {
	return time.Duration(c.Sandbox.QueueTimeoutMs) * time.Millisecond
}

// GetRateLimitWindow returns the rate limit window as a duration
func (c *Config) GetRateLimitWindow() time.Duration {
	return time.Duration(c.RateLimit.WindowMs) * time.Millisecond
}

// GetShutdownTimeout returns the graceful shutdown budget
func (c *Config) GetShutdownTimeout() time.Duration {
	return time.Duration(c.Server.ShutdownTimeoutSec) * time.Second
}
