package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config represents the application configuration
type Config struct {
	Server    ServerConfig        `mapstructure:"server"`
	Engine    EngineConfig        `mapstructure:"engine"`
	Sandbox   SandboxConfig       `mapstructure:"sandbox"`
	Logging   LoggingConfig       `mapstructure:"logging"`
	Languages map[string]Language `mapstructure:"languages"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// EngineConfig holds orchestrator configuration
type EngineConfig struct {
	SecurityLevel     string `mapstructure:"security_level"`
	MaxConcurrent     int    `mapstructure:"max_concurrent"`
	CompileTimeoutSec int    `mapstructure:"compile_timeout_sec"`
}

// SandboxConfig holds sandbox runner configuration
type SandboxConfig struct {
	Backend            string `mapstructure:"backend"`
	ScratchSizeMB      int    `mapstructure:"scratch_size_mb"`
	StatsPollMs        int    `mapstructure:"stats_poll_ms"`
	EnableLocalBackend bool   `mapstructure:"enable_local_backend"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Mode  string `mapstructure:"mode"`
	Level string `mapstructure:"level"`
}

// Language holds per-language overrides for the built-in toolchain table.
// An empty field keeps the toolchain default.
type Language struct {
	Image      string `mapstructure:"image"`
	Dockerfile string `mapstructure:"dockerfile"`
}

// New loads and validates the application configuration
func New() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	// Set default values
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("engine.security_level", "high")
	viper.SetDefault("engine.max_concurrent", 4)
	viper.SetDefault("engine.compile_timeout_sec", 30)
	viper.SetDefault("sandbox.backend", "docker")
	viper.SetDefault("sandbox.scratch_size_mb", 64)
	viper.SetDefault("sandbox.stats_poll_ms", 250)
	viper.SetDefault("sandbox.enable_local_backend", false)
	viper.SetDefault("logging.mode", "production")
	viper.SetDefault("logging.level", "info")

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// If config file not found, continue with defaults
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("config validation error: %w", err)
	}

	return &config, nil
}

// validate ensures the configuration is valid
func (c *Config) validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server.port: %d", c.Server.Port)
	}

	switch c.Engine.SecurityLevel {
	case "low", "medium", "high", "maximum":
	default:
		return fmt.Errorf("invalid engine.security_level: %s, must be one of 'low', 'medium', 'high', 'maximum'", c.Engine.SecurityLevel)
	}

	if c.Engine.MaxConcurrent <= 0 {
		return fmt.Errorf("engine.max_concurrent must be positive, got: %d", c.Engine.MaxConcurrent)
	}

	if c.Engine.CompileTimeoutSec <= 0 {
		return fmt.Errorf("engine.compile_timeout_sec must be positive, got: %d", c.Engine.CompileTimeoutSec)
	}

	if c.Sandbox.ScratchSizeMB <= 0 {
		return fmt.Errorf("sandbox.scratch_size_mb must be positive, got: %d", c.Sandbox.ScratchSizeMB)
	}

	if c.Sandbox.StatsPollMs <= 0 {
		return fmt.Errorf("sandbox.stats_poll_ms must be positive, got: %d", c.Sandbox.StatsPollMs)
	}

	supportedBackends := map[string]bool{
		"docker": true,
		"podman": true,
		"local":  c.Sandbox.EnableLocalBackend, // local only enabled if specifically allowed
	}

	if !supportedBackends[c.Sandbox.Backend] {
		return fmt.Errorf("unsupported sandbox.backend: %s", c.Sandbox.Backend)
	}

	return nil
}

// CompileTimeout returns the compile step timeout as a duration
func (c *Config) CompileTimeout() time.Duration {
	return time.Duration(c.Engine.CompileTimeoutSec) * time.Second
}

// StatsPollInterval returns the memory sampling interval as a duration
func (c *Config) StatsPollInterval() time.Duration {
	return time.Duration(c.Sandbox.StatsPollMs) * time.Millisecond
}
