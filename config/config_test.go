package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8080,
		},
		Engine: EngineConfig{
			SecurityLevel:     "high",
			MaxConcurrent:     4,
			CompileTimeoutSec: 30,
		},
		Sandbox: SandboxConfig{
			Backend:            "docker",
			ScratchSizeMB:      64,
			StatsPollMs:        250,
			EnableLocalBackend: false,
		},
		Logging: LoggingConfig{
			Mode:  "production",
			Level: "info",
		},
		Languages: map[string]Language{
			"python": {
				Image: "python:3.11-slim",
			},
		},
	}
}

func TestConfigValidation(t *testing.T) {
	t.Run("ValidConfig", func(t *testing.T) {
		cfg := validConfig()
		require.NoError(t, cfg.validate())
	})

	t.Run("InvalidServerPort", func(t *testing.T) {
		cfg := validConfig()
		cfg.Server.Port = 0
		err := cfg.validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "server.port")
	})

	t.Run("InvalidSecurityLevel", func(t *testing.T) {
		cfg := validConfig()
		cfg.Engine.SecurityLevel = "paranoid"
		err := cfg.validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "security_level")
	})

	t.Run("InvalidMaxConcurrent", func(t *testing.T) {
		cfg := validConfig()
		cfg.Engine.MaxConcurrent = 0
		err := cfg.validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "max_concurrent")
	})

	t.Run("InvalidCompileTimeout", func(t *testing.T) {
		cfg := validConfig()
		cfg.Engine.CompileTimeoutSec = -1
		err := cfg.validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "compile_timeout_sec")
	})

	t.Run("UnsupportedBackend", func(t *testing.T) {
		cfg := validConfig()
		cfg.Sandbox.Backend = "chroot"
		err := cfg.validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unsupported sandbox.backend")
	})

	t.Run("LocalBackendDisabledByDefault", func(t *testing.T) {
		cfg := validConfig()
		cfg.Sandbox.Backend = "local"
		assert.Error(t, cfg.validate())

		cfg.Sandbox.EnableLocalBackend = true
		assert.NoError(t, cfg.validate())
	})
}

func TestConfigDurations(t *testing.T) {
	cfg := validConfig()
	assert.Equal(t, "30s", cfg.CompileTimeout().String())
	assert.Equal(t, "250ms", cfg.StatsPollInterval().String())
}
