package sandbox

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/assesshub/codexec/config"
)

// NewRunner creates the sandbox runner selected by the configuration.
func NewRunner(logger *zap.Logger, cfg *config.Config) (Runner, error) {
	switch cfg.Sandbox.Backend {
	case "docker":
		return NewDockerRunner(logger, cfg), nil
	case "podman":
		return NewPodmanRunner(logger, cfg), nil
	case "local":
		if !cfg.Sandbox.EnableLocalBackend {
			return nil, fmt.Errorf("local backend is disabled; set sandbox.enable_local_backend to use it")
		}
		logger.Warn("using local sandbox backend; submissions run unisolated on the host")
		return NewLocalRunner(logger, cfg), nil
	default:
		return nil, fmt.Errorf("unsupported backend: %s", cfg.Sandbox.Backend)
	}
}
