package sandbox

import (
	"go.uber.org/zap"

	"github.com/assesshub/codexec/config"
)

// NewDockerRunner creates a Runner backed by the Docker CLI.
func NewDockerRunner(logger *zap.Logger, cfg *config.Config, opts ...ContainerRunnerOption) *ContainerRunner {
	return newContainerRunner(logger, "docker", cfg.Sandbox.ScratchSizeMB, cfg.StatsPollInterval(), opts...)
}
