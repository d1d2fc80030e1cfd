package sandbox

import (
	"go.uber.org/zap"

	"github.com/assesshub/codexec/config"
)

// NewPodmanRunner creates a Runner backed by the Podman CLI. Podman accepts
// the same run/inspect/stats arguments the Docker backend issues.
func NewPodmanRunner(logger *zap.Logger, cfg *config.Config, opts ...ContainerRunnerOption) *ContainerRunner {
	return newContainerRunner(logger, "podman", cfg.Sandbox.ScratchSizeMB, cfg.StatsPollInterval(), opts...)
}
