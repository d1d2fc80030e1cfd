package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/assesshub/codexec/config"
	"github.com/assesshub/codexec/language"
	"github.com/assesshub/codexec/sandbox"
	"github.com/assesshub/codexec/security"
)

// Engine coordinates the security policy, language registry and sandbox
// runner for incoming requests.
type Engine struct {
	logger         *zap.Logger
	policy         *security.Policy
	registry       *language.Registry
	runner         sandbox.Runner
	level          security.Level
	compileTimeout time.Duration

	// slots bounds concurrent executions. One slot per request.
	slots chan struct{}
}

// New creates an Engine from configuration and its collaborators.
func New(logger *zap.Logger, cfg *config.Config, policy *security.Policy, registry *language.Registry, runner sandbox.Runner) (*Engine, error) {
	level, err := security.ParseLevel(cfg.Engine.SecurityLevel)
	if err != nil {
		return nil, fmt.Errorf("engine security level: %w", err)
	}

	return &Engine{
		logger:         logger,
		policy:         policy,
		registry:       registry,
		runner:         runner,
		level:          level,
		compileTimeout: cfg.CompileTimeout(),
		slots:          make(chan struct{}, cfg.Engine.MaxConcurrent),
	}, nil
}

// acquireSlot blocks until an execution slot is free or the context is done.
func (e *Engine) acquireSlot(ctx context.Context) (release func(), err error) {
	select {
	case e.slots <- struct{}{}:
		return func() { <-e.slots }, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("waiting for execution slot: %w", ctx.Err())
	}
}

// GetSupportedLanguages lists the registered languages in stable order.
func (e *Engine) GetSupportedLanguages() []LanguageInfo {
	toolchains := e.registry.All()
	infos := make([]LanguageInfo, 0, len(toolchains))
	for _, tc := range toolchains {
		sample := "main" + tc.FileExtension()
		info := LanguageInfo{
			Name:          tc.Name(),
			Version:       tc.Version(),
			Image:         tc.Image(),
			FileExtension: tc.FileExtension(),
			Compiled:      tc.Compiled(),
			RunCommand:    strings.Join(tc.RunCommand("{workdir}", sample), " "),
		}
		if cmd := tc.CompileCommand("{workdir}", sample); cmd != nil {
			info.CompileCommand = strings.Join(cmd, " ")
		}
		infos = append(infos, info)
	}
	return infos
}

// BuildImages prepares the sandbox image of every registered language. All
// languages are attempted; failures are joined into one error.
func (e *Engine) BuildImages(ctx context.Context) error {
	var errs []error
	for _, tc := range e.registry.All() {
		if err := e.runner.BuildImage(ctx, tc); err != nil {
			e.logger.Error("image preparation failed",
				zap.String("language", tc.Name()), zap.Error(err))
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// CleanupOrphanedContainers removes leftover sandbox containers, typically
// after an unclean shutdown.
func (e *Engine) CleanupOrphanedContainers(ctx context.Context) (int, error) {
	removed, err := e.runner.CleanupOrphans(ctx)
	if err != nil {
		return 0, fmt.Errorf("cleanup orphaned containers: %w", err)
	}
	if removed > 0 {
		e.logger.Info("removed orphaned containers", zap.Int("count", removed))
	}
	return removed, nil
}
