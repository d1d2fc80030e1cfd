// Package main is the entry point for the codexec execution server.
//
// The server executes untrusted assessment submissions (Python, JavaScript,
// Java, C++, C#, Go, Rust) in isolated per-invocation sandboxes and exposes
// the engine over a REST API. Submissions are screened against a security
// denylist before any sandbox resources are spent, then compiled and judged
// against their test cases under the configured security level's resource
// limits.
//
// The application uses Uber's fx framework for dependency injection and
// lifecycle management, with zap for structured logging and viper for
// configuration.
package main

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"github.com/assesshub/codexec/config"
	"github.com/assesshub/codexec/engine"
	"github.com/assesshub/codexec/httpserver"
	"github.com/assesshub/codexec/language"
	"github.com/assesshub/codexec/logger"
	"github.com/assesshub/codexec/sandbox"
	"github.com/assesshub/codexec/security"
)

func main() {
	app := fx.New(
		// Provide dependencies
		fx.Provide(
			// Config
			config.New,

			// Logger with configuration
			logger.NewFromConfig,

			// Security policy (compiled denylist)
			security.NewPolicy,

			// Language registry with config overrides
			language.NewRegistry,

			// Sandbox runner based on config
			sandbox.NewRunner,

			// Execution orchestrator
			engine.New,

			// REST surface, bound to the engine
			httpserver.New,
			func(e *engine.Engine) httpserver.Service { return e },
		),

		// Bind the HTTP server to the application lifecycle
		fx.Invoke(
			func(lc fx.Lifecycle, log *zap.Logger, eng *engine.Engine, server *httpserver.Server) {
				lc.Append(fx.Hook{
					OnStart: func(ctx context.Context) error {
						// Leftover containers from an unclean shutdown are
						// removed before accepting work.
						if _, err := eng.CleanupOrphanedContainers(ctx); err != nil {
							log.Warn("startup container cleanup failed", zap.Error(err))
						}
						return server.Start()
					},
					OnStop: func(ctx context.Context) error {
						return server.Stop(ctx)
					},
				})
			},
		),

		// Use the application logger for fx logs
		fx.WithLogger(func(log *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: log}
		}),
	)

	// Start the application
	app.Run()
}
