package sandbox

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/assesshub/codexec/config"
	"github.com/assesshub/codexec/language"
)

// LocalRunner executes submissions directly on the host (WARNING: no
// isolation; development only, gated by sandbox.enable_local_backend).
type LocalRunner struct {
	logger    *zap.Logger
	cmdRunner CommandRunner
	fs        FileSystem
}

// LocalRunnerOption defines a functional option for LocalRunner
type LocalRunnerOption func(*LocalRunner)

// WithLocalCommandRunner sets the CommandRunner for LocalRunner
func WithLocalCommandRunner(cmdRunner CommandRunner) LocalRunnerOption {
	return func(l *LocalRunner) {
		l.cmdRunner = cmdRunner
	}
}

// WithLocalFileSystem sets the FileSystem for LocalRunner
func WithLocalFileSystem(fs FileSystem) LocalRunnerOption {
	return func(l *LocalRunner) {
		l.fs = fs
	}
}

// NewLocalRunner creates a LocalRunner with default implementations and
// optional interfaces
func NewLocalRunner(logger *zap.Logger, _ *config.Config, opts ...LocalRunnerOption) *LocalRunner {
	runner := &LocalRunner{
		logger:    logger,
		cmdRunner: &RealCommandRunner{}, // Default implementation
		fs:        &RealFileSystem{},    // Default implementation
	}

	for _, opt := range opts {
		opt(runner)
	}

	return runner
}

// Prepare creates the per-request scratch directory and writes the source file.
func (l *LocalRunner) Prepare(code string, job Job) (string, error) {
	dir, err := l.fs.MkdirTemp("", "codexec-*")
	if err != nil {
		return "", fmt.Errorf("create scratch dir: %w", err)
	}
	if err := l.fs.WriteFile(dir+"/"+job.SourceName, []byte(code), FilePermission); err != nil {
		l.Cleanup(dir)
		return "", fmt.Errorf("write source file: %w", err)
	}
	return dir, nil
}

// Cleanup removes a scratch directory, logging failures.
func (l *LocalRunner) Cleanup(workDir string) {
	if workDir == "" {
		return
	}
	if err := l.fs.RemoveAll(workDir); err != nil {
		l.logger.Warn("failed to remove scratch dir", zap.String("path", workDir), zap.Error(err))
	}
}

// Compile runs the compile (or syntax check) command directly on the host.
func (l *LocalRunner) Compile(ctx context.Context, job Job) (RunResult, error) {
	argv := job.Toolchain.CompileCommand(job.WorkDir, job.SourceName)
	if argv == nil {
		argv = job.Toolchain.CheckCommand(job.WorkDir, job.SourceName)
	}
	if argv == nil {
		return RunResult{}, fmt.Errorf("language %s has no compile or check step", job.Toolchain.Name())
	}
	return l.invoke(ctx, job, argv, nil)
}

// Run executes the submission directly on the host.
func (l *LocalRunner) Run(ctx context.Context, job Job) (RunResult, error) {
	argv := job.Toolchain.RunCommand(job.WorkDir, job.SourceName)
	return l.invoke(ctx, job, argv, strings.NewReader(job.Stdin))
}

func (l *LocalRunner) invoke(ctx context.Context, job Job, argv []string, stdin *strings.Reader) (RunResult, error) {
	if job.Timeout <= 0 {
		return RunResult{}, fmt.Errorf("job timeout must be positive")
	}

	if env := job.Toolchain.Env(); len(env) > 0 {
		argv = append(append([]string{"env"}, env...), argv...)
	}

	runCtx, cancel := context.WithTimeout(ctx, job.Timeout)
	defer cancel()

	// A typed nil *strings.Reader must not leak into the io.Reader interface.
	var in io.Reader
	if stdin != nil {
		in = stdin
	}

	start := time.Now()
	stdout, stderr, exitCode, err := l.cmdRunner.RunCommand(runCtx, argv, in)
	duration := time.Since(start)

	result := RunResult{
		ExitCode: exitCode,
		Stdout:   stdout,
		Stderr:   stderr,
		Duration: duration,
	}

	if runCtx.Err() == context.DeadlineExceeded {
		result.TimedOut = true
		result.ExitCode = ExitCodeTimeout
		return result, nil
	}
	if err != nil {
		return result, fmt.Errorf("local run: %w", err)
	}
	if exitCode == ExitCodeOOMKilled {
		result.OOMKilled = true
	}
	return result, nil
}

// BuildImage is a no-op for the local backend.
func (l *LocalRunner) BuildImage(_ context.Context, tc language.Toolchain) error {
	l.logger.Info("local backend uses host toolchains, skipping image build",
		zap.String("language", tc.Name()))
	return nil
}

// CleanupOrphans is a no-op for the local backend.
func (l *LocalRunner) CleanupOrphans(context.Context) (int, error) {
	return 0, nil
}
