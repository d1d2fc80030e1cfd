package sandbox

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/assesshub/codexec/language"
)

const (
	// containerWorkdir is where the scratch directory is mounted inside the
	// container.
	containerWorkdir = "/workdir"

	// containerLabel marks containers created by this engine so orphan
	// cleanup can find them.
	containerLabel = "managed-by=codexec"

	// teardownTimeout bounds the force-remove of a finished container.
	teardownTimeout = 10 * time.Second

	// FilePermission is applied to source and input files in the scratch dir.
	// The container user must be able to read them.
	FilePermission = 0644

	// DirPermission is applied to the mounted workdir. The container runs as
	// an unprivileged user that does not share the host uid, so it needs
	// world access to read the source and to write compile output into the
	// writable mount. The 0700 scratch root above it keeps other host users
	// out; bind mounts bypass that for the container.
	DirPermission = 0777
)

// ContainerRunner runs sandbox invocations through a container CLI binary.
// It backs both the Docker and the Podman executors.
type ContainerRunner struct {
	logger        *zap.Logger
	binary        string
	scratchSizeMB int
	statsPoll     time.Duration
	cmdRunner     CommandRunner
	fs            FileSystem
}

// ContainerRunnerOption defines a functional option for ContainerRunner
type ContainerRunnerOption func(*ContainerRunner)

// WithCommandRunner sets the CommandRunner for the runner
func WithCommandRunner(cmdRunner CommandRunner) ContainerRunnerOption {
	return func(r *ContainerRunner) {
		r.cmdRunner = cmdRunner
	}
}

// WithFileSystem sets the FileSystem for the runner
func WithFileSystem(fs FileSystem) ContainerRunnerOption {
	return func(r *ContainerRunner) {
		r.fs = fs
	}
}

func newContainerRunner(logger *zap.Logger, binary string, scratchSizeMB int, statsPoll time.Duration, opts ...ContainerRunnerOption) *ContainerRunner {
	r := &ContainerRunner{
		logger:        logger,
		binary:        binary,
		scratchSizeMB: scratchSizeMB,
		statsPoll:     statsPoll,
		cmdRunner:     &RealCommandRunner{}, // Default implementation
		fs:            &RealFileSystem{},    // Default implementation
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Prepare creates the per-request scratch tree and writes the source file.
// It returns the workdir subdirectory that gets bind-mounted; the scratch
// root stays 0700 while the workdir and source must be accessible to the
// container's unprivileged user.
func (r *ContainerRunner) Prepare(code string, job Job) (string, error) {
	scratch, err := r.fs.MkdirTemp("", "codexec-*")
	if err != nil {
		return "", fmt.Errorf("create scratch dir: %w", err)
	}

	dir := filepath.Join(scratch, "workdir")
	if err := r.fs.MkdirAll(dir, DirPermission); err != nil {
		r.removeScratch(scratch)
		return "", fmt.Errorf("create workdir: %w", err)
	}
	// MkdirAll and WriteFile are subject to the umask; the modes must be
	// exact or the container user loses access.
	if err := r.fs.Chmod(dir, DirPermission); err != nil {
		r.removeScratch(scratch)
		return "", fmt.Errorf("set workdir mode: %w", err)
	}

	src := filepath.Join(dir, job.SourceName)
	if err := r.fs.WriteFile(src, []byte(code), FilePermission); err != nil {
		r.removeScratch(scratch)
		return "", fmt.Errorf("write source file: %w", err)
	}
	if err := r.fs.Chmod(src, FilePermission); err != nil {
		r.removeScratch(scratch)
		return "", fmt.Errorf("set source file mode: %w", err)
	}

	return dir, nil
}

// Cleanup removes the per-request scratch tree created by Prepare, logging
// failures. It takes the workdir Prepare returned; the scratch root is its
// parent.
func (r *ContainerRunner) Cleanup(workDir string) {
	if workDir == "" {
		return
	}
	r.removeScratch(filepath.Dir(workDir))
}

func (r *ContainerRunner) removeScratch(path string) {
	if err := r.fs.RemoveAll(path); err != nil {
		r.logger.Warn("failed to remove scratch dir", zap.String("path", path), zap.Error(err))
	}
}

// Compile runs the toolchain's compile command in a fresh container with a
// writable scratch mount so the binary lands next to the source. Interpreted
// languages fall back to their syntax-only check command.
func (r *ContainerRunner) Compile(ctx context.Context, job Job) (RunResult, error) {
	argv := job.Toolchain.CompileCommand(containerWorkdir, job.SourceName)
	if argv == nil {
		argv = job.Toolchain.CheckCommand(containerWorkdir, job.SourceName)
	}
	if argv == nil {
		return RunResult{}, fmt.Errorf("language %s has no compile or check step", job.Toolchain.Name())
	}
	return r.invoke(ctx, job, argv, true, nil)
}

// Run executes the submission against one test case input in a fresh
// container with a read-only scratch mount.
func (r *ContainerRunner) Run(ctx context.Context, job Job) (RunResult, error) {
	argv := job.Toolchain.RunCommand(containerWorkdir, job.SourceName)
	return r.invoke(ctx, job, argv, false, strings.NewReader(job.Stdin))
}

func (r *ContainerRunner) invoke(ctx context.Context, job Job, argv []string, writable bool, stdin io.Reader) (RunResult, error) {
	if job.Timeout <= 0 {
		return RunResult{}, fmt.Errorf("job timeout must be positive")
	}
	if job.WorkDir == "" {
		return RunResult{}, fmt.Errorf("job workdir not prepared")
	}

	name := "codexec-" + uuid.NewString()

	mount := fmt.Sprintf("%s:%s", job.WorkDir, containerWorkdir)
	if !writable {
		mount += ":ro"
	}

	args := []string{
		r.binary, "run",
		"--name", name,
		"--label", containerLabel,
		"-i",
		"-v", mount,
		"--workdir", containerWorkdir,
		"--network", "none",
		"--read-only",
		"--tmpfs", fmt.Sprintf("/tmp:rw,noexec,nosuid,size=%dm", r.scratchSizeMB),
		"--memory", fmt.Sprintf("%dm", job.Limits.MemoryMB),
		"--pids-limit", strconv.Itoa(job.Limits.MaxProcesses),
		"--ulimit", fmt.Sprintf("nofile=%d:%d", job.Limits.MaxFiles, job.Limits.MaxFiles),
		"--ulimit", fmt.Sprintf("cpu=%d", job.Limits.CPUTimeSeconds),
		"--cap-drop", "ALL",
		"--security-opt", "no-new-privileges",
		"--user", "nobody",
	}
	for _, e := range job.Toolchain.Env() {
		args = append(args, "-e", e)
	}
	args = append(args, job.Toolchain.Image())
	args = append(args, argv...)

	// Teardown must run on every exit path, including timeout.
	defer r.teardown(name)

	runCtx, cancel := context.WithTimeout(ctx, job.Timeout)
	defer cancel()

	statsCtx, stopStats := context.WithCancel(ctx)
	peakCh := make(chan float64, 1)
	go r.samplePeakMemory(statsCtx, name, peakCh)

	start := time.Now()
	stdout, stderr, exitCode, err := r.cmdRunner.RunCommand(runCtx, args, stdin)
	duration := time.Since(start)

	stopStats()
	peak := <-peakCh

	result := RunResult{
		ExitCode:     exitCode,
		Stdout:       stdout,
		Stderr:       stderr,
		MemoryPeakMB: peak,
		Duration:     duration,
	}

	if runCtx.Err() == context.DeadlineExceeded {
		result.TimedOut = true
		result.ExitCode = ExitCodeTimeout
		return result, nil
	}

	if err != nil {
		return result, fmt.Errorf("%s run: %w", r.binary, err)
	}

	if exitCode == ExitCodeOOMKilled || (exitCode != 0 && r.wasOOMKilled(ctx, name)) {
		result.OOMKilled = true
	}

	return result, nil
}

// wasOOMKilled asks the container runtime whether the kernel OOM killer
// terminated the container. Best-effort: inspection failures report false.
func (r *ContainerRunner) wasOOMKilled(ctx context.Context, name string) bool {
	stdout, _, exitCode, err := r.cmdRunner.RunCommand(ctx,
		[]string{r.binary, "inspect", "--format", "{{.State.OOMKilled}}", name}, nil)
	if err != nil || exitCode != 0 {
		return false
	}
	return strings.TrimSpace(stdout) == "true"
}

// samplePeakMemory polls the runtime's stats while the container runs and
// reports the highest sample seen. Best-effort: a container that exits before
// the first sample reports 0.
func (r *ContainerRunner) samplePeakMemory(ctx context.Context, name string, out chan<- float64) {
	var peak float64
	ticker := time.NewTicker(r.statsPoll)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			out <- peak
			return
		case <-ticker.C:
			stdout, _, exitCode, err := r.cmdRunner.RunCommand(ctx,
				[]string{r.binary, "stats", "--no-stream", "--format", "{{.MemUsage}}", name}, nil)
			if err != nil || exitCode != 0 {
				continue
			}
			if mb, ok := parseMemUsage(stdout); ok && mb > peak {
				peak = mb
			}
		}
	}
}

// parseMemUsage extracts the usage side of a "12.5MiB / 128MiB" stats line
// and converts it to megabytes.
func parseMemUsage(line string) (float64, bool) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return 0, false
	}
	usage := fields[0]

	units := []struct {
		suffix string
		factor float64
	}{
		{"GiB", 1024},
		{"MiB", 1},
		{"KiB", 1.0 / 1024},
		{"B", 1.0 / (1024 * 1024)},
	}
	for _, u := range units {
		if strings.HasSuffix(usage, u.suffix) {
			v, err := strconv.ParseFloat(strings.TrimSuffix(usage, u.suffix), 64)
			if err != nil {
				return 0, false
			}
			return v * u.factor, true
		}
	}
	return 0, false
}

func (r *ContainerRunner) teardown(name string) {
	ctx, cancel := context.WithTimeout(context.Background(), teardownTimeout)
	defer cancel()

	_, stderr, exitCode, err := r.cmdRunner.RunCommand(ctx, []string{r.binary, "rm", "-f", name}, nil)
	if err != nil || exitCode != 0 {
		r.logger.Warn("container teardown failed",
			zap.String("container", name),
			zap.Int("exit_code", exitCode),
			zap.String("stderr", strings.TrimSpace(stderr)),
			zap.Error(err))
	}
}

// BuildImage builds the toolchain's sandbox image from its configured
// Dockerfile, or pulls the image when no Dockerfile is configured.
func (r *ContainerRunner) BuildImage(ctx context.Context, tc language.Toolchain) error {
	var args []string
	if df := tc.Dockerfile(); df != "" {
		args = []string{r.binary, "build", "-f", df, "-t", tc.Image(), "."}
	} else {
		args = []string{r.binary, "pull", tc.Image()}
	}

	r.logger.Info("preparing sandbox image",
		zap.String("language", tc.Name()),
		zap.String("image", tc.Image()))

	_, stderr, exitCode, err := r.cmdRunner.RunCommand(ctx, args, nil)
	if err != nil {
		return fmt.Errorf("prepare image %s: %w", tc.Image(), err)
	}
	if exitCode != 0 {
		return fmt.Errorf("prepare image %s: exit code %d: %s", tc.Image(), exitCode, strings.TrimSpace(stderr))
	}
	return nil
}

// CleanupOrphans force-removes leftover containers carrying the engine label.
func (r *ContainerRunner) CleanupOrphans(ctx context.Context) (int, error) {
	stdout, _, exitCode, err := r.cmdRunner.RunCommand(ctx,
		[]string{r.binary, "ps", "-aq", "--filter", "label=" + containerLabel}, nil)
	if err != nil {
		return 0, fmt.Errorf("list orphaned containers: %w", err)
	}
	if exitCode != 0 {
		return 0, fmt.Errorf("list orphaned containers: exit code %d", exitCode)
	}

	removed := 0
	for _, id := range strings.Fields(stdout) {
		_, _, rmExit, rmErr := r.cmdRunner.RunCommand(ctx, []string{r.binary, "rm", "-f", id}, nil)
		if rmErr != nil || rmExit != 0 {
			r.logger.Warn("failed to remove orphaned container", zap.String("id", id), zap.Error(rmErr))
			continue
		}
		r.logger.Info("removed orphaned container", zap.String("id", id))
		removed++
	}
	return removed, nil
}
