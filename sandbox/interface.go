package sandbox

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"time"

	"github.com/assesshub/codexec/language"
	"github.com/assesshub/codexec/security"
)

// Exit codes the runner translates into execution statuses.
const (
	// ExitCodeTimeout is reported when the wall-clock deadline fires.
	ExitCodeTimeout = 124
	// ExitCodeOOMKilled is the conventional exit code of an OOM-killed process.
	ExitCodeOOMKilled = 137
)

// Job describes one compile step or one test-case run.
type Job struct {
	// SourceName is the file name the submission is saved under, resolved by
	// the orchestrator via Toolchain.SourceFile.
	SourceName string
	Toolchain  language.Toolchain
	Limits     security.LimitSet

	// Timeout bounds the wall-clock time of this single invocation. Waiting
	// without a deadline is a bug; a zero Timeout is rejected.
	Timeout time.Duration

	// WorkDir is the host-side scratch directory created by Prepare.
	WorkDir string

	// Stdin is the test case input fed to the program. It is passed as
	// literal data on the process's standard input and never interpreted by
	// a shell.
	Stdin string
}

// RunResult is the raw outcome of one sandbox invocation.
type RunResult struct {
	ExitCode     int
	Stdout       string
	Stderr       string
	MemoryPeakMB float64
	Duration     time.Duration
	TimedOut     bool
	OOMKilled    bool
}

// Runner executes compile and run steps in isolated contexts.
type Runner interface {
	// Prepare creates the per-request scratch directory and writes the
	// submission source into it.
	Prepare(code string, job Job) (workDir string, err error)

	// Cleanup removes a scratch directory. Failures are logged, not returned.
	Cleanup(workDir string)

	// Compile runs the toolchain's compile command (or its syntax-only check
	// command for interpreted languages) in a fresh context.
	Compile(ctx context.Context, job Job) (RunResult, error)

	// Run executes the submission against one test case input in a fresh
	// context.
	Run(ctx context.Context, job Job) (RunResult, error)

	// BuildImage builds or pulls the sandbox image for one toolchain.
	// Administrative operation, not part of per-request execution.
	BuildImage(ctx context.Context, tc language.Toolchain) error

	// CleanupOrphans force-removes leftover containers created by this
	// engine and returns how many were removed.
	CleanupOrphans(ctx context.Context) (int, error)
}

// CommandRunner defines an interface for executing system commands
type CommandRunner interface {
	RunCommand(ctx context.Context, args []string, stdin io.Reader) (stdout, stderr string, exitCode int, err error)
}

// RealCommandRunner implements CommandRunner using actual exec commands
type RealCommandRunner struct{}

// RunCommand executes the given command with arguments
func (RealCommandRunner) RunCommand(ctx context.Context, args []string, stdin io.Reader) (stdout, stderr string, exitCode int, err error) {
	if len(args) < 1 {
		return "", "", 0, fmt.Errorf("no command provided")
	}

	cmd := exec.CommandContext(ctx, args[0], args[1:]...) //nolint:gosec // argv is built from static toolchain tables, never user data

	var stdoutBuf, stderrBuf bytes.Buffer
	cmd.Stdout = &stdoutBuf
	cmd.Stderr = &stderrBuf
	cmd.Stdin = stdin

	err = cmd.Run()

	exitCode = 0
	if err != nil {
		if exitError, ok := err.(*exec.ExitError); ok {
			exitCode = exitError.ExitCode()
			err = nil
		} else {
			return stdoutBuf.String(), stderrBuf.String(), 0, err
		}
	}

	return stdoutBuf.String(), stderrBuf.String(), exitCode, nil
}

// FileSystem defines an interface for file system operations
type FileSystem interface {
	MkdirTemp(dir, pattern string) (string, error)
	MkdirAll(path string, perm os.FileMode) error
	Chmod(name string, mode os.FileMode) error
	WriteFile(filename string, data []byte, perm os.FileMode) error
	RemoveAll(path string) error
}

// RealFileSystem implements FileSystem using actual file system operations
type RealFileSystem struct{}

func (RealFileSystem) MkdirTemp(dir, pattern string) (string, error) {
	return os.MkdirTemp(dir, pattern)
}

func (RealFileSystem) MkdirAll(path string, perm os.FileMode) error {
	return os.MkdirAll(path, perm)
}

func (RealFileSystem) Chmod(name string, mode os.FileMode) error {
	return os.Chmod(name, mode)
}

func (RealFileSystem) WriteFile(filename string, data []byte, perm os.FileMode) error {
	return os.WriteFile(filename, data, perm)
}

func (RealFileSystem) RemoveAll(path string) error {
	return os.RemoveAll(path)
}
