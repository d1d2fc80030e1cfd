package sandbox

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/assesshub/codexec/config"
	"github.com/assesshub/codexec/language"
	"github.com/assesshub/codexec/security"
)

type mockResult struct {
	stdout   string
	stderr   string
	exitCode int
	err      error
	block    bool // block until the context is done, simulating a hung container
}

type mockCall struct {
	args  []string
	stdin string
}

// MockCommandRunner implements CommandRunner for testing. Results are keyed
// by the CLI subcommand (args[1]): "run", "stats", "inspect", "rm", ...
type MockCommandRunner struct {
	mu      sync.Mutex
	results map[string]mockResult
	calls   []mockCall
}

func (m *MockCommandRunner) RunCommand(ctx context.Context, args []string, stdin io.Reader) (string, string, int, error) {
	var in string
	if stdin != nil {
		b, _ := io.ReadAll(stdin)
		in = string(b)
	}

	m.mu.Lock()
	m.calls = append(m.calls, mockCall{args: args, stdin: in})
	key := ""
	if len(args) > 1 {
		key = args[1]
	}
	res := m.results[key]
	m.mu.Unlock()

	if res.block {
		<-ctx.Done()
		return res.stdout, res.stderr, -1, ctx.Err()
	}
	return res.stdout, res.stderr, res.exitCode, res.err
}

func (m *MockCommandRunner) callsFor(subcommand string) []mockCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []mockCall
	for _, c := range m.calls {
		if len(c.args) > 1 && c.args[1] == subcommand {
			out = append(out, c)
		}
	}
	return out
}

// MockFileSystem implements FileSystem for testing
type MockFileSystem struct {
	mu            sync.Mutex
	mkdirTempErr  error
	writeFileErr  error
	writtenFiles  map[string][]byte
	mkdirAllPerms map[string]os.FileMode
	chmodPerms    map[string]os.FileMode
	removedPaths  []string
	removeAllErrs map[string]error
}

func (m *MockFileSystem) MkdirTemp(string, string) (string, error) {
	if m.mkdirTempErr != nil {
		return "", m.mkdirTempErr
	}
	return "/tmp/codexec-test", nil
}

func (m *MockFileSystem) MkdirAll(path string, perm os.FileMode) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.mkdirAllPerms == nil {
		m.mkdirAllPerms = make(map[string]os.FileMode)
	}
	m.mkdirAllPerms[path] = perm
	return nil
}

func (m *MockFileSystem) Chmod(name string, mode os.FileMode) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.chmodPerms == nil {
		m.chmodPerms = make(map[string]os.FileMode)
	}
	m.chmodPerms[name] = mode
	return nil
}

func (m *MockFileSystem) WriteFile(filename string, data []byte, _ os.FileMode) error {
	if m.writeFileErr != nil {
		return m.writeFileErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.writtenFiles == nil {
		m.writtenFiles = make(map[string][]byte)
	}
	m.writtenFiles[filename] = data
	return nil
}

func (m *MockFileSystem) RemoveAll(path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.removedPaths = append(m.removedPaths, path)
	if err, ok := m.removeAllErrs[path]; ok {
		return err
	}
	return nil
}

func testConfig() *config.Config {
	return &config.Config{
		Sandbox: config.SandboxConfig{
			Backend:       "docker",
			ScratchSizeMB: 64,
			StatsPollMs:   250,
		},
	}
}

func testJob(t *testing.T, lang string) Job {
	t.Helper()
	tc, ok := language.NewRegistry(nil).Resolve(lang)
	require.True(t, ok)
	src, err := tc.SourceFile("code")
	require.NoError(t, err)
	return Job{
		SourceName: src,
		Toolchain:  tc,
		Limits:     security.LevelHigh.Limits(),
		Timeout:    5 * time.Second,
		WorkDir:    "/tmp/codexec-test",
	}
}

func newTestRunner(t *testing.T, mock *MockCommandRunner, fs *MockFileSystem) *ContainerRunner {
	t.Helper()
	return NewDockerRunner(zaptest.NewLogger(t), testConfig(),
		WithCommandRunner(mock), WithFileSystem(fs))
}

func argsContainPair(t *testing.T, args []string, flag, value string) {
	t.Helper()
	for i := 0; i < len(args)-1; i++ {
		if args[i] == flag && args[i+1] == value {
			return
		}
	}
	t.Fatalf("args %v missing %s %s", args, flag, value)
}

func TestPrepare(t *testing.T) {
	fs := &MockFileSystem{}
	runner := newTestRunner(t, &MockCommandRunner{}, fs)

	job := testJob(t, "python")
	dir, err := runner.Prepare("print('hi')", job)
	require.NoError(t, err)

	// the mounted workdir is a subdirectory; the 0700 temp root stays private
	assert.Equal(t, "/tmp/codexec-test/workdir", dir)
	assert.Equal(t, []byte("print('hi')"), fs.writtenFiles[dir+"/main.py"])

	// the container user does not share the host uid, so the workdir and the
	// source need world access, set explicitly to defeat the umask
	assert.Equal(t, os.FileMode(0777), fs.mkdirAllPerms[dir])
	assert.Equal(t, os.FileMode(0777), fs.chmodPerms[dir])
	assert.Equal(t, os.FileMode(0644), fs.chmodPerms[dir+"/main.py"])

	runner.Cleanup(dir)
	assert.Contains(t, fs.removedPaths, "/tmp/codexec-test")
}

func TestPrepareScratchPermissionsOnDisk(t *testing.T) {
	runner := NewDockerRunner(zaptest.NewLogger(t), testConfig(),
		WithCommandRunner(&MockCommandRunner{}))

	dir, err := runner.Prepare("print('hi')", testJob(t, "python"))
	require.NoError(t, err)
	defer runner.Cleanup(dir)

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0777), info.Mode().Perm())

	parent, err := os.Stat(filepath.Dir(dir))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0700), parent.Mode().Perm())

	src, err := os.Stat(filepath.Join(dir, "main.py"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0644), src.Mode().Perm())

	runner.Cleanup(dir)
	_, err = os.Stat(filepath.Dir(dir))
	assert.True(t, os.IsNotExist(err))
}

func TestRunSuccess(t *testing.T) {
	mock := &MockCommandRunner{results: map[string]mockResult{
		"run":   {stdout: "8\n", exitCode: 0},
		"stats": {exitCode: 1},
	}}
	runner := newTestRunner(t, mock, &MockFileSystem{})

	job := testJob(t, "python")
	job.Stdin = "5\n3"

	res, err := runner.Run(context.Background(), job)
	require.NoError(t, err)
	assert.Equal(t, 0, res.ExitCode)
	assert.Equal(t, "8\n", res.Stdout)
	assert.False(t, res.TimedOut)
	assert.False(t, res.OOMKilled)

	runs := mock.callsFor("run")
	require.Len(t, runs, 1)
	args := runs[0].args

	assert.Equal(t, "docker", args[0])
	assert.Equal(t, "5\n3", runs[0].stdin)
	argsContainPair(t, args, "--network", "none")
	argsContainPair(t, args, "--user", "nobody")
	argsContainPair(t, args, "--cap-drop", "ALL")
	argsContainPair(t, args, "--memory", "128m")
	argsContainPair(t, args, "--pids-limit", "2")
	argsContainPair(t, args, "--ulimit", "nofile=15:15")
	argsContainPair(t, args, "-v", "/tmp/codexec-test:/workdir:ro")
	assert.Contains(t, args, "--read-only")
	assert.Equal(t, "/workdir/main.py", args[len(args)-1])

	// teardown runs on the success path too
	rms := mock.callsFor("rm")
	require.Len(t, rms, 1)
	assert.Equal(t, "-f", rms[0].args[2])
}

func TestCompileUsesWritableMount(t *testing.T) {
	mock := &MockCommandRunner{results: map[string]mockResult{
		"run":   {exitCode: 0},
		"stats": {exitCode: 1},
	}}
	runner := newTestRunner(t, mock, &MockFileSystem{})

	job := testJob(t, "cpp")
	_, err := runner.Compile(context.Background(), job)
	require.NoError(t, err)

	runs := mock.callsFor("run")
	require.Len(t, runs, 1)
	argsContainPair(t, runs[0].args, "-v", "/tmp/codexec-test:/workdir")
	assert.Contains(t, runs[0].args, "g++")
}

func TestCompileFallsBackToCheckForInterpreted(t *testing.T) {
	mock := &MockCommandRunner{results: map[string]mockResult{
		"run":   {exitCode: 0},
		"stats": {exitCode: 1},
	}}
	runner := newTestRunner(t, mock, &MockFileSystem{})

	job := testJob(t, "javascript")
	_, err := runner.Compile(context.Background(), job)
	require.NoError(t, err)

	runs := mock.callsFor("run")
	require.Len(t, runs, 1)
	assert.Contains(t, runs[0].args, "--check")
}

func TestCompileFailure(t *testing.T) {
	mock := &MockCommandRunner{results: map[string]mockResult{
		"run":   {stderr: "main.cpp:3: error: expected ';'", exitCode: 1},
		"stats": {exitCode: 1},
	}}
	runner := newTestRunner(t, mock, &MockFileSystem{})

	res, err := runner.Compile(context.Background(), testJob(t, "cpp"))
	require.NoError(t, err)
	assert.Equal(t, 1, res.ExitCode)
	assert.Contains(t, res.Stderr, "expected ';'")
}

func TestRunTimeout(t *testing.T) {
	mock := &MockCommandRunner{results: map[string]mockResult{
		"run":   {block: true},
		"stats": {exitCode: 1},
	}}
	runner := newTestRunner(t, mock, &MockFileSystem{})

	job := testJob(t, "python")
	job.Timeout = 50 * time.Millisecond

	res, err := runner.Run(context.Background(), job)
	require.NoError(t, err)
	assert.True(t, res.TimedOut)
	assert.Equal(t, ExitCodeTimeout, res.ExitCode)

	// container must still be force-removed
	require.Len(t, mock.callsFor("rm"), 1)
}

func TestRunOOMKilled(t *testing.T) {
	t.Run("ByExitCode", func(t *testing.T) {
		mock := &MockCommandRunner{results: map[string]mockResult{
			"run":   {exitCode: ExitCodeOOMKilled},
			"stats": {exitCode: 1},
		}}
		runner := newTestRunner(t, mock, &MockFileSystem{})

		res, err := runner.Run(context.Background(), testJob(t, "python"))
		require.NoError(t, err)
		assert.True(t, res.OOMKilled)
	})

	t.Run("ByInspect", func(t *testing.T) {
		mock := &MockCommandRunner{results: map[string]mockResult{
			"run":     {exitCode: 1},
			"inspect": {stdout: "true\n", exitCode: 0},
			"stats":   {exitCode: 1},
		}}
		runner := newTestRunner(t, mock, &MockFileSystem{})

		res, err := runner.Run(context.Background(), testJob(t, "python"))
		require.NoError(t, err)
		assert.True(t, res.OOMKilled)
	})

	t.Run("PlainRuntimeError", func(t *testing.T) {
		mock := &MockCommandRunner{results: map[string]mockResult{
			"run":     {exitCode: 1},
			"inspect": {stdout: "false\n", exitCode: 0},
			"stats":   {exitCode: 1},
		}}
		runner := newTestRunner(t, mock, &MockFileSystem{})

		res, err := runner.Run(context.Background(), testJob(t, "python"))
		require.NoError(t, err)
		assert.False(t, res.OOMKilled)
	})
}

func TestInvokeValidation(t *testing.T) {
	runner := newTestRunner(t, &MockCommandRunner{}, &MockFileSystem{})

	t.Run("ZeroTimeout", func(t *testing.T) {
		job := testJob(t, "python")
		job.Timeout = 0
		_, err := runner.Run(context.Background(), job)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "timeout")
	})

	t.Run("MissingWorkDir", func(t *testing.T) {
		job := testJob(t, "python")
		job.WorkDir = ""
		_, err := runner.Run(context.Background(), job)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "workdir")
	})
}

func TestParseMemUsage(t *testing.T) {
	cases := []struct {
		line string
		want float64
		ok   bool
	}{
		{"12.5MiB / 128MiB", 12.5, true},
		{"512KiB / 128MiB", 0.5, true},
		{"1GiB / 2GiB", 1024, true},
		{"", 0, false},
		{"garbage", 0, false},
	}
	for _, tt := range cases {
		got, ok := parseMemUsage(tt.line)
		assert.Equal(t, tt.ok, ok, tt.line)
		assert.InDelta(t, tt.want, got, 0.001, tt.line)
	}
}

func TestBuildImage(t *testing.T) {
	t.Run("PullsWhenNoDockerfile", func(t *testing.T) {
		mock := &MockCommandRunner{results: map[string]mockResult{
			"pull": {exitCode: 0},
		}}
		runner := newTestRunner(t, mock, &MockFileSystem{})

		tc, _ := language.NewRegistry(nil).Resolve("python")
		require.NoError(t, runner.BuildImage(context.Background(), tc))

		pulls := mock.callsFor("pull")
		require.Len(t, pulls, 1)
		assert.Equal(t, tc.Image(), pulls[0].args[2])
	})

	t.Run("BuildsFromDockerfile", func(t *testing.T) {
		mock := &MockCommandRunner{results: map[string]mockResult{
			"build": {exitCode: 0},
		}}
		runner := newTestRunner(t, mock, &MockFileSystem{})

		cfg := &config.Config{Languages: map[string]config.Language{
			"python": {Image: "assess/py:latest", Dockerfile: "docker/Dockerfile.python"},
		}}
		tc, _ := language.NewRegistry(cfg).Resolve("python")
		require.NoError(t, runner.BuildImage(context.Background(), tc))

		builds := mock.callsFor("build")
		require.Len(t, builds, 1)
		argsContainPair(t, builds[0].args, "-f", "docker/Dockerfile.python")
		argsContainPair(t, builds[0].args, "-t", "assess/py:latest")
	})

	t.Run("ReportsFailure", func(t *testing.T) {
		mock := &MockCommandRunner{results: map[string]mockResult{
			"pull": {stderr: "not found", exitCode: 1},
		}}
		runner := newTestRunner(t, mock, &MockFileSystem{})

		tc, _ := language.NewRegistry(nil).Resolve("python")
		err := runner.BuildImage(context.Background(), tc)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "not found")
	})
}

func TestCleanupOrphans(t *testing.T) {
	mock := &MockCommandRunner{results: map[string]mockResult{
		"ps": {stdout: "aaa\nbbb\n", exitCode: 0},
		"rm": {exitCode: 0},
	}}
	runner := newTestRunner(t, mock, &MockFileSystem{})

	removed, err := runner.CleanupOrphans(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	ps := mock.callsFor("ps")
	require.Len(t, ps, 1)
	argsContainPair(t, ps[0].args, "--filter", "label="+containerLabel)
	assert.Len(t, mock.callsFor("rm"), 2)
}

func TestFactory(t *testing.T) {
	logger := zaptest.NewLogger(t)

	t.Run("Docker", func(t *testing.T) {
		cfg := testConfig()
		runner, err := NewRunner(logger, cfg)
		require.NoError(t, err)
		assert.IsType(t, &ContainerRunner{}, runner)
	})

	t.Run("Podman", func(t *testing.T) {
		cfg := testConfig()
		cfg.Sandbox.Backend = "podman"
		_, err := NewRunner(logger, cfg)
		require.NoError(t, err)
	})

	t.Run("LocalRequiresOptIn", func(t *testing.T) {
		cfg := testConfig()
		cfg.Sandbox.Backend = "local"
		_, err := NewRunner(logger, cfg)
		require.Error(t, err)

		cfg.Sandbox.EnableLocalBackend = true
		runner, err := NewRunner(logger, cfg)
		require.NoError(t, err)
		assert.IsType(t, &LocalRunner{}, runner)
	})

	t.Run("Unsupported", func(t *testing.T) {
		cfg := testConfig()
		cfg.Sandbox.Backend = "chroot"
		_, err := NewRunner(logger, cfg)
		assert.Error(t, err)
	})
}
