package language

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/assesshub/codexec/config"
)

func TestRegistryResolve(t *testing.T) {
	reg := NewRegistry(nil)

	t.Run("AllSupportedLanguages", func(t *testing.T) {
		for _, name := range []string{"python", "javascript", "java", "cpp", "csharp", "go", "rust"} {
			tc, ok := reg.Resolve(name)
			require.True(t, ok, name)
			assert.Equal(t, name, tc.Name())
			assert.NotEmpty(t, tc.Image())
			assert.NotEmpty(t, tc.FileExtension())
			assert.NotEmpty(t, tc.VersionCommand())
		}
	})

	t.Run("UnsupportedLanguage", func(t *testing.T) {
		_, ok := reg.Resolve("fortran")
		assert.False(t, ok)
	})

	t.Run("StableOrder", func(t *testing.T) {
		all := reg.All()
		require.Len(t, all, 7)
		assert.Equal(t, "python", all[0].Name())
		assert.Equal(t, "rust", all[6].Name())
	})
}

func TestRegistryOverrides(t *testing.T) {
	cfg := &config.Config{
		Languages: map[string]config.Language{
			"python": {Image: "registry.internal/py-runner:3.11", Dockerfile: "docker/Dockerfile.python"},
		},
	}
	reg := NewRegistry(cfg)

	py, ok := reg.Resolve("python")
	require.True(t, ok)
	assert.Equal(t, "registry.internal/py-runner:3.11", py.Image())
	assert.Equal(t, "docker/Dockerfile.python", py.Dockerfile())

	js, ok := reg.Resolve("javascript")
	require.True(t, ok)
	assert.Equal(t, "node:20-alpine", js.Image())
}

func TestInterpretedCommands(t *testing.T) {
	reg := NewRegistry(nil)

	py, _ := reg.Resolve("python")
	assert.False(t, py.Compiled())
	src, err := py.SourceFile("print('hi')")
	require.NoError(t, err)
	assert.Equal(t, "main.py", src)
	assert.Nil(t, py.CompileCommand("/workdir", src))
	assert.Equal(t, []string{"python3", "/workdir/main.py"}, py.RunCommand("/workdir", src))
	assert.Equal(t, []string{"python3", "-m", "py_compile", "/workdir/main.py"}, py.CheckCommand("/workdir", src))

	js, _ := reg.Resolve("javascript")
	assert.Equal(t, []string{"node", "--check", "/workdir/main.js"}, js.CheckCommand("/workdir", "main.js"))
}

func TestJavaEntryPoint(t *testing.T) {
	reg := NewRegistry(nil)
	java, _ := reg.Resolve("java")

	t.Run("ExtractsPublicClass", func(t *testing.T) {
		src, err := java.SourceFile("public class Solution {\n  public static void main(String[] a) {}\n}")
		require.NoError(t, err)
		assert.Equal(t, "Solution.java", src)
		assert.Equal(t, []string{"javac", "/workdir/Solution.java"}, java.CompileCommand("/workdir", src))
		assert.Equal(t, []string{"java", "-cp", "/workdir", "Solution"}, java.RunCommand("/workdir", src))
	})

	t.Run("MissingPublicClass", func(t *testing.T) {
		_, err := java.SourceFile("class hidden {}")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "no public class")
	})
}

func TestCompiledCommands(t *testing.T) {
	reg := NewRegistry(nil)

	cases := []struct {
		lang    string
		compile string
		run     string
	}{
		{"cpp", "g++", "/workdir/app"},
		{"go", "go", "/workdir/app"},
		{"rust", "rustc", "/workdir/app"},
		{"csharp", "mcs", "mono"},
	}
	for _, tt := range cases {
		t.Run(tt.lang, func(t *testing.T) {
			tc, ok := reg.Resolve(tt.lang)
			require.True(t, ok)
			assert.True(t, tc.Compiled())

			src, err := tc.SourceFile("whatever")
			require.NoError(t, err)
			assert.True(t, strings.HasSuffix(src, tc.FileExtension()))

			compile := tc.CompileCommand("/workdir", src)
			require.NotEmpty(t, compile)
			assert.Equal(t, tt.compile, compile[0])

			run := tc.RunCommand("/workdir", src)
			require.NotEmpty(t, run)
			assert.Equal(t, tt.run, run[0])
		})
	}
}
