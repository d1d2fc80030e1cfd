package language

import "path"

// BinaryName is the output name compiled submissions are linked to inside the
// sandbox working directory.
const BinaryName = "app"

// Toolchain describes how one supported language is compiled, run and
// syntax-checked inside a sandbox context.
type Toolchain interface {
	Name() string
	Version() string
	Image() string
	Dockerfile() string
	FileExtension() string
	Compiled() bool

	// Env lists extra environment variables required by the toolchain.
	Env() []string

	// SourceFile resolves the file name the submission must be saved under.
	// Class-based languages extract the public entry point; failing to find
	// one is a compilation error reported to the submitter, not a crash.
	SourceFile(code string) (string, error)

	// CompileCommand returns the compile argument vector, or nil for
	// interpreted languages.
	CompileCommand(workdir, source string) []string

	// RunCommand returns the argument vector that executes the submission.
	RunCommand(workdir, source string) []string

	// CheckCommand returns a parse-only syntax check vector for interpreted
	// languages, or nil where compilation serves as the check.
	CheckCommand(workdir, source string) []string

	// VersionCommand returns the toolchain version probe.
	VersionCommand() []string
}

// base carries the static metadata shared by all toolchains.
type base struct {
	name       string
	version    string
	image      string
	dockerfile string
	ext        string
	env        []string
}

func (b base) Name() string          { return b.name }
func (b base) Version() string       { return b.version }
func (b base) Image() string         { return b.image }
func (b base) Dockerfile() string    { return b.dockerfile }
func (b base) FileExtension() string { return b.ext }
func (b base) Env() []string         { return b.env }

func (b base) SourceFile(string) (string, error) {
	return "main" + b.ext, nil
}

func (b base) CompileCommand(string, string) []string { return nil }
func (b base) CheckCommand(string, string) []string   { return nil }

func binaryPath(workdir string) string {
	return path.Join(workdir, BinaryName)
}
