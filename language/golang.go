package language

import "path"

type golang struct{ base }

func newGolang(image, dockerfile string) Toolchain {
	return golang{base{
		name:       "go",
		version:    "1.23",
		image:      orDefault(image, "golang:1.23-alpine"),
		dockerfile: dockerfile,
		ext:        ".go",
		// The go tool insists on a writable build cache; point it at the
		// sandbox scratch tmpfs.
		env: []string{"GOCACHE=/tmp/gocache", "GOPATH=/tmp/gopath"},
	}}
}

func (golang) Compiled() bool { return true }

func (golang) CompileCommand(workdir, source string) []string {
	return []string{"go", "build", "-o", binaryPath(workdir), path.Join(workdir, source)}
}

func (golang) RunCommand(workdir, _ string) []string {
	return []string{binaryPath(workdir)}
}

func (golang) VersionCommand() []string {
	return []string{"go", "version"}
}
