package language

import "path"

type rust struct{ base }

func newRust(image, dockerfile string) Toolchain {
	return rust{base{
		name:       "rust",
		version:    "1.80",
		image:      orDefault(image, "rust:1.80-slim"),
		dockerfile: dockerfile,
		ext:        ".rs",
	}}
}

func (rust) Compiled() bool { return true }

func (rust) CompileCommand(workdir, source string) []string {
	return []string{"rustc", "-O", "-o", binaryPath(workdir), path.Join(workdir, source)}
}

func (rust) RunCommand(workdir, _ string) []string {
	return []string{binaryPath(workdir)}
}

func (rust) VersionCommand() []string {
	return []string{"rustc", "--version"}
}
