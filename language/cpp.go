package language

import "path"

type cpp struct{ base }

func newCpp(image, dockerfile string) Toolchain {
	return cpp{base{
		name:       "cpp",
		version:    "c++17 (gcc 13)",
		image:      orDefault(image, "gcc:13"),
		dockerfile: dockerfile,
		ext:        ".cpp",
	}}
}

func (cpp) Compiled() bool { return true }

func (cpp) CompileCommand(workdir, source string) []string {
	return []string{"g++", "-std=c++17", "-O2", "-Wall", "-o", binaryPath(workdir), path.Join(workdir, source)}
}

func (cpp) RunCommand(workdir, _ string) []string {
	return []string{binaryPath(workdir)}
}

func (cpp) VersionCommand() []string {
	return []string{"g++", "--version"}
}
