package language

import "path"

type python struct{ base }

func newPython(image, dockerfile string) Toolchain {
	return python{base{
		name:       "python",
		version:    "3.11",
		image:      orDefault(image, "python:3.11-slim"),
		dockerfile: dockerfile,
		ext:        ".py",
	}}
}

func (python) Compiled() bool { return false }

func (python) RunCommand(workdir, source string) []string {
	return []string{"python3", path.Join(workdir, source)}
}

func (python) CheckCommand(workdir, source string) []string {
	return []string{"python3", "-m", "py_compile", path.Join(workdir, source)}
}

func (python) VersionCommand() []string {
	return []string{"python3", "--version"}
}
