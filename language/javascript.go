package language

import "path"

type javascript struct{ base }

func newJavascript(image, dockerfile string) Toolchain {
	return javascript{base{
		name:       "javascript",
		version:    "20",
		image:      orDefault(image, "node:20-alpine"),
		dockerfile: dockerfile,
		ext:        ".js",
	}}
}

func (javascript) Compiled() bool { return false }

func (javascript) RunCommand(workdir, source string) []string {
	return []string{"node", path.Join(workdir, source)}
}

func (javascript) CheckCommand(workdir, source string) []string {
	return []string{"node", "--check", path.Join(workdir, source)}
}

func (javascript) VersionCommand() []string {
	return []string{"node", "--version"}
}
