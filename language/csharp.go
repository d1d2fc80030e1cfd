package language

import "path"

type csharp struct{ base }

func newCsharp(image, dockerfile string) Toolchain {
	return csharp{base{
		name:       "csharp",
		version:    "mono 6.12",
		image:      orDefault(image, "mono:6.12"),
		dockerfile: dockerfile,
		ext:        ".cs",
	}}
}

func (csharp) Compiled() bool { return true }

func (csharp) CompileCommand(workdir, source string) []string {
	return []string{"mcs", "-out:" + binaryPath(workdir) + ".exe", path.Join(workdir, source)}
}

func (csharp) RunCommand(workdir, _ string) []string {
	return []string{"mono", binaryPath(workdir) + ".exe"}
}

func (csharp) VersionCommand() []string {
	return []string{"mono", "--version"}
}
