package language

import (
	"fmt"
	"path"
	"regexp"
	"strings"
)

var javaClassRe = regexp.MustCompile(`public\s+class\s+(\w+)`)

type java struct{ base }

func newJava(image, dockerfile string) Toolchain {
	return java{base{
		name:       "java",
		version:    "21",
		image:      orDefault(image, "eclipse-temurin:21-jdk-alpine"),
		dockerfile: dockerfile,
		ext:        ".java",
	}}
}

func (java) Compiled() bool { return true }

// SourceFile names the file after the public class; javac requires it.
func (java) SourceFile(code string) (string, error) {
	m := javaClassRe.FindStringSubmatch(code)
	if m == nil {
		return "", fmt.Errorf("no public class found in java code")
	}
	return m[1] + ".java", nil
}

func (java) CompileCommand(workdir, source string) []string {
	return []string{"javac", path.Join(workdir, source)}
}

func (java) RunCommand(workdir, source string) []string {
	return []string{"java", "-cp", workdir, strings.TrimSuffix(source, ".java")}
}

func (java) VersionCommand() []string {
	return []string{"java", "--version"}
}
