package security

import (
	_ "embed"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"gopkg.in/yaml.v3"
)

//go:embed patterns.yaml
var patternsYAML []byte

const (
	// maxLineLength is the obfuscation heuristic threshold.
	maxLineLength = 500

	// maxNestingDepth is the complexity heuristic threshold.
	maxNestingDepth = 10

	// maxTestCaseInput bounds accepted test case input data.
	maxTestCaseInput = 10 * 1024

	truncationMarker = "\n... [output truncated due to size limit]"
)

var (
	ansiEscapeRe   = regexp.MustCompile(`\x1B(?:[@-Z\\-_]|\[[0-?]*[ -/]*[@-~])`)
	controlCharsRe = regexp.MustCompile(`[\x00-\x08\x0B\x0C\x0E-\x1F\x7F]`)
	hexEscapeRe    = regexp.MustCompile(`\\x[0-9a-fA-F]{2}`)
	octalEscapeRe  = regexp.MustCompile(`\\[0-7]{3}`)
)

// Policy screens submitted source code against a per-language denylist and
// heuristics. Construct it once and share it; Screen is safe for concurrent
// use.
type Policy struct {
	rules map[string][]*regexp.Regexp
}

// NewPolicy compiles the embedded denylist rules.
func NewPolicy() (*Policy, error) {
	var raw map[string][]string
	if err := yaml.Unmarshal(patternsYAML, &raw); err != nil {
		return nil, fmt.Errorf("parse denylist rules: %w", err)
	}

	rules := make(map[string][]*regexp.Regexp, len(raw))
	for lang, patterns := range raw {
		compiled := make([]*regexp.Regexp, 0, len(patterns))
		for _, p := range patterns {
			re, err := regexp.Compile("(?i)" + p)
			if err != nil {
				return nil, fmt.Errorf("compile denylist pattern %q for %s: %w", p, lang, err)
			}
			compiled = append(compiled, re)
		}
		rules[lang] = compiled
	}

	return &Policy{rules: rules}, nil
}

// Screen checks code for dangerous constructs. Every denylist match is a
// violation carrying the 1-based line number and the matched token. Long
// lines and deep nesting are reported as warnings only.
func (p *Policy) Screen(code, language string) (violations, warnings []string) {
	for _, re := range p.rules[language] {
		for _, loc := range re.FindAllStringIndex(code, -1) {
			line := 1 + strings.Count(code[:loc[0]], "\n")
			violations = append(violations,
				fmt.Sprintf("line %d: potentially dangerous pattern %q detected", line, code[loc[0]:loc[1]]))
		}
	}

	for i, line := range strings.Split(code, "\n") {
		if len(line) > maxLineLength {
			warnings = append(warnings,
				fmt.Sprintf("line %d: unusually long line (%d characters)", i+1, len(line)))
		}
	}

	if depth := nestingDepth(code, language); depth > maxNestingDepth {
		warnings = append(warnings, fmt.Sprintf("excessive nesting depth: %d levels", depth))
	}

	return violations, warnings
}

// nestingDepth estimates the maximum nesting depth of the source. Python uses
// indentation; every other supported language is brace-delimited.
func nestingDepth(code, language string) int {
	if language == "python" {
		return indentNesting(code)
	}
	return braceNesting(code)
}

func indentNesting(code string) int {
	maxDepth := 0
	for _, line := range strings.Split(code, "\n") {
		stripped := strings.TrimLeft(line, " \t")
		if stripped == "" || strings.HasPrefix(stripped, "#") {
			continue
		}
		if !startsControlBlock(stripped) {
			continue
		}
		depth := (len(line)-len(stripped))/4 + 1
		if depth > maxDepth {
			maxDepth = depth
		}
	}
	return maxDepth
}

func startsControlBlock(line string) bool {
	for _, kw := range []string{"if", "elif", "else:", "for", "while", "try:", "except", "finally:", "with", "def", "class"} {
		if strings.HasPrefix(line, kw) {
			return true
		}
	}
	return false
}

func braceNesting(code string) int {
	depth, maxDepth := 0, 0
	for _, c := range code {
		switch c {
		case '{':
			depth++
			if depth > maxDepth {
				maxDepth = depth
			}
		case '}':
			if depth > 0 {
				depth--
			}
		}
	}
	return maxDepth
}

// ValidateTestCaseInput reports whether test case input data is safe to feed
// to a sandboxed program. Oversized input, non-UTF-8 data, raw control
// characters and escape-sequence patterns that look like injection attempts
// are all rejected; a rejected input aborts the whole request.
func (p *Policy) ValidateTestCaseInput(input string) bool {
	if len(input) > maxTestCaseInput {
		return false
	}
	if !utf8.ValidString(input) {
		return false
	}
	if controlCharsRe.MatchString(input) {
		return false
	}
	if hexEscapeRe.MatchString(input) || octalEscapeRe.MatchString(input) {
		return false
	}
	return true
}

// SanitizeOutput truncates output to maxSize and strips ANSI escape sequences
// and control characters (tab, newline and carriage return are kept since they
// carry program semantics). It must be applied to all captured sandbox output
// before comparison or return, and it is idempotent.
func SanitizeOutput(output string, maxSize int) string {
	if maxSize > 0 && len(output) > maxSize {
		if maxSize <= len(truncationMarker) {
			cut := maxSize
			for cut > 0 && !utf8.RuneStart(output[cut]) {
				cut--
			}
			output = output[:cut]
		} else {
			cut := maxSize - len(truncationMarker)
			for cut > 0 && !utf8.RuneStart(output[cut]) {
				cut--
			}
			output = output[:cut] + truncationMarker
		}
	}

	output = ansiEscapeRe.ReplaceAllString(output, "")
	output = controlCharsRe.ReplaceAllString(output, "")

	return output
}
