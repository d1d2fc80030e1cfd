package engine

import (
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/assesshub/codexec/security"
)

// ErrInvalidRequest marks structural request validation failures so transport
// layers can map them to client errors.
var ErrInvalidRequest = errors.New("invalid request")

// Request bounds enforced before any sandbox work starts.
const (
	MaxCodeSize  = 50000
	MaxTestCases = 20

	// DefaultCaseTimeoutSec applies when a test case carries no timeout of
	// its own. The security level's wall-time limit still caps it.
	DefaultCaseTimeoutSec = 5
)

// ExecutionStatus is the outcome classification for a request or a single
// test case. The string values are the wire format.
type ExecutionStatus string

const (
	StatusSuccess             ExecutionStatus = "success"
	StatusCompilationError    ExecutionStatus = "compilation_error"
	StatusRuntimeError        ExecutionStatus = "runtime_error"
	StatusTimeout             ExecutionStatus = "timeout"
	StatusMemoryLimitExceeded ExecutionStatus = "memory_limit_exceeded"
	StatusSecurityViolation   ExecutionStatus = "security_violation"
	StatusInternalError       ExecutionStatus = "internal_error"
)

// TestCase is one input/expected-output pair the submission is judged
// against.
type TestCase struct {
	Input          string  `json:"input"`
	ExpectedOutput string  `json:"expected_output"`
	TimeoutSeconds int     `json:"timeout_seconds,omitempty"`
	Weight         float64 `json:"weight,omitempty"`

	// IsHidden marks cases whose data must not be echoed back to the
	// submitter. It does not affect execution.
	IsHidden bool `json:"is_hidden,omitempty"`
}

// ExecutionRequest is a full submission: source code, target language and the
// test cases to run it against. Limits, when present, may only tighten the
// platform security level's presets.
type ExecutionRequest struct {
	Code        string                   `json:"code"`
	Language    string                   `json:"language"`
	TestCases   []TestCase               `json:"test_cases"`
	CompileOnly bool                     `json:"compile_only,omitempty"`
	Limits      *security.ResourceLimits `json:"limits,omitempty"`
}

// Validate checks structural request bounds. Content-level screening is the
// security policy's job.
func (r *ExecutionRequest) Validate() error {
	if r.Code == "" {
		return fmt.Errorf("code must not be empty")
	}
	if len(r.Code) > MaxCodeSize {
		return fmt.Errorf("code exceeds maximum size of %d bytes", MaxCodeSize)
	}
	if !utf8.ValidString(r.Code) {
		return fmt.Errorf("code must be valid UTF-8")
	}
	if r.Language == "" {
		return fmt.Errorf("language must not be empty")
	}
	if !r.CompileOnly && len(r.TestCases) == 0 {
		return fmt.Errorf("at least one test case is required")
	}
	if len(r.TestCases) > MaxTestCases {
		return fmt.Errorf("at most %d test cases are allowed", MaxTestCases)
	}
	for i, tc := range r.TestCases {
		if tc.TimeoutSeconds < 0 {
			return fmt.Errorf("test case %d: timeout_seconds must not be negative", i)
		}
		if tc.Weight < 0 {
			return fmt.Errorf("test case %d: weight must not be negative", i)
		}
	}
	return nil
}

// CompilationResult reports the compile (or syntax check) step.
type CompilationResult struct {
	Success bool    `json:"success"`
	Output  string  `json:"output,omitempty"`
	Errors  string  `json:"errors,omitempty"`
	TimeMS  float64 `json:"time_ms"`
}

// TestCaseResult is the judged outcome of one test case.
type TestCaseResult struct {
	Index          int             `json:"index"`
	Status         ExecutionStatus `json:"status"`
	Passed         bool            `json:"passed"`
	Input          string          `json:"input"`
	ExpectedOutput string          `json:"expected_output"`
	Stdout         string          `json:"stdout"`
	Stderr         string          `json:"stderr,omitempty"`
	ExitCode       int             `json:"exit_code"`
	TimeMS         float64         `json:"time_ms"`
	MemoryMB       float64         `json:"memory_mb"`
	Weight         float64         `json:"weight"`
	IsHidden       bool            `json:"is_hidden,omitempty"`
}

// ExecutionResult is the aggregated outcome of a request.
type ExecutionResult struct {
	Status             ExecutionStatus    `json:"status"`
	Language           string             `json:"language"`
	Compilation        *CompilationResult `json:"compilation,omitempty"`
	TestResults        []TestCaseResult   `json:"test_results"`
	PassedTests        int                `json:"passed_tests"`
	TotalTests         int                `json:"total_tests"`
	Score              float64            `json:"score"`
	SecurityViolations []string           `json:"security_violations,omitempty"`
	Warnings           []string           `json:"warnings,omitempty"`
	Error              string             `json:"error,omitempty"`
	TotalTimeMS        float64            `json:"total_time_ms"`
	PeakMemoryMB       float64            `json:"peak_memory_mb"`
}

// ValidationRequest asks for a syntax check without running test cases.
type ValidationRequest struct {
	Code     string `json:"code"`
	Language string `json:"language"`
}

// Validate checks structural request bounds.
func (r *ValidationRequest) Validate() error {
	if r.Code == "" {
		return fmt.Errorf("code must not be empty")
	}
	if len(r.Code) > MaxCodeSize {
		return fmt.Errorf("code exceeds maximum size of %d bytes", MaxCodeSize)
	}
	if r.Language == "" {
		return fmt.Errorf("language must not be empty")
	}
	return nil
}

// ValidationResult reports a syntax check outcome.
type ValidationResult struct {
	Valid       bool     `json:"valid"`
	Errors      []string `json:"errors,omitempty"`
	Warnings    []string `json:"warnings,omitempty"`
	Suggestions []string `json:"suggestions,omitempty"`
}

// LanguageInfo describes one supported language for API consumers.
type LanguageInfo struct {
	Name          string `json:"name"`
	Version       string `json:"version"`
	Image         string `json:"image"`
	FileExtension string `json:"file_extension"`
	Compiled      bool   `json:"compiled"`

	// Command templates are informational; {workdir} stands in for the
	// sandbox scratch mount.
	CompileCommand string `json:"compile_command,omitempty"`
	RunCommand     string `json:"run_command"`
}
