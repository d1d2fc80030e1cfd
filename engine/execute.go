package engine

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/assesshub/codexec/sandbox"
	"github.com/assesshub/codexec/security"
)

// ExecuteCode runs a submission against its test cases and returns the
// aggregated result. Structural validation errors are returned as an error;
// every other failure mode is reported inside the result.
func (e *Engine) ExecuteCode(ctx context.Context, req *ExecutionRequest) (result *ExecutionResult, err error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidRequest, err)
	}

	release, err := e.acquireSlot(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	start := time.Now()

	// A panic anywhere below must not take the server down or leak the slot.
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("panic during execution",
				zap.String("language", req.Language), zap.Any("panic", r))
			result = &ExecutionResult{
				Status:      StatusInternalError,
				Language:    req.Language,
				TotalTests:  len(req.TestCases),
				Error:       "internal execution error",
				TotalTimeMS: msSince(start),
			}
			err = nil
		}
	}()

	result = &ExecutionResult{
		Status:     StatusSuccess,
		Language:   req.Language,
		TotalTests: len(req.TestCases),
	}
	finish := func() (*ExecutionResult, error) {
		result.TotalTimeMS = msSince(start)
		return result, nil
	}

	toolchain, ok := e.registry.Resolve(req.Language)
	if !ok {
		result.Status = StatusInternalError
		result.Error = fmt.Sprintf("unsupported language: %s", req.Language)
		return finish()
	}

	// Static screening happens before any sandbox resources are spent.
	violations, warnings := e.policy.Screen(req.Code, toolchain.Name())
	result.Warnings = warnings
	if len(violations) > 0 {
		e.logger.Warn("submission rejected by security policy",
			zap.String("language", toolchain.Name()),
			zap.Int("violations", len(violations)))
		result.Status = StatusSecurityViolation
		result.SecurityViolations = violations
		return finish()
	}

	for i, tc := range req.TestCases {
		if !e.policy.ValidateTestCaseInput(tc.Input) {
			result.Status = StatusSecurityViolation
			result.SecurityViolations = append(result.SecurityViolations,
				fmt.Sprintf("test case %d: input rejected by security policy", i))
			return finish()
		}
	}

	limits := e.level.Clamp(req.Limits)

	sourceName, err := toolchain.SourceFile(req.Code)
	if err != nil {
		result.Status = StatusCompilationError
		result.Compilation = &CompilationResult{Success: false, Errors: err.Error()}
		return finish()
	}

	job := sandbox.Job{
		SourceName: sourceName,
		Toolchain:  toolchain,
		Limits:     limits,
	}

	workDir, err := e.runner.Prepare(req.Code, job)
	if err != nil {
		e.logger.Error("sandbox preparation failed", zap.Error(err))
		result.Status = StatusInternalError
		result.Error = "failed to prepare sandbox"
		return finish()
	}
	defer e.runner.Cleanup(workDir)
	job.WorkDir = workDir

	if toolchain.Compiled() || req.CompileOnly {
		compilation, ok := e.compile(ctx, job, limits)
		result.Compilation = compilation
		if !ok {
			result.Status = StatusCompilationError
			return finish()
		}
	}

	if req.CompileOnly {
		return finish()
	}

	e.runTestCases(ctx, req, job, limits, result)
	return finish()
}

// compile runs the compile (or syntax check) step and reports whether
// execution may proceed.
func (e *Engine) compile(ctx context.Context, job sandbox.Job, limits security.LimitSet) (*CompilationResult, bool) {
	job.Timeout = e.compileTimeout

	res, err := e.runner.Compile(ctx, job)
	if err != nil {
		e.logger.Error("compile step failed", zap.Error(err))
		return &CompilationResult{Success: false, Errors: "internal compilation failure"}, false
	}

	compilation := &CompilationResult{
		Success: res.ExitCode == 0 && !res.TimedOut,
		Output:  security.SanitizeOutput(res.Stdout, limits.MaxOutputSize),
		Errors:  security.SanitizeOutput(res.Stderr, limits.MaxOutputSize),
		TimeMS:  float64(res.Duration.Milliseconds()),
	}
	if res.TimedOut && compilation.Errors == "" {
		compilation.Errors = "compilation timed out"
	}
	return compilation, compilation.Success
}

// runTestCases executes every test case sequentially and fills in the
// per-case results, pass counts, score and aggregate status.
func (e *Engine) runTestCases(ctx context.Context, req *ExecutionRequest, job sandbox.Job, limits security.LimitSet, result *ExecutionResult) {
	result.TestResults = make([]TestCaseResult, 0, len(req.TestCases))

	var passedWeight, totalWeight float64
	for i, tc := range req.TestCases {
		caseResult := e.runTestCase(ctx, i, tc, job, limits)
		result.TestResults = append(result.TestResults, caseResult)

		totalWeight += caseResult.Weight
		if caseResult.Passed {
			result.PassedTests++
			passedWeight += caseResult.Weight
		}
		if caseResult.MemoryMB > result.PeakMemoryMB {
			result.PeakMemoryMB = caseResult.MemoryMB
		}
	}

	if totalWeight > 0 {
		result.Score = math.Round(passedWeight/totalWeight*100*100) / 100
	}
	result.Status = aggregateStatus(result.TestResults)
}

func (e *Engine) runTestCase(ctx context.Context, index int, tc TestCase, job sandbox.Job, limits security.LimitSet) TestCaseResult {
	job.Stdin = tc.Input
	job.Timeout = caseTimeout(tc, limits)

	weight := tc.Weight
	if weight <= 0 {
		weight = 1
	}

	caseResult := TestCaseResult{
		Index:    index,
		Weight:   weight,
		IsHidden: tc.IsHidden,
	}
	// Hidden case data never leaves the engine.
	if !tc.IsHidden {
		caseResult.Input = tc.Input
		caseResult.ExpectedOutput = tc.ExpectedOutput
	}

	res, err := e.runner.Run(ctx, job)
	if err != nil {
		e.logger.Error("test case run failed",
			zap.Int("index", index), zap.Error(err))
		caseResult.Status = StatusInternalError
		return caseResult
	}

	caseResult.Stdout = security.SanitizeOutput(res.Stdout, limits.MaxOutputSize)
	caseResult.Stderr = security.SanitizeOutput(res.Stderr, limits.MaxOutputSize)
	caseResult.ExitCode = res.ExitCode
	caseResult.TimeMS = float64(res.Duration.Milliseconds())
	caseResult.MemoryMB = res.MemoryPeakMB

	switch {
	case res.TimedOut:
		caseResult.Status = StatusTimeout
	case res.OOMKilled:
		caseResult.Status = StatusMemoryLimitExceeded
	case res.ExitCode != 0:
		caseResult.Status = StatusRuntimeError
	default:
		caseResult.Status = StatusSuccess
		caseResult.Passed = strings.TrimSpace(caseResult.Stdout) == strings.TrimSpace(tc.ExpectedOutput)
	}
	return caseResult
}

// caseTimeout resolves the per-case deadline: the case's own timeout when
// set, the platform default otherwise, always capped by the wall-time limit.
func caseTimeout(tc TestCase, limits security.LimitSet) time.Duration {
	seconds := tc.TimeoutSeconds
	if seconds <= 0 {
		seconds = DefaultCaseTimeoutSec
	}
	if seconds > limits.WallTimeSeconds {
		seconds = limits.WallTimeSeconds
	}
	return time.Duration(seconds) * time.Second
}

// aggregateStatus folds per-case statuses into the request status. All cases
// passing means success; otherwise the most severe failure class wins.
func aggregateStatus(results []TestCaseResult) ExecutionStatus {
	allPassed := true
	seen := map[ExecutionStatus]bool{}
	for _, r := range results {
		seen[r.Status] = true
		if !r.Passed {
			allPassed = false
		}
	}
	if allPassed {
		return StatusSuccess
	}
	for _, s := range []ExecutionStatus{
		StatusInternalError,
		StatusTimeout,
		StatusMemoryLimitExceeded,
		StatusSecurityViolation,
	} {
		if seen[s] {
			return s
		}
	}
	return StatusRuntimeError
}

// ValidateSyntax checks a submission for syntax errors without running it.
// The check itself runs sandboxed since some toolchains execute code on
// parse.
func (e *Engine) ValidateSyntax(ctx context.Context, req *ValidationRequest) (*ValidationResult, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidRequest, err)
	}

	toolchain, ok := e.registry.Resolve(req.Language)
	if !ok {
		return &ValidationResult{
			Valid:  false,
			Errors: []string{fmt.Sprintf("unsupported language: %s", req.Language)},
		}, nil
	}

	violations, warnings := e.policy.Screen(req.Code, toolchain.Name())
	if len(violations) > 0 {
		return &ValidationResult{Valid: false, Errors: violations, Warnings: warnings}, nil
	}

	limits := e.level.Limits()

	sourceName, err := toolchain.SourceFile(req.Code)
	if err != nil {
		return &ValidationResult{Valid: false, Errors: []string{err.Error()}, Warnings: warnings}, nil
	}

	job := sandbox.Job{
		SourceName: sourceName,
		Toolchain:  toolchain,
		Limits:     limits,
		Timeout:    e.compileTimeout,
	}

	workDir, err := e.runner.Prepare(req.Code, job)
	if err != nil {
		return nil, fmt.Errorf("prepare syntax check: %w", err)
	}
	defer e.runner.Cleanup(workDir)
	job.WorkDir = workDir

	res, err := e.runner.Compile(ctx, job)
	if err != nil {
		return nil, fmt.Errorf("run syntax check: %w", err)
	}

	out := &ValidationResult{
		Valid:       res.ExitCode == 0 && !res.TimedOut,
		Warnings:    warnings,
		Suggestions: suggestionsFor(warnings),
	}
	if !out.Valid {
		msg := strings.TrimSpace(security.SanitizeOutput(res.Stderr, limits.MaxOutputSize))
		if msg == "" {
			msg = "syntax check failed"
		}
		out.Errors = []string{msg}
	}
	return out, nil
}

func suggestionsFor(warnings []string) []string {
	var out []string
	for _, w := range warnings {
		switch {
		case strings.Contains(w, "nesting"):
			out = append(out, "reduce nesting depth by extracting helper functions")
		case strings.Contains(w, "long line"):
			out = append(out, "split unusually long lines; they are hard to review and may hide obfuscation")
		}
	}
	return out
}

func msSince(start time.Time) float64 {
	return float64(time.Since(start).Milliseconds())
}
