// Package engine orchestrates code execution requests end to end: security
// screening, language resolution, sandbox compilation, per-test-case runs and
// result aggregation.
//
// Concurrency is bounded by an execution-slot pool sized from configuration.
// A request holds one slot for its whole lifetime; test cases within a
// request run sequentially, each in a fresh sandbox context sharing the
// request's scratch directory.
package engine
