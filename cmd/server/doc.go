// Package main is the entry point for the codexec execution server.
//
// The server executes untrusted assessment submissions (Python, JavaScript,
// Java, C++, C#, Go, Rust) in isolated per-invocation sandboxes and exposes
// the engine over a REST API. Submissions are screened against a security
// denylist before any sandbox resources are spent, then compiled and judged
// against their test cases under the configured security level's resource
// limits.
//
// The application uses Uber's fx framework for dependency injection and
// lifecycle management, with zap for structured logging and viper for
// configuration.
package main
