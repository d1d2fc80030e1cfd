// Package language defines the supported language toolchains and their
// registry.
//
// Each supported language implements the Toolchain interface, which knows how
// to name the submitted source file (resolving the entry point for
// class-based languages), build compile and run command vectors, and perform
// a syntax-only check. Commands are structured argument vectors; user data is
// never interpolated into shell strings.
//
// The registry is immutable once constructed and is injected into the
// orchestrator rather than held as package-level state.
package language
