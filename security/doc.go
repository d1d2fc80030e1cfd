// Package security provides static screening of submitted source code and
// resource-limit policy for sandboxed execution.
//
// The package is a best-effort pre-filter: the regular-expression denylist
// cannot catch every dangerous construct, so it is layered in front of the
// sandbox's runtime isolation, which is the actual security boundary. A
// screening pass that reports no violations is not a safety guarantee on
// its own.
//
// The package is pure: it performs no I/O and holds no per-request state.
//
// Usage:
//
//	policy, err := security.NewPolicy()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	violations, warnings := policy.Screen(code, "python")
package security
