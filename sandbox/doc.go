// Package sandbox provides isolated, resource-bounded execution of submitted
// code.
//
// Every compile step and every test-case run acquires a fresh container
// scoped to that single invocation; containers are never reused and are torn
// down unconditionally on every exit path. Isolation is enforced per
// invocation: no network, read-only root filesystem with a bounded tmpfs
// scratch area, a non-privileged user, dropped capabilities, and hard caps on
// memory, CPU time, processes and open files.
//
// The package drives the container CLI through a CommandRunner seam and
// touches the host filesystem through a FileSystem seam, so executors are
// fully unit-testable without a container runtime. Docker and Podman backends
// share the same implementation; a local backend exists for development only
// and must be enabled explicitly in configuration.
package sandbox
