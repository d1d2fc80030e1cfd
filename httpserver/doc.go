// Package httpserver exposes the execution engine over a REST API.
//
// Routes live under /api/v1: execute and validate accept submissions,
// languages lists the supported toolchains, and the admin group carries
// image preparation and orphaned-container cleanup. A liveness probe is
// served at /health.
package httpserver
