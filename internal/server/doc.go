// Package server provides the optional HTTP status server of apispark.
//
// This package is internal to apispark and exposes the job registry and run
// outcomes for operators:
//
//   - REST API: JSON snapshot of all jobs at "/api/jobs" and a single job at "/api/jobs/{id}"
//   - Server-Sent Events: run updates at "/api/events"
//   - Health: liveness probe at "/healthz"
//
// The server supports graceful shutdown via context cancellation, with a
// 5-second timeout for in-flight requests.
//
// Users of the apispark library should not need to interact with this
// package directly. The server is started by [apispark.Apispark.Start] when
// a status port is configured.
package server
