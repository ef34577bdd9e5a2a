// Package poller runs the periodic fetch-and-forward jobs of apispark.
//
// This package is internal to apispark. It owns the job registry, decides
// when each job is due, calls the upstream API and hands the JSON document
// to a [Forwarder] for ingestion.
//
// The main components are:
//
//   - [Client]: HTTP client wrapper with per-request timeout and size limits
//   - [Scheduler]: explicit job registry with a tick loop and per-run error boundary
//   - [Task]: configuration for one job
//   - [RunResult]: outcome of one job run
//
// Users of the apispark library should not need to interact with this
// package directly. Configuration is done through the main apispark package.
package poller
