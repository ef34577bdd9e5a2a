// Package store keeps the latest run status of every job and publishes updates.
//
// This package is internal to apispark. It aggregates job run outcomes into
// a per-job [JobStatus] and fans them out to subscribers such as the status
// server's event stream.
//
// The main components are:
//
//   - [Store]: Interface defining storage and subscription operations
//   - [MemoryStore]: In-memory implementation of Store with pub/sub
//   - [JobStatus]: Storage representation of a job and its last run
//   - [Run]: A single run outcome fed into the store
//
// Subscribers receive updates via channels with non-blocking sends (slow
// subscribers will miss updates rather than block the scheduler).
package store
