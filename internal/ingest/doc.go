// Package ingest forwards JSON payloads to a LogScale (Humio) ingestion endpoint.
//
// Each payload is wrapped in a structured ingest [Envelope] carrying a fixed
// host tag and a single timestamped event, then posted to the backend's
// structured ingest API using a bearer ingest token:
//
//	POST <base>/api/v1/ingest/humio-structured
//	Authorization: Bearer <token>
//
//	[{"tags":{"host":"Apispark.net/1.0"},
//	  "events":[{"timestamp":"2024-05-01T12:00:00+00:00","attributes":{...}}]}]
//
// There is no batching and no retry: one call produces one network write.
package ingest
