package ingest

import (
	"encoding/json"
	"time"
)

// HostTag is the value of the "host" tag attached to every envelope.
const HostTag = "Apispark.net/1.0"

// TimestampLayout formats event timestamps as ISO-8601 UTC with second
// precision and an explicit +00:00 offset.
const TimestampLayout = "2006-01-02T15:04:05+00:00"

// Event is a single structured event inside an [Envelope].
type Event struct {
	Timestamp  string          `json:"timestamp"`
	Attributes json.RawMessage `json:"attributes"`
}

// Envelope is the unit accepted by the structured ingest API.
type Envelope struct {
	Tags   map[string]string `json:"tags"`
	Events []Event           `json:"events"`
}

// NewEnvelope wraps attributes in an envelope with exactly one event stamped
// with now converted to UTC. The attributes are embedded verbatim.
func NewEnvelope(attributes json.RawMessage, now time.Time) Envelope {
	return Envelope{
		Tags: map[string]string{"host": HostTag},
		Events: []Event{{
			Timestamp:  now.UTC().Format(TimestampLayout),
			Attributes: attributes,
		}},
	}
}
