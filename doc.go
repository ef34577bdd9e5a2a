// Package apispark polls HTTP APIs on fixed intervals and forwards each JSON
// response to a LogScale repository as a structured event.
//
// Every [Job] names one upstream URL, the repository its documents go to
// with that repository's ingest token, and an interval. When a job is due
// apispark GETs the URL with the User-Agent "Apispark.net/1.0" and posts the
// body, verbatim, as the attributes of a single event:
//
//	{"tags":{"host":"Apispark.net/1.0"},
//	 "events":[{"timestamp":"2024-05-01T12:00:00+00:00","attributes":{...}}]}
//
// # Quick Start
//
//	job, _ := apispark.NewJob("ping", "https://api.example.com/status", "main", token, time.Minute)
//	app, _ := apispark.New(
//	    apispark.WithIngestURL("https://cloud.community.humio.com"),
//	    apispark.WithJob(job),
//	)
//
//	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
//	defer stop()
//
//	app.Start(ctx) // blocks until context is cancelled
//
// # Scheduling
//
// A job's first run is due one interval after [Apispark.Start]. Due times
// follow the schedule rather than run completion, so a slow run does not
// shift later runs, and slots missed while the process was busy are skipped
// instead of replayed. Jobs due in the same tick run in the order they were
// added. A failing run is logged and reported to [WithRunCallback]
// callbacks; it never affects other jobs.
//
// # Architecture
//
//   - internal/poller: job registry, tick loop and upstream HTTP client
//   - internal/ingest: envelope encoding and the LogScale ingest client
//   - internal/store: latest run per job with pub/sub
//   - internal/server: optional status API with Server-Sent Events
//   - internal/logging: stderr plus rotating file logger used by the CLI
//
// The config package loads the YAML file used by the apispark binary.
package apispark
