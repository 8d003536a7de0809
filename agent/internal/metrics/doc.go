// Package metrics exposes the agent pipeline's diagnostics as Prometheus
// metrics and reads them back.
//
// Recorder owns a private registry holding tick, sent, failure and overrun
// counters plus queue-length and sink-connected gauges. The producer and
// consumer update it on their progress paths; none of the values feed back
// into control decisions. A nil *Recorder is valid and records nothing.
//
// Serve runs the /metrics HTTP endpoint until its context is cancelled.
//
// Scrape fetches and parses another agent's /metrics text exposition into a
// Snapshot; the omnistat CLI is built on it.
package metrics
