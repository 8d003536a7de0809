// Package consumer drains the pipeline queue into a sink.
//
// The consumer takes packets until the queue reports closed-and-empty, so
// everything buffered before shutdown is still processed. Each taken packet
// counts as sent whatever the sink says about it. A per-packet rejection is
// logged and skipped. A broken live stream is reported once, the session is
// closed, and the consumer keeps draining locally without delivery (status
// "simulated") so the producer is never stalled by a dead endpoint.
package consumer
