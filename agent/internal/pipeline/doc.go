// Package pipeline wires the producer, the bounded queue, and the consumer
// together and owns the shutdown protocol.
//
// Shutdown runs in phases:
//
//  1. A Token is tripped, by a signal or by a failing auxiliary service
//     such as the metrics endpoint or the config watcher. The coordinator
//     notices on its next liveness poll.
//  2. The coordinator closes the queue exactly once. Workers are never
//     cancelled directly; a blocked Put or Take wakes up on close.
//  3. The producer stops on its next rejected Put, the consumer drains what
//     is buffered, both are joined, auxiliary services are stopped, and the
//     final counters are returned as a Report.
//
// A second signal while draining invokes the forced-exit hook, discarding
// whatever is still buffered.
package pipeline
