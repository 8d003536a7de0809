// Package receiver implements telemetry.StreamServer, the gRPC endpoint that
// accepts client-streamed packets from omnistream agents.
//
// Receiver.StreamTelemetry validates every packet (codes.InvalidArgument on
// the first bad one), calls store.Put, and notifies observers such as the
// alerts engine. When the agent half-closes, the receiver replies with a
// Summary carrying the number of packets it accepted. Authentication is
// enforced upstream by the stream interceptor (see package auth).
//
// New(st, observers...) wires the receiver to the given vehicle store.
package receiver
