// Package sink delivers telemetry packets out of the agent.
//
// Sink has two variants. Live holds one gRPC client-streaming session to the
// receiver (StreamTelemetry) and reports a per-packet outcome; Simulated
// accepts everything and delivers nothing. The consumer does not care which
// it holds.
//
// Live distinguishes two failures:
//   - ErrInvalidPacket: the packet failed client-side validation. Only that
//     packet is skipped; the session continues.
//   - ErrStreamBroken: the stream itself failed. The session is over and
//     every later Send returns ErrStreamBroken without touching the network.
//     Nothing is retried.
//
// Open chooses the variant from configuration. A live endpoint that cannot
// be reached within the connect timeout degrades to Simulated.
//
// Auth: mTLS via credentials.NewTLS(), API key via gRPC metadata header,
// or insecure (plaintext) for local development.
package sink
