// Package telemetry defines the record that flows through the agent
// pipeline and the wire contract shared by the agent and the server.
//
// Packet is the unit produced once per tick. It is encoded with CBOR
// (RFC 8949, Core Deterministic Encoding) through a gRPC codec registered
// under the "cbor" content-subtype, so both sides exchange plain Go structs
// without generated stubs.
//
// The streaming contract is a single client-streaming RPC:
//
//	/omnistream.v1.TelemetryStream/StreamTelemetry  (stream Packet) → Summary
//
// NewStreamClient opens the client side; RegisterStreamServer wires a
// StreamServer implementation into a *grpc.Server.
package telemetry
