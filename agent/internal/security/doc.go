// Package security inspects the TLS certificate presented by the telemetry
// receiver so the agent can warn about expiring or expired certificates
// before a live stream fails on them.
package security
