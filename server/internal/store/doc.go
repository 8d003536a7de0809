// Package store keeps the latest telemetry packet per vehicle in memory,
// with per-vehicle receive counts and TTL eviction of vehicles that went
// silent.
package store
