// Package api implements the HTTP REST API for omnistream-server.
//
// New(store, alerts) returns an http.Handler that serves:
//
//	GET /api/v1/health          fleet state, per-state counts, packet total
//	GET /api/v1/vehicles        all live vehicles ([]VehicleResponse)
//	GET /api/v1/vehicles/{id}   single vehicle; 404 if unknown or stale
//	GET /api/v1/alerts          firing and recently resolved alerts
//	GET /api/v1/snapshot        all live vehicles + generated_at
//
// Vehicle endpoints accept ?lidar=full to include the raw scan; by default
// only min/max/mean are returned. Each vehicle carries diagnostic hints
// (battery, obstacle distance, IMU shock, silence) and a state derived from
// the most severe hint.
//
// All endpoints respond with Content-Type: application/json and return 405
// for non-GET methods. JSON types are defined in types.go.
package api
