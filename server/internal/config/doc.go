// Package config loads the server-side configuration from the `server:` section
// of a YAML file (the `agent:` key is ignored by the server binary).
//
// Config fields:
//   - GRPCPort          port for the telemetry receiver (default 50051)
//   - HTTPPort          port for the REST API and WebSocket hub (default 8080)
//   - Auth.Mode         "apikey", "mtls" or "none"
//   - Auth.KeyEnv       environment variable holding the expected API key
//   - Auth.Header       gRPC metadata/HTTP header name (default "x-api-key")
//   - Vehicle.TTL       how long a silent vehicle stays listed (default 5m)
//   - BroadcastInterval WebSocket push period (default 1s)
//   - Alerts            threshold rules and webhook targets
//
// Load(path) applies defaults before unmarshalling, then validates.
package config
