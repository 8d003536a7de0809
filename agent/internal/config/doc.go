// Package config loads and watches the agent configuration file.
//
// Top-level types:
//   - Config{Agent}: full config tree parsed from YAML
//   - AgentConfig: vehicle_id, server_endpoint, mode (simulate|live),
//     rate_hz, queue_capacity, lidar_points, report_every,
//     liveness_interval, connect_timeout, metrics_addr, log_level,
//     server_auth
//   - AuthConfig: mode (mtls|apikey|none), cert/key/ca files, header,
//     key_env; Key() resolves the API key from the environment
//
// Load(path) reads the YAML file, applies defaults (AV-001, 60 Hz, queue of
// 1000, 1024 lidar points, simulate mode), then validates. Load("") returns
// the defaults so the agent runs without a file.
//
// Watch(ctx, path, onChange) uses fsnotify to detect file changes and calls
// onChange with the newly parsed Config. It handles the rename→create pattern
// used by atomic-save editors (vim, VS Code) by re-adding the watch after
// a rename event.
package config
