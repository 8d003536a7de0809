package api

// HealthResponse is the payload for GET /api/v1/health.
type HealthResponse struct {
	State         string `json:"state"`
	VehicleCount  int    `json:"vehicle_count"`
	OKCount       int    `json:"ok_count"`
	WarningCount  int    `json:"warning_count"`
	CriticalCount int    `json:"critical_count"`
	PacketsTotal  uint64 `json:"packets_total"`
	AlertCount    int    `json:"alert_count"`
}

// VehicleResponse is one vehicle entry in GET /api/v1/vehicles or
// GET /api/v1/vehicles/{id}.
type VehicleResponse struct {
	VehicleID    string           `json:"vehicle_id"`
	State        string           `json:"state"`
	Tick         uint64           `json:"tick"`
	Timestamp    int64            `json:"timestamp"` // µs since epoch, agent clock
	BatteryLevel float32          `json:"battery_level"`
	IMU          IMUResponse      `json:"imu"`
	Lidar        LidarSummary     `json:"lidar"`
	Received     uint64           `json:"received"`
	FirstSeen    string           `json:"first_seen"` // RFC3339
	LastSeen     string           `json:"last_seen"`  // RFC3339
	AgeSeconds   float64          `json:"age_seconds"`
	Diagnostics  []DiagnosticHint `json:"diagnostics"`
}

// IMUResponse is linear acceleration in m/s².
type IMUResponse struct {
	AccelX float32 `json:"accel_x"`
	AccelY float32 `json:"accel_y"`
	AccelZ float32 `json:"accel_z"`
}

// LidarSummary condenses a scan. Scan is only filled for ?lidar=full.
type LidarSummary struct {
	Points int       `json:"points"`
	Min    float32   `json:"min"`
	Max    float32   `json:"max"`
	Mean   float32   `json:"mean"`
	Scan   []float32 `json:"scan,omitempty"`
}

// SnapshotResponse is the payload for GET /api/v1/snapshot and the message
// the WebSocket hub broadcasts.
type SnapshotResponse struct {
	Vehicles    []VehicleResponse `json:"vehicles"`
	GeneratedAt string            `json:"generated_at"` // RFC3339
}

// errorResponse is a generic JSON error body.
type errorResponse struct {
	Error string `json:"error"`
}
