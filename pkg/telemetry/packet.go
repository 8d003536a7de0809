package telemetry

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalid is wrapped by every Validate failure.
var ErrInvalid = errors.New("telemetry: invalid packet")

// Packet is one tick worth of sensor data from a single vehicle.
// A Packet is immutable once handed to the pipeline queue.
type Packet struct {
	VehicleID string `cbor:"vehicle_id" json:"vehicle_id"`
	Tick      uint64 `cbor:"tick" json:"tick"`

	// Timestamp is wall-clock time of generation in microseconds since the epoch.
	Timestamp int64 `cbor:"timestamp" json:"timestamp"`

	// LidarScan holds one distance reading (metres) per beam, evenly spaced
	// over a full revolution.
	LidarScan []float32 `cbor:"lidar_scan" json:"lidar_scan"`

	IMU IMUReading `cbor:"imu_reading" json:"imu_reading"`

	// BatteryLevel is the remaining charge in percent, 0–100.
	BatteryLevel float32 `cbor:"battery_level" json:"battery_level"`
}

// IMUReading is linear acceleration in m/s².
type IMUReading struct {
	AccelX float32 `cbor:"accel_x" json:"accel_x"`
	AccelY float32 `cbor:"accel_y" json:"accel_y"`
	AccelZ float32 `cbor:"accel_z" json:"accel_z"`
}

// Summary is the server's reply when the agent half-closes a stream.
type Summary struct {
	Received uint64 `cbor:"received" json:"received"`
	Message  string `cbor:"message,omitempty" json:"message,omitempty"`
}

// Validate reports structural problems that make a packet unusable by the
// receiver. It does not check sensor plausibility.
func (p *Packet) Validate() error {
	if p == nil {
		return fmt.Errorf("%w: nil packet", ErrInvalid)
	}
	if p.VehicleID == "" {
		return fmt.Errorf("%w: vehicle_id is required", ErrInvalid)
	}
	if p.BatteryLevel < 0 || p.BatteryLevel > 100 || math.IsNaN(float64(p.BatteryLevel)) {
		return fmt.Errorf("%w: battery_level %v out of range [0, 100]", ErrInvalid, p.BatteryLevel)
	}
	return nil
}
