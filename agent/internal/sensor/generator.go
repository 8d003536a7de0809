package sensor

import (
	"math"
	"time"

	"github.com/omnistream/omnistream/pkg/telemetry"
)

const (
	// DefaultLidarPoints is the number of beams in one lidar revolution.
	DefaultLidarPoints = 1024

	batteryFull      = 100.0
	batteryDrainTick = 0.0001
	gravity          = 9.81
)

// Generator builds one telemetry.Packet per tick for a single vehicle.
type Generator struct {
	vehicleID   string
	lidarPoints int
	now         func() time.Time // injectable for deterministic tests
}

// New returns a Generator for vehicleID. lidarPoints <= 0 selects
// DefaultLidarPoints.
func New(vehicleID string, lidarPoints int) *Generator {
	if lidarPoints <= 0 {
		lidarPoints = DefaultLidarPoints
	}
	return &Generator{
		vehicleID:   vehicleID,
		lidarPoints: lidarPoints,
		now:         time.Now,
	}
}

// Generate returns the packet for tick. Every call allocates a fresh lidar
// slice; callers own the returned packet outright.
func (g *Generator) Generate(tick uint64) *telemetry.Packet {
	return &telemetry.Packet{
		VehicleID:    g.vehicleID,
		Tick:         tick,
		Timestamp:    g.now().UnixMicro(),
		LidarScan:    g.lidar(tick),
		IMU:          imu(tick),
		BatteryLevel: battery(tick),
	}
}

func (g *Generator) lidar(tick uint64) []float32 {
	scan := make([]float32, g.lidarPoints)
	phase := float64(tick) * 0.05
	for i := range scan {
		angle := float64(i) / float64(g.lidarPoints) * 2 * math.Pi
		scan[i] = float32(10 + math.Sin(phase+angle*4)*2)
	}
	return scan
}

func imu(tick uint64) telemetry.IMUReading {
	t := float64(tick) * 0.02
	return telemetry.IMUReading{
		AccelX: float32(math.Sin(t) * 0.5),
		AccelY: float32(math.Cos(t*0.7) * 0.3),
		AccelZ: float32(gravity + math.Sin(t*2)*0.1),
	}
}

// battery drains linearly from full, one step per generated tick, floored at zero.
func battery(tick uint64) float32 {
	return float32(math.Max(0, batteryFull-float64(tick+1)*batteryDrainTick))
}
