package alerts

import (
	"math"
	"strconv"
	"strings"

	"github.com/omnistream/omnistream/pkg/telemetry"
)

// evalCondition evaluates a rule condition string against a packet.
//
// Supported expressions (field operator value):
//
//	battery_level < 20
//	lidar_min < 1.5
//	lidar_mean > 30
//	accel_x > 4
//	accel_y < -4
//	accel_z < 5
//	accel_mag > 15
//
// Returns (fires bool, triggering value float64).
// Returns (false, 0) if the expression cannot be parsed, the field is
// unknown, or the packet carries no data for it.
func evalCondition(cond string, p *telemetry.Packet) (bool, float64) {
	parts := strings.Fields(cond)
	if len(parts) != 3 {
		return false, 0
	}
	field, op, rhs := parts[0], parts[1], parts[2]

	threshold, err := strconv.ParseFloat(rhs, 64)
	if err != nil {
		return false, 0
	}
	v, ok := numericField(field, p)
	if !ok {
		return false, 0
	}
	return compareFloat(v, op, threshold), v
}

// numericField maps a field name to its value in the packet.
func numericField(field string, p *telemetry.Packet) (float64, bool) {
	switch field {
	case "battery_level":
		return float64(p.BatteryLevel), true
	case "accel_x":
		return float64(p.IMU.AccelX), true
	case "accel_y":
		return float64(p.IMU.AccelY), true
	case "accel_z":
		return float64(p.IMU.AccelZ), true
	case "accel_mag":
		x, y, z := float64(p.IMU.AccelX), float64(p.IMU.AccelY), float64(p.IMU.AccelZ)
		return math.Sqrt(x*x + y*y + z*z), true
	case "lidar_min":
		if len(p.LidarScan) == 0 {
			return 0, false
		}
		m := p.LidarScan[0]
		for _, d := range p.LidarScan[1:] {
			if d < m {
				m = d
			}
		}
		return float64(m), true
	case "lidar_mean":
		if len(p.LidarScan) == 0 {
			return 0, false
		}
		var sum float64
		for _, d := range p.LidarScan {
			sum += float64(d)
		}
		return sum / float64(len(p.LidarScan)), true
	default:
		return 0, false
	}
}

// compareFloat applies a comparison operator to two float64 values.
func compareFloat(v float64, op string, threshold float64) bool {
	switch op {
	case ">":
		return v > threshold
	case ">=":
		return v >= threshold
	case "<":
		return v < threshold
	case "<=":
		return v <= threshold
	case "==":
		return v == threshold
	case "!=":
		return v != threshold
	default:
		return false
	}
}
