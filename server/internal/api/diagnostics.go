package api

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/omnistream/omnistream/pkg/telemetry"
)

// Hint levels, most severe first.
const (
	LevelCritical = "critical"
	LevelWarning  = "warning"
	LevelInfo     = "info"
	LevelOK       = "ok"
)

// Thresholds for vehicle diagnostics.
const (
	batteryCritical = 10.0
	batteryWarning  = 25.0
	obstacleCrit    = 1.0 // metres
	obstacleWarn    = 2.5
	shockAccel      = 20.0 // m/s², total magnitude
	silentAfter     = 5 * time.Second
)

// DiagnosticHint is one human-readable insight about a vehicle's state.
type DiagnosticHint struct {
	// Key is a stable machine-readable identifier.
	Key string `json:"key"`
	// Level is "ok" | "info" | "warning" | "critical".
	Level string `json:"level"`
	// Title is a short label.
	Title string `json:"title"`
	// Detail is the full explanation.
	Detail string `json:"detail"`
	// Value is an optional numeric value associated with this hint.
	Value *float64 `json:"value,omitempty"`
}

func levelRank(l string) int {
	switch l {
	case LevelCritical:
		return 0
	case LevelWarning:
		return 1
	case LevelInfo:
		return 2
	default:
		return 3
	}
}

// computeDiagnostics derives hints from the latest packet of a vehicle that
// was last heard from age ago. Hints are ordered critical first.
func computeDiagnostics(p *telemetry.Packet, age time.Duration) []DiagnosticHint {
	var hints []DiagnosticHint

	if age > silentAfter {
		v := age.Seconds()
		hints = append(hints, DiagnosticHint{
			Key:   "silent",
			Level: LevelWarning,
			Title: "No recent data",
			Detail: fmt.Sprintf(
				"Nothing has arrived from this vehicle for %.0fs. The values below are "+
					"from its last packet. The agent may have stopped, lost its network "+
					"link, or fallen back to simulation mode.", v),
			Value: &v,
		})
	}

	batt := float64(p.BatteryLevel)
	switch {
	case batt < batteryCritical:
		hints = append(hints, DiagnosticHint{
			Key:    "battery",
			Level:  LevelCritical,
			Title:  fmt.Sprintf("Battery %.1f%%", batt),
			Detail: "Battery is nearly empty. Route the vehicle to a charger now.",
			Value:  &batt,
		})
	case batt < batteryWarning:
		hints = append(hints, DiagnosticHint{
			Key:    "battery",
			Level:  LevelWarning,
			Title:  fmt.Sprintf("Battery %.1f%%", batt),
			Detail: "Battery is running low. Plan a charging stop.",
			Value:  &batt,
		})
	}

	if len(p.LidarScan) > 0 {
		closest, _, _ := lidarStats(p.LidarScan)
		c := float64(closest)
		switch {
		case c < obstacleCrit:
			hints = append(hints, DiagnosticHint{
				Key:    "obstacle",
				Level:  LevelCritical,
				Title:  fmt.Sprintf("Obstacle at %.1fm", c),
				Detail: "The lidar reports an object within a metre of the vehicle.",
				Value:  &c,
			})
		case c < obstacleWarn:
			hints = append(hints, DiagnosticHint{
				Key:    "obstacle",
				Level:  LevelWarning,
				Title:  fmt.Sprintf("Obstacle at %.1fm", c),
				Detail: "The lidar reports a nearby object.",
				Value:  &c,
			})
		}
	} else {
		hints = append(hints, DiagnosticHint{
			Key:    "lidar_missing",
			Level:  LevelInfo,
			Title:  "No lidar scan",
			Detail: "The latest packet carried no lidar readings.",
		})
	}

	x, y, z := float64(p.IMU.AccelX), float64(p.IMU.AccelY), float64(p.IMU.AccelZ)
	if mag := math.Sqrt(x*x + y*y + z*z); mag > shockAccel {
		hints = append(hints, DiagnosticHint{
			Key:    "shock",
			Level:  LevelWarning,
			Title:  fmt.Sprintf("Shock %.1f m/s²", mag),
			Detail: "The IMU measured an acceleration spike, e.g. a hard brake or an impact.",
			Value:  &mag,
		})
	}

	if len(hints) == 0 {
		return []DiagnosticHint{{
			Key:    "healthy",
			Level:  LevelOK,
			Title:  "All clear",
			Detail: "Vehicle is reporting normally.",
		}}
	}

	sort.SliceStable(hints, func(i, j int) bool {
		return levelRank(hints[i].Level) < levelRank(hints[j].Level)
	})
	return hints
}

// stateFromHints returns "critical", "warning", or "ok" from the most
// severe hint.
func stateFromHints(hints []DiagnosticHint) string {
	state := LevelOK
	for _, h := range hints {
		switch h.Level {
		case LevelCritical:
			return LevelCritical
		case LevelWarning:
			state = LevelWarning
		}
	}
	return state
}

// lidarStats returns min, max, and mean of a non-empty scan.
func lidarStats(scan []float32) (lo, hi, mean float32) {
	lo, hi = scan[0], scan[0]
	var sum float64
	for _, d := range scan {
		if d < lo {
			lo = d
		}
		if d > hi {
			hi = d
		}
		sum += float64(d)
	}
	return lo, hi, float32(sum / float64(len(scan)))
}
