package api

import (
	"testing"
	"time"

	"github.com/omnistream/omnistream/pkg/telemetry"
)

func TestComputeDiagnostics(t *testing.T) {
	healthy := func() *telemetry.Packet {
		return &telemetry.Packet{
			VehicleID:    "AV-001",
			LidarScan:    []float32{10, 9, 11},
			IMU:          telemetry.IMUReading{AccelZ: 9.8},
			BatteryLevel: 80,
		}
	}

	tests := []struct {
		name      string
		mutate    func(p *telemetry.Packet)
		age       time.Duration
		wantKeys  []string
		wantState string
	}{
		{"healthy", func(*telemetry.Packet) {}, 0, []string{"healthy"}, "ok"},
		{"low battery", func(p *telemetry.Packet) { p.BatteryLevel = 20 }, 0, []string{"battery"}, "warning"},
		{"empty battery", func(p *telemetry.Packet) { p.BatteryLevel = 3 }, 0, []string{"battery"}, "critical"},
		{"nearby obstacle", func(p *telemetry.Packet) { p.LidarScan[1] = 2 }, 0, []string{"obstacle"}, "warning"},
		{"imminent obstacle", func(p *telemetry.Packet) { p.LidarScan[1] = 0.5 }, 0, []string{"obstacle"}, "critical"},
		{"shock", func(p *telemetry.Packet) { p.IMU.AccelX = 25 }, 0, []string{"shock"}, "warning"},
		{"no lidar", func(p *telemetry.Packet) { p.LidarScan = nil }, 0, []string{"lidar_missing"}, "ok"},
		{"silent", func(*telemetry.Packet) {}, time.Minute, []string{"silent"}, "warning"},
		{
			"critical sorts first",
			func(p *telemetry.Packet) { p.BatteryLevel = 2; p.IMU.AccelY = 30 },
			time.Minute,
			[]string{"battery", "silent", "shock"},
			"critical",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			p := healthy()
			tc.mutate(p)
			hints := computeDiagnostics(p, tc.age)

			if len(hints) != len(tc.wantKeys) {
				t.Fatalf("hints: got %+v, want keys %v", hints, tc.wantKeys)
			}
			for i, k := range tc.wantKeys {
				if hints[i].Key != k {
					t.Errorf("hint[%d].Key: got %q, want %q", i, hints[i].Key, k)
				}
			}
			if got := stateFromHints(hints); got != tc.wantState {
				t.Errorf("state: got %q, want %q", got, tc.wantState)
			}
		})
	}
}

func TestLidarStats(t *testing.T) {
	lo, hi, mean := lidarStats([]float32{4, 2, 6})
	if lo != 2 || hi != 6 || mean != 4 {
		t.Errorf("lidarStats: got %v %v %v, want 2 6 4", lo, hi, mean)
	}
}
