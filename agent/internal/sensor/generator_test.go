package sensor

import (
	"math"
	"testing"
	"time"
)

func fixedGenerator(points int) *Generator {
	g := New("AV-test", points)
	g.now = func() time.Time { return time.UnixMicro(1_700_000_000_000_000) }
	return g
}

func TestGenerate_Deterministic(t *testing.T) {
	g := fixedGenerator(64)

	a := g.Generate(42)
	b := g.Generate(42)

	if a == b {
		t.Fatal("Generate returned the same pointer twice")
	}
	if &a.LidarScan[0] == &b.LidarScan[0] {
		t.Fatal("lidar slices alias between packets")
	}
	for i := range a.LidarScan {
		if a.LidarScan[i] != b.LidarScan[i] {
			t.Fatalf("LidarScan[%d] differs: %v vs %v", i, a.LidarScan[i], b.LidarScan[i])
		}
	}
	if a.IMU != b.IMU {
		t.Errorf("IMU differs: %+v vs %+v", a.IMU, b.IMU)
	}
	if a.BatteryLevel != b.BatteryLevel {
		t.Errorf("BatteryLevel differs: %v vs %v", a.BatteryLevel, b.BatteryLevel)
	}
}

func TestGenerate_Fields(t *testing.T) {
	g := fixedGenerator(0)
	p := g.Generate(0)

	if p.VehicleID != "AV-test" {
		t.Errorf("VehicleID = %q", p.VehicleID)
	}
	if p.Tick != 0 {
		t.Errorf("Tick = %d, want 0", p.Tick)
	}
	if p.Timestamp != 1_700_000_000_000_000 {
		t.Errorf("Timestamp = %d", p.Timestamp)
	}
	if len(p.LidarScan) != DefaultLidarPoints {
		t.Errorf("len(LidarScan) = %d, want %d", len(p.LidarScan), DefaultLidarPoints)
	}
	for i, d := range p.LidarScan {
		if d < 8 || d > 12 {
			t.Fatalf("LidarScan[%d] = %v outside [8, 12]", i, d)
		}
	}
	if math.Abs(float64(p.IMU.AccelZ)-gravity) > 0.11 {
		t.Errorf("AccelZ = %v, want ~%v", p.IMU.AccelZ, gravity)
	}
	if err := p.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestBattery_DrainsAndFloors(t *testing.T) {
	tests := []struct {
		tick uint64
		want float64
	}{
		{0, 99.9999},
		{9_999, 99.0},
		{999_999, 0},
		{5_000_000, 0},
	}
	for _, tc := range tests {
		got := float64(battery(tc.tick))
		if math.Abs(got-tc.want) > 1e-3 {
			t.Errorf("battery(%d) = %v, want %v", tc.tick, got, tc.want)
		}
	}
	if battery(10) >= battery(9) {
		t.Error("battery does not decrease with tick")
	}
}
