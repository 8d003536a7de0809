package telemetry

import (
	"errors"
	"math"
	"testing"
)

func TestPacket_Validate(t *testing.T) {
	good := func() *Packet {
		return &Packet{VehicleID: "AV-001", Tick: 7, BatteryLevel: 99.5, LidarScan: []float32{10}}
	}

	tests := []struct {
		name    string
		mutate  func(p *Packet) *Packet
		wantErr bool
	}{
		{"valid", func(p *Packet) *Packet { return p }, false},
		{"empty battery is zero percent", func(p *Packet) *Packet { p.BatteryLevel = 0; return p }, false},
		{"full battery", func(p *Packet) *Packet { p.BatteryLevel = 100; return p }, false},
		{"no lidar", func(p *Packet) *Packet { p.LidarScan = nil; return p }, false},
		{"nil packet", func(*Packet) *Packet { return nil }, true},
		{"missing vehicle", func(p *Packet) *Packet { p.VehicleID = ""; return p }, true},
		{"negative battery", func(p *Packet) *Packet { p.BatteryLevel = -0.1; return p }, true},
		{"battery over 100", func(p *Packet) *Packet { p.BatteryLevel = 100.5; return p }, true},
		{"battery NaN", func(p *Packet) *Packet { p.BatteryLevel = float32(math.NaN()); return p }, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.mutate(good()).Validate()
			if tc.wantErr {
				if !errors.Is(err, ErrInvalid) {
					t.Errorf("Validate() = %v, want ErrInvalid", err)
				}
				return
			}
			if err != nil {
				t.Errorf("Validate() = %v, want nil", err)
			}
		})
	}
}
