package main

import (
	"strings"
	"testing"
	"time"

	"github.com/omnistream/omnistream/agent/internal/compute"
	"github.com/omnistream/omnistream/agent/internal/metrics"
)

func TestFormatLine(t *testing.T) {
	at := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	prev := &metrics.Snapshot{ScrapedAt: at, Ticks: 60, Sent: 58, QueueCapacity: 1000}
	snap := &metrics.Snapshot{
		ScrapedAt:     at.Add(2 * time.Second),
		Ticks:         180,
		Sent:          176,
		QueueLength:   4,
		QueueCapacity: 1000,
		SinkConnected: true,
		SinkFailures:  map[string]float64{metrics.FailureInvalid: 2},
	}

	tests := []struct {
		name string
		prev *metrics.Snapshot
		want []string
		skip []string
	}{
		{
			name: "first sample",
			want: []string{"12:00:02", "tick=180", "sent=176", "queue=4/1000", "sink=connected", "sink_failures=2", "health=unknown"},
			skip: []string{"tick_rate", "score="},
		},
		{
			name: "with previous sample",
			prev: prev,
			want: []string{"tick_rate=60.0/s", "send_rate=59.0/s", "health=healthy", "score="},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			e := compute.NewEngine()
			if tc.prev != nil {
				e.Process(tc.prev, nil, tc.prev.ScrapedAt)
			}
			got := formatLine(snap, e.Process(snap, nil, snap.ScrapedAt))
			for _, w := range tc.want {
				if !strings.Contains(got, w) {
					t.Errorf("line %q missing %q", got, w)
				}
			}
			for _, s := range tc.skip {
				if strings.Contains(got, s) {
					t.Errorf("line %q should not contain %q", got, s)
				}
			}
		})
	}
}

func TestFormatLine_SimulatedSink(t *testing.T) {
	snap := &metrics.Snapshot{ScrapedAt: time.Now()}
	got := formatLine(snap, compute.NewEngine().Process(snap, nil, snap.ScrapedAt))
	if !strings.Contains(got, "sink=simulated") {
		t.Errorf("line %q, want sink=simulated", got)
	}
	if strings.Contains(got, "sink_failures") {
		t.Errorf("line %q reports failures for an empty map", got)
	}
}

func TestFormatLine_BrokenSink(t *testing.T) {
	at := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	failures := map[string]float64{metrics.FailureStream: 1}
	e := compute.NewEngine()
	e.Process(&metrics.Snapshot{ScrapedAt: at, Ticks: 60, Sent: 60, SinkFailures: failures}, nil, at)

	snap := &metrics.Snapshot{ScrapedAt: at.Add(time.Second), Ticks: 120, Sent: 120, SinkFailures: failures}
	got := formatLine(snap, e.Process(snap, nil, snap.ScrapedAt))
	for _, w := range []string{"sink=broken", "health=critical"} {
		if !strings.Contains(got, w) {
			t.Errorf("line %q missing %q", got, w)
		}
	}
}
