package compute

import (
	"errors"
	"testing"
	"time"

	"github.com/omnistream/omnistream/agent/internal/metrics"
)

var baseTime = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

// at returns baseTime advanced by n seconds.
func at(n int) time.Time {
	return baseTime.Add(time.Duration(n) * time.Second)
}

func snapshot(ticks, sent, overruns float64) *metrics.Snapshot {
	return &metrics.Snapshot{
		Ticks:         ticks,
		Sent:          sent,
		Overruns:      overruns,
		QueueCapacity: 100,
		SinkConnected: true,
		SinkFailures:  map[string]float64{},
	}
}

func TestEngine_FirstScrape_ReturnsUnknown(t *testing.T) {
	e := NewEngine()
	out := e.Process(snapshot(100, 100, 0), nil, at(0))
	if out.State != StateUnknown {
		t.Errorf("State = %q, want %q", out.State, StateUnknown)
	}
	if !out.SinkConnected {
		t.Error("SinkConnected = false, want true")
	}
}

func TestEngine_SecondScrape_ComputesRates(t *testing.T) {
	e := NewEngine()
	e.Process(snapshot(100, 95, 0), nil, at(0))

	s := snapshot(300, 293, 20)
	s.QueueLength = 10
	s.SinkFailures[metrics.FailureInvalid] = 2
	out := e.Process(s, nil, at(2))

	if !almostEqual(out.TickRate, 100, 0.01) {
		t.Errorf("TickRate = %.2f, want 100", out.TickRate)
	}
	if !almostEqual(out.SendRate, 99, 0.01) {
		t.Errorf("SendRate = %.2f, want 99", out.SendRate)
	}
	if !almostEqual(out.OverrunPct, 10, 0.01) {
		t.Errorf("OverrunPct = %.2f, want 10", out.OverrunPct)
	}
	if !almostEqual(out.BacklogPct, 10, 0.01) {
		t.Errorf("BacklogPct = %.2f, want 10", out.BacklogPct)
	}
	if !almostEqual(out.FailurePct, 2.0/198*100, 0.01) {
		t.Errorf("FailurePct = %.2f, want %.2f", out.FailurePct, 2.0/198*100)
	}
	if out.State != StateHealthy {
		t.Errorf("State = %q, want healthy (score %.2f)", out.State, out.Score)
	}
}

func TestEngine_CounterReset_TreatedAsZeroDelta(t *testing.T) {
	e := NewEngine()
	e.Process(snapshot(10000, 10000, 50), nil, at(0))

	out := e.Process(snapshot(20, 20, 0), nil, at(1))
	if out.TickRate != 0 || out.SendRate != 0 {
		t.Errorf("rates after restart = %.2f/%.2f, want 0/0", out.TickRate, out.SendRate)
	}
	if out.OverrunPct != 0 {
		t.Errorf("OverrunPct after restart = %.2f, want 0", out.OverrunPct)
	}
}

func TestEngine_ScrapeFailure_ReturnsUnknown(t *testing.T) {
	e := NewEngine()
	e.Process(snapshot(10, 10, 0), nil, at(0))

	out := e.Process(nil, errors.New("connection refused"), at(1))
	if out.State != StateUnknown {
		t.Errorf("State = %q, want %q", out.State, StateUnknown)
	}
	if out.ErrorMessage != "connection refused" {
		t.Errorf("ErrorMessage = %q", out.ErrorMessage)
	}
}

func TestEngine_ScrapeFailure_DoesNotAdvanceBaseline(t *testing.T) {
	e := NewEngine()
	e.Process(snapshot(0, 0, 0), nil, at(0))
	e.Process(nil, errors.New("timeout"), at(2))

	out := e.Process(snapshot(400, 400, 0), nil, at(4))
	if !almostEqual(out.TickRate, 100, 0.01) {
		t.Errorf("TickRate = %.2f, want 100 (baseline kept across failure)", out.TickRate)
	}
}

func TestEngine_UptimePct(t *testing.T) {
	e := NewEngine()
	for i := 0; i < 4; i++ {
		e.Process(snapshot(float64(i*10), float64(i*10), 0), nil, at(i))
	}
	for i := 0; i < 4; i++ {
		e.Process(nil, errors.New("down"), at(4+i))
	}
	last := e.Process(snapshot(90, 90, 0), nil, at(8))

	want := 5.0 / 9.0 * 100
	if !almostEqual(last.UptimePct, want, 0.1) {
		t.Errorf("UptimePct = %.2f, want %.2f", last.UptimePct, want)
	}
}

func TestEngine_UptimePct_RollingWindow(t *testing.T) {
	e := NewEngine()
	for i := 0; i < uptimeWindow+5; i++ {
		e.Process(nil, errors.New("down"), at(i))
	}
	var last *Result
	for i := 0; i < 5; i++ {
		last = e.Process(snapshot(float64(i), float64(i), 0), nil, at(uptimeWindow+5+i))
	}

	want := 5.0 / float64(uptimeWindow) * 100
	if !almostEqual(last.UptimePct, want, 0.1) {
		t.Errorf("UptimePct = %.2f, want %.2f", last.UptimePct, want)
	}
}

func TestEngine_BackedUpPipeline_Critical(t *testing.T) {
	e := NewEngine()
	e.Process(snapshot(0, 0, 0), nil, at(0))

	s := snapshot(100, 10, 80)
	s.QueueLength = 95
	s.SinkConnected = false
	s.SinkFailures[metrics.FailureStream] = 1
	s.SinkFailures[metrics.FailureInvalid] = 4
	out := e.Process(s, nil, at(1))

	if out.State != StateCritical {
		t.Errorf("State = %q, want critical (score %.2f)", out.State, out.Score)
	}
	if out.SinkConnected {
		t.Error("SinkConnected = true, want false")
	}
}

func TestEngine_BrokenStreamIsCritical(t *testing.T) {
	e := NewEngine()
	s0 := snapshot(100, 100, 0)
	s0.SinkConnected = false
	s0.SinkFailures[metrics.FailureStream] = 1
	e.Process(s0, nil, at(0))

	// The consumer keeps counting sent while draining without delivery, so
	// only the sink state shows that nothing reaches the server.
	s1 := snapshot(1000, 1000, 0)
	s1.SinkConnected = false
	s1.SinkFailures[metrics.FailureStream] = 1
	out := e.Process(s1, nil, at(10))

	if !out.SinkBroken {
		t.Error("SinkBroken = false, want true")
	}
	if out.FailurePct != 0 {
		t.Errorf("FailurePct = %.2f, want 0 (no new failures)", out.FailurePct)
	}
	if out.State != StateCritical {
		t.Errorf("State = %q, want critical (score %.2f)", out.State, out.Score)
	}
}

func TestEngine_SimulatedSinkIsNotBroken(t *testing.T) {
	e := NewEngine()
	s0 := snapshot(0, 0, 0)
	s0.SinkConnected = false
	e.Process(s0, nil, at(0))

	s1 := snapshot(100, 100, 0)
	s1.SinkConnected = false
	out := e.Process(s1, nil, at(1))
	if out.SinkBroken {
		t.Error("SinkBroken = true for a sink that never failed")
	}
	if out.State != StateHealthy {
		t.Errorf("State = %q, want healthy (score %.2f)", out.State, out.Score)
	}
}

func TestDeltaOf(t *testing.T) {
	for _, tc := range []struct{ cur, prev, want float64 }{
		{10, 4, 6},
		{4, 10, 0},
		{5, 5, 0},
	} {
		if got := deltaOf(tc.cur, tc.prev); got != tc.want {
			t.Errorf("deltaOf(%v, %v) = %v, want %v", tc.cur, tc.prev, got, tc.want)
		}
	}
}
