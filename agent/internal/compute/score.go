package compute

// Weight constants for the pipeline health score. They must sum to 1.0.
const (
	weightOverrun  = 0.30
	weightBacklog  = 0.30
	weightDelivery = 0.30
	weightUptime   = 0.10
)

// State constants returned by the score calculator.
const (
	StateHealthy  = "healthy"
	StateDegraded = "degraded"
	StateCritical = "critical"
	StateUnknown  = "unknown"
)

// Thresholds that map a score to a health state.
const (
	ThresholdHealthy  = 85.0
	ThresholdDegraded = 60.0
)

// Input holds the normalised values fed into the score formula.
// All percentage fields are in the range 0–100.
type Input struct {
	// OverrunPct is the share of cadence ticks that ran past their deadline.
	OverrunPct float64

	// BacklogPct is how full the packet queue is, relative to its capacity.
	BacklogPct float64

	// FailurePct is the share of consumed packets the sink rejected.
	FailurePct float64

	// UptimePct is the percentage of recent scrapes that returned data.
	UptimePct float64

	// SinkBroken marks a live stream that failed: packets are still taken
	// off the queue but none reach the server.
	SinkBroken bool
}

// Output is the result of the score calculation.
type Output struct {
	Score float64
	State string

	// Per-factor values, each 0–1.
	OverrunFactor  float64
	BacklogFactor  float64
	DeliveryFactor float64
	UptimeFactor   float64
}

// Compute calculates the pipeline health score:
//
//	score = (
//	    (1 - overrun_pct/100) * 0.30 +
//	    (1 - backlog_pct/100) * 0.30 +
//	    (1 - failure_pct/100) * 0.30 +
//	    uptime_pct/100        * 0.10
//	) * 100
//
// An agent that was never reachable (UptimePct 0) is "unknown".
func Compute(in Input) Output {
	if in.UptimePct <= 0 {
		return Output{State: StateUnknown}
	}

	if in.SinkBroken {
		in.FailurePct = 100
	}
	out := Output{
		OverrunFactor:  1 - clamp01(in.OverrunPct/100),
		BacklogFactor:  1 - clamp01(in.BacklogPct/100),
		DeliveryFactor: 1 - clamp01(in.FailurePct/100),
		UptimeFactor:   clamp01(in.UptimePct / 100),
	}
	out.Score = (out.OverrunFactor*weightOverrun +
		out.BacklogFactor*weightBacklog +
		out.DeliveryFactor*weightDelivery +
		out.UptimeFactor*weightUptime) * 100
	out.State = stateFromScore(out.Score)
	if in.SinkBroken {
		out.State = StateCritical
	}
	return out
}

func stateFromScore(score float64) string {
	switch {
	case score >= ThresholdHealthy:
		return StateHealthy
	case score >= ThresholdDegraded:
		return StateDegraded
	default:
		return StateCritical
	}
}

// clamp01 restricts v to the range [0, 1].
func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
