package compute

import (
	"log/slog"
	"sync"
	"time"

	"github.com/omnistream/omnistream/agent/internal/metrics"
)

// uptimeWindow is the number of recent scrape outcomes tracked for uptime %.
const uptimeWindow = 20

// Result is the health derived from one scrape of an agent's metrics.
type Result struct {
	Timestamp     time.Time
	State         string
	Score         float64
	TickRate      float64 // ticks per second since the previous scrape
	SendRate      float64 // packets consumed per second
	OverrunPct    float64
	BacklogPct    float64
	FailurePct    float64
	UptimePct     float64
	SinkConnected bool
	SinkBroken    bool
	ErrorMessage  string
}

// Engine keeps the previous snapshot and the recent scrape history of a
// single agent and turns successive snapshots into rates and a score.
// Safe for concurrent use.
type Engine struct {
	mu       sync.Mutex
	prev     *metrics.Snapshot
	prevTime time.Time
	history  []bool
}

// NewEngine returns an Engine with no baseline.
func NewEngine() *Engine {
	return &Engine{}
}

// Process folds in one scrape outcome. scrapeErr non-nil marks the scrape as
// failed; snap is ignored in that case and the baseline is kept.
//
// The first successful scrape only records a baseline and reports "unknown".
func (e *Engine) Process(snap *metrics.Snapshot, scrapeErr error, now time.Time) *Result {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.recordScrape(scrapeErr == nil)
	out := &Result{Timestamp: now, UptimePct: e.uptimePct()}

	if scrapeErr != nil {
		slog.Warn("compute: scrape failed, marking unknown", "err", scrapeErr)
		out.State = StateUnknown
		out.ErrorMessage = scrapeErr.Error()
		return out
	}

	out.SinkConnected = snap.SinkConnected
	// A disconnected sink with stream failures on record was live and broke;
	// one that never failed was configured to simulate.
	out.SinkBroken = !snap.SinkConnected && snap.SinkFailures[metrics.FailureStream] > 0
	if snap.QueueCapacity > 0 {
		out.BacklogPct = snap.QueueLength / snap.QueueCapacity * 100
	}

	if e.prev == nil {
		out.State = StateUnknown
		e.prev, e.prevTime = snap, now
		return out
	}

	elapsed := now.Sub(e.prevTime).Seconds()
	if elapsed <= 0 {
		elapsed = 1
	}

	ticks := deltaOf(snap.Ticks, e.prev.Ticks)
	sent := deltaOf(snap.Sent, e.prev.Sent)
	out.TickRate = ticks / elapsed
	out.SendRate = sent / elapsed
	if ticks > 0 {
		out.OverrunPct = deltaOf(snap.Overruns, e.prev.Overruns) / ticks * 100
	}
	if sent > 0 {
		out.FailurePct = deltaOf(failures(snap), failures(e.prev)) / sent * 100
	}

	score := Compute(Input{
		OverrunPct: out.OverrunPct,
		BacklogPct: out.BacklogPct,
		FailurePct: out.FailurePct,
		UptimePct:  out.UptimePct,
		SinkBroken: out.SinkBroken,
	})
	out.State = score.State
	out.Score = score.Score

	e.prev, e.prevTime = snap, now
	return out
}

func (e *Engine) recordScrape(success bool) {
	if len(e.history) >= uptimeWindow {
		e.history = e.history[1:]
	}
	e.history = append(e.history, success)
}

func (e *Engine) uptimePct() float64 {
	if len(e.history) == 0 {
		return 100
	}
	var ok int
	for _, s := range e.history {
		if s {
			ok++
		}
	}
	return float64(ok) / float64(len(e.history)) * 100
}

func failures(s *metrics.Snapshot) float64 {
	var n float64
	for _, v := range s.SinkFailures {
		n += v
	}
	return n
}

// deltaOf returns the positive counter delta between current and previous.
// A counter that went backwards (agent restart) yields 0.
func deltaOf(current, previous float64) float64 {
	d := current - previous
	if d < 0 {
		return 0
	}
	return d
}
