package producer

import (
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/omnistream/omnistream/agent/internal/clock"
	"github.com/omnistream/omnistream/agent/internal/metrics"
	"github.com/omnistream/omnistream/pkg/telemetry"
)

// Defaults applied by New for zero Config fields.
const (
	DefaultRateHz      = 60
	DefaultReportEvery = 60
)

// Queue is the producer's side of the pipeline queue.
type Queue interface {
	Put(*telemetry.Packet) bool
	Len() int
}

// Generator builds the packet for a tick.
type Generator interface {
	Generate(tick uint64) *telemetry.Packet
}

// Config tunes a Producer. Zero values select defaults.
type Config struct {
	// Period is the target time between tick starts (default 1/60 s).
	Period time.Duration

	// ReportEvery is how many ticks pass between progress log lines.
	ReportEvery uint64

	Clock   clock.Clock
	Metrics *metrics.Recorder
	Logger  *slog.Logger
}

// PeriodForRate converts a rate in Hz to a tick period.
func PeriodForRate(hz float64) time.Duration {
	if hz <= 0 {
		hz = DefaultRateHz
	}
	return time.Duration(float64(time.Second) / hz)
}

// Producer generates packets at a fixed cadence and enqueues them.
type Producer struct {
	queue       Queue
	gen         Generator
	period      time.Duration
	reportEvery uint64
	clock       clock.Clock
	metrics     *metrics.Recorder
	logger      *slog.Logger

	ticks atomic.Uint64
}

// New returns a Producer that feeds q from gen.
func New(q Queue, gen Generator, cfg Config) *Producer {
	if cfg.Period <= 0 {
		cfg.Period = PeriodForRate(DefaultRateHz)
	}
	if cfg.ReportEvery == 0 {
		cfg.ReportEvery = DefaultReportEvery
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.Real()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Producer{
		queue:       q,
		gen:         gen,
		period:      cfg.Period,
		reportEvery: cfg.ReportEvery,
		clock:       cfg.Clock,
		metrics:     cfg.Metrics,
		logger:      cfg.Logger,
	}
}

// Run executes the tick loop until the queue rejects a Put, then returns
// the final tick count. The rejected tick is counted.
func (p *Producer) Run() uint64 {
	p.logger.Info("producer: started", "period", p.period)

	for {
		start := p.clock.Now()

		pkt := p.gen.Generate(p.ticks.Load())
		n := p.ticks.Add(1)
		p.metrics.Tick()

		if !p.queue.Put(pkt) {
			break
		}

		if n%p.reportEvery == 0 {
			qlen := p.queue.Len()
			p.metrics.QueueLength(qlen)
			p.logger.Info("producer: progress", "tick", n, "queue", qlen)
		}

		elapsed := p.clock.Now().Sub(start)
		if elapsed > p.period {
			p.metrics.Overrun()
			p.logger.Debug("producer: tick overran period",
				"tick", n, "elapsed", elapsed, "period", p.period)
		}
		p.clock.Sleep(p.period - elapsed)
	}

	final := p.ticks.Load()
	p.logger.Info("producer: stopped", "tick", final)
	return final
}

// Ticks returns the number of ticks attempted so far.
func (p *Producer) Ticks() uint64 {
	return p.ticks.Load()
}
