package consumer

import (
	"errors"
	"log/slog"
	"sync/atomic"

	"github.com/omnistream/omnistream/agent/internal/metrics"
	"github.com/omnistream/omnistream/agent/internal/sink"
	"github.com/omnistream/omnistream/pkg/telemetry"
)

// DefaultReportEvery is the number of sent packets between progress lines.
const DefaultReportEvery = 60

// Sink status values returned by Status.
const (
	StatusConnected = "connected"
	StatusSimulated = "simulated"
)

// Queue is the consumer's side of the pipeline queue.
type Queue interface {
	Take() (*telemetry.Packet, bool)
	Len() int
}

// Config tunes a Consumer. Zero values select defaults.
type Config struct {
	ReportEvery uint64
	Metrics     *metrics.Recorder
	Logger      *slog.Logger
}

// Consumer forwards packets from a Queue to a sink.Sink.
type Consumer struct {
	queue       Queue
	sink        sink.Sink
	reportEvery uint64
	metrics     *metrics.Recorder
	logger      *slog.Logger

	sent      atomic.Uint64
	failures  atomic.Uint64
	connected atomic.Bool
}

// New returns a Consumer draining q into s.
func New(q Queue, s sink.Sink, cfg Config) *Consumer {
	if cfg.ReportEvery == 0 {
		cfg.ReportEvery = DefaultReportEvery
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	c := &Consumer{
		queue:       q,
		sink:        s,
		reportEvery: cfg.ReportEvery,
		metrics:     cfg.Metrics,
		logger:      cfg.Logger,
	}
	c.connected.Store(s.Mode() == sink.ModeLive)
	c.metrics.SinkConnected(c.connected.Load())
	return c
}

// Run drains the queue until it is closed and empty, closes the sink, and
// returns the final sent count.
func (c *Consumer) Run() uint64 {
	c.logger.Info("consumer: started", "sink", c.sink.Mode(), "status", c.Status())

	delivering := true
	for {
		pkt, ok := c.queue.Take()
		if !ok {
			break
		}

		if delivering {
			delivering = c.forward(pkt)
		}

		n := c.sent.Add(1)
		c.metrics.Sent()
		if n%c.reportEvery == 0 {
			qlen := c.queue.Len()
			c.metrics.QueueLength(qlen)
			c.logger.Info("consumer: progress", "sent", n, "queue", qlen, "status", c.Status())
		}
	}

	if err := c.sink.Close(); err != nil {
		c.logger.Warn("consumer: sink close failed", "err", err)
	}

	final := c.sent.Load()
	c.logger.Info("consumer: stopped",
		"sent", final,
		"sink_failures", c.failures.Load(),
		"status", c.Status())
	return final
}

// forward hands pkt to the sink and reports whether delivery should continue.
func (c *Consumer) forward(pkt *telemetry.Packet) bool {
	err := c.sink.Send(pkt)
	switch {
	case err == nil:
		return true

	case errors.Is(err, sink.ErrStreamBroken):
		c.failures.Add(1)
		c.metrics.SinkFailure(metrics.FailureStream)
		c.connected.Store(false)
		c.metrics.SinkConnected(false)
		c.logger.Error("consumer: sink stream broken, draining without delivery",
			"tick", pkt.Tick, "queue", c.queue.Len(), "err", err)
		return false

	default:
		c.failures.Add(1)
		c.metrics.SinkFailure(metrics.FailureInvalid)
		c.logger.Warn("consumer: packet rejected by sink", "tick", pkt.Tick, "err", err)
		return true
	}
}

// Sent returns the number of packets taken and handed on so far.
func (c *Consumer) Sent() uint64 {
	return c.sent.Load()
}

// Failures returns the number of sink failures seen so far.
func (c *Consumer) Failures() uint64 {
	return c.failures.Load()
}

// Status is StatusConnected while packets reach a live sink and
// StatusSimulated otherwise.
func (c *Consumer) Status() string {
	if c.connected.Load() {
		return StatusConnected
	}
	return StatusSimulated
}
