package metrics

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metric names exported by the agent.
const (
	TicksTotal        = "omnistream_producer_ticks_total"
	OverrunsTotal     = "omnistream_producer_overruns_total"
	SentTotal         = "omnistream_consumer_sent_total"
	SinkFailuresTotal = "omnistream_sink_failures_total"
	QueueLength       = "omnistream_queue_length"
	QueueCapacity     = "omnistream_queue_capacity"
	SinkConnected     = "omnistream_sink_connected"
)

// Failure kinds used as the "kind" label on SinkFailuresTotal.
const (
	FailureInvalid = "invalid"
	FailureStream  = "stream"
)

const shutdownTimeout = 5 * time.Second

// Recorder holds the agent's Prometheus collectors.
type Recorder struct {
	registry *prometheus.Registry

	ticks         prometheus.Counter
	overruns      prometheus.Counter
	sent          prometheus.Counter
	sinkFailures  *prometheus.CounterVec
	queueLength   prometheus.Gauge
	queueCapacity prometheus.Gauge
	sinkConnected prometheus.Gauge
}

// NewRecorder builds a Recorder whose collectors carry a constant
// vehicle label.
func NewRecorder(vehicleID string) *Recorder {
	labels := prometheus.Labels{"vehicle": vehicleID}
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		ticks: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        TicksTotal,
			Help:        "Ticks attempted by the producer, including the final rejected one.",
			ConstLabels: labels,
		}),
		overruns: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        OverrunsTotal,
			Help:        "Ticks whose generate+enqueue time exceeded the target period.",
			ConstLabels: labels,
		}),
		sent: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        SentTotal,
			Help:        "Records taken from the queue and handed to the sink.",
			ConstLabels: labels,
		}),
		sinkFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        SinkFailuresTotal,
			Help:        "Sink delivery failures labeled by kind (invalid|stream).",
			ConstLabels: labels,
		}, []string{"kind"}),
		queueLength: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        QueueLength,
			Help:        "Records buffered between producer and consumer at last observation.",
			ConstLabels: labels,
		}),
		queueCapacity: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        QueueCapacity,
			Help:        "Fixed capacity of the pipeline queue.",
			ConstLabels: labels,
		}),
		sinkConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        SinkConnected,
			Help:        "1 while records are delivered to a live sink, 0 when draining locally.",
			ConstLabels: labels,
		}),
	}
	r.registry.MustRegister(
		r.ticks, r.overruns, r.sent, r.sinkFailures,
		r.queueLength, r.queueCapacity, r.sinkConnected,
		collectors.NewGoCollector(),
	)
	return r
}

// Registry returns the underlying registry, mainly for tests.
func (r *Recorder) Registry() *prometheus.Registry { return r.registry }

// Tick records one producer tick.
func (r *Recorder) Tick() {
	if r == nil {
		return
	}
	r.ticks.Inc()
}

// Overrun records a tick that took longer than its period.
func (r *Recorder) Overrun() {
	if r == nil {
		return
	}
	r.overruns.Inc()
}

// Sent records one record handed to the sink.
func (r *Recorder) Sent() {
	if r == nil {
		return
	}
	r.sent.Inc()
}

// SinkFailure records a failed delivery of the given kind.
func (r *Recorder) SinkFailure(kind string) {
	if r == nil {
		return
	}
	r.sinkFailures.WithLabelValues(kind).Inc()
}

// QueueLength sets the observed queue length.
func (r *Recorder) QueueLength(n int) {
	if r == nil {
		return
	}
	r.queueLength.Set(float64(n))
}

// QueueCapacity sets the queue capacity gauge.
func (r *Recorder) QueueCapacity(n int) {
	if r == nil {
		return
	}
	r.queueCapacity.Set(float64(n))
}

// SinkConnected sets the sink status gauge.
func (r *Recorder) SinkConnected(connected bool) {
	if r == nil {
		return
	}
	if connected {
		r.sinkConnected.Set(1)
		return
	}
	r.sinkConnected.Set(0)
}

// Handler returns an http.Handler serving the registry in the Prometheus
// exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

// Serve listens on addr and serves /metrics until ctx is cancelled.
// A listen failure is returned immediately so the caller can treat it as fatal.
func (r *Recorder) Serve(ctx context.Context, addr string) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("metrics: listen %s: %w", addr, err)
	}
	return r.serve(ctx, lis)
}

func (r *Recorder) serve(ctx context.Context, lis net.Listener) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", r.Handler())
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	errc := make(chan error, 1)
	go func() {
		slog.Info("metrics: listening", "addr", lis.Addr().String())
		errc <- srv.Serve(lis)
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("metrics: serve: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("metrics: shutdown: %w", err)
		}
		return nil
	}
}
