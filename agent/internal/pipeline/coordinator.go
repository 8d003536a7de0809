package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/omnistream/omnistream/agent/internal/clock"
	"github.com/omnistream/omnistream/agent/internal/config"
	"github.com/omnistream/omnistream/agent/internal/consumer"
	"github.com/omnistream/omnistream/agent/internal/metrics"
	"github.com/omnistream/omnistream/agent/internal/producer"
	"github.com/omnistream/omnistream/agent/internal/queue"
	"github.com/omnistream/omnistream/agent/internal/sink"
	"github.com/omnistream/omnistream/pkg/telemetry"
)

// ExitForced is the process exit code used when a second signal abandons
// the drain.
const ExitForced = 130

// DefaultLivenessInterval is how often the coordinator polls the token.
const DefaultLivenessInterval = 100 * time.Millisecond

// State is the coordinator lifecycle phase.
type State int32

const (
	StateIdle State = iota
	StateRunning
	StateDraining
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateDraining:
		return "draining"
	case StateStopped:
		return "stopped"
	}
	return fmt.Sprintf("state(%d)", int32(s))
}

// Config tunes a Coordinator. Zero values select package defaults.
type Config struct {
	QueueCapacity    int
	Period           time.Duration
	ReportEvery      uint64
	LivenessInterval time.Duration

	Clock   clock.Clock
	Metrics *metrics.Recorder
	Logger  *slog.Logger

	// ForceExit is called with ExitForced on a second signal. Default os.Exit.
	ForceExit func(code int)
}

// ConfigFrom maps the agent's file configuration onto a Coordinator Config.
func ConfigFrom(a config.AgentConfig) Config {
	return Config{
		QueueCapacity:    a.QueueCapacity,
		Period:           producer.PeriodForRate(a.RateHz),
		ReportEvery:      uint64(a.ReportEvery),
		LivenessInterval: a.LivenessInterval,
	}
}

// Report holds the final counters of a run.
type Report struct {
	Ticks    uint64
	Sent     uint64
	Reason   string
	SinkMode string
	Err      error
}

type service struct {
	name string
	run  func(ctx context.Context) error
}

// Coordinator runs one producer and one consumer over a shared queue.
type Coordinator struct {
	queue    *queue.Bounded[*telemetry.Packet]
	producer *producer.Producer
	consumer *consumer.Consumer
	token    *Token

	liveness  time.Duration
	clock     clock.Clock
	logger    *slog.Logger
	forceExit func(int)

	services  []service
	state     atomic.Int32
	closeOnce sync.Once
	stopped   chan struct{}
}

// New validates cfg and builds the pipeline without starting anything.
func New(cfg Config, gen producer.Generator, snk sink.Sink) (*Coordinator, error) {
	if gen == nil {
		return nil, errors.New("pipeline: generator is required")
	}
	if snk == nil {
		return nil, errors.New("pipeline: sink is required")
	}
	q, err := queue.New[*telemetry.Packet](cfg.QueueCapacity)
	if err != nil {
		return nil, fmt.Errorf("pipeline: %w", err)
	}
	if cfg.LivenessInterval <= 0 {
		cfg.LivenessInterval = DefaultLivenessInterval
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.Real()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.ForceExit == nil {
		cfg.ForceExit = os.Exit
	}

	cfg.Metrics.QueueCapacity(q.Cap())

	return &Coordinator{
		queue: q,
		producer: producer.New(q, gen, producer.Config{
			Period:      cfg.Period,
			ReportEvery: cfg.ReportEvery,
			Clock:       cfg.Clock,
			Metrics:     cfg.Metrics,
			Logger:      cfg.Logger,
		}),
		consumer: consumer.New(q, snk, consumer.Config{
			ReportEvery: cfg.ReportEvery,
			Metrics:     cfg.Metrics,
			Logger:      cfg.Logger,
		}),
		token:     NewToken(),
		liveness:  cfg.LivenessInterval,
		clock:     cfg.Clock,
		logger:    cfg.Logger,
		forceExit: cfg.ForceExit,
		stopped:   make(chan struct{}),
	}, nil
}

// AddService registers an auxiliary service started alongside the workers.
// run must return when ctx is cancelled; a non-nil error returned before
// that trips the shutdown token. Call before Run.
func (c *Coordinator) AddService(name string, run func(ctx context.Context) error) {
	c.services = append(c.services, service{name: name, run: run})
}

// Token returns the coordinator's shutdown token.
func (c *Coordinator) Token() *Token { return c.token }

// State returns the current lifecycle phase.
func (c *Coordinator) State() State { return State(c.state.Load()) }

// Ticks returns the producer's tick count so far.
func (c *Coordinator) Ticks() uint64 { return c.producer.Ticks() }

// Sent returns the consumer's sent count so far.
func (c *Coordinator) Sent() uint64 { return c.consumer.Sent() }

// Buffered returns the number of packets waiting in the queue.
func (c *Coordinator) Buffered() int { return c.queue.Len() }

// Run starts the workers and auxiliary services, waits for the token to
// trip (or ctx to end), and performs the drain. It returns once both workers
// have exited and every service has stopped.
func (c *Coordinator) Run(ctx context.Context) Report {
	auxCtx, cancelAux := context.WithCancel(ctx)
	defer cancelAux()
	aux, auxCtx := errgroup.WithContext(auxCtx)
	for _, s := range c.services {
		s := s
		aux.Go(func() error {
			err := s.run(auxCtx)
			if err != nil && auxCtx.Err() == nil {
				c.token.Trip(fmt.Sprintf("%s failed: %v", s.name, err))
				return fmt.Errorf("%s: %w", s.name, err)
			}
			return nil
		})
	}

	var (
		workers     errgroup.Group
		ticks, sent uint64
	)
	workers.Go(func() error {
		ticks = c.producer.Run()
		return nil
	})
	workers.Go(func() error {
		sent = c.consumer.Run()
		return nil
	})
	c.state.Store(int32(StateRunning))
	c.logger.Info("pipeline: running", "capacity", c.queue.Cap(), "services", len(c.services))

	for !c.token.Tripped() {
		if ctx.Err() != nil {
			c.token.Trip("context cancelled")
			break
		}
		c.clock.Sleep(c.liveness)
	}

	c.state.Store(int32(StateDraining))
	c.logger.Info("pipeline: shutdown requested, draining",
		"reason", c.token.Reason(), "buffered", c.queue.Len())

	c.closeOnce.Do(c.queue.Close)
	_ = workers.Wait()

	cancelAux()
	auxErr := aux.Wait()

	c.state.Store(int32(StateStopped))
	close(c.stopped)

	report := Report{
		Ticks:    ticks,
		Sent:     sent,
		Reason:   c.token.Reason(),
		SinkMode: c.consumer.Status(),
		Err:      auxErr,
	}
	c.logger.Info("pipeline: stopped",
		"ticks", report.Ticks,
		"sent", report.Sent,
		"reason", report.Reason,
		"sink", report.SinkMode)
	return report
}
