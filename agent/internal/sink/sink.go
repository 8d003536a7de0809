package sink

import (
	"context"
	"errors"
	"log/slog"

	"github.com/omnistream/omnistream/agent/internal/config"
	"github.com/omnistream/omnistream/agent/internal/security"
	"github.com/omnistream/omnistream/pkg/telemetry"
)

// Modes reported by Sink.Mode.
const (
	ModeLive      = "live"
	ModeSimulated = "simulated"
)

var (
	// ErrInvalidPacket marks a per-packet rejection; the session continues.
	ErrInvalidPacket = errors.New("sink: invalid packet")

	// ErrStreamBroken marks a session-ending failure of the live stream.
	ErrStreamBroken = errors.New("sink: stream broken")
)

// Sink receives packets from the consumer.
type Sink interface {
	// Send delivers one packet. Implementations must not retain p after an
	// error is returned.
	Send(p *telemetry.Packet) error
	// Close ends the session. It is called once, after the last Send.
	Close() error
	// Mode is ModeLive or ModeSimulated.
	Mode() string
}

// Simulated accepts every packet and discards it.
type Simulated struct{}

func (Simulated) Send(*telemetry.Packet) error { return nil }
func (Simulated) Close() error                 { return nil }
func (Simulated) Mode() string                 { return ModeSimulated }

// Open returns the sink selected by cfg.Mode. In live mode it dials
// cfg.ServerEndpoint; when that fails the agent degrades to Simulated rather
// than refusing to start.
func Open(ctx context.Context, cfg config.AgentConfig, logger *slog.Logger) Sink {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Mode != config.ModeLive {
		logger.Info("sink: running in simulation mode")
		return Simulated{}
	}

	if cfg.ServerAuth.Mode == "mtls" {
		checkServerCert(ctx, cfg, logger)
	}

	live, err := Dial(ctx, cfg, logger)
	if err != nil {
		logger.Warn("sink: live endpoint unavailable, falling back to simulation",
			"endpoint", cfg.ServerEndpoint, "err", err)
		return Simulated{}
	}
	return live
}

// checkServerCert logs the validity of the receiver's certificate so an
// expiring or expired cert shows up before the stream fails on it.
func checkServerCert(ctx context.Context, cfg config.AgentConfig, logger *slog.Logger) {
	tlsCfg, err := clientTLSConfig(cfg.ServerAuth)
	if err != nil {
		logger.Warn("sink: cannot build tls config for certificate check", "err", err)
		return
	}
	cs := security.Check(ctx, cfg.ServerEndpoint, tlsCfg)
	attrs := []any{
		"endpoint", cs.Endpoint,
		"status", cs.Status,
		"issuer", cs.Issuer,
		"not_after", cs.NotAfter,
		"days_left", cs.DaysLeft,
	}
	switch cs.Status {
	case security.StatusValid:
		logger.Info("sink: server certificate checked", attrs...)
	default:
		logger.Warn("sink: server certificate problem", attrs...)
	}
}
