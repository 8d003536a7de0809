package sink

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/omnistream/omnistream/agent/internal/config"
	"github.com/omnistream/omnistream/pkg/telemetry"
)

// Live streams packets to the receiver over one StreamTelemetry call.
//
// Send and Close must be called from a single goroutine (the consumer).
type Live struct {
	endpoint string
	conn     *grpc.ClientConn
	stream   *telemetry.ClientStream
	cancel   context.CancelFunc
	logger   *slog.Logger

	broken   bool // set on the first stream failure
	finished bool // CloseAndRecv already called
	closed   sync.Once
	closeErr error
}

// Dial connects to cfg.ServerEndpoint, waiting at most cfg.ConnectTimeout,
// and opens the telemetry stream. The stream lives until Close; cancelling
// ctx aborts it.
func Dial(ctx context.Context, cfg config.AgentConfig, logger *slog.Logger) (*Live, error) {
	if logger == nil {
		logger = slog.Default()
	}
	opts, err := dialOptions(cfg.ServerAuth)
	if err != nil {
		return nil, err
	}

	dialCtx, cancelDial := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancelDial()

	//nolint:staticcheck // DialContext+WithBlock gives the reachability check the fallback relies on
	conn, err := grpc.DialContext(dialCtx, cfg.ServerEndpoint, append(opts, grpc.WithBlock())...)
	if err != nil {
		return nil, fmt.Errorf("sink: dial %s: %w", cfg.ServerEndpoint, err)
	}

	streamCtx, cancel := context.WithCancel(ctx)
	if cfg.ServerAuth.Mode == "apikey" {
		streamCtx = metadata.AppendToOutgoingContext(streamCtx,
			cfg.ServerAuth.EffectiveHeader(), cfg.ServerAuth.Key())
	}

	stream, err := telemetry.NewStreamClient(conn).StreamTelemetry(streamCtx)
	if err != nil {
		cancel()
		conn.Close()
		return nil, fmt.Errorf("sink: open stream: %w", err)
	}

	logger.Info("sink: connected", "endpoint", cfg.ServerEndpoint)
	return &Live{
		endpoint: cfg.ServerEndpoint,
		conn:     conn,
		stream:   stream,
		cancel:   cancel,
		logger:   logger,
	}, nil
}

// Mode returns ModeLive.
func (l *Live) Mode() string { return ModeLive }

// Send validates p and writes it to the stream.
func (l *Live) Send(p *telemetry.Packet) error {
	if l.broken {
		return ErrStreamBroken
	}
	if err := p.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidPacket, err)
	}

	if err := l.stream.Send(p); err != nil {
		l.broken = true
		cause := err
		// SendMsg reports io.EOF when the server ended the call; the real
		// status is only available from the receive side.
		if errors.Is(err, io.EOF) {
			_, rerr := l.stream.CloseAndRecv()
			l.finished = true
			if rerr != nil {
				cause = rerr
			}
		}
		l.logger.Error("sink: stream failed",
			"endpoint", l.endpoint,
			"code", status.Code(cause).String(),
			"permanent", isPermanentError(cause),
			"err", cause)
		return fmt.Errorf("%w: %w", ErrStreamBroken, cause)
	}
	return nil
}

// Close half-closes the stream, logs the server summary and releases the
// connection. Repeated calls return the first result.
func (l *Live) Close() error {
	l.closed.Do(func() {
		defer l.conn.Close()
		defer l.cancel()

		if l.finished {
			return
		}
		l.finished = true

		sum, err := l.stream.CloseAndRecv()
		if err != nil {
			if !l.broken {
				l.closeErr = fmt.Errorf("sink: close stream: %w", err)
			}
			l.logger.Warn("sink: stream closed with error", "endpoint", l.endpoint, "err", err)
			return
		}
		l.logger.Info("sink: stream closed",
			"endpoint", l.endpoint,
			"server_received", sum.Received,
			"message", sum.Message)
	})
	return l.closeErr
}

// isPermanentError returns true for gRPC errors that a reconnect would not fix.
func isPermanentError(err error) bool {
	switch status.Code(err) {
	case codes.InvalidArgument, codes.Unauthenticated, codes.PermissionDenied, codes.Unimplemented:
		return true
	}
	return false
}

// dialOptions builds grpc.DialOption slice based on the server auth config.
func dialOptions(auth config.AuthConfig) ([]grpc.DialOption, error) {
	switch auth.Mode {
	case "mtls":
		tlsCfg, err := clientTLSConfig(auth)
		if err != nil {
			return nil, fmt.Errorf("sink: build mtls creds: %w", err)
		}
		return []grpc.DialOption{grpc.WithTransportCredentials(credentials.NewTLS(tlsCfg))}, nil

	default: // "apikey" carries its key in metadata; "none" or empty is plaintext for local dev
		return []grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, nil
	}
}

// clientTLSConfig loads the client certificate and optional CA from auth.
func clientTLSConfig(auth config.AuthConfig) (*tls.Config, error) {
	cert, err := tls.LoadX509KeyPair(auth.CertFile, auth.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("load client cert: %w", err)
	}

	tlsCfg := &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
	}

	if auth.CAFile != "" {
		caPEM, err := os.ReadFile(auth.CAFile)
		if err != nil {
			return nil, fmt.Errorf("read ca file: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(caPEM) {
			return nil, fmt.Errorf("no valid certs in ca file %q", auth.CAFile)
		}
		tlsCfg.RootCAs = pool
	}

	return tlsCfg, nil
}
