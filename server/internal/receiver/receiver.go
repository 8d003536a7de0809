package receiver

import (
	"errors"
	"io"
	"log/slog"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"

	"github.com/omnistream/omnistream/pkg/telemetry"
	"github.com/omnistream/omnistream/server/internal/store"
)

// Observer is notified of every stored packet, e.g. the alerts engine.
type Observer interface {
	Observe(e *store.Entry)
}

// Receiver implements telemetry.StreamServer.
// It validates each incoming packet and stores it in the vehicle store.
type Receiver struct {
	store     *store.Store
	observers []Observer
}

// New creates a Receiver that writes accepted packets to st and passes each
// stored entry to observers.
func New(st *store.Store, observers ...Observer) *Receiver {
	return &Receiver{store: st, observers: observers}
}

// StreamTelemetry handles one agent session. Packets are stored in arrival
// order until the agent half-closes, then a Summary is returned. An invalid
// packet ends the stream with codes.InvalidArgument.
// Authentication is enforced by the gRPC stream interceptor before this is called.
func (r *Receiver) StreamTelemetry(stream telemetry.PacketStream) error {
	addr := "unknown"
	if p, ok := peer.FromContext(stream.Context()); ok {
		addr = p.Addr.String()
	}
	slog.Info("receiver: stream opened", "peer", addr)

	var (
		received uint64
		vehicle  string
	)
	for {
		p, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			slog.Info("receiver: stream closed by agent",
				"peer", addr, "vehicle_id", vehicle, "received", received)
			return stream.SendAndClose(&telemetry.Summary{
				Received: received,
				Message:  "stream complete",
			})
		}
		if err != nil {
			slog.Warn("receiver: stream aborted",
				"peer", addr, "vehicle_id", vehicle, "received", received, "err", err)
			return err
		}

		if err := p.Validate(); err != nil {
			slog.Warn("receiver: rejecting packet", "peer", addr, "tick", p.Tick, "err", err)
			return status.Error(codes.InvalidArgument, err.Error())
		}

		e := r.store.Put(p)
		for _, o := range r.observers {
			o.Observe(e)
		}
		received++
		vehicle = p.VehicleID

		slog.Debug("receiver: packet stored",
			"vehicle_id", p.VehicleID,
			"tick", p.Tick,
			"battery", p.BatteryLevel,
		)
	}
}
