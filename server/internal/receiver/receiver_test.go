package receiver_test

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/omnistream/omnistream/pkg/telemetry"
	"github.com/omnistream/omnistream/server/internal/auth"
	"github.com/omnistream/omnistream/server/internal/receiver"
	"github.com/omnistream/omnistream/server/internal/store"
)

type recordingObserver struct {
	mu    sync.Mutex
	ticks []uint64
}

func (o *recordingObserver) Observe(e *store.Entry) {
	o.mu.Lock()
	o.ticks = append(o.ticks, e.Packet.Tick)
	o.mu.Unlock()
}

// startServer starts a gRPC server with the given interceptor and returns a
// connected client. Uses a random TCP port.
func startServer(t *testing.T, interceptor grpc.StreamServerInterceptor, obs ...receiver.Observer) (*telemetry.StreamClient, *store.Store) {
	t.Helper()

	st := store.New(5 * time.Minute)
	srv := grpc.NewServer(grpc.StreamInterceptor(interceptor))
	telemetry.RegisterStreamServer(srv, receiver.New(st, obs...))

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	go srv.Serve(lis) //nolint:errcheck

	t.Cleanup(func() {
		srv.Stop()
		lis.Close()
	})

	conn, err := grpc.Dial(lis.Addr().String(),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	) //nolint:staticcheck
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	return telemetry.NewStreamClient(conn), st
}

// allowAll is a no-op interceptor that passes every stream through.
func allowAll(srv any, ss grpc.ServerStream, _ *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
	return handler(srv, ss)
}

func packet(id string, tick uint64) *telemetry.Packet {
	return &telemetry.Packet{
		VehicleID:    id,
		Tick:         tick,
		LidarScan:    []float32{10, 10.5},
		BatteryLevel: 99.9,
	}
}

func TestStreamTelemetry_StoresPacketsAndSummarises(t *testing.T) {
	obs := &recordingObserver{}
	client, st := startServer(t, allowAll, obs)

	stream, err := client.StreamTelemetry(context.Background())
	if err != nil {
		t.Fatalf("StreamTelemetry: %v", err)
	}
	for i := uint64(0); i < 4; i++ {
		if err := stream.Send(packet("AV-001", i)); err != nil {
			t.Fatalf("Send(%d): %v", i, err)
		}
	}
	sum, err := stream.CloseAndRecv()
	if err != nil {
		t.Fatalf("CloseAndRecv: %v", err)
	}
	if sum.Received != 4 {
		t.Errorf("Summary.Received: got %d, want 4", sum.Received)
	}

	e, ok := st.Get("AV-001")
	if !ok {
		t.Fatal("vehicle not found in store after stream")
	}
	if e.Packet.Tick != 3 {
		t.Errorf("latest tick: got %d, want 3", e.Packet.Tick)
	}
	if e.Received != 4 {
		t.Errorf("Received: got %d, want 4", e.Received)
	}

	obs.mu.Lock()
	defer obs.mu.Unlock()
	if len(obs.ticks) != 4 || obs.ticks[0] != 0 || obs.ticks[3] != 3 {
		t.Errorf("observer saw ticks %v, want [0 1 2 3]", obs.ticks)
	}
}

func TestStreamTelemetry_EmptyStream(t *testing.T) {
	client, st := startServer(t, allowAll)

	stream, err := client.StreamTelemetry(context.Background())
	if err != nil {
		t.Fatalf("StreamTelemetry: %v", err)
	}
	sum, err := stream.CloseAndRecv()
	if err != nil {
		t.Fatalf("CloseAndRecv: %v", err)
	}
	if sum.Received != 0 {
		t.Errorf("Summary.Received: got %d, want 0", sum.Received)
	}
	if st.Count() != 0 {
		t.Errorf("store Count: got %d, want 0", st.Count())
	}
}

func TestStreamTelemetry_InvalidPacketEndsStream(t *testing.T) {
	client, st := startServer(t, allowAll)

	stream, err := client.StreamTelemetry(context.Background())
	if err != nil {
		t.Fatalf("StreamTelemetry: %v", err)
	}
	if err := stream.Send(packet("AV-001", 0)); err != nil {
		t.Fatalf("Send: %v", err)
	}
	// Sends may still succeed locally; the status surfaces on CloseAndRecv.
	_ = stream.Send(packet("", 1))

	_, err = stream.CloseAndRecv()
	if status.Code(err) != codes.InvalidArgument {
		t.Fatalf("code: got %v, want InvalidArgument (err=%v)", status.Code(err), err)
	}
	if e, ok := st.Get("AV-001"); !ok || e.Received != 1 {
		t.Errorf("packet before the invalid one not stored: %+v, %v", e, ok)
	}
}

func TestStreamTelemetry_WithAPIKeyAuth(t *testing.T) {
	interceptor := auth.APIKeyStreamInterceptor("apikey", "x-api-key", "test-secret")
	client, st := startServer(t, interceptor)

	tests := []struct {
		name     string
		key      string
		wantCode codes.Code
	}{
		{"correct key", "test-secret", codes.OK},
		{"wrong key", "wrong", codes.Unauthenticated},
		{"no key", "", codes.Unauthenticated},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			ctx := context.Background()
			if tc.key != "" {
				ctx = metadata.AppendToOutgoingContext(ctx, "x-api-key", tc.key)
			}
			stream, err := client.StreamTelemetry(ctx)
			if err != nil {
				t.Fatalf("StreamTelemetry: %v", err)
			}
			_ = stream.Send(packet("AV-"+tc.name, 0))
			_, err = stream.CloseAndRecv()
			if status.Code(err) != tc.wantCode {
				t.Errorf("code: got %v, want %v (err=%v)", status.Code(err), tc.wantCode, err)
			}
		})
	}

	if _, ok := st.Get("AV-correct key"); !ok {
		t.Error("authenticated packet not stored")
	}
	if _, ok := st.Get("AV-wrong key"); ok {
		t.Error("unauthenticated packet was stored")
	}
}
