package telemetry

import (
	"context"

	"google.golang.org/grpc"
)

// Fully qualified names of the streaming service.
const (
	ServiceName         = "omnistream.v1.TelemetryStream"
	StreamTelemetryName = "StreamTelemetry"
	StreamTelemetryPath = "/" + ServiceName + "/" + StreamTelemetryName
)

var streamTelemetryDesc = grpc.StreamDesc{
	StreamName:    StreamTelemetryName,
	ClientStreams: true,
}

// StreamServer is implemented by the receiving side of StreamTelemetry.
type StreamServer interface {
	StreamTelemetry(PacketStream) error
}

// PacketStream is the server's view of one StreamTelemetry call.
type PacketStream interface {
	// Recv returns the next packet, or io.EOF once the client half-closes.
	Recv() (*Packet, error)
	// SendAndClose sends the final summary and ends the call.
	SendAndClose(*Summary) error
	Context() context.Context
}

// ServiceDesc describes the TelemetryStream service for grpc.Server.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*StreamServer)(nil),
	Streams: []grpc.StreamDesc{
		{
			StreamName:    StreamTelemetryName,
			Handler:       streamTelemetryHandler,
			ClientStreams: true,
		},
	},
	Metadata: "omnistream/v1/telemetry",
}

// RegisterStreamServer registers srv on s.
func RegisterStreamServer(s grpc.ServiceRegistrar, srv StreamServer) {
	s.RegisterService(&ServiceDesc, srv)
}

func streamTelemetryHandler(srv any, stream grpc.ServerStream) error {
	return srv.(StreamServer).StreamTelemetry(&serverStream{stream})
}

type serverStream struct {
	grpc.ServerStream
}

func (s *serverStream) Recv() (*Packet, error) {
	p := new(Packet)
	if err := s.ServerStream.RecvMsg(p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *serverStream) SendAndClose(sum *Summary) error {
	return s.ServerStream.SendMsg(sum)
}

// StreamClient opens StreamTelemetry calls on a connection.
type StreamClient struct {
	cc grpc.ClientConnInterface
}

// NewStreamClient returns a client bound to cc.
func NewStreamClient(cc grpc.ClientConnInterface) *StreamClient {
	return &StreamClient{cc: cc}
}

// StreamTelemetry starts a client-streaming call. The CBOR codec is selected
// for every message on the stream.
func (c *StreamClient) StreamTelemetry(ctx context.Context, opts ...grpc.CallOption) (*ClientStream, error) {
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	cs, err := c.cc.NewStream(ctx, &streamTelemetryDesc, StreamTelemetryPath, opts...)
	if err != nil {
		return nil, err
	}
	return &ClientStream{cs: cs}, nil
}

// ClientStream is the agent's side of one StreamTelemetry call.
type ClientStream struct {
	cs grpc.ClientStream
}

// Send writes one packet. An error means the stream is no longer usable;
// the underlying status is available from CloseAndRecv.
func (s *ClientStream) Send(p *Packet) error {
	return s.cs.SendMsg(p)
}

// CloseAndRecv half-closes the stream and waits for the server summary.
func (s *ClientStream) CloseAndRecv() (*Summary, error) {
	if err := s.cs.CloseSend(); err != nil {
		return nil, err
	}
	sum := new(Summary)
	if err := s.cs.RecvMsg(sum); err != nil {
		return nil, err
	}
	return sum, nil
}
