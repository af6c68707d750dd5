package relay

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"mixlingo/internal/logging"
)

// JSONCodec carries relay envelopes over gRPC as JSON, so no protobuf code
// generation is needed.
type JSONCodec struct{}

// Name implements encoding.Codec.
func (JSONCodec) Name() string { return "json" }

// Marshal implements encoding.Codec.
func (JSONCodec) Marshal(v any) ([]byte, error) { return json.Marshal(v) }

// Unmarshal implements encoding.Codec.
func (JSONCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }

// StreamMethod is the full method name of the relay stream.
const StreamMethod = "/mixlingo.Relay/Stream"

// RelayServer is the service interface registered with gRPC.
type RelayServer interface {
	Stream(grpc.ServerStream) error
}

func relayStreamHandler(srv any, stream grpc.ServerStream) error {
	return srv.(RelayServer).Stream(stream)
}

// ServiceDesc describes mixlingo.Relay. Clients open the stream with
// conn.NewStream(ctx, &ServiceDesc.Streams[0], StreamMethod).
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: "mixlingo.Relay",
	HandlerType: (*RelayServer)(nil),
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "Stream",
			Handler:       relayStreamHandler,
			ServerStreams: true,
			ClientStreams: true,
		},
	},
	Metadata: "mixlingo/relay.json",
}

// GRPCService serves each bidirectional stream as an independent session.
type GRPCService struct {
	pipeline Pipeline
	hub      *Hub
	logger   *slog.Logger
}

// NewGRPCService builds the gRPC relay service.
func NewGRPCService(pipeline Pipeline, hub *Hub, logger *slog.Logger) *GRPCService {
	return &GRPCService{
		pipeline: pipeline,
		hub:      hub,
		logger:   logging.NewComponentLogger(logger, "relay.grpc"),
	}
}

// NewGRPCServer returns a gRPC server with the relay registered and the JSON
// codec forced for every call.
func NewGRPCServer(svc *GRPCService, opts ...grpc.ServerOption) *grpc.Server {
	opts = append([]grpc.ServerOption{grpc.ForceServerCodec(JSONCodec{})}, opts...)
	server := grpc.NewServer(opts...)
	server.RegisterService(&ServiceDesc, svc)
	return server
}

// Stream implements RelayServer.
func (g *GRPCService) Stream(stream grpc.ServerStream) error {
	ctx, cancel := context.WithCancel(stream.Context())
	defer cancel()

	out := NewOutbox(defaultOutboxSize)
	session := NewSession(g.pipeline, out, g.hub, g.logger)
	logger := g.logger.With(logging.String(logging.FieldConnectionID, session.ID()))

	g.hub.connect()
	defer g.hub.disconnect()
	logger.Info("relay stream opened")

	pumpDone := make(chan error, 1)
	go func() {
		pumpDone <- out.Pump(func(env Envelope) error {
			return stream.SendMsg(&env)
		})
	}()

	recvErr := g.recvLoop(ctx, logger, stream, session)
	if recvErr == nil && ctx.Err() == nil {
		// Half-close: the client is done sending but still reads replies.
		session.Wait()
	}

	cancel()
	out.Close()
	sendErr := <-pumpDone
	session.Wait()
	logger.Info("relay stream closed")

	if recvErr != nil {
		return recvErr
	}
	if sendErr != nil && !errors.Is(sendErr, io.EOF) {
		return status.Error(codes.Unavailable, sendErr.Error())
	}
	return nil
}

func (g *GRPCService) recvLoop(ctx context.Context, logger *slog.Logger, stream grpc.ServerStream, session *Session) error {
	for {
		var env Envelope
		err := stream.RecvMsg(&env)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			if status.Code(err) == codes.Canceled || ctx.Err() != nil {
				return nil
			}
			logger.Warn("relay stream receive failed", logging.Error(err))
			return err
		}
		session.Handle(ctx, env)
	}
}
