package relay

import (
	"context"
	"encoding/json"
	"net"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/test/bufconn"

	"mixlingo/internal/logging"
	"mixlingo/internal/mapper"
)

func startGRPC(t *testing.T, hub *Hub) *grpc.ClientConn {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	server := NewGRPCServer(NewGRPCService(Pipeline{}, hub, logging.NewNop()))
	go func() { _ = server.Serve(lis) }()
	t.Cleanup(server.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.ForceCodec(JSONCodec{})),
	)
	if err != nil {
		t.Fatalf("grpc client: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func recvEnvelope(t *testing.T, stream grpc.ClientStream) Envelope {
	t.Helper()
	done := make(chan error, 1)
	var env Envelope
	go func() { done <- stream.RecvMsg(&env) }()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("recv: %v", err)
		}
		return env
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for stream message")
		return Envelope{}
	}
}

func TestGRPCStreamRelaysSendText(t *testing.T) {
	hub := NewHub()
	conn := startGRPC(t, hub)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	stream, err := conn.NewStream(ctx, &ServiceDesc.Streams[0], StreamMethod)
	if err != nil {
		t.Fatalf("open stream: %v", err)
	}

	req := mustEnvelope(t, EventSendText, seqPtr(21), TextRequest{Text: "[[es]]hola", TargetLanguage: "de"})
	if err := stream.SendMsg(&req); err != nil {
		t.Fatalf("send: %v", err)
	}
	if err := stream.CloseSend(); err != nil {
		t.Fatalf("close send: %v", err)
	}

	annotated := recvEnvelope(t, stream)
	if annotated.Event != EventReceiveAnnotatedText || annotated.Seq == nil || *annotated.Seq != 21 {
		t.Fatalf("annotated envelope = %+v", annotated)
	}
	if result := decodeData[mapper.Result](t, annotated); result.MappedText != "[[ES]]hola" {
		t.Fatalf("annotatedText = %q", result.MappedText)
	}
	translation := recvEnvelope(t, stream)
	var text string
	if err := json.Unmarshal(translation.Data, &text); err != nil {
		t.Fatalf("decode translation: %v", err)
	}
	if text != "[MOCK TRANSLATION TO DE] [MOCK] aloh" {
		t.Fatalf("translation = %q", text)
	}
	waitFor(t, func() bool { return hub.Snapshot().Connections == 0 })
}

func TestGRPCStreamUnknownEvent(t *testing.T) {
	conn := startGRPC(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	stream, err := conn.NewStream(ctx, &ServiceDesc.Streams[0], StreamMethod)
	if err != nil {
		t.Fatalf("open stream: %v", err)
	}
	if err := stream.SendMsg(&Envelope{Event: "bogus"}); err != nil {
		t.Fatalf("send: %v", err)
	}
	if env := recvEnvelope(t, stream); env.Event != EventError {
		t.Fatalf("event = %q", env.Event)
	}
}
