package grpc

import (
	"context"
	"testing"

	"google.golang.org/grpc/metadata"

	"Chronicle/modules/kit/tracex"
)

func TestSessionAndTraceSurviveTheWire(t *testing.T) {
	ctx := tracex.WithSessionID(tracex.WithTraceID(context.Background(), "trace-1"), "s1")
	out := outgoing(ctx)

	md, ok := metadata.FromOutgoingContext(out)
	if !ok {
		t.Fatalf("no outgoing metadata")
	}
	in := incoming(metadata.NewIncomingContext(context.Background(), md))

	if id, ok := tracex.SessionIDFrom(in); !ok || id != "s1" {
		t.Fatalf("session = %q, %v", id, ok)
	}
	if id, ok := tracex.TraceIDFrom(in); !ok || id != "trace-1" {
		t.Fatalf("trace = %q, %v", id, ok)
	}
	if _, ok := tracex.SpanIDFrom(in); !ok {
		t.Fatalf("span id should have been minted on the way out")
	}
}

func TestIncomingWithoutMetadataIsUnchanged(t *testing.T) {
	ctx := context.Background()
	if _, ok := tracex.SessionIDFrom(incoming(ctx)); ok {
		t.Fatalf("unexpected session")
	}
}
