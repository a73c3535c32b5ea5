package tracex

import (
	"context"
	"testing"
)

func TestTraceIDRoundTrip(t *testing.T) {
	ctx := WithTraceID(context.Background(), "t-1")
	if got, ok := TraceIDFrom(ctx); !ok || got != "t-1" {
		t.Fatalf("TraceIDFrom = %q, %v", got, ok)
	}
}

func TestEnsureKeepsTraceAndRefreshesSpan(t *testing.T) {
	ctx := Ensure(WithTraceID(context.Background(), "t-1"))
	if got, _ := TraceIDFrom(ctx); got != "t-1" {
		t.Fatalf("existing trace id replaced: %q", got)
	}
	first, ok := SpanIDFrom(ctx)
	if !ok || len(first) != 16 {
		t.Fatalf("expected a 16 char span id, got %q", first)
	}
	second, _ := SpanIDFrom(Ensure(ctx))
	if second == first {
		t.Fatalf("expected a new span id")
	}
	if _, ok := TraceIDFrom(Ensure(context.Background())); !ok {
		t.Fatalf("expected a minted trace id")
	}
}

func TestEachVisitsSetIDsInOrder(t *testing.T) {
	ctx := WithPeerID(WithSessionID(WithTraceID(context.Background(), "t-1"), "s-1"), "p-1")
	var got []string
	Each(ctx, func(field, value string) { got = append(got, field+"="+value) })
	want := []string{"trace_id=t-1", "session_id=s-1", "peer_id=p-1"}
	if len(got) != len(want) {
		t.Fatalf("Each = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Each = %v, want %v", got, want)
		}
	}
}

func TestEmptyIDIsAbsent(t *testing.T) {
	if _, ok := SessionIDFrom(WithSessionID(context.Background(), "")); ok {
		t.Fatalf("an empty session id should read as absent")
	}
}
