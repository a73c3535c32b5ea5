package errx

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrorIsComparesCodeOnly(t *testing.T) {
	e1 := NewBiz("TURN_BUSY", "a").WithData("k", "v").WithCause(errors.New("cause1"))
	e2 := NewBiz("TURN_BUSY", "b").WithData("k2", "v2").WithCause(errors.New("cause2"))
	if !errors.Is(e1, e2) {
		t.Fatalf("expected errors.Is to match on code, e1=%v e2=%v", e1, e2)
	}
	if errors.Is(e1, NewBiz("OTHER", "a")) {
		t.Fatalf("different codes must not match")
	}
}

func TestBizErrorKeepsCauseWithoutStack(t *testing.T) {
	cause := errors.New("generator refused")
	err := NewBiz("TURN_POLICY_REJECTED", "input rejected").WithCause(cause)
	if got := err.Stack(); got != nil {
		t.Fatalf("biz errors must not capture a stack, got=%v", got)
	}
	if !errors.Is(err, cause) {
		t.Fatalf("cause chain lost, err=%v", err)
	}
	if !err.IsBiz() {
		t.Fatalf("expected biz kind")
	}
}

func TestSysErrorCapturesStackOnce(t *testing.T) {
	sys := NewSys("SYNC_CONNECTION_LOST", "send failed").WithCause(errors.New("broken pipe"))
	if got := sys.Stack(); len(got) == 0 {
		t.Fatalf("expected a stack on the first system wrap")
	}
	outer := NewSys("TURN_GENERATION_FAILED", "wrapped").WithCause(sys)
	if got := outer.Stack(); got != nil {
		t.Fatalf("outer wrap must not capture again, got=%v", got)
	}
}

func TestDataIsCopied(t *testing.T) {
	m := map[string]any{"k": "v"}
	err := NewBiz("X", "").WithDataMap(m)
	m["k"] = "mutated"
	if got := err.Data()["k"]; got != "v" {
		t.Fatalf("data must be copied at construction, got=%v", got)
	}
}

func TestCodeOfFindsWrappedCode(t *testing.T) {
	err := fmt.Errorf("commit: %w", ErrTimeout.WithData("op", "snapshot"))
	if got := CodeOf(err); got != CodeTimeout {
		t.Fatalf("CodeOf = %q, want %q", got, CodeTimeout)
	}
	if got := CodeOf(errors.New("plain")); got != "" {
		t.Fatalf("CodeOf(plain) = %q, want empty", got)
	}
}

func TestNewestDataShadowsOlder(t *testing.T) {
	base := ErrBadRequest.WithData("reason", "bad_route")
	err := base.WithData("reason", "unknown_group").WithData("route", "x.y")
	if got := err.Reason(); got != "unknown_group" {
		t.Fatalf("Reason = %q", got)
	}
	if got := base.Reason(); got != "bad_route" {
		t.Fatalf("deriving changed the parent: %q", got)
	}
	if d := err.Data(); len(d) != 2 || d["route"] != "x.y" {
		t.Fatalf("Data = %v", d)
	}
	if ErrBadRequest.Data() != nil {
		t.Fatalf("sentinel was mutated")
	}
}

func TestKind(t *testing.T) {
	if ErrBadRequest.Kind() != Biz || ErrInternal.Kind() != Sys {
		t.Fatalf("unexpected kinds")
	}
	if Sys.String() != "sys" || Biz.String() != "biz" {
		t.Fatalf("unexpected kind names")
	}
}
