package security

import (
	"errors"
	"testing"
	"time"
)

func TestAwardJoinRequiresSecret(t *testing.T) {
	t.Setenv(JoinSecretEnv, "")
	if _, err := AwardJoin("p1", "s1", time.Hour); !errors.Is(err, ErrJoinSecretMissing) {
		t.Fatalf("expected ErrJoinSecretMissing, got %v", err)
	}
}

func TestAwardJoinParseRoundTrip(t *testing.T) {
	t.Setenv(JoinSecretEnv, "test-secret-123")

	token, err := AwardJoin("bren", "sess-1", time.Hour)
	if err != nil {
		t.Fatalf("AwardJoin: %v", err)
	}
	claims, err := ParseJoin(token, "sess-1")
	if err != nil {
		t.Fatalf("ParseJoin: %v", err)
	}
	if claims.PeerID != "bren" {
		t.Fatalf("PeerID = %q", claims.PeerID)
	}
}

func TestParseJoinRejectsOtherSession(t *testing.T) {
	t.Setenv(JoinSecretEnv, "test-secret-123")

	token, err := AwardJoin("bren", "sess-1", time.Hour)
	if err != nil {
		t.Fatalf("AwardJoin: %v", err)
	}
	if _, err := ParseJoin(token, "sess-2"); !errors.Is(err, ErrSessionMismatch) {
		t.Fatalf("expected ErrSessionMismatch, got %v", err)
	}
}

func TestParseJoinRejectsTamperedToken(t *testing.T) {
	t.Setenv(JoinSecretEnv, "test-secret-123")

	token, err := AwardJoin("bren", "sess-1", 0)
	if err != nil {
		t.Fatalf("AwardJoin: %v", err)
	}
	if _, err := ParseJoin(token, "sess-1"); err != nil {
		t.Fatalf("default ttl token rejected: %v", err)
	}
	if _, err := ParseJoin(token+"x", "sess-1"); err == nil {
		t.Fatalf("tampered token accepted")
	}
	t.Setenv(JoinSecretEnv, "another-secret")
	if _, err := ParseJoin(token, "sess-1"); err == nil {
		t.Fatalf("token signed with another key accepted")
	}
}
