package security

import (
	"bytes"
	"testing"
)

func TestSealOpenWithKey(t *testing.T) {
	payload := []byte(`{"seq":3,"name":"turn.submit","msg":{"input":"open the door"}}`)
	key := "0123456789abcdef"

	frame, err := Seal(payload, key)
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}
	if bytes.Contains(frame, []byte("open the door")) {
		t.Fatalf("frame leaks plaintext")
	}
	got, err := Open(frame, key)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Fatalf("Open = %q, want %q", got, payload)
	}
}

func TestSealOpenWithoutKeyOnlyCompresses(t *testing.T) {
	payload := bytes.Repeat([]byte("world event "), 200)
	frame, err := Seal(payload, "")
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}
	if len(frame) >= len(payload) {
		t.Fatalf("expected compression, %d >= %d", len(frame), len(payload))
	}
	got, err := Open(frame, "")
	if err != nil || !bytes.Equal(got, payload) {
		t.Fatalf("Open mismatch, err=%v", err)
	}
}

func TestOpenWithWrongKeyFails(t *testing.T) {
	frame, err := Seal([]byte(`{"name":"sync.full"}`), "0123456789abcdef")
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}
	if got, err := Open(frame, "fedcba9876543210"); err == nil && bytes.Equal(got, []byte(`{"name":"sync.full"}`)) {
		t.Fatalf("wrong key opened the frame")
	}
	plain, err := Seal([]byte("abc"), "")
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}
	if _, err := Open(plain, "0123456789abcdef"); err == nil {
		t.Fatalf("expected an error opening a short plaintext frame with a key")
	}
}
