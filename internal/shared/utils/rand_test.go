package utils

import "testing"

func TestRandSeq(t *testing.T) {
	a, b := RandSeq(16), RandSeq(16)
	if len(a) != 16 || len(b) != 16 {
		t.Fatalf("lengths %d, %d", len(a), len(b))
	}
	if a == b {
		t.Fatalf("two keys collided: %s", a)
	}
}
