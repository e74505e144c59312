package id

import "testing"

func TestNewIsUniqueAndValid(t *testing.T) {
	a, b := New(), New()
	if a == b {
		t.Fatal("expected distinct ids")
	}
	if !Valid(a) || !Valid(b) {
		t.Fatalf("expected valid uuids, got %q %q", a, b)
	}
	if Valid("not-a-uuid") {
		t.Fatal("expected invalid id to be rejected")
	}
}
