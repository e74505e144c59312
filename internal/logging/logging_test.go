package logging

import "testing"

func TestNewRejectsUnknownLevel(t *testing.T) {
	if _, err := New("loud", false); err == nil {
		t.Fatal("expected error for unknown level")
	}
}

func TestNewHonoursLevel(t *testing.T) {
	logger, err := New("warn", true)
	if err != nil {
		t.Fatalf("new logger: %v", err)
	}
	if logger.Core().Enabled(-1) {
		t.Fatal("debug should be disabled at warn level")
	}
	if !logger.Core().Enabled(1) {
		t.Fatal("warn should be enabled")
	}
}

func TestMustFallsBack(t *testing.T) {
	if logger := Must("nope", false); logger == nil {
		t.Fatal("expected fallback logger")
	}
}
