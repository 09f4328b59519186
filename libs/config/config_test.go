package config

import (
	"testing"
	"time"
)

func TestStringFallback(t *testing.T) {
	t.Setenv("CLINIC_TEST_EMPTY", "")
	if got := String("CLINIC_TEST_EMPTY", "fallback"); got != "fallback" {
		t.Fatalf("expected fallback, got %q", got)
	}
	t.Setenv("CLINIC_TEST_SET", "  value ")
	if got := String("CLINIC_TEST_SET", "fallback"); got != "value" {
		t.Fatalf("expected value, got %q", got)
	}
}

func TestPort(t *testing.T) {
	t.Setenv("CLINIC_TEST_PORT", "70000")
	if _, err := Port("CLINIC_TEST_PORT", "8080"); err == nil {
		t.Fatal("expected error for out of range port")
	}
	t.Setenv("CLINIC_TEST_PORT", "")
	p, err := Port("CLINIC_TEST_PORT", "8083")
	if err != nil || p != "8083" {
		t.Fatalf("expected fallback port 8083, got %q (%v)", p, err)
	}
}

func TestIntDurationBool(t *testing.T) {
	t.Setenv("CLINIC_TEST_INT", "abc")
	if _, err := Int("CLINIC_TEST_INT", 1); err == nil {
		t.Fatal("expected integer parse error")
	}
	t.Setenv("CLINIC_TEST_INT", "42")
	if n, err := Int("CLINIC_TEST_INT", 1); err != nil || n != 42 {
		t.Fatalf("expected 42, got %d (%v)", n, err)
	}

	t.Setenv("CLINIC_TEST_DUR", "90s")
	if d, err := Duration("CLINIC_TEST_DUR", time.Second); err != nil || d != 90*time.Second {
		t.Fatalf("expected 90s, got %s (%v)", d, err)
	}

	t.Setenv("CLINIC_TEST_BOOL", "TRUE")
	if !Bool("CLINIC_TEST_BOOL", false) {
		t.Fatal("expected true")
	}
	t.Setenv("CLINIC_TEST_BOOL", "0")
	if Bool("CLINIC_TEST_BOOL", true) {
		t.Fatal("expected false")
	}
}

func TestList(t *testing.T) {
	t.Setenv("CLINIC_TEST_LIST", "a, b,,c ")
	got := List("CLINIC_TEST_LIST")
	if len(got) != 3 || got[0] != "a" || got[1] != "b" || got[2] != "c" {
		t.Fatalf("unexpected list %v", got)
	}
}
