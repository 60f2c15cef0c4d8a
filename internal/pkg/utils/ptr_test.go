package utils

import "testing"

func TestPtrAndDeref(t *testing.T) {
	p := Ptr(42)
	if *p != 42 {
		t.Fatalf("expected 42, got %d", *p)
	}
	if Deref(p) != 42 {
		t.Errorf("expected Deref to return 42")
	}
	var nilPtr *int
	if Deref(nilPtr) != 0 {
		t.Errorf("expected zero value for nil pointer")
	}
}
