package mdtemplate

import "testing"

func TestSpan_IsZero(t *testing.T) {
	if !(Span{}).IsZero() {
		t.Error("zero value Span should report IsZero")
	}
	if (Span{Line: 1}).IsZero() {
		t.Error("Span with Line set should not report IsZero")
	}
}

func TestSpan_End(t *testing.T) {
	s := Span{Offset: 10, Length: 5}
	if got := s.End(); got != 15 {
		t.Errorf("End() = %d, want 15", got)
	}
}
