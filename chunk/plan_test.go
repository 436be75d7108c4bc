package chunk

import (
	"errors"
	"math"
	"testing"
)

func TestPlanChunkCount(t *testing.T) {
	cases := []struct {
		total, max float64
		want       int
	}{
		{600, 300, 2},
		{601, 300, 3},
		{300, 300, 1},
		{299.5, 300, 1},
		{900, 300, 3},
		{0.1, 300, 1},
	}
	for _, c := range cases {
		spans, err := Plan(c.total, c.max, 2)
		if err != nil {
			t.Fatalf("Plan(%v, %v): %v", c.total, c.max, err)
		}
		if len(spans) != c.want {
			t.Errorf("Plan(%v, %v) produced %d spans, want %d", c.total, c.max, len(spans), c.want)
		}
	}
}

func TestPlanCoversFullDuration(t *testing.T) {
	spans, err := Plan(1000, 300, 2)
	if err != nil {
		t.Fatal(err)
	}
	if spans[0].Start != 0 {
		t.Errorf("first span starts at %v, want 0", spans[0].Start)
	}
	if last := spans[len(spans)-1]; last.End != 1000 {
		t.Errorf("last span ends at %v, want 1000", last.End)
	}
	for i := 1; i < len(spans); i++ {
		if spans[i].Start > spans[i-1].End {
			t.Errorf("gap between span %d (end %v) and span %d (start %v)",
				i-1, spans[i-1].End, i, spans[i].Start)
		}
	}
}

func TestPlanOverlap(t *testing.T) {
	spans, err := Plan(900, 300, 2)
	if err != nil {
		t.Fatal(err)
	}
	// All spans after the first start overlap seconds before the
	// naive boundary.
	for i := 1; i < len(spans); i++ {
		want := float64(i)*300 - 2
		if math.Abs(spans[i].Start-want) > 1e-9 {
			t.Errorf("span %d starts at %v, want %v", i, spans[i].Start, want)
		}
	}
}

func TestPlanOverlapClampedAtZero(t *testing.T) {
	spans, err := Plan(20, 10, 15)
	if err != nil {
		t.Fatal(err)
	}
	for _, s := range spans {
		if s.Start < 0 {
			t.Errorf("span %d has negative start %v", s.Index, s.Start)
		}
	}
}

func TestPlanNegativeOverlapTreatedAsZero(t *testing.T) {
	spans, err := Plan(600, 300, -5)
	if err != nil {
		t.Fatal(err)
	}
	if spans[1].Start != 300 {
		t.Errorf("span 1 starts at %v, want 300", spans[1].Start)
	}
}

func TestPlanInvalidInputs(t *testing.T) {
	for _, c := range []struct{ total, max float64 }{
		{0, 300},
		{-1, 300},
		{600, 0},
		{600, -10},
	} {
		if _, err := Plan(c.total, c.max, 2); !errors.Is(err, ErrInvalidDuration) {
			t.Errorf("Plan(%v, %v) = %v, want ErrInvalidDuration", c.total, c.max, err)
		}
	}
}

func TestSpanDuration(t *testing.T) {
	s := Span{Index: 1, Start: 298, End: 600}
	if got := s.Duration(); got != 302 {
		t.Errorf("Duration() = %v, want 302", got)
	}
}
