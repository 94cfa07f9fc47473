package ident

import (
	"testing"
)

func TestAppendOrder(t *testing.T) {
	tests := []struct {
		name     string
		siblings []float64
		want     float64
	}{
		{name: "empty set starts at 1", siblings: nil, want: 1},
		{name: "appends after max", siblings: []float64{1, 2, 3}, want: 4},
		{name: "ignores gaps", siblings: []float64{1, 7}, want: 8},
		{name: "fractional max", siblings: []float64{1, 1.5}, want: 2.5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := AppendOrder(tt.siblings); got != tt.want {
				t.Errorf("AppendOrder(%v) = %v, want %v", tt.siblings, got, tt.want)
			}
		})
	}
}

func TestOrderBetween(t *testing.T) {
	if got, ok := OrderBetween(1, 2); !ok || got <= 1 || got >= 2 {
		t.Errorf("OrderBetween(1, 2) = %v, %v; want midpoint", got, ok)
	}
	if got, ok := OrderBetween(3, 0); !ok || got != 4 {
		t.Errorf("OrderBetween(3, 0) = %v, %v; want tail append 4", got, ok)
	}
	if _, ok := OrderBetween(1, 1+1e-9); ok {
		t.Error("expected exhausted gap to demand renormalization")
	}
}

func TestOrderBetweenExhaustsThenRenormalizes(t *testing.T) {
	// Repeatedly insert between 1 and the previous midpoint until the
	// gap collapses; this must terminate with ok=false, never panic.
	lo, hi := 1.0, 2.0
	for i := 0; i < 64; i++ {
		mid, ok := OrderBetween(lo, hi)
		if !ok {
			keys := Renormalize(3)
			if len(keys) != 3 || keys[0] != 1 || keys[2] != 3 {
				t.Errorf("Renormalize(3) = %v", keys)
			}
			return
		}
		hi = mid
	}
	t.Error("midpoint insertion never exhausted float precision")
}

func TestNewIDUnique(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		id := NewID()
		if id == "" || seen[id] {
			t.Fatalf("duplicate or empty id %q", id)
		}
		seen[id] = true
	}
}
