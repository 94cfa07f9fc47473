// Package ident allocates stable identifiers and sibling order keys.
//
// Order keys are float64s sorted ascending. New siblings append after
// the current maximum; drag-reorder takes the midpoint between the two
// new neighbors. Repeated midpoint insertion eventually exhausts float
// precision, at which point the whole sibling set is renormalized to
// 1..n instead of growing unbounded fractions.
package ident

import (
	"github.com/google/uuid"
)

// minGap is the smallest order gap we are willing to split. Below this
// the caller must renormalize the sibling set.
const minGap = 1e-6

// NewID allocates a new stable identifier.
func NewID() string {
	return uuid.New().String()
}

// AppendOrder returns the order key for a sibling appended after all
// existing ones: max+1, or 1 when there are none.
func AppendOrder(siblings []float64) float64 {
	max := 0.0
	for _, o := range siblings {
		if o > max {
			max = o
		}
	}
	return max + 1
}

// OrderBetween returns the midpoint order key between two neighbors.
// Pass before = 0 when inserting at the head (orders start at 1), and
// after = 0 when inserting at the tail. ok is false when the gap is too
// small to split; the caller renormalizes and retries.
func OrderBetween(before, after float64) (float64, bool) {
	if after == 0 {
		return before + 1, true
	}
	if after-before < minGap {
		return 0, false
	}
	return before + (after-before)/2, true
}

// Renormalize returns fresh order keys 1..n for a sibling set that has
// run out of midpoint precision.
func Renormalize(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = float64(i + 1)
	}
	return out
}
