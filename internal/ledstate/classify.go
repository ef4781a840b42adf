package ledstate

import (
	"sort"

	"gonum.org/v1/gonum/floats"
)

// Boundaries builds the state bin edges from the calibrated LED x coordinates
// (ROI frame). The LEDs are sorted, successive midpoints are normalised by
// width and the sequence is bracketed with 0 and 1. Bin k is the half-open
// interval (b[k], b[k+1]].
func Boundaries(ledX []int, width int) []float64 {
	xs := make([]float64, len(ledX))
	for i, x := range ledX {
		xs[i] = float64(x)
	}
	sort.Float64s(xs)

	b := make([]float64, len(xs)+1)
	for k := 0; k+1 < len(xs); k++ {
		b[k+1] = 0.5 * (xs[k] + xs[k+1])
	}
	if width > 0 {
		floats.Scale(1/float64(width), b[1:len(xs)])
	}
	b[0] = 0
	b[len(xs)] = 1
	return b
}

// Bin returns the index k such that b[k] < xn <= b[k+1], or -1.
func Bin(boundaries []float64, xn float64) int {
	for k := 0; k+1 < len(boundaries); k++ {
		if xn > boundaries[k] && xn <= boundaries[k+1] {
			return k
		}
	}
	return -1
}

// Classify maps a component set to a Classification.
func Classify(set ComponentSet, boundaries []float64) Classification {
	fg := set.Foreground()
	switch len(fg) {
	case 0:
		return NoLedDetected()
	case 1:
	default:
		return AmbiguousCount(len(fg))
	}

	x := fg[0].Centroid.X
	var xn float64
	if set.Width > 0 {
		xn = x / float64(set.Width)
	}

	k := Bin(boundaries, xn)
	if k < 0 {
		c := AmbiguousCount(1)
		c.X, c.XN = x, xn
		return c
	}
	return Single(k, x, xn)
}
