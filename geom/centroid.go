package geom

import (
	"iter"
	"slices"
	"sync/atomic"
)

// PointAccumulator reduces a point stream to per-axis sums and a count.
// The zero value is an empty accumulator.
type PointAccumulator struct {
	sumX, sumY, sumZ float64
	count            int
}

// Add folds one point into the running sums
func (a *PointAccumulator) Add(p Point3) {
	a.sumX += p.X
	a.sumY += p.Y
	a.sumZ += p.Z
	a.count++
}

// Count returns the number of points added so far
func (a *PointAccumulator) Count() int {
	return a.count
}

// Sum returns the summed coordinates
func (a *PointAccumulator) Sum() Point3 {
	return Point3{X: a.sumX, Y: a.sumY, Z: a.sumZ}
}

// Centroid returns the arithmetic mean of the accumulated points.
// Returns false when nothing has been added.
func (a *PointAccumulator) Centroid() (Point3, bool) {
	if a.count == 0 {
		return Point3{}, false
	}
	n := float64(a.count)
	return Point3{X: a.sumX / n, Y: a.sumY / n, Z: a.sumZ / n}, true
}

// Centroid computes the mean of a point sequence in a single pass.
// Summation follows sequence order with no compensation, so results are
// reproducible bit for bit. Returns false for an empty sequence.
func Centroid(points iter.Seq[Point3]) (Point3, bool) {
	var acc PointAccumulator
	for p := range points {
		acc.Add(p)
	}
	return acc.Centroid()
}

// CentroidOf computes the mean of a slice of points
func CentroidOf(points []Point3) (Point3, bool) {
	return Centroid(slices.Values(points))
}

// ShiftToOrigin moves a point sequence so that its centroid becomes the origin.
//
// The input is collected first because it is read twice: once for the
// centroid and once to produce the shifted points. The returned sequence is
// single-use; ranging over it again yields nothing. Returns false when the
// input is empty.
func ShiftToOrigin(points iter.Seq[Point3]) (iter.Seq[Point3], bool) {
	buf := slices.Collect(points)
	centroid, ok := CentroidOf(buf)
	if !ok {
		return nil, false
	}

	var consumed atomic.Bool
	return func(yield func(Point3) bool) {
		if !consumed.CompareAndSwap(false, true) {
			return
		}
		for _, p := range buf {
			if !yield(p.Sub(centroid)) {
				return
			}
		}
	}, true
}
