package geom

import (
	"math"
	"sort"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

// PointPair2D is the result of a closest pair search
type PointPair2D struct {
	A        orb.Point `json:"a"`
	B        orb.Point `json:"b"`
	IndexA   int       `json:"indexA"` // Index of A in the input, always < IndexB
	IndexB   int       `json:"indexB"`
	Distance float64   `json:"distance"`
}

type indexedPoint struct {
	p   orb.Point
	idx int
}

// bruteForceCutoff is the subproblem size solved by direct comparison
const bruteForceCutoff = 3

// ClosestPair finds the two points with the smallest euclidean distance
// using divide and conquer. Returns false for fewer than 2 points.
func ClosestPair(points []orb.Point) (PointPair2D, bool) {
	if len(points) < 2 {
		return PointPair2D{}, false
	}

	byX := make([]indexedPoint, len(points))
	for i, p := range points {
		byX[i] = indexedPoint{p: p, idx: i}
	}
	sort.Slice(byX, func(i, j int) bool {
		if byX[i].p[0] != byX[j].p[0] {
			return byX[i].p[0] < byX[j].p[0]
		}
		return byX[i].p[1] < byX[j].p[1]
	})

	a, b, d2 := closestRecursive(byX)

	if a.idx > b.idx {
		a, b = b, a
	}
	return PointPair2D{
		A:        a.p,
		B:        b.p,
		IndexA:   a.idx,
		IndexB:   b.idx,
		Distance: math.Sqrt(d2),
	}, true
}

// closestRecursive expects pts sorted by x. It sorts pts by y in place on return.
func closestRecursive(pts []indexedPoint) (indexedPoint, indexedPoint, float64) {
	n := len(pts)
	if n <= bruteForceCutoff {
		a, b, best := pts[0], pts[1], math.Inf(1)
		for i := 0; i < n; i++ {
			for j := i + 1; j < n; j++ {
				if d := planar.DistanceSquared(pts[i].p, pts[j].p); d < best {
					a, b, best = pts[i], pts[j], d
				}
			}
		}
		sort.Slice(pts, func(i, j int) bool { return pts[i].p[1] < pts[j].p[1] })
		return a, b, best
	}

	mid := n / 2
	midX := pts[mid].p[0]

	a, b, best := closestRecursive(pts[:mid])
	if ra, rb, rd := closestRecursive(pts[mid:]); rd < best {
		a, b, best = ra, rb, rd
	}

	// Merge the halves by y so the strip scan stays linear
	merged := make([]indexedPoint, 0, n)
	l, r := 0, mid
	for l < mid && r < n {
		if pts[l].p[1] <= pts[r].p[1] {
			merged = append(merged, pts[l])
			l++
		} else {
			merged = append(merged, pts[r])
			r++
		}
	}
	merged = append(merged, pts[l:mid]...)
	merged = append(merged, pts[r:]...)
	copy(pts, merged)

	strip := make([]indexedPoint, 0, n)
	for _, p := range pts {
		dx := p.p[0] - midX
		if dx*dx < best {
			strip = append(strip, p)
		}
	}
	for i := range strip {
		for j := i + 1; j < len(strip); j++ {
			dy := strip[j].p[1] - strip[i].p[1]
			if dy*dy >= best {
				break
			}
			if d := planar.DistanceSquared(strip[i].p, strip[j].p); d < best {
				a, b, best = strip[i], strip[j], d
			}
		}
	}

	return a, b, best
}
