package geom

import (
	"errors"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/clip"
	"github.com/paulmach/orb/planar"
)

// minOverlapArea is the area below which a rectangle or hull counts as empty
const minOverlapArea = 1e-6

var (
	// ErrInvalidPolygon is returned for hulls without a usable exterior ring
	ErrInvalidPolygon = errors.New("not a valid polygon")

	// ErrInvalidRect is returned for bounds whose min exceeds their max
	ErrInvalidRect = errors.New("not a valid rectangle")
)

// RectHullIntersection clips a polygon to an axis-aligned rectangle.
// Returns false when they do not overlap with positive area.
func RectHullIntersection(rect orb.Bound, hull orb.Polygon) (orb.Polygon, bool, error) {
	if rect.Min[0] > rect.Max[0] || rect.Min[1] > rect.Max[1] {
		return nil, false, ErrInvalidRect
	}
	closed, err := closedPolygon(hull)
	if err != nil {
		return nil, false, err
	}

	clipped := clip.Polygon(rect, closed)
	if len(clipped) == 0 || planar.Area(clipped) <= 0 {
		return nil, false, nil
	}
	return clipped, true, nil
}

// RectHullIoU scores the overlap of a rectangle and a polygon as
// area(I)·(1/area(rect) + 1/area(hull)). The score is 0 for no overlap and 2
// when both shapes coincide. Degenerate shapes score 0.
func RectHullIoU(rect orb.Bound, hull orb.Polygon) (float64, error) {
	inter, rectArea, hullArea, err := overlapAreas(rect, hull)
	if err != nil {
		return 0, err
	}
	if rectArea <= minOverlapArea || hullArea <= minOverlapArea {
		return 0, nil
	}
	return inter * (1/rectArea + 1/hullArea), nil
}

// RectHullJaccard returns the intersection-over-union ratio I / (A + B − I)
func RectHullJaccard(rect orb.Bound, hull orb.Polygon) (float64, error) {
	inter, rectArea, hullArea, err := overlapAreas(rect, hull)
	if err != nil {
		return 0, err
	}
	union := rectArea + hullArea - inter
	if union <= minOverlapArea {
		return 0, nil
	}
	return inter / union, nil
}

func overlapAreas(rect orb.Bound, hull orb.Polygon) (inter, rectArea, hullArea float64, err error) {
	poly, ok, err := RectHullIntersection(rect, hull)
	if err != nil {
		return 0, 0, 0, err
	}
	rectArea = (rect.Max[0] - rect.Min[0]) * (rect.Max[1] - rect.Min[1])
	hullArea = planar.Area(hull)
	if ok {
		inter = planar.Area(poly)
	}
	return inter, rectArea, hullArea, nil
}

// closedPolygon validates a polygon and returns a copy whose rings are closed.
// The clipper only treats a ring as closed when its first and last points match.
func closedPolygon(p orb.Polygon) (orb.Polygon, error) {
	if len(p) == 0 || distinctVertices(p[0]) < 3 {
		return nil, ErrInvalidPolygon
	}

	result := make(orb.Polygon, 0, len(p))
	for i, ring := range p {
		if distinctVertices(ring) < 3 {
			if i == 0 {
				return nil, ErrInvalidPolygon
			}
			continue // drop degenerate holes
		}
		r := append(orb.Ring(nil), ring...)
		if !r.Closed() {
			r = append(r, r[0])
		}
		result = append(result, r)
	}
	return result, nil
}

func distinctVertices(r orb.Ring) int {
	seen := make(map[orb.Point]struct{}, len(r))
	for _, p := range r {
		seen[p] = struct{}{}
	}
	return len(seen)
}
