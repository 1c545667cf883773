package geom

import (
	"errors"
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

func square(x0, y0, size float64) orb.Polygon {
	return orb.Polygon{{
		{x0, y0}, {x0 + size, y0}, {x0 + size, y0 + size}, {x0, y0 + size}, {x0, y0},
	}}
}

func TestRectHullIntersection(t *testing.T) {
	rect := orb.Bound{Min: orb.Point{0, 0}, Max: orb.Point{2, 2}}

	tests := []struct {
		name     string
		hull     orb.Polygon
		wantOK   bool
		wantArea float64
	}{
		{"identical", square(0, 0, 2), true, 4},
		{"quarter overlap", square(1, 1, 2), true, 1},
		{"contained", square(0.5, 0.5, 1), true, 1},
		{"disjoint", square(5, 5, 1), false, 0},
		{"touching edge", square(2, 0, 1), false, 0},
		{
			name:     "open ring",
			hull:     orb.Polygon{{{1, 1}, {3, 1}, {3, 3}, {1, 3}}},
			wantOK:   true,
			wantArea: 1,
		},
		{
			name:     "triangle",
			hull:     orb.Polygon{{{0, 0}, {2, 0}, {0, 2}, {0, 0}}},
			wantOK:   true,
			wantArea: 2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			poly, ok, err := RectHullIntersection(rect, tt.hull)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if !ok {
				return
			}
			if got := planar.Area(poly); !almostEqual(got, tt.wantArea, 1e-9) {
				t.Errorf("area = %v, want %v", got, tt.wantArea)
			}
		})
	}
}

func TestRectHullIntersection_Invalid(t *testing.T) {
	valid := orb.Bound{Min: orb.Point{0, 0}, Max: orb.Point{1, 1}}

	tests := []struct {
		name    string
		rect    orb.Bound
		hull    orb.Polygon
		wantErr error
	}{
		{"inverted rect", orb.Bound{Min: orb.Point{1, 1}, Max: orb.Point{0, 0}}, square(0, 0, 1), ErrInvalidRect},
		{"empty hull", valid, orb.Polygon{}, ErrInvalidPolygon},
		{"two distinct vertices", valid, orb.Polygon{{{0, 0}, {1, 1}, {0, 0}}}, ErrInvalidPolygon},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := RectHullIntersection(tt.rect, tt.hull)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestRectHullIoU(t *testing.T) {
	rect := orb.Bound{Min: orb.Point{0, 0}, Max: orb.Point{2, 2}}

	tests := []struct {
		name        string
		hull        orb.Polygon
		wantScore   float64
		wantJaccard float64
	}{
		// I·(1/A + 1/B) is 2 for identical shapes
		{"identical", square(0, 0, 2), 2, 1},
		{"quarter overlap", square(1, 1, 2), 0.5, 1.0 / 7.0},
		{"contained", square(0.5, 0.5, 1), 1.25, 0.25},
		{"disjoint", square(10, 10, 1), 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			score, err := RectHullIoU(rect, tt.hull)
			if err != nil {
				t.Fatalf("RectHullIoU() error = %v", err)
			}
			if !almostEqual(score, tt.wantScore, 1e-9) {
				t.Errorf("RectHullIoU() = %v, want %v", score, tt.wantScore)
			}

			j, err := RectHullJaccard(rect, tt.hull)
			if err != nil {
				t.Fatalf("RectHullJaccard() error = %v", err)
			}
			if !almostEqual(j, tt.wantJaccard, 1e-9) {
				t.Errorf("RectHullJaccard() = %v, want %v", j, tt.wantJaccard)
			}
		})
	}
}

func TestRectHullIoU_DegenerateRect(t *testing.T) {
	flat := orb.Bound{Min: orb.Point{0, 0}, Max: orb.Point{2, 0}}
	score, err := RectHullIoU(flat, square(0, 0, 2))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if score != 0 {
		t.Errorf("score = %v, want 0", score)
	}
}

func TestRectHullIntersection_DropsDegenerateHole(t *testing.T) {
	rect := orb.Bound{Min: orb.Point{0, 0}, Max: orb.Point{4, 4}}
	hull := orb.Polygon{
		{{0, 0}, {4, 0}, {4, 4}, {0, 4}, {0, 0}},
		{{1, 1}, {1, 1}},
	}
	poly, ok, err := RectHullIntersection(rect, hull)
	if err != nil || !ok {
		t.Fatalf("RectHullIntersection() = %v, %v", ok, err)
	}
	if got := planar.Area(poly); !almostEqual(got, 16, 1e-9) {
		t.Errorf("area = %v, want 16", got)
	}
}
