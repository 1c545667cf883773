package geom

import (
	"fmt"
	"os"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// Feature roles recognized in overlap inputs
const (
	RoleRect = "rect"
	RoleHull = "hull"
)

// LoadFeatureCollection reads a GeoJSON FeatureCollection from disk
func LoadFeatureCollection(path string) (*geojson.FeatureCollection, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading file: %w", err)
	}
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("parsing GeoJSON: %w", err)
	}
	return fc, nil
}

// OverlapInput extracts the rectangle and hull from features tagged with a
// "role" property of "rect" and "hull". The rectangle is the bound of its
// feature's geometry.
func OverlapInput(fc *geojson.FeatureCollection) (orb.Bound, orb.Polygon, error) {
	var (
		rect             orb.Bound
		hull             orb.Polygon
		hasRect, hasHull bool
	)

	for i, f := range fc.Features {
		role, _ := f.Properties["role"].(string)
		switch role {
		case RoleRect:
			if f.Geometry == nil {
				return orb.Bound{}, nil, fmt.Errorf("feature[%d]: rect has no geometry", i)
			}
			rect = f.Geometry.Bound()
			hasRect = true
		case RoleHull:
			poly, ok := f.Geometry.(orb.Polygon)
			if !ok {
				return orb.Bound{}, nil, fmt.Errorf("feature[%d]: hull must be a Polygon", i)
			}
			hull = poly
			hasHull = true
		}
	}

	if !hasRect {
		return orb.Bound{}, nil, fmt.Errorf("no feature with role %q", RoleRect)
	}
	if !hasHull {
		return orb.Bound{}, nil, fmt.Errorf("no feature with role %q", RoleHull)
	}
	return rect, hull, nil
}

// CollectPoints gathers every Point and MultiPoint coordinate in a collection, in order
func CollectPoints(fc *geojson.FeatureCollection) []orb.Point {
	var points []orb.Point
	for _, f := range fc.Features {
		switch g := f.Geometry.(type) {
		case orb.Point:
			points = append(points, g)
		case orb.MultiPoint:
			points = append(points, g...)
		}
	}
	return points
}

// PolygonFeature wraps an overlap polygon as a GeoJSON feature
func PolygonFeature(poly orb.Polygon, props map[string]interface{}) *geojson.Feature {
	f := geojson.NewFeature(poly)
	for k, v := range props {
		f.Properties[k] = v
	}
	return f
}
