package geom

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
)

// GeoCoord is a geographic position in degrees
type GeoCoord struct {
	Lat float64 `json:"lat" yaml:"lat"`
	Lon float64 `json:"lon" yaml:"lon"`
}

// Point returns the coordinate as an orb point (lon, lat)
func (c GeoCoord) Point() orb.Point {
	return orb.Point{c.Lon, c.Lat}
}

// HaversineDistance returns the great-circle distance between two coordinates in meters
func HaversineDistance(a, b GeoCoord) float64 {
	return geo.DistanceHaversine(a.Point(), b.Point())
}
