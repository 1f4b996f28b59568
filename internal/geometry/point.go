package geometry

import (
	"fmt"
	"math"

	"github.com/paulmach/orb"
)

// Point is a WGS84 coordinate as reported by the map widgets.
type Point struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Validate checks that the point lies inside the geographic coordinate range
func (p Point) Validate() error {
	if math.IsNaN(p.Lat) || math.IsNaN(p.Lng) || math.IsInf(p.Lat, 0) || math.IsInf(p.Lng, 0) {
		return fmt.Errorf("coordinate is not a finite number: %v", p)
	}
	if p.Lat < -90 || p.Lat > 90 {
		return fmt.Errorf("latitude %.6f out of range [-90, 90]", p.Lat)
	}
	if p.Lng < -180 || p.Lng > 180 {
		return fmt.Errorf("longitude %.6f out of range [-180, 180]", p.Lng)
	}
	return nil
}

// Orb converts to the [lng, lat] ordering used by GeoJSON and orb
func (p Point) Orb() orb.Point {
	return orb.Point{p.Lng, p.Lat}
}

// FromOrb converts an orb point ([lng, lat]) back to a Point
func FromOrb(o orb.Point) Point {
	return Point{Lat: o.Lat(), Lng: o.Lon()}
}

func (p Point) String() string {
	return fmt.Sprintf("(%.6f, %.6f)", p.Lat, p.Lng)
}
