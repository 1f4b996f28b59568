package geometry

import (
	"fmt"
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
)

// earthRadiusMeters matches the radius used by web-map distance helpers,
// so previews agree with what the map widget reports.
const earthRadiusMeters = 6371000.0

// Haversine returns the great-circle distance between two points in meters
func Haversine(a, b Point) float64 {
	dLat := toRad(b.Lat - a.Lat)
	dLng := toRad(b.Lng - a.Lng)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(a.Lat))*math.Cos(toRad(b.Lat))*
			math.Sin(dLng/2)*math.Sin(dLng/2)

	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
	return earthRadiusMeters * c
}

// Distance returns the cumulative length of the path through points in km
func Distance(points []Point) float64 {
	if len(points) < 2 {
		return 0
	}
	meters := 0.0
	for i := 1; i < len(points); i++ {
		meters += Haversine(points[i-1], points[i])
	}
	return meters / 1000
}

// Area returns the geodesic area in km² of the ring described by points.
// The ring is closed implicitly.
func Area(points []Point) float64 {
	if len(points) < 3 {
		return 0
	}
	ring := make(orb.Ring, 0, len(points)+1)
	for _, p := range points {
		ring = append(ring, p.Orb())
	}
	return ringArea(CloseRing(ring))
}

// MeasureGeometry computes the value of any measurable geometry locally:
// km² for polygons, km for lines. Multi geometries skip members that are
// too short to contribute.
func MeasureGeometry(g orb.Geometry) (float64, error) {
	switch g := g.(type) {
	case orb.Polygon:
		if len(g) == 0 || distinctCount(g[0]) < 3 {
			return 0, fmt.Errorf("%w: polygon ring needs at least 3 points", ErrInsufficientPoints)
		}
		return ringArea(CloseRing(g[0])), nil

	case orb.MultiPolygon:
		total := 0.0
		for _, poly := range g {
			if len(poly) == 0 || distinctCount(poly[0]) < 3 {
				continue
			}
			total += ringArea(CloseRing(poly[0]))
		}
		return total, nil

	case orb.LineString:
		if len(g) < 2 {
			return 0, fmt.Errorf("%w: line needs at least 2 points", ErrInsufficientPoints)
		}
		return lineLength(g), nil

	case orb.MultiLineString:
		total := 0.0
		for _, line := range g {
			if len(line) < 2 {
				continue
			}
			total += lineLength(line)
		}
		return total, nil
	}

	_, err := KindOf(g)
	return 0, err
}

// Valid reports whether v can be used as a measurement value at all
func Valid(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && v >= 0
}

// Usable reports whether v is a valid, non-zero measurement result
func Usable(v float64) bool {
	return Valid(v) && v > 0
}

func ringArea(r orb.Ring) float64 {
	return math.Abs(geo.Area(orb.Polygon{r})) / 1e6
}

func lineLength(line orb.LineString) float64 {
	points := make([]Point, len(line))
	for i, c := range line {
		points[i] = FromOrb(c)
	}
	return Distance(points)
}

// distinctCount is the number of ring vertices without the closing duplicate
func distinctCount(r orb.Ring) int {
	if len(r) > 1 && r[0] == r[len(r)-1] {
		return len(r) - 1
	}
	return len(r)
}

func toRad(deg float64) float64 {
	return deg * math.Pi / 180
}
