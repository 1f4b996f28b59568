package geometry

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// Kind is the measurement a geometry produces
type Kind string

const (
	KindArea     Kind = "area"
	KindDistance Kind = "distance"
)

// Unit returns the display unit of values of this kind
func (k Kind) Unit() string {
	switch k {
	case KindArea:
		return UnitSquareKilometers
	case KindDistance:
		return UnitKilometers
	}
	return ""
}

const (
	UnitSquareKilometers = "km²"
	UnitKilometers       = "km"
)

var (
	ErrUnsupportedGeometry = errors.New("unsupported geometry type")
	ErrInsufficientPoints  = errors.New("not enough points")
)

// KindOf reports which measurement a geometry feeds. Only Polygon,
// MultiPolygon, LineString and MultiLineString are accepted.
func KindOf(g orb.Geometry) (Kind, error) {
	switch g.(type) {
	case orb.Polygon, orb.MultiPolygon:
		return KindArea, nil
	case orb.LineString, orb.MultiLineString:
		return KindDistance, nil
	case nil:
		return "", fmt.Errorf("%w: nil geometry", ErrUnsupportedGeometry)
	}
	return "", fmt.Errorf("%w: %s", ErrUnsupportedGeometry, g.GeoJSONType())
}

// CloseRing returns r with its first coordinate repeated at the end.
// The input slice is never modified.
func CloseRing(r orb.Ring) orb.Ring {
	if len(r) == 0 || r[0] == r[len(r)-1] {
		return r
	}
	closed := make(orb.Ring, len(r), len(r)+1)
	copy(closed, r)
	return append(closed, r[0])
}

// NewPolygon builds a single-ring polygon from the collected points and closes it
func NewPolygon(points []Point) orb.Polygon {
	ring := make(orb.Ring, 0, len(points)+1)
	for _, p := range points {
		ring = append(ring, p.Orb())
	}
	return orb.Polygon{CloseRing(ring)}
}

// NewLineString builds an open line through the collected points
func NewLineString(points []Point) orb.LineString {
	line := make(orb.LineString, 0, len(points))
	for _, p := range points {
		line = append(line, p.Orb())
	}
	return line
}

// Build creates the geometry for kind from the points, enforcing the
// minimum point count of that kind.
func Build(kind Kind, points []Point) (orb.Geometry, error) {
	for i, p := range points {
		if err := p.Validate(); err != nil {
			return nil, fmt.Errorf("point %d: %w", i, err)
		}
	}

	switch kind {
	case KindArea:
		if len(points) < 3 {
			return nil, fmt.Errorf("%w: area needs at least 3, got %d", ErrInsufficientPoints, len(points))
		}
		return NewPolygon(points), nil
	case KindDistance:
		if len(points) < 2 {
			return nil, fmt.Errorf("%w: distance needs at least 2, got %d", ErrInsufficientPoints, len(points))
		}
		return NewLineString(points), nil
	}
	return nil, fmt.Errorf("%w: unknown measurement kind %q", ErrUnsupportedGeometry, kind)
}

// Encode marshals a geometry as a GeoJSON geometry object
func Encode(g orb.Geometry) ([]byte, error) {
	if _, err := KindOf(g); err != nil {
		return nil, err
	}
	data, err := json.Marshal(geojson.NewGeometry(g))
	if err != nil {
		return nil, fmt.Errorf("failed to encode geometry: %w", err)
	}
	return data, nil
}

// Decode parses a GeoJSON geometry object and rejects kinds that cannot be measured
func Decode(data []byte) (orb.Geometry, error) {
	gj, err := geojson.UnmarshalGeometry(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse geometry: %w", err)
	}
	g := gj.Geometry()
	if _, err := KindOf(g); err != nil {
		return nil, err
	}
	return g, nil
}
