package geometry_test

import (
	"math"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"imagery-compare/internal/geometry"
)

// square returns the corners of a square of the given side (km) anchored at the equator
func square(sideKm float64) []geometry.Point {
	// orb/geo integrates on a 6378137 m sphere
	d := sideKm / (6378.137 * math.Pi / 180)
	return []geometry.Point{
		{Lat: 0, Lng: 0},
		{Lat: 0, Lng: d},
		{Lat: d, Lng: d},
		{Lat: d, Lng: 0},
	}
}

func TestDistance_ShortInputsAreZero(t *testing.T) {
	assert.Zero(t, geometry.Distance(nil))
	assert.Zero(t, geometry.Distance([]geometry.Point{{Lat: 10, Lng: 10}}))
}

func TestArea_ShortInputsAreZero(t *testing.T) {
	assert.Zero(t, geometry.Area(nil))
	assert.Zero(t, geometry.Area([]geometry.Point{{Lat: 1, Lng: 1}}))
	assert.Zero(t, geometry.Area([]geometry.Point{{Lat: 1, Lng: 1}, {Lat: 2, Lng: 2}}))
}

func TestDistance_OneDegreeAtEquator(t *testing.T) {
	km := geometry.Distance([]geometry.Point{{Lat: 0, Lng: 0}, {Lat: 0, Lng: 1}})
	assert.InDelta(t, 111.19, km, 0.01)
}

func TestDistance_IsCumulative(t *testing.T) {
	path := []geometry.Point{{Lat: 0, Lng: 0}, {Lat: 0, Lng: 1}, {Lat: 0, Lng: 2}}
	assert.InDelta(t, 2*111.195, geometry.Distance(path), 0.01)
}

func TestArea_OneKilometerSquare(t *testing.T) {
	assert.InDelta(t, 1.0, geometry.Area(square(1)), 0.01)
}

func TestArea_WindingDoesNotChangeSign(t *testing.T) {
	pts := square(2)
	reversed := []geometry.Point{pts[3], pts[2], pts[1], pts[0]}
	assert.InDelta(t, geometry.Area(pts), geometry.Area(reversed), 1e-9)
	assert.Greater(t, geometry.Area(reversed), 0.0)
}

func TestArea_ClosedPolygonMatchesOpenRing(t *testing.T) {
	pts := square(3)
	poly := geometry.NewPolygon(pts)

	require.Len(t, poly, 1)
	require.Len(t, poly[0], len(pts)+1)
	assert.Equal(t, poly[0][0], poly[0][len(poly[0])-1])

	closed, err := geometry.MeasureGeometry(poly)
	require.NoError(t, err)
	assert.Equal(t, geometry.Area(pts), closed)
}

func TestArea_DegenerateRingIsZero(t *testing.T) {
	pts := []geometry.Point{{Lat: 0, Lng: 0}, {Lat: 0, Lng: 1}, {Lat: 0, Lng: 0}}
	assert.False(t, geometry.Usable(geometry.Area(pts)))
}

func TestMeasureGeometry_MultiPolygonSkipsShortRings(t *testing.T) {
	one := geometry.NewPolygon(square(1))
	short := orb.Polygon{orb.Ring{{0, 0}, {1, 1}, {0, 0}}}

	total, err := geometry.MeasureGeometry(orb.MultiPolygon{one, short, one})
	require.NoError(t, err)
	assert.InDelta(t, 2.0, total, 0.02)
}

func TestMeasureGeometry_MultiLineString(t *testing.T) {
	lines := orb.MultiLineString{
		{{0, 0}, {1, 0}},
		{{5, 5}},
		{{0, 0}, {1, 0}},
	}
	total, err := geometry.MeasureGeometry(lines)
	require.NoError(t, err)
	assert.InDelta(t, 2*111.195, total, 0.01)
}

func TestMeasureGeometry_RejectsShortAndUnsupported(t *testing.T) {
	_, err := geometry.MeasureGeometry(orb.LineString{{0, 0}})
	assert.ErrorIs(t, err, geometry.ErrInsufficientPoints)

	_, err = geometry.MeasureGeometry(orb.Polygon{orb.Ring{{0, 0}, {1, 1}}})
	assert.ErrorIs(t, err, geometry.ErrInsufficientPoints)

	_, err = geometry.MeasureGeometry(orb.Point{1, 2})
	assert.ErrorIs(t, err, geometry.ErrUnsupportedGeometry)
}

func TestValidAndUsable(t *testing.T) {
	assert.True(t, geometry.Valid(0))
	assert.False(t, geometry.Usable(0))
	assert.True(t, geometry.Usable(0.5))
	assert.False(t, geometry.Valid(math.NaN()))
	assert.False(t, geometry.Valid(math.Inf(1)))
	assert.False(t, geometry.Valid(-1))
}
