package viewport

import (
	"fmt"
	"math"

	"imagery-compare/internal/geometry"
)

const (
	MinZoom = 0
	MaxZoom = 22

	// coordEpsilon is well below what a map can display at MaxZoom
	coordEpsilon = 1e-9
)

// ViewState is the center and zoom of one map
type ViewState struct {
	Center geometry.Point `json:"center"`
	Zoom   int            `json:"zoom"`
}

// Equal reports whether two states describe the same view
func (v ViewState) Equal(o ViewState) bool {
	return v.Zoom == o.Zoom &&
		math.Abs(v.Center.Lat-o.Center.Lat) < coordEpsilon &&
		math.Abs(v.Center.Lng-o.Center.Lng) < coordEpsilon
}

// Validate checks the center and zoom range
func (v ViewState) Validate() error {
	if err := v.Center.Validate(); err != nil {
		return err
	}
	if v.Zoom < MinZoom || v.Zoom > MaxZoom {
		return fmt.Errorf("zoom %d out of range [%d, %d]", v.Zoom, MinZoom, MaxZoom)
	}
	return nil
}

// NewViewState builds a state from the values reported by the map widget.
// Fractional zoom levels are rounded.
func NewViewState(lat, lng, zoom float64) (ViewState, error) {
	if math.IsNaN(zoom) || math.IsInf(zoom, 0) {
		return ViewState{}, fmt.Errorf("invalid zoom: %v", zoom)
	}
	v := ViewState{
		Center: geometry.Point{Lat: lat, Lng: lng},
		Zoom:   int(math.Round(zoom)),
	}
	if err := v.Validate(); err != nil {
		return ViewState{}, err
	}
	return v, nil
}

// ShapeKind is the type of an overlay shape
type ShapeKind string

const (
	ShapeMarker   ShapeKind = "marker"
	ShapePolyline ShapeKind = "polyline"
	ShapePolygon  ShapeKind = "polygon"
)

// Shape is one overlay element drawn on top of a map
type Shape struct {
	Kind   ShapeKind        `json:"kind"`
	Points []geometry.Point `json:"points"`
	Dashed bool             `json:"dashed,omitempty"`
}

// Renderer draws on the map widgets. Implemented by the desktop app, which
// forwards calls to the frontend.
type Renderer interface {
	SetView(viewportID string, state ViewState, animate bool)
	DrawOverlay(viewportID string, shapes []Shape)
}
