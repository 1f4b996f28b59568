package main

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"imagery-compare/internal/geometry"
	"imagery-compare/internal/session"
)

func TestFormatMeasurement(t *testing.T) {
	tests := []struct {
		value float64
		unit  string
		want  string
	}{
		{111.19492664, "km", "111.19 km"},
		{1.0049, "km²", "1.00 km²"},
		{0.00731, "km²", "0.01 km²"},
		{2500, "km", "2500.00 km"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, formatMeasurement(tt.value, tt.unit))
	}
}

func TestNewMeasurementState(t *testing.T) {
	st := session.State{
		Mode:    session.ModeDistance,
		Points:  []geometry.Point{{Lat: 0, Lng: 0}, {Lat: 0, Lng: 1}},
		Preview: session.Preview{Value: 111.19492664, Unit: "km"},
	}
	ms := newMeasurementState(st)
	assert.Equal(t, "111.195 km", ms.FormattedPreview)
	assert.Equal(t, st.Points, ms.Points)

	idle := newMeasurementState(session.State{Mode: session.ModeNone})
	assert.Empty(t, idle.FormattedPreview)
}
