package session

import (
	"fmt"
	"strings"

	"imagery-compare/internal/geometry"
)

// Mode is the active measurement tool
type Mode string

const (
	ModeNone     Mode = "none"
	ModeArea     Mode = "area"
	ModeDistance Mode = "distance"
)

// ParseMode accepts the mode names used by the frontend. An empty string is ModeNone.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case "", ModeNone:
		return ModeNone, nil
	case ModeArea:
		return ModeArea, nil
	case ModeDistance:
		return ModeDistance, nil
	}
	return ModeNone, fmt.Errorf("unknown measurement mode: %q", s)
}

// MinPoints is the number of points Finalize needs
func (m Mode) MinPoints() int {
	switch m {
	case ModeArea:
		return 3
	case ModeDistance:
		return 2
	}
	return 0
}

// Kind maps the mode to the measurement kind. ModeNone has none.
func (m Mode) Kind() (geometry.Kind, bool) {
	switch m {
	case ModeArea:
		return geometry.KindArea, true
	case ModeDistance:
		return geometry.KindDistance, true
	}
	return "", false
}

func (m Mode) String() string {
	return string(m)
}
