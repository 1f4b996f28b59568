package common

// Viewport identifiers shared by the frontend and the host
const (
	// ViewportBefore is the left map showing the older imagery
	ViewportBefore = "before"

	// ViewportAfter is the right map showing the newer imagery
	ViewportAfter = "after"
)

// Measurement value sources
const (
	// SourceRemote marks values computed by the measurement backend
	SourceRemote = "remote"

	// SourceLocal marks values computed on this machine after the backend failed
	SourceLocal = "local"
)

// DisplayName returns the human-readable label of a viewport
func DisplayName(viewportID string) string {
	switch viewportID {
	case ViewportBefore:
		return "Before"
	case ViewportAfter:
		return "After"
	}
	return viewportID
}
