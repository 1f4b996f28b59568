package session

import (
	"errors"
	"fmt"

	"imagery-compare/internal/measureapi"
)

// ErrorKind classifies measurement failures
type ErrorKind string

const (
	InvalidGeometry     ErrorKind = "invalid_geometry"
	RemoteUnavailable   ErrorKind = "remote_unavailable"
	RemoteInvalidResult ErrorKind = "remote_invalid_result"
	FallbackFailed      ErrorKind = "fallback_failed"
)

var (
	ErrInvalidGeometry = errors.New("invalid geometry")
	ErrFallbackFailed  = errors.New("failed to compute the measurement: ensure the shape has enough valid points")
)

// MeasureError carries the kind of a failure alongside its cause
type MeasureError struct {
	Kind ErrorKind
	Err  error
}

func (e *MeasureError) Error() string {
	if e.Err == nil {
		return string(e.Kind)
	}
	return e.Err.Error()
}

func (e *MeasureError) Unwrap() error {
	return e.Err
}

// UserVisible reports whether the error should be shown to the user.
// Remote failures are recovered by the local fallback and only logged.
func (e *MeasureError) UserVisible() bool {
	return e.Kind == InvalidGeometry || e.Kind == FallbackFailed
}

func invalidGeometry(format string, args ...interface{}) *MeasureError {
	return &MeasureError{
		Kind: InvalidGeometry,
		Err:  fmt.Errorf("%w: %s", ErrInvalidGeometry, fmt.Sprintf(format, args...)),
	}
}

// classifyRemote maps a remote client error to its kind
func classifyRemote(err error) *MeasureError {
	if errors.Is(err, measureapi.ErrInvalidResult) {
		return &MeasureError{Kind: RemoteInvalidResult, Err: err}
	}
	return &MeasureError{Kind: RemoteUnavailable, Err: err}
}
