package nav2d

import (
	"fmt"

	"github.com/teslashibe/go-nav2d/pkg/scene"
)

// ScaleLifecycle holds the inverse view zoom captured at initialization.
// The zero value is uninitialized.
type ScaleLifecycle struct {
	factor *scene.Scale
}

// Init captures 1/zoom from view. A second call keeps the existing factor
// and returns ErrScaleAlreadyInitialized.
func (s *ScaleLifecycle) Init(view scene.View) (scene.Scale, error) {
	if s.factor != nil {
		return *s.factor, ErrScaleAlreadyInitialized
	}
	zoom := view.ViewScale()
	if zoom.X <= 0 || zoom.Y <= 0 {
		return scene.Scale{}, fmt.Errorf("%w: got (%g, %g)", scene.ErrInvalidZoom, zoom.X, zoom.Y)
	}
	f := zoom.Inverse()
	s.factor = &f
	return f, nil
}

// Reset returns to the uninitialized state.
func (s *ScaleLifecycle) Reset() {
	s.factor = nil
}

// Factor returns the captured factor and whether one exists.
func (s *ScaleLifecycle) Factor() (scene.Scale, bool) {
	if s.factor == nil {
		return scene.Scale{}, false
	}
	return *s.factor, true
}

// Initialized reports whether Init has succeeded since the last Reset.
func (s *ScaleLifecycle) Initialized() bool {
	return s.factor != nil
}

// liveScale is the current inverse zoom, or unit scale for a degenerate view.
func liveScale(view scene.View) scene.Scale {
	zoom := view.ViewScale()
	if zoom.X <= 0 || zoom.Y <= 0 {
		return scene.Scale{X: 1, Y: 1}
	}
	return zoom.Inverse()
}
