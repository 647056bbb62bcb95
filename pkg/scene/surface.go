package scene

import (
	"errors"
	"fmt"

	"github.com/teslashibe/go-nav2d/pkg/geom"
)

// ErrInvalidZoom is returned for a non-positive zoom.
var ErrInvalidZoom = errors.New("scene: zoom must be positive")

// Scale is a pair of axis scale factors.
type Scale struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
}

// Inverse returns 1/s per axis.
func (s Scale) Inverse() Scale {
	return Scale{X: 1 / s.X, Y: 1 / s.Y}
}

// View is the read-only capability the overlay needs from the host surface:
// the current zoom and the convention for turning a heading into a rotation.
type View interface {
	ViewScale() Scale
	HeadingToRotation(q geom.Quaternion) float64
}

// Surface is a rendering surface: a root container seen through a zoomable,
// pannable viewport. Zoom is in pixels per meter, Origin is the pixel
// position of the robot-frame origin.
type Surface struct {
	Root   *Container
	Width  int
	Height int
	Zoom   Scale
	Origin geom.Position2D
}

// NewSurface creates a surface with the robot-frame origin at its center.
func NewSurface(width, height int, zoom float64) *Surface {
	if zoom <= 0 {
		zoom = 1
	}
	return &Surface{
		Root:   NewContainer(),
		Width:  width,
		Height: height,
		Zoom:   Scale{X: zoom, Y: zoom},
		Origin: geom.Position2D{X: float64(width) / 2, Y: float64(height) / 2},
	}
}

// ViewScale implements View.
func (s *Surface) ViewScale() Scale {
	return s.Zoom
}

// HeadingToRotation implements View.
func (s *Surface) HeadingToRotation(q geom.Quaternion) float64 {
	return geom.HeadingDegrees(q)
}

// SetZoom changes the zoom in pixels per meter.
func (s *Surface) SetZoom(x, y float64) error {
	if x <= 0 || y <= 0 {
		return fmt.Errorf("%w: got (%g, %g)", ErrInvalidZoom, x, y)
	}
	s.Zoom = Scale{X: x, Y: y}
	return nil
}

// Pan moves the robot-frame origin by a pixel offset.
func (s *Surface) Pan(dx, dy float64) {
	s.Origin.X += dx
	s.Origin.Y += dy
}

// ScreenToWorld converts a pixel position into robot-frame meters.
func (s *Surface) ScreenToWorld(px, py float64) geom.Position2D {
	return geom.Position2D{
		X: (px - s.Origin.X) / s.Zoom.X,
		Y: -(py - s.Origin.Y) / s.Zoom.Y,
	}
}

// WorldToScreen converts robot-frame meters into a pixel position.
func (s *Surface) WorldToScreen(p geom.Position2D) (px, py float64) {
	sp := geom.ToScreen(p)
	return s.Origin.X + sp.X*s.Zoom.X, s.Origin.Y + sp.Y*s.Zoom.Y
}

var _ View = (*Surface)(nil)
