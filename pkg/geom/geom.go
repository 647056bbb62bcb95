// Package geom holds the planar coordinate and orientation conventions shared
// by every navigation overlay component.
//
// Robot-frame positions have y pointing up; screen positions have y pointing
// down. Screen rotations are in degrees, clockwise, with zero along +x.
package geom

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/num/quat"
)

// PlanarTolerance is the largest |x| or |y| quaternion component still
// accepted as a rotation about the vertical axis.
const PlanarTolerance = 1e-6

// ErrNonPlanar is returned for orientations that rotate outside the ground plane.
var ErrNonPlanar = errors.New("geom: orientation is not planar")

// Position2D is a point in meters.
type Position2D struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Quaternion is a rotation restricted to the vertical axis: X and Y stay zero.
type Quaternion struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
	W float64 `json:"w"`
}

// Identity is the zero heading.
var Identity = Quaternion{W: 1}

// Pose2D is a planar position with a heading.
type Pose2D struct {
	Position Position2D `json:"position"`
	Heading  Quaternion `json:"orientation"`
}

// ToScreen converts a robot-frame position into screen space.
func ToScreen(p Position2D) Position2D {
	return Position2D{X: p.X, Y: -p.Y}
}

// QuaternionFromHeading builds the planar quaternion for a yaw angle in radians.
func QuaternionFromHeading(theta float64) Quaternion {
	return Quaternion{Z: math.Sin(theta / 2), W: math.Cos(theta / 2)}
}

// RotationToQuaternion recovers the planar heading for a screen rotation in
// degrees. The screen rotates clockwise, the robot frame counter-clockwise.
func RotationToQuaternion(deg float64) Quaternion {
	return QuaternionFromHeading(-deg * math.Pi / 180)
}

// HeadingDegrees converts an orientation into a screen rotation in degrees.
func HeadingDegrees(q Quaternion) float64 {
	yaw := math.Atan2(2*(q.W*q.Z+q.X*q.Y), 1-2*(q.Y*q.Y+q.Z*q.Z))
	return -yaw * 180 / math.Pi
}

// DragRotation is the screen rotation in degrees of the arrow pointing from
// anchor to pos, both in robot-frame coordinates.
func DragRotation(anchor, pos Position2D) float64 {
	return -math.Atan2(pos.Y-anchor.Y, pos.X-anchor.X) * 180 / math.Pi
}

func (q Quaternion) number() quat.Number {
	return quat.Number{Real: q.W, Imag: q.X, Jmag: q.Y, Kmag: q.Z}
}

// Validate rejects orientations with a non-planar component or zero length.
func (q Quaternion) Validate() error {
	if math.Abs(q.X) > PlanarTolerance || math.Abs(q.Y) > PlanarTolerance {
		return fmt.Errorf("%w: x=%g y=%g", ErrNonPlanar, q.X, q.Y)
	}
	if quat.Abs(q.number()) == 0 {
		return fmt.Errorf("%w: zero quaternion", ErrNonPlanar)
	}
	return nil
}

// Normalize scales q to unit length. The zero quaternion maps to Identity.
func (q Quaternion) Normalize() Quaternion {
	n := q.number()
	abs := quat.Abs(n)
	if abs == 0 {
		return Identity
	}
	n = quat.Scale(1/abs, n)
	return Quaternion{X: n.Imag, Y: n.Jmag, Z: n.Kmag, W: n.Real}
}

// Heading returns the yaw in radians, in (-π, π].
func (q Quaternion) Heading() float64 {
	n := q.Normalize()
	return math.Atan2(2*(n.W*n.Z+n.X*n.Y), 1-2*(n.Y*n.Y+n.Z*n.Z))
}

// Distance returns the euclidean distance between two positions.
func Distance(a, b Position2D) float64 {
	return math.Hypot(b.X-a.X, b.Y-a.Y)
}
