// Package trace provides a bounded breadcrumb buffer of recent poses.
package trace

import "github.com/teslashibe/go-nav2d/pkg/geom"

// Buffer is an append-only sequence of poses capped at a maximum length.
// Once the cap is exceeded the oldest poses are evicted first.
// A Buffer is not safe for concurrent use.
type Buffer struct {
	poses      []geom.Pose2D
	maxLength  int
	minSpacing float64
}

// New creates a Buffer holding at most maxLength poses. Zero means unbounded.
func New(maxLength int) *Buffer {
	return NewWithSpacing(maxLength, 0)
}

// NewWithSpacing creates a Buffer that also drops poses closer than
// minSpacing meters to the most recent one.
func NewWithSpacing(maxLength int, minSpacing float64) *Buffer {
	if maxLength < 0 {
		maxLength = 0
	}
	if minSpacing < 0 {
		minSpacing = 0
	}
	return &Buffer{maxLength: maxLength, minSpacing: minSpacing}
}

// Append adds pose at the tail. It reports false when the pose was filtered
// by the spacing rule.
func (b *Buffer) Append(pose geom.Pose2D) bool {
	if last, ok := b.Last(); ok && b.minSpacing > 0 {
		if geom.Distance(last.Position, pose.Position) < b.minSpacing {
			return false
		}
	}

	b.poses = append(b.poses, pose)
	if b.maxLength > 0 && len(b.poses) > b.maxLength {
		drop := len(b.poses) - b.maxLength
		// Shift instead of reslicing so the backing array does not grow forever
		n := copy(b.poses, b.poses[drop:])
		clear(b.poses[n:])
		b.poses = b.poses[:n]
	}
	return true
}

// Poses returns a copy of the buffer in insertion order.
func (b *Buffer) Poses() []geom.Pose2D {
	out := make([]geom.Pose2D, len(b.poses))
	copy(out, b.poses)
	return out
}

// Last returns the most recent pose.
func (b *Buffer) Last() (geom.Pose2D, bool) {
	if len(b.poses) == 0 {
		return geom.Pose2D{}, false
	}
	return b.poses[len(b.poses)-1], true
}

// Len returns the number of recorded poses.
func (b *Buffer) Len() int {
	return len(b.poses)
}

// MaxLength returns the cap, zero when unbounded.
func (b *Buffer) MaxLength() int {
	return b.maxLength
}

// Clear drops every recorded pose.
func (b *Buffer) Clear() {
	clear(b.poses)
	b.poses = b.poses[:0]
}
