package scene

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/teslashibe/go-nav2d/pkg/geom"
	"github.com/teslashibe/go-nav2d/pkg/trace"
)

// Color is an RGB color with alpha in [0, 1].
type Color struct {
	R, G, B uint8
	A       float64
}

// RGB builds a Color.
func RGB(r, g, b uint8, a float64) Color {
	return Color{R: r, G: g, B: b, A: a}
}

// String returns the CSS rgba() form.
func (c Color) String() string {
	return fmt.Sprintf("rgba(%d,%d,%d,%s)", c.R, c.G, c.B, strconv.FormatFloat(c.A, 'f', -1, 64))
}

// MarshalText implements encoding.TextMarshaler.
func (c Color) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalText accepts "rgba(r,g,b,a)", "rgb(r,g,b)" and "#rrggbb".
func (c *Color) UnmarshalText(text []byte) error {
	s := strings.TrimSpace(string(text))

	if strings.HasPrefix(s, "#") {
		if len(s) != 7 {
			return fmt.Errorf("invalid hex color %q", s)
		}
		v, err := strconv.ParseUint(s[1:], 16, 32)
		if err != nil {
			return fmt.Errorf("invalid hex color %q: %w", s, err)
		}
		*c = RGB(uint8(v>>16), uint8(v>>8), uint8(v), 1)
		return nil
	}

	var body string
	var wantParts int
	switch {
	case strings.HasPrefix(s, "rgba(") && strings.HasSuffix(s, ")"):
		body, wantParts = s[5:len(s)-1], 4
	case strings.HasPrefix(s, "rgb(") && strings.HasSuffix(s, ")"):
		body, wantParts = s[4:len(s)-1], 3
	default:
		return fmt.Errorf("unsupported color %q", s)
	}

	parts := strings.Split(body, ",")
	if len(parts) != wantParts {
		return fmt.Errorf("invalid color %q: expected %d components", s, wantParts)
	}

	var rgb [3]uint8
	for i := 0; i < 3; i++ {
		v, err := strconv.ParseUint(strings.TrimSpace(parts[i]), 10, 8)
		if err != nil {
			return fmt.Errorf("invalid color %q: %w", s, err)
		}
		rgb[i] = uint8(v)
	}

	alpha := 1.0
	if wantParts == 4 {
		a, err := strconv.ParseFloat(strings.TrimSpace(parts[3]), 64)
		if err != nil || a < 0 || a > 1 {
			return fmt.Errorf("invalid alpha in color %q", s)
		}
		alpha = a
	}

	*c = RGB(rgb[0], rgb[1], rgb[2], alpha)
	return nil
}

// Arrow is a marker pointing along +x at zero rotation.
type Arrow struct {
	Transform
	Size        float64
	StrokeSize  float64
	StrokeColor Color
	FillColor   Color
	Pulse       bool
}

// ArrowOptions configures NewArrow.
type ArrowOptions struct {
	Size        float64
	StrokeSize  float64
	StrokeColor Color
	FillColor   Color
	Pulse       bool
}

// NewArrow creates a visible arrow. Size defaults to 10, stroke to 3.
func NewArrow(opts ArrowOptions) *Arrow {
	if opts.Size <= 0 {
		opts.Size = 10
	}
	if opts.StrokeSize <= 0 {
		opts.StrokeSize = 3
	}
	return &Arrow{
		Transform:   identity(),
		Size:        opts.Size,
		StrokeSize:  opts.StrokeSize,
		StrokeColor: opts.StrokeColor,
		FillColor:   opts.FillColor,
		Pulse:       opts.Pulse,
	}
}

// Base implements Node.
func (a *Arrow) Base() *Transform { return &a.Transform }

// Outline returns the shaft end and the three head vertices in local units.
func (a *Arrow) Outline() (shaftEnd geom.Position2D, head [3]geom.Position2D) {
	headLen := a.Size / 3
	headWidth := headLen * 2 / 3
	shaftEnd = geom.Position2D{X: a.Size - headLen}
	head = [3]geom.Position2D{
		{X: a.Size, Y: 0},
		{X: a.Size - headLen, Y: headWidth / 2},
		{X: a.Size - headLen, Y: -headWidth / 2},
	}
	return shaftEnd, head
}

// PathShape draws a polyline through screen-space points.
type PathShape struct {
	Transform
	StrokeSize  float64
	StrokeColor Color
	points      []geom.Position2D
}

// NewPathShape creates a visible, empty path.
func NewPathShape(strokeSize float64, color Color) *PathShape {
	if strokeSize <= 0 {
		strokeSize = 3
	}
	return &PathShape{Transform: identity(), StrokeSize: strokeSize, StrokeColor: color}
}

// Base implements Node.
func (p *PathShape) Base() *Transform { return &p.Transform }

// SetPath replaces the geometry.
func (p *PathShape) SetPath(points []geom.Position2D) {
	p.points = append(p.points[:0], points...)
}

// Points returns a copy of the geometry.
func (p *PathShape) Points() []geom.Position2D {
	out := make([]geom.Position2D, len(p.points))
	copy(out, p.points)
	return out
}

// TraceShape draws the breadcrumb trail held in a trace buffer.
type TraceShape struct {
	Transform
	StrokeSize  float64
	StrokeColor Color
	Buffer      *trace.Buffer
}

// NewTraceShape creates a visible trace over buf.
func NewTraceShape(strokeSize float64, color Color, buf *trace.Buffer) *TraceShape {
	if strokeSize <= 0 {
		strokeSize = 3
	}
	if buf == nil {
		buf = trace.New(0)
	}
	return &TraceShape{Transform: identity(), StrokeSize: strokeSize, StrokeColor: color, Buffer: buf}
}

// Base implements Node.
func (t *TraceShape) Base() *Transform { return &t.Transform }

// AddPose records a robot-frame pose. It reports whether the pose was kept.
func (t *TraceShape) AddPose(pose geom.Pose2D) bool {
	return t.Buffer.Append(pose)
}

// Points returns the trail in screen space.
func (t *TraceShape) Points() []geom.Position2D {
	poses := t.Buffer.Poses()
	out := make([]geom.Position2D, len(poses))
	for i, p := range poses {
		out[i] = geom.ToScreen(p.Position)
	}
	return out
}
