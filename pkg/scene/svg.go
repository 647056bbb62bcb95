package scene

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	svg "github.com/ajstarks/svgo"

	"github.com/teslashibe/go-nav2d/pkg/geom"
)

const pulseCSS = `
.pulse { animation: pulse 0.8s ease-in-out infinite alternate; }
@keyframes pulse { from { transform: scale(1); } to { transform: scale(1.4); } }
`

// RenderSVG draws the visible part of the scene as a standalone SVG document.
func (s *Surface) RenderSVG(w io.Writer) {
	canvas := svg.New(w)
	canvas.Start(s.Width, s.Height)
	canvas.Style("text/css", pulseCSS)
	canvas.Gtransform(fmt.Sprintf("translate(%s,%s) scale(%s,%s)",
		num(s.Origin.X), num(s.Origin.Y), num(s.Zoom.X), num(s.Zoom.Y)))
	renderNode(canvas, s.Root)
	canvas.Gend()
	canvas.End()
}

func renderNode(canvas *svg.SVG, n Node) {
	t := n.Base()
	if !t.Visible || t.ScaleX == 0 || t.ScaleY == 0 {
		return
	}

	canvas.Group(fmt.Sprintf(`transform="translate(%s,%s) rotate(%s) scale(%s,%s)"`,
		num(t.X), num(t.Y), num(t.Rotation), num(t.ScaleX), num(t.ScaleY)))
	defer canvas.Gend()

	switch node := n.(type) {
	case *Container:
		for _, child := range node.children {
			renderNode(canvas, child)
		}
	case *Arrow:
		renderArrow(canvas, node)
	case *PathShape:
		renderPolyline(canvas, node.points, t, node.StrokeSize, node.StrokeColor)
	case *TraceShape:
		renderPolyline(canvas, node.Points(), t, node.StrokeSize, node.StrokeColor)
	}
}

func renderArrow(canvas *svg.SVG, a *Arrow) {
	if a.Pulse {
		canvas.Group(`class="pulse"`)
		defer canvas.Gend()
	}

	shaftEnd, head := a.Outline()
	canvas.Path(fmt.Sprintf("M 0 0 L %s %s", num(shaftEnd.X), num(shaftEnd.Y)),
		fmt.Sprintf("fill:none;stroke:%s;stroke-width:%s", a.StrokeColor, num(a.StrokeSize)))
	canvas.Path(fmt.Sprintf("M %s %s L %s %s L %s %s Z",
		num(head[0].X), num(head[0].Y), num(head[1].X), num(head[1].Y), num(head[2].X), num(head[2].Y)),
		fmt.Sprintf("fill:%s;stroke:%s;stroke-width:%s", a.FillColor, a.StrokeColor, num(a.StrokeSize)))
}

// renderPolyline draws screen-space meters inside a node whose scale is the
// inverse zoom, so the stroke keeps its on-screen width.
func renderPolyline(canvas *svg.SVG, points []geom.Position2D, t *Transform, strokeSize float64, color Color) {
	if len(points) == 0 {
		return
	}

	var d strings.Builder
	for i, p := range points {
		cmd := "L"
		if i == 0 {
			cmd = "M"
		}
		fmt.Fprintf(&d, "%s %s %s ", cmd, num(p.X/t.ScaleX), num(p.Y/t.ScaleY))
	}

	canvas.Path(strings.TrimSpace(d.String()),
		fmt.Sprintf("fill:none;stroke:%s;stroke-width:%s;stroke-linejoin:round", color, num(strokeSize)))
}

func num(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
