package svgicon

import (
	"fmt"
	"math"
	"strings"

	"golang.org/x/image/math/fixed"
)

// Operation groups the different SVG commands
type Operation interface {
	// add itself on the driver `d`, after aplying the transform `M`
	drawTo(d Drawer, M Matrix2D)
}

type MoveTo fixed.Point26_6

type LineTo fixed.Point26_6

type QuadTo [2]fixed.Point26_6

type CubicTo [3]fixed.Point26_6

type Close struct{}

// starts a new path at the given point.
func (op MoveTo) drawTo(d Drawer, M Matrix2D) {
	d.Stop(false) // implicit close if currently in path.
	d.Start(M.trMove(op))
}

// draw a line
func (op LineTo) drawTo(d Drawer, M Matrix2D) {
	d.Line(M.trLine(op))
}

// draw a quadratic bezier curve
func (op QuadTo) drawTo(d Drawer, M Matrix2D) {
	b, c := M.trQuad(op)
	d.QuadBezier(b, c)
}

// draw a cubic bezier curve
func (op CubicTo) drawTo(d Drawer, M Matrix2D) {
	b, c, d_ := M.trCubic(op)
	d.CubeBezier(b, c, d_)
}

func (op Close) drawTo(d Drawer, _ Matrix2D) {
	d.Stop(true)
}

// Path is the outline of a shape, as a sequence of operations
// in the user space of its element. Rectangles, circles, polygons
// and path data are all reduced to a Path.
type Path []Operation

// ToSVGPath returns a string representation of the path
func (p Path) ToSVGPath() string {
	chunks := make([]string, len(p))
	for i, op := range p {
		switch op := op.(type) {
		case MoveTo:
			chunks[i] = fmt.Sprintf("M%4.3f,%4.3f", float32(op.X)/64, float32(op.Y)/64)
		case LineTo:
			chunks[i] = fmt.Sprintf("L%4.3f,%4.3f", float32(op.X)/64, float32(op.Y)/64)
		case QuadTo:
			chunks[i] = fmt.Sprintf("Q%4.3f,%4.3f,%4.3f,%4.3f", float32(op[0].X)/64, float32(op[0].Y)/64,
				float32(op[1].X)/64, float32(op[1].Y)/64)
		case CubicTo:
			chunks[i] = fmt.Sprintf("C%4.3f,%4.3f,%4.3f,%4.3f,%4.3f,%4.3f", float32(op[0].X)/64, float32(op[0].Y)/64,
				float32(op[1].X)/64, float32(op[1].Y)/64, float32(op[2].X)/64, float32(op[2].Y)/64)
		case Close:
			chunks[i] = "Z"
		}
	}
	return strings.Join(chunks, " ")
}

// String returns a readable representation of a Path.
func (p Path) String() string {
	return p.ToSVGPath()
}

// Start starts a new curve at the given point.
func (p *Path) Start(a fixed.Point26_6) {
	*p = append(*p, MoveTo{a.X, a.Y})
}

// Line adds a linear segment to the current curve.
func (p *Path) Line(b fixed.Point26_6) {
	*p = append(*p, LineTo{b.X, b.Y})
}

// QuadBezier adds a quadratic segment to the current curve.
func (p *Path) QuadBezier(b, c fixed.Point26_6) {
	*p = append(*p, QuadTo{b, c})
}

// CubeBezier adds a cubic segment to the current curve.
func (p *Path) CubeBezier(b, c, d fixed.Point26_6) {
	*p = append(*p, CubicTo{b, c, d})
}

// Stop joins the ends of the path
func (p *Path) Stop(closeLoop bool) {
	if closeLoop {
		*p = append(*p, Close{})
	}
}

// Extent returns the exact bounding box of the path,
// after applying the transform `M`.
func (p Path) Extent(M Matrix2D) Rect {
	var (
		out          Rect
		first, start fixed.Point26_6
		hasStart     bool
	)
	for _, op := range p {
		switch op := op.(type) {
		case MoveTo:
			start = M.trMove(op)
			first, hasStart = start, true
			out.AddPoint(fixedTof(start))
		case LineTo:
			b := M.trLine(op)
			out.addCurve(line{start, b})
			start = b
		case QuadTo:
			b, c := M.trQuad(op)
			out.addCurve(quadBezier{start, b, c})
			start = c
		case CubicTo:
			b, c, d := M.trCubic(op)
			out.addCurve(cubicBezier{start, b, c, d})
			start = d
		case Close:
			if hasStart {
				start = first
			}
		}
	}
	return out
}

// AxisRect returns the rectangle drawn by the path, if it is a single
// closed polygon with four axis aligned sides, or nil.
// The starting point may be repeated before closing.
func (p Path) AxisRect() *Bounds {
	if len(p) == 0 {
		return nil
	}
	first, ok := p[0].(MoveTo)
	if !ok {
		return nil
	}
	pts := []fixed.Point26_6{fixed.Point26_6(first)}
	closed := false
	for _, op := range p[1:] {
		switch op := op.(type) {
		case LineTo:
			if closed {
				return nil
			}
			if pt := fixed.Point26_6(op); pt != pts[len(pts)-1] {
				pts = append(pts, pt)
			}
		case Close:
			closed = true
		default:
			return nil
		}
	}
	if len(pts) == 5 && pts[4] == pts[0] {
		pts, closed = pts[:4], true
	}
	if !closed || len(pts) != 4 {
		return nil
	}
	// sides alternate between horizontal and vertical
	for _, start := range [2]int{0, 1} {
		aligned := true
		for i := range pts {
			a, b := pts[i], pts[(i+1)%4]
			if (i+start)%2 == 0 && a.Y != b.Y || (i+start)%2 == 1 && a.X != b.X {
				aligned = false
				break
			}
		}
		if !aligned {
			continue
		}
		x0, y0 := fixedTof(pts[0])
		x1, y1 := fixedTof(pts[2])
		out := Bounds{X: math.Min(x0, x1), Y: math.Min(y0, y1), W: math.Abs(x1 - x0), H: math.Abs(y1 - y0)}
		if out.W == 0 || out.H == 0 {
			return nil
		}
		return &out
	}
	return nil
}
