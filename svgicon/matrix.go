package svgicon

import (
	"math"

	"golang.org/x/image/math/fixed"
)

// Matrix2D represents an SVG style matrix
//
//	| A C E |
//	| B D F |
//	| 0 0 1 |
type Matrix2D struct {
	A, B, C, D, E, F float64
}

// Identity is the identity matrix
var Identity = Matrix2D{1, 0, 0, 1, 0, 0}

// Transform multiplies the input vector by matrix m and outputs the results vector
// components.
func (m Matrix2D) Transform(x1, y1 float64) (x2, y2 float64) {
	x2 = x1*m.A + y1*m.C + m.E
	y2 = x1*m.B + y1*m.D + m.F
	return
}

// TransformVector is a modidifed version of Transform that ignores the
// translation components.
func (m Matrix2D) TransformVector(x1, y1 float64) (x2, y2 float64) {
	x2 = x1*m.A + y1*m.C
	y2 = x1*m.B + y1*m.D
	return
}

// Invert returns the inverse matrix
func (m Matrix2D) Invert() Matrix2D {
	n := Matrix2D{}
	det := m.Det()
	n.A = m.D / det
	n.B = -m.B / det
	n.C = -m.C / det
	n.D = m.A / det
	n.E = (m.C*m.F - m.D*m.E) / det
	n.F = (m.B*m.E - m.A*m.F) / det
	return n
}

// Det returns the determinant of the linear part of the matrix
func (m Matrix2D) Det() float64 { return m.A*m.D - m.B*m.C }

// IsAxisAligned returns true if the matrix has no rotation nor skew component.
func (m Matrix2D) IsAxisAligned() bool { return m.B == 0 && m.C == 0 }

// Mult returns m*b
func (m Matrix2D) Mult(b Matrix2D) Matrix2D {
	return Matrix2D{
		A: m.A*b.A + m.C*b.B,
		B: m.B*b.A + m.D*b.B,
		C: m.A*b.C + m.C*b.D,
		D: m.B*b.C + m.D*b.D,
		E: m.A*b.E + m.C*b.F + m.E,
		F: m.B*b.E + m.D*b.F + m.F,
	}
}

// Scale matrix in x and y dimensions
func (m Matrix2D) Scale(x, y float64) Matrix2D {
	return m.Mult(Matrix2D{A: x, D: y})
}

// SkewY skews the matrix in the Y dimension
func (m Matrix2D) SkewY(theta float64) Matrix2D {
	return m.Mult(Matrix2D{A: 1, B: math.Tan(theta), D: 1})
}

// SkewX skews the matrix in the X dimension
func (m Matrix2D) SkewX(theta float64) Matrix2D {
	return m.Mult(Matrix2D{A: 1, C: math.Tan(theta), D: 1})
}

// Translate translates the matrix to the x , y point
func (m Matrix2D) Translate(x, y float64) Matrix2D {
	return m.Mult(Matrix2D{1, 0, 0, 1, x, y})
}

// Rotate rotate the matrix by theta
func (m Matrix2D) Rotate(theta float64) Matrix2D {
	s, c := math.Sin(theta), math.Cos(theta)
	return m.Mult(Matrix2D{A: c, B: s, C: -s, D: c})
}

func (m Matrix2D) trFixed(p fixed.Point26_6) fixed.Point26_6 {
	x, y := m.Transform(float64(p.X)/64, float64(p.Y)/64)
	return fixed.Point26_6{X: fixed.Int26_6(x * 64), Y: fixed.Int26_6(y * 64)}
}

func (m Matrix2D) trMove(op MoveTo) fixed.Point26_6 { return m.trFixed(fixed.Point26_6(op)) }

func (m Matrix2D) trLine(op LineTo) fixed.Point26_6 { return m.trFixed(fixed.Point26_6(op)) }

func (m Matrix2D) trQuad(op QuadTo) (fixed.Point26_6, fixed.Point26_6) {
	return m.trFixed(op[0]), m.trFixed(op[1])
}

func (m Matrix2D) trCubic(op CubicTo) (fixed.Point26_6, fixed.Point26_6, fixed.Point26_6) {
	return m.trFixed(op[0]), m.trFixed(op[1]), m.trFixed(op[2])
}
