package bounds

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"

	"github.com/benoitkugler/artprint/svgicon"
)

// Input is the document shared by the strategies of one analysis.
// The SVG is parsed once, on first use.
type Input struct {
	Data     []byte
	Template Template

	once     sync.Once
	icon     *svgicon.SvgIcon
	parseErr error
}

// NewInput wraps a document.
func NewInput(data []byte, tmpl Template) *Input {
	return &Input{Data: data, Template: tmpl}
}

// Icon returns the parsed document. It is shared: callers must not modify it.
func (in *Input) Icon() (*svgicon.SvgIcon, error) {
	in.once.Do(func() {
		in.icon, in.parseErr = svgicon.ReadIconBytes(in.Data, svgicon.IgnoreErrorMode)
		if in.parseErr != nil {
			in.icon = nil
		}
	})
	return in.icon, in.parseErr
}

// backgroundEpsilon absorbs the floating point noise of the transforms
const backgroundEpsilon = 1e-6

// IsBackground returns true if `src`, drawn with `m`, is a rectangle
// (a <rect>, or a rectangular path or polygon) covering exactly the
// template: origin (0,0) and size equal to the template pixel size.
// Rotated or skewed shapes are never backgrounds.
func IsBackground(src svgicon.Element, m svgicon.Matrix2D, tmpl Template) bool {
	if src.Rect == nil || !m.IsAxisAligned() {
		return false
	}
	r := src.Rect
	x0, y0 := m.Transform(r.X, r.Y)
	x1, y1 := m.Transform(r.X+r.W, r.Y+r.H)
	xMin, xMax := math.Min(x0, x1), math.Max(x0, x1)
	yMin, yMax := math.Min(y0, y1), math.Max(y0, y1)
	near := func(a, b float64) bool { return math.Abs(a-b) <= backgroundEpsilon }
	return near(xMin, 0) && near(yMin, 0) && near(xMax-xMin, tmpl.WidthPx) && near(yMax-yMin, tmpl.HeightPx)
}

// background returns the exclusion filter for `tmpl`
func background(tmpl Template) func(src svgicon.Element, m svgicon.Matrix2D) bool {
	return func(src svgicon.Element, m svgicon.Matrix2D) bool { return IsBackground(src, m, tmpl) }
}

// GeometricStrategy computes the exact union of the painted areas
// of the paths and images, stroke included.
// It fails for documents using elements the parser ignores (such as text),
// whose geometry would be incomplete.
type GeometricStrategy struct{}

func (GeometricStrategy) Method() Method { return Geometric }

func (GeometricStrategy) Attempt(_ context.Context, in *Input) (Box, error) {
	icon, err := in.Icon()
	if err != nil {
		return Box{}, fmt.Errorf("invalid document: %w", err)
	}
	if len(icon.Unsupported) != 0 {
		return Box{}, fmt.Errorf("unsupported elements: %s", strings.Join(icon.Unsupported, ", "))
	}
	r := icon.Extent(background(in.Template))
	if r.IsEmpty() || r.W() <= 0 || r.H() <= 0 {
		return Box{}, ErrDegenerate
	}
	return Box{XMin: r.XMin, YMin: r.YMin, Width: r.W(), Height: r.H()}, nil
}

// DefaultFraction is the default size of the fallback box,
// relative to the template.
const DefaultFraction = 0.5

var errZeroTemplate = errors.New("template has no size")

// DefaultStrategy returns a box centered on the template,
// whose size is a fraction of the template size.
type DefaultStrategy struct {
	// Fraction in ]0,1], DefaultFraction if zero.
	Fraction float64
}

func (DefaultStrategy) Method() Method { return Default }

func (st DefaultStrategy) Attempt(_ context.Context, in *Input) (Box, error) {
	return st.Box(in.Template)
}

// Box returns the fallback box for `tmpl`.
func (st DefaultStrategy) Box(tmpl Template) (Box, error) {
	f := st.Fraction
	if f <= 0 || f > 1 {
		f = DefaultFraction
	}
	if tmpl.WidthPx <= 0 || tmpl.HeightPx <= 0 {
		return Box{}, errZeroTemplate
	}
	w, h := tmpl.WidthPx*f, tmpl.HeightPx*f
	return Box{XMin: (tmpl.WidthPx - w) / 2, YMin: (tmpl.HeightPx - h) / 2, Width: w, Height: h}, nil
}
