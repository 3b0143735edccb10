package svgicon

import (
	"math"

	"golang.org/x/image/math/fixed"
)

// Given a parsed SVG document, implements how to
// draw it on screen.
// This requires a driver implementing the actual draw operations,
// such as a rasterizer to output .png images or a pdf writer.

// Drawer knows how to do the actual draw operations
// but doesn't need any SVG kwowledge
// In particular, tranformations matrix are already applied to the points
// before sending them to the Drawer.
type Drawer interface {
	// Clear must reset the internal state (used before starting a new path painting)
	Clear()

	// Start starts a new path at the given point.
	Start(a fixed.Point26_6)

	// Line Adds a line for the current point to `b`
	Line(b fixed.Point26_6)

	// QuadBezier adds a quadratic bezier curve to the path
	QuadBezier(b, c fixed.Point26_6)

	// CubeBezier adds a cubic bezier curve to the path
	CubeBezier(b, c, d fixed.Point26_6)

	// Closes the path to the start point if `closeLoop` is true
	Stop(closeLoop bool)

	// SetColor set the color for the current path
	SetColor(color Pattern, opacity float64)

	// Draw fills or strokes the accumulated path using the current settings
	// depending on the filling mode
	Draw()
}

type Filler interface {
	Drawer

	// Decide to use or not the NonZeroWinding rule for the current path
	SetWinding(useNonZeroWinding bool)
}

type Stroker interface {
	Drawer

	// Parametrize the stroking style for the current path
	SetStrokeOptions(options StrokeOptions)
}

type Driver interface {
	// SetupDrawers returns the backend painters, and
	// will be called at the begining of every path.
	// If the `willXXX` boolean is false, the returned drawer should be nil
	// to avoid useless operations.
	// When both booleans are true, one can assume that the exact same draw operations
	// will be performed on the Filler first and then on the Stroker.
	// This promise may enable the implementation to avoid duplicating filled and stroked paths
	SetupDrawers(willFill, willStroke bool) (Filler, Stroker)
}

type DashOptions struct {
	Dash       []float64 // values for the dash pattern (nil or an empty slice for no dashes)
	DashOffset float64   // starting offset into the dash array
}

// JoinMode type to specify how segments join.
type JoinMode uint8

// JoinMode constants determine how stroke segments bridge the gap at a join
// ArcClip mode is like MiterClip applied to arcs, and is not part of the SVG2.0
// standard.
const (
	Arc JoinMode = iota // New in SVG2
	Round
	Bevel
	Miter
	MiterClip // New in SVG2
	ArcClip   // Like MiterClip applied to arcs, and is not part of the SVG2.0 standard.
)

func (s JoinMode) String() string {
	switch s {
	case Round:
		return "Round"
	case Bevel:
		return "Bevel"
	case Miter:
		return "Miter"
	case MiterClip:
		return "MiterClip"
	case Arc:
		return "Arc"
	case ArcClip:
		return "ArcClip"
	default:
		return "<unknown JoinMode>"
	}
}

// CapMode defines how to draw caps on the ends of lines
type CapMode uint8

const (
	NilCap CapMode = iota // default value
	ButtCap
	SquareCap
	RoundCap
	CubicCap     // Not part of the SVG2.0 standard.
	QuadraticCap // Not part of the SVG2.0 standard.
)

func (c CapMode) String() string {
	switch c {
	case NilCap:
		return "NilCap"
	case ButtCap:
		return "ButtCap"
	case SquareCap:
		return "SquareCap"
	case RoundCap:
		return "RoundCap"
	case CubicCap:
		return "CubicCap"
	case QuadraticCap:
		return "QuadraticCap"
	default:
		return "<unknown CapMode>"
	}
}

// GapMode defines how to bridge gaps when the miter limit is exceeded,
// and is not part of the SVG2.0 standard.
type GapMode uint8

const (
	NilGap GapMode = iota
	FlatGap
	RoundGap
	CubicGap
	QuadraticGap
)

func (g GapMode) String() string {
	switch g {
	case NilGap:
		return "NilGap"
	case FlatGap:
		return "FlatGap"
	case RoundGap:
		return "RoundGap"
	case CubicGap:
		return "CubicGap"
	case QuadraticGap:
		return "QuadraticGap"
	default:
		return "<unknown GapMode>"
	}
}

type JoinOptions struct {
	MiterLimit   fixed.Int26_6 // he miter cutoff value for miter, arc, miterclip and arcClip joinModes
	LineJoin     JoinMode      // JoinMode for curve segments
	TrailLineCap CapMode       // capping functions for leading and trailing line ends. If one is nil, the other function is used at both ends.

	LeadLineCap CapMode // not part of the SVG standard
	LineGap     GapMode // not part of the SVG standard. determines how a gap on the convex side of two lines joining is filled
}

type StrokeOptions struct {
	LineWidth fixed.Int26_6 // width of the line
	Join      JoinOptions
	Dash      DashOptions
}

// DefaultStyle sets the default PathStyle to fill black, winding rule,
// full opacity, no stroke, ButtCap line end and Bevel line connect.
var DefaultStyle = PathStyle{
	FillOpacity:       1.0,
	LineOpacity:       1.0,
	LineWidth:         1.0,
	UseNonZeroWinding: true,
	Join: JoinOptions{
		MiterLimit:   fToFixed(4.),
		LineJoin:     Bevel,
		TrailLineCap: ButtCap,
	},
	FillerColor:  NewPlainColor(0x00, 0x00, 0x00, 0xff),
	transform:    Identity,
	currentColor: optionnalColor{valid: true, color: NewPlainColor(0x00, 0x00, 0x00, 0xff)},
}

func fToFixed(f float64) fixed.Int26_6 {
	return fixed.Int26_6(f * 64)
}

// SetTarget sets the Transform matrix to draw within the bounds of the rectangle arguments
func (s *SvgIcon) SetTarget(x, y, w, h float64) {
	s.SetTargetFrom(s.ViewBox, x, y, w, h)
}

// SetTargetFrom sets the Transform matrix so that the `src` area of the icon
// (in user space) is drawn within the bounds of the rectangle arguments.
func (s *SvgIcon) SetTargetFrom(src Bounds, x, y, w, h float64) {
	scaleW, scaleH := 1., 1.
	if src.W != 0 {
		scaleW = w / src.W
	}
	if src.H != 0 {
		scaleH = h / src.H
	}
	s.Transform = Identity.Translate(x, y).Scale(scaleW, scaleH).Translate(-src.X, -src.Y)
}

// Draw the compiled SVG icon into the driver `d`.
// All elements should be contained by the Bounds rectangle of the SvgIcon.
func (s *SvgIcon) Draw(d Driver, opacity float64) {
	s.DrawFiltered(d, opacity, nil)
}

// DrawFiltered is like Draw, but only paints the paths and images
// for which `keep` returns true. `keep` receives the source element and its
// transform to the icon user space. A nil `keep` paints everything.
func (s *SvgIcon) DrawFiltered(d Driver, opacity float64, keep func(src Element, m Matrix2D) bool) {
	for i := range s.SVGPaths {
		svgp := &s.SVGPaths[i]
		if keep != nil && !keep(svgp.Source, svgp.Style.transform) {
			continue
		}
		svgp.drawTransformed(d, opacity, s.Transform)
	}
	imDrawer, ok := d.(ImageDriver)
	if !ok {
		return
	}
	for _, im := range s.Images {
		if keep != nil && !keep(im.Source, im.Transform) {
			continue
		}
		im.Transform = s.Transform.Mult(im.Transform)
		im.Opacity *= opacity
		imDrawer.DrawImage(im)
	}
}

// ImageDriver may be implemented by drivers supporting raster images.
// The transform of `im` includes the icon transform.
type ImageDriver interface {
	DrawImage(im SvgImage)
}

// drawTransformed draws the compiled SvgPath into the driver while applying transform t.
func (svgp *SvgPath) drawTransformed(d Driver, opacity float64, t Matrix2D) {
	m := svgp.Style.transform
	svgp.Style.transform = t.Mult(m)
	defer func() { svgp.Style.transform = m }() // Restore untransformed matrix

	filler, stroker := d.SetupDrawers(svgp.Style.fills(), svgp.Style.strokes())
	if filler != nil { // nil color disable filling
		filler.Clear()
		filler.SetWinding(svgp.Style.UseNonZeroWinding)

		for _, op := range svgp.Path {
			op.drawTo(filler, svgp.Style.transform)
		}
		filler.Stop(false)

		filler.SetColor(svgp.Style.FillerColor, svgp.Style.FillOpacity*opacity)
		filler.Draw()
		filler.SetWinding(true) // default is true
	}

	if stroker != nil { // nil color disable lining
		stroker.Clear()

		lineGap := svgp.Style.Join.LineGap
		if lineGap == NilGap {
			lineGap = DefaultStyle.Join.LineGap
		}
		lineCap := svgp.Style.Join.TrailLineCap
		if lineCap == NilCap {
			lineCap = DefaultStyle.Join.TrailLineCap
		}
		leadLineCap := lineCap
		if svgp.Style.Join.LeadLineCap != NilCap {
			leadLineCap = svgp.Style.Join.LeadLineCap
		}
		// widths are given in user space
		scale := math.Sqrt(math.Abs(svgp.Style.transform.Det()))
		dash := svgp.Style.Dash
		if len(dash.Dash) != 0 {
			scaled := make([]float64, len(dash.Dash))
			for i, v := range dash.Dash {
				scaled[i] = v * scale
			}
			dash = DashOptions{Dash: scaled, DashOffset: dash.DashOffset * scale}
		}
		stroker.SetStrokeOptions(StrokeOptions{
			LineWidth: fToFixed(svgp.Style.LineWidth * scale),
			Join: JoinOptions{
				MiterLimit:   svgp.Style.Join.MiterLimit,
				LineJoin:     svgp.Style.Join.LineJoin,
				LeadLineCap:  leadLineCap,
				TrailLineCap: lineCap,
				LineGap:      lineGap,
			},
			Dash: dash,
		})

		for _, op := range svgp.Path {
			op.drawTo(stroker, svgp.Style.transform)
		}
		stroker.Stop(false)

		stroker.SetColor(svgp.Style.LinerColor, svgp.Style.LineOpacity*opacity)
		stroker.Draw()
	}
}
