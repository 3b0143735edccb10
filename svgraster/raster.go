// Implements a raster backend to render SVG images,
// by wrapping rasterx.
package svgraster

import (
	"bytes"
	"image"
	"image/color"
	"io"
	"log"

	// supported formats for embedded images
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/benoitkugler/artprint/svgicon"
	"github.com/srwiley/rasterx"
	"golang.org/x/image/draw"
	"golang.org/x/image/math/f64"
)

var (
	_ svgicon.Driver      = (*Renderer)(nil) // assert interface conformance
	_ svgicon.ImageDriver = (*Renderer)(nil)
)

// Renderer paints on a destination image.
type Renderer struct {
	dasher *rasterx.Dasher // to avoid shared state
	filler *rasterx.Filler // we use separated instance
	dest   draw.Image

	// Logger reports embedded images which can't be decoded.
	// If nil, they are silently skipped.
	Logger *log.Logger
}

// NewRenderer returns a renderer with default values,
// drawing on `dest`.
func NewRenderer(dest draw.Image) *Renderer {
	b := dest.Bounds()
	w, h := b.Dx(), b.Dy()
	return &Renderer{
		dasher: rasterx.NewDasher(w, h, rasterx.NewScannerGV(w, h, dest, b)),
		filler: rasterx.NewFiller(w, h, rasterx.NewScannerGV(w, h, dest, b)),
		dest:   dest,
	}
}

// Options controls the output of RasterSVGIconToImage
type Options struct {
	// Output size in pixels. If zero, the view box size is used.
	Width, Height int
	// Background, if not nil, is painted before the icon.
	Background color.Color
	// Keep is used to select the paths and images to draw,
	// see svgicon.SvgIcon.DrawFiltered.
	// If nil, everything is drawn.
	Keep func(src svgicon.Element, m svgicon.Matrix2D) bool
}

// RasterSVGIconToImage uses a ScannerGV instance to renderer the
// icon into an image and returns it.
// `opts` may be nil.
func RasterSVGIconToImage(icon io.Reader, opts *Options) (*image.RGBA, error) {
	parsedIcon, err := svgicon.ReadIconStream(icon, svgicon.IgnoreErrorMode)
	if err != nil {
		return nil, err
	}
	return RasterIcon(parsedIcon, opts), nil
}

// RasterIcon renders an already parsed icon, scaling its view box
// to the output size. `opts` may be nil.
func RasterIcon(icon *svgicon.SvgIcon, opts *Options) *image.RGBA {
	var o Options
	if opts != nil {
		o = *opts
	}
	if o.Width <= 0 {
		o.Width = int(icon.ViewBox.W + 0.5)
	}
	if o.Height <= 0 {
		o.Height = int(icon.ViewBox.H + 0.5)
	}
	img := image.NewRGBA(image.Rect(0, 0, o.Width, o.Height))
	if o.Background != nil {
		draw.Draw(img, img.Bounds(), image.NewUniform(o.Background), image.Point{}, draw.Src)
	}
	if o.Width == 0 || o.Height == 0 {
		return img
	}
	icon.SetTarget(0, 0, float64(o.Width), float64(o.Height))
	icon.DrawFiltered(NewRenderer(img), 1.0, o.Keep)
	return img
}

type filler struct {
	*rasterx.Filler
}

type stroker struct {
	*rasterx.Dasher
}

func (f filler) SetColor(color svgicon.Pattern, opacity float64) {
	setColorFromPattern(color, opacity, f.Scanner)
}

func (s stroker) SetColor(color svgicon.Pattern, opacity float64) {
	setColorFromPattern(color, opacity, s.Scanner)
}

// SetupDrawers implements svgicon.Driver
func (rd *Renderer) SetupDrawers(willFill, willStroke bool) (svgicon.Filler, svgicon.Stroker) {
	var (
		f svgicon.Filler
		s svgicon.Stroker
	)
	if willFill {
		f = filler{rd.filler}
	}
	if willStroke {
		s = stroker{rd.dasher}
	}
	return f, s
}

func toRasterxGradient(grad svgicon.Gradient) rasterx.Gradient {
	var (
		points   [5]float64
		isRadial bool
	)
	switch dir := grad.Direction.(type) {
	case svgicon.Linear:
		points[0], points[1], points[2], points[3] = dir[0], dir[1], dir[2], dir[3]
		isRadial = false
	case svgicon.Radial:
		points[0], points[1], points[2], points[3], points[4] = dir[0], dir[1], dir[2], dir[3], dir[4] // in rasterx fr is ignored
		isRadial = true
	}
	stops := make([]rasterx.GradStop, len(grad.Stops))
	for i := range grad.Stops {
		stops[i] = rasterx.GradStop(grad.Stops[i])
	}
	return rasterx.Gradient{
		Points:   points,
		Stops:    stops,
		Bounds:   grad.Bounds,
		Matrix:   rasterx.Matrix2D(grad.Matrix),
		Spread:   rasterx.SpreadMethod(grad.Spread),
		Units:    rasterx.GradientUnits(grad.Units),
		IsRadial: isRadial,
	}
}

// resolve gradient color
func setColorFromPattern(color svgicon.Pattern, opacity float64, scanner rasterx.Scanner) {
	switch fillerColor := color.(type) {
	case svgicon.PlainColor:
		opaque := fillerColor.NRGBA
		opaque.A = 0xff
		scanner.SetColor(rasterx.ApplyOpacity(opaque, opacity*float64(fillerColor.A)/0xff))
	case svgicon.Gradient:
		if fillerColor.Units == svgicon.ObjectBoundingBox {
			fRect := scanner.GetPathExtent()
			mnx, mny := float64(fRect.Min.X)/64, float64(fRect.Min.Y)/64
			mxx, mxy := float64(fRect.Max.X)/64, float64(fRect.Max.Y)/64
			fillerColor.Bounds.X, fillerColor.Bounds.Y = mnx, mny
			fillerColor.Bounds.W, fillerColor.Bounds.H = mxx-mnx, mxy-mny
		}
		rasterxGradient := toRasterxGradient(fillerColor)
		scanner.SetColor(rasterxGradient.GetColorFunction(opacity))
	}
}

var (
	joinToJoin = [...]rasterx.JoinMode{
		svgicon.Round:     rasterx.Round,
		svgicon.Bevel:     rasterx.Bevel,
		svgicon.Miter:     rasterx.Miter,
		svgicon.MiterClip: rasterx.MiterClip,
		svgicon.Arc:       rasterx.Arc,
		svgicon.ArcClip:   rasterx.ArcClip,
	}

	capToFunc = [...]rasterx.CapFunc{
		svgicon.NilCap:       nil,
		svgicon.ButtCap:      rasterx.ButtCap,
		svgicon.SquareCap:    rasterx.SquareCap,
		svgicon.RoundCap:     rasterx.RoundCap,
		svgicon.CubicCap:     rasterx.CubicCap,
		svgicon.QuadraticCap: rasterx.QuadraticCap,
	}

	gapToFunc = [...]rasterx.GapFunc{
		svgicon.NilGap:       nil,
		svgicon.FlatGap:      rasterx.FlatGap,
		svgicon.RoundGap:     rasterx.RoundGap,
		svgicon.CubicGap:     rasterx.CubicGap,
		svgicon.QuadraticGap: rasterx.QuadraticGap,
	}
)

func (s stroker) SetStrokeOptions(options svgicon.StrokeOptions) {
	s.SetStroke(
		options.LineWidth, options.Join.MiterLimit, capToFunc[options.Join.LeadLineCap],
		capToFunc[options.Join.TrailLineCap], gapToFunc[options.Join.LineGap],
		joinToJoin[options.Join.LineJoin], options.Dash.Dash, options.Dash.DashOffset,
	)
}

// DrawImage implements svgicon.ImageDriver, by decoding the image data
// and drawing it with a bilinear interpolation.
func (rd *Renderer) DrawImage(im svgicon.SvgImage) {
	_, data, err := im.Data()
	if err != nil {
		rd.logf("skipping image %s: %s", im.Source.ID, err)
		return
	}
	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		rd.logf("skipping image %s: %s", im.Source.ID, err)
		return
	}
	sb := src.Bounds()
	if sb.Empty() || im.Opacity <= 0 {
		return
	}
	// maps the source pixels to the image rectangle, then to the output
	m := im.Transform.
		Translate(im.X, im.Y).
		Scale(im.W/float64(sb.Dx()), im.H/float64(sb.Dy())).
		Translate(-float64(sb.Min.X), -float64(sb.Min.Y))
	s2d := f64.Aff3{m.A, m.C, m.E, m.B, m.D, m.F}
	var opts *draw.Options
	if im.Opacity < 1 {
		opts = &draw.Options{SrcMask: image.NewUniform(color.Alpha{A: uint8(im.Opacity*0xff + 0.5)})}
	}
	draw.BiLinear.Transform(rd.dest, s2d, src, sb, draw.Over, opts)
}

func (rd *Renderer) logf(format string, args ...interface{}) {
	if rd.Logger != nil {
		rd.Logger.Printf(format, args...)
	}
}
