// Implements a PDF backend to render SVG images,
// by wrapping github.com/jung-kurt/gofpdf.
//
// Plain colors may be painted with CMYK inks, resolved by a ColorTable
// and embedded as Separation color spaces, so that PDF viewers and
// RIPs never convert them from RGB.
package svgpdf

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"log"

	// supported formats for embedded images
	_ "image/gif"
	_ "image/jpeg"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/benoitkugler/artprint/colors"
	"github.com/benoitkugler/artprint/svgicon"
	"github.com/jung-kurt/gofpdf"
	"golang.org/x/image/math/fixed"
)

// assert interface conformance
var (
	_ svgicon.Driver      = (*Renderer)(nil)
	_ svgicon.ImageDriver = (*Renderer)(nil)
	_ svgicon.Filler      = (*filler)(nil)
	_ svgicon.Stroker     = (*stroker)(nil)
)

// Ink is a CMYK color, with an optional label (usually the palette name).
type Ink struct {
	Name string
	CMYK colors.CMYK
}

// ColorTable resolves the ink used to paint a plain color.
type ColorTable interface {
	Lookup(c svgicon.PlainColor) Ink
}

// TableFunc adapts a function to the ColorTable interface.
type TableFunc func(c svgicon.PlainColor) Ink

func (f TableFunc) Lookup(c svgicon.PlainColor) Ink { return f(c) }

// ColorantName returns the name of the Separation color space of `c`.
// It only depends on the CMYK value: labels such as White or Black are
// mapped to dedicated channels by some RIPs, and All or None are
// reserved by PDF.
func ColorantName(c colors.CMYK) string {
	return fmt.Sprintf("CMYK %d %d %d %d", c.C, c.M, c.Y, c.K)
}

// Inks registers the spot colors of a PDF document,
// so that each CMYK value is embedded once.
// It must be shared by all the renderers writing to the same document.
type Inks struct {
	pdf   *gofpdf.Fpdf
	names map[colors.CMYK]string
	order []Ink
}

// NewInks returns an empty registry for `pdf`.
func NewInks(pdf *gofpdf.Fpdf) *Inks {
	return &Inks{pdf: pdf, names: make(map[colors.CMYK]string)}
}

// Register adds the ink to the document, if needed,
// and returns the name of the spot color to use (see ColorantName).
// The label of the ink is never written in the color space.
func (in *Inks) Register(ink Ink) string {
	if name, ok := in.names[ink.CMYK]; ok {
		return name
	}
	name := ColorantName(ink.CMYK)
	in.pdf.AddSpotColor(name, ink.CMYK.C, ink.CMYK.M, ink.CMYK.Y, ink.CMYK.K)
	in.names[ink.CMYK] = name
	in.order = append(in.order, ink)
	return name
}

// Registered returns the inks added so far, in registration order,
// with the label of their first registration.
func (in *Inks) Registered() []Ink { return append([]Ink(nil), in.order...) }

// Renderer paints SVG paths on the current page of a PDF document.
// Coordinates sent by the svgicon package are in the document unit,
// with the origin at the top left corner of the page.
type Renderer struct {
	pdf   *gofpdf.Fpdf
	inks  *Inks
	table ColorTable
	// registered images, by href
	images map[string]string

	// Logger reports the elements which can't be rendered.
	// If nil, they are silently skipped.
	Logger *log.Logger
}

// NewRenderer return a renderer which will write to the given `pdf`.
// If `table` is nil, plain colors are written as RGB values, and `inks` is ignored.
// Otherwise, `inks` must not be nil.
func NewRenderer(pdf *gofpdf.Fpdf, inks *Inks, table ColorTable) *Renderer {
	return &Renderer{pdf: pdf, inks: inks, table: table, images: make(map[string]string)}
}

// records the path commands, shared by the filler and the stroker.
// The path is only written on Draw, after the color operators,
// which are not allowed inside a PDF path object.
type pather struct {
	pdf *gofpdf.Fpdf
	ops []func()
}

// implements the filling operation
type filler struct {
	pather
	rd                *Renderer
	useNonZeroWinding bool
	color             svgicon.Pattern
	opacity           float64
}

// implements the stroking operation
type stroker struct {
	pather
	rd      *Renderer
	color   svgicon.Pattern
	opacity float64
}

// SetupDrawers implements svgicon.Driver
func (rd *Renderer) SetupDrawers(willFill, willStroke bool) (svgicon.Filler, svgicon.Stroker) {
	var (
		f svgicon.Filler
		s svgicon.Stroker
	)
	if willFill {
		f = &filler{pather: pather{pdf: rd.pdf}, rd: rd, useNonZeroWinding: true}
	}
	if willStroke {
		s = &stroker{pather: pather{pdf: rd.pdf}, rd: rd}
	}
	return f, s
}

func fixedTof(a fixed.Point26_6) (float64, float64) {
	return float64(a.X) / 64, float64(a.Y) / 64
}

func (p *pather) Clear() { p.ops = p.ops[:0] }

func (p *pather) Start(a fixed.Point26_6) {
	x, y := fixedTof(a)
	p.ops = append(p.ops, func() { p.pdf.MoveTo(x, y) })
}

func (p *pather) Line(b fixed.Point26_6) {
	x, y := fixedTof(b)
	p.ops = append(p.ops, func() { p.pdf.LineTo(x, y) })
}

func (p *pather) QuadBezier(b fixed.Point26_6, c fixed.Point26_6) {
	cx, cy := fixedTof(b)
	x, y := fixedTof(c)
	p.ops = append(p.ops, func() { p.pdf.CurveTo(cx, cy, x, y) })
}

func (p *pather) CubeBezier(b fixed.Point26_6, c fixed.Point26_6, d fixed.Point26_6) {
	cx0, cy0 := fixedTof(b)
	cx1, cy1 := fixedTof(c)
	x, y := fixedTof(d)
	p.ops = append(p.ops, func() { p.pdf.CurveBezierCubicTo(cx0, cy0, cx1, cy1, x, y) })
}

func (p *pather) Stop(closeLoop bool) {
	if closeLoop {
		p.ops = append(p.ops, p.pdf.ClosePath)
	}
}

// flush writes the recorded path and paints it with `style`
func (p *pather) flush(style string) {
	if len(p.ops) == 0 {
		return
	}
	for _, op := range p.ops {
		op()
	}
	p.pdf.DrawPath(style)
}

// plainColor returns the uniform color used to paint `pattern`.
// Gradients are painted with their first stop.
func plainColor(pattern svgicon.Pattern) (svgicon.PlainColor, float64, bool) {
	switch pattern := pattern.(type) {
	case svgicon.PlainColor:
		return pattern, 1, true
	case svgicon.Gradient:
		if len(pattern.Stops) == 0 {
			return svgicon.PlainColor{}, 0, false
		}
		stop := pattern.Stops[0]
		if pc, ok := stop.StopColor.(svgicon.PlainColor); ok {
			return pc, stop.Opacity, true
		}
		c := color.NRGBAModel.Convert(stop.StopColor).(color.NRGBA)
		return svgicon.PlainColor{NRGBA: c}, stop.Opacity, true
	}
	return svgicon.PlainColor{}, 0, false
}

// setColor selects the fill or stroke color, and the opacity
func (rd *Renderer) setColor(pattern svgicon.Pattern, opacity float64, fill bool) {
	pc, stopOpacity, ok := plainColor(pattern)
	if !ok {
		return
	}
	opacity *= stopOpacity * float64(pc.A) / 0xff
	if rd.table == nil {
		if fill {
			rd.pdf.SetFillColor(int(pc.R), int(pc.G), int(pc.B))
		} else {
			rd.pdf.SetDrawColor(int(pc.R), int(pc.G), int(pc.B))
		}
	} else {
		name := rd.inks.Register(rd.table.Lookup(pc))
		if fill {
			rd.pdf.SetFillSpotColor(name, 100)
		} else {
			rd.pdf.SetDrawSpotColor(name, 100)
		}
	}
	rd.pdf.SetAlpha(clampOpacity(opacity), "")
}

func (f *filler) SetColor(color svgicon.Pattern, opacity float64) {
	f.color, f.opacity = color, opacity
}

func (f *filler) Draw() {
	f.rd.setColor(f.color, f.opacity, true)
	styleStr := "F*"
	if f.useNonZeroWinding {
		styleStr = "F"
	}
	f.flush(styleStr)
}

func (f *filler) SetWinding(useNonZeroWinding bool) {
	f.useNonZeroWinding = useNonZeroWinding
}

func (s *stroker) SetColor(color svgicon.Pattern, opacity float64) {
	s.color, s.opacity = color, opacity
}

func (s *stroker) Draw() {
	s.rd.setColor(s.color, s.opacity, false)
	s.flush("D")
}

func (s *stroker) SetStrokeOptions(options svgicon.StrokeOptions) {
	s.pdf.SetLineWidth(float64(options.LineWidth) / 64)
	switch options.Join.TrailLineCap {
	case svgicon.RoundCap, svgicon.CubicCap, svgicon.QuadraticCap:
		s.pdf.SetLineCapStyle("round")
	case svgicon.SquareCap:
		s.pdf.SetLineCapStyle("square")
	default:
		s.pdf.SetLineCapStyle("butt")
	}
	switch options.Join.LineJoin {
	case svgicon.Round, svgicon.Arc, svgicon.ArcClip:
		s.pdf.SetLineJoinStyle("round")
	case svgicon.Bevel:
		s.pdf.SetLineJoinStyle("bevel")
	default:
		s.pdf.SetLineJoinStyle("miter")
	}
	s.pdf.SetDashPattern(options.Dash.Dash, options.Dash.DashOffset)
}

// gofpdf only reads these formats
var nativeImageTypes = map[string]string{
	"png":  "png",
	"jpeg": "jpg",
	"gif":  "gif",
}

// RegisterImage decodes `data` and adds it to the document under `name`.
// The declared media type of an image is not trusted: the format is sniffed,
// and the formats gofpdf does not read are converted to PNG.
// An invalid image is rejected before reaching `pdf`, whose error state
// would otherwise break the whole document.
func RegisterImage(pdf *gofpdf.Fpdf, name string, data []byte) (*gofpdf.ImageInfoType, error) {
	_, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("invalid image: %s", err)
	}
	imageType, ok := nativeImageTypes[format]
	if !ok {
		img, _, err := image.Decode(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("unsupported image: %s", err)
		}
		var buf bytes.Buffer
		if err = png.Encode(&buf, img); err != nil {
			return nil, err
		}
		data, imageType = buf.Bytes(), "png"
	}
	info := pdf.RegisterImageOptionsReader(name, gofpdf.ImageOptions{ImageType: imageType}, bytes.NewReader(data))
	if err = pdf.Error(); err != nil {
		return nil, err
	}
	return info, nil
}

func (rd *Renderer) registerImage(im svgicon.SvgImage) (string, error) {
	if name, ok := rd.images[im.Href]; ok {
		return name, nil
	}
	_, data, err := im.Data()
	if err != nil {
		return "", err
	}
	name := fmt.Sprintf("svgimage%d-%p", len(rd.images), rd)
	if _, err = RegisterImage(rd.pdf, name, data); err != nil {
		return "", err
	}
	rd.images[im.Href] = name
	return name, nil
}

// DrawImage implements svgicon.ImageDriver
func (rd *Renderer) DrawImage(im svgicon.SvgImage) {
	name, err := rd.registerImage(im)
	if err != nil {
		rd.logf("skipping image %s: %s", im.Source.ID, err)
		return
	}
	rd.pdf.SetAlpha(clampOpacity(im.Opacity), "")
	rd.pdf.TransformBegin()
	rd.pdf.Transform(pdfMatrix(rd.pdf, im.Transform))
	rd.pdf.ImageOptions(name, im.X, im.Y, im.W, im.H, false, gofpdf.ImageOptions{AllowNegativePosition: true}, 0, "")
	rd.pdf.TransformEnd()
	rd.pdf.SetAlpha(1, "")
}

func clampOpacity(o float64) float64 {
	if o < 0 {
		return 0
	} else if o > 1 {
		return 1
	}
	return o
}

// pdfMatrix expresses `m`, acting on top-left origin document units,
// in the PDF space (bottom-left origin, points).
func pdfMatrix(pdf *gofpdf.Fpdf, m svgicon.Matrix2D) gofpdf.TransformMatrix {
	k := pdf.GetConversionRatio()
	_, h := pdf.GetPageSize()
	return gofpdf.TransformMatrix{
		A: m.A,
		B: -m.B,
		C: -m.C,
		D: m.D,
		E: m.C*k*h + k*m.E,
		F: -m.D*k*h - k*m.F + k*h,
	}
}

func (rd *Renderer) logf(format string, args ...interface{}) {
	if rd.Logger != nil {
		rd.Logger.Printf(format, args...)
	}
}

// RenderSVGIconToPDF writes a one page PDF document to `out`, whose page
// has the size of the icon view box (at 96 dpi). `table` may be nil.
func RenderSVGIconToPDF(icon io.Reader, out io.Writer, table ColorTable) error {
	parsedIcon, err := svgicon.ReadIconStream(icon, svgicon.IgnoreErrorMode)
	if err != nil {
		return err
	}
	const pxToPt = 72. / 96.
	w, h := parsedIcon.ViewBox.W*pxToPt, parsedIcon.ViewBox.H*pxToPt
	if w <= 0 || h <= 0 {
		return fmt.Errorf("invalid icon size %gx%g", w, h)
	}
	pdf := gofpdf.NewCustom(&gofpdf.InitType{UnitStr: "pt", Size: gofpdf.SizeType{Wd: w, Ht: h}})
	pdf.SetMargins(0, 0, 0)
	pdf.SetAutoPageBreak(false, 0)
	pdf.AddPage()
	parsedIcon.SetTarget(0, 0, w, h)
	parsedIcon.Draw(NewRenderer(pdf, NewInks(pdf), table), 1)
	return pdf.Output(out)
}
