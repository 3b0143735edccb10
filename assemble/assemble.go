// Places artwork on a template page and writes the press-ready PDF document.
//
// Each plain color of the vector artwork is painted with a Separation color
// space whose alternate values are the approved CMYK ones: the document never
// relies on a RGB to CMYK conversion by the viewer or the RIP.
// The CMYK values come from a substitution table built from the element
// mappings; colors missing from the table are converted by the engine
// and reported as fallback swatches.
package assemble

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"log"
	"math"
	"path/filepath"
	"strings"
	"time"

	// raster artwork formats
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/benoitkugler/artprint/bounds"
	"github.com/benoitkugler/artprint/colors"
	"github.com/benoitkugler/artprint/svgicon"
	"github.com/benoitkugler/artprint/svgpdf"
	"github.com/jung-kurt/gofpdf"
)

// Kind distinguishes vector and raster artwork.
type Kind string

const (
	Vector Kind = "svg"
	Raster Kind = "raster"
)

var rasterTypes = map[string]bool{
	"image/png": true, "image/jpeg": true, "image/gif": true, "image/bmp": true,
	"image/x-ms-bmp": true, "image/tiff": true, "image/webp": true,
}

var extensions = map[string]Kind{
	".svg": Vector,
	".png": Raster, ".jpg": Raster, ".jpeg": Raster, ".gif": Raster,
	".bmp": Raster, ".tif": Raster, ".tiff": Raster, ".webp": Raster,
}

// KindOf uses the MIME type, then the file extension.
// It returns an empty Kind for documents which are neither SVG
// nor a known raster format.
func KindOf(mimeType, fileName string) Kind {
	mt := strings.ToLower(strings.TrimSpace(mimeType))
	if i := strings.IndexByte(mt, ';'); i >= 0 {
		mt = strings.TrimSpace(mt[:i])
	}
	switch {
	case mt == "image/svg+xml":
		return Vector
	case rasterTypes[mt]:
		return Raster
	case mt != "" && mt != "application/octet-stream":
		return ""
	}
	return extensions[strings.ToLower(filepath.Ext(fileName))]
}

// Grid repeats an element on the page.
type Grid struct {
	Rows      int     `json:"rows"`
	Cols      int     `json:"cols"`
	SpacingPx float64 `json:"spacingPx"`
}

// Element is one artwork placed on a page.
type Element struct {
	Name     string `json:"name"`
	Document []byte `json:"-"`
	Kind     Kind   `json:"kind"`

	// Placement on the template canvas, in pixels.
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
	// Rotation in degrees, clockwise, around the center of the placement.
	Rotation float64 `json:"rotation,omitempty"`

	// Bounds is the content of the document shown in the placement,
	// in user units (in pixels for raster images).
	// An empty box uses the whole view box (or image).
	Bounds   bounds.Box       `json:"bounds"`
	Mappings []colors.Mapping `json:"mappings,omitempty"`

	// Opacity in [0,1], where 0 means opaque.
	Opacity float64 `json:"opacity,omitempty"`
	// GarmentColor is painted behind the element on the proof page.
	GarmentColor string `json:"garmentColor,omitempty"`
	Grid         *Grid  `json:"grid,omitempty"`
}

// Page is a template filled with elements.
type Page struct {
	Template Template  `json:"template"`
	Elements []Element `json:"elements"`
}

// Output is the assembled document.
type Output struct {
	PDF      []byte
	Swatches []Swatch
}

// ErrAssembly is matched by *AssemblyError.
var ErrAssembly = errors.New("assembly failed")

// AssemblyError is fatal to the page. Element is empty for
// errors not related to one element.
type AssemblyError struct {
	Element string
	Err     error
}

func (e *AssemblyError) Error() string {
	if e.Element == "" {
		return fmt.Sprintf("assembling page: %s", e.Err)
	}
	return fmt.Sprintf("assembling element %q: %s", e.Element, e.Err)
}

func (e *AssemblyError) Unwrap() []error { return []error{ErrAssembly, e.Err} }

// Assembler writes pages. Its fields must not be modified during Assemble.
type Assembler struct {
	Engine colors.Engine
	// Palette resolves the garment colors of the proof page. It may be nil.
	Palette *colors.Palette
	// Proof adds a second page showing the artwork on the garment
	// colors, with the color labels.
	Proof bool
	// Date is written in the document information; time.Now() if zero.
	Date time.Time

	Logger *log.Logger
}

func (a *Assembler) logger() *log.Logger {
	if a.Logger == nil {
		return log.Default()
	}
	return a.Logger
}

// placement is an area of the page, in millimeters
type placement struct {
	x, y, w, h float64
}

// prepared is an element ready to be written
type prepared struct {
	index int
	el    Element
	err   error

	icon          *svgicon.SvgIcon // for vector artwork
	imgW, imgH    int              // for raster artwork
	content       svgicon.Bounds   // source area shown in each placement
	places        []placement
	rotation      float64
	opacity       float64
	registeredImg string
}

// pageTolerance absorbs rounding in the placements sent by the canvas
const pageTolerance = 0.5

// placements checks that every copy of the element fits in the page
func placements(el Element, tmpl Template) ([]placement, error) {
	if !(el.Width > 0 && el.Height > 0) {
		return nil, fmt.Errorf("invalid size %gx%g", el.Width, el.Height)
	}
	rows, cols, spacing := 1, 1, 0.
	if g := el.Grid; g != nil {
		if g.Rows < 1 || g.Cols < 1 || g.SpacingPx < 0 {
			return nil, fmt.Errorf("invalid grid %dx%d (spacing %g)", g.Rows, g.Cols, g.SpacingPx)
		}
		rows, cols, spacing = g.Rows, g.Cols, g.SpacingPx
	}
	out := make([]placement, 0, rows*cols)
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			x := el.X + float64(c)*(el.Width+spacing)
			y := el.Y + float64(r)*(el.Height+spacing)
			if x < -pageTolerance || y < -pageTolerance ||
				x+el.Width > tmpl.WidthPx+pageTolerance || y+el.Height > tmpl.HeightPx+pageTolerance {
				return nil, fmt.Errorf("copy (%d, %d) at [%g %g %g %g] exceeds the page capacity %gx%g",
					r+1, c+1, x, y, el.Width, el.Height, tmpl.WidthPx, tmpl.HeightPx)
			}
			x0, y0 := tmpl.toMM(x, y)
			x1, y1 := tmpl.toMM(x+el.Width, y+el.Height)
			out = append(out, placement{x: x0, y: y0, w: x1 - x0, h: y1 - y0})
		}
	}
	return out, nil
}

// elements which never paint anything
var nonPainting = map[string]bool{
	"style": true, "script": true, "view": true, "cursor": true, "filter": true,
	"animate": true, "animateMotion": true, "animateTransform": true, "set": true,
}

// lostElements returns the unsupported tags whose content would
// be missing from the print
func lostElements(unsupported []string) []string {
	var out []string
	for _, tag := range unsupported {
		if !nonPainting[tag] {
			out = append(out, "<"+tag+">")
		}
	}
	return out
}

func asBounds(b bounds.Box) svgicon.Bounds {
	return svgicon.Bounds{X: b.XMin, Y: b.YMin, W: b.Width, H: b.Height}
}

// prepare parses the element. It does not touch the PDF document.
func prepare(index int, el Element, tmpl Template) prepared {
	out := prepared{index: index, el: el, rotation: el.Rotation, opacity: el.Opacity}
	if out.opacity == 0 {
		out.opacity = 1
	}
	if out.opacity < 0 || out.opacity > 1 || math.IsNaN(out.opacity) {
		out.err = fmt.Errorf("invalid opacity %g", el.Opacity)
		return out
	}
	out.places, out.err = placements(el, tmpl)
	if out.err != nil {
		return out
	}
	if el.Bounds.Width < 0 || el.Bounds.Height < 0 {
		out.err = fmt.Errorf("invalid bounds %s", el.Bounds)
		return out
	}

	switch el.Kind {
	case Vector:
		out.icon, out.err = svgicon.ReadIconBytes(el.Document, svgicon.IgnoreErrorMode)
		if out.err != nil {
			return out
		}
		if lost := lostElements(out.icon.Unsupported); len(lost) != 0 {
			out.err = fmt.Errorf("unsupported elements %s (convert text to outlines)", strings.Join(lost, ", "))
			return out
		}
		out.content = out.icon.ViewBox
	case Raster:
		cfg, _, err := image.DecodeConfig(bytes.NewReader(el.Document))
		if err != nil {
			out.err = fmt.Errorf("invalid image: %s", err)
			return out
		}
		out.imgW, out.imgH = cfg.Width, cfg.Height
		out.content = svgicon.Bounds{W: float64(cfg.Width), H: float64(cfg.Height)}
	default:
		out.err = fmt.Errorf("unknown kind %q", el.Kind)
		return out
	}
	if !el.Bounds.IsEmpty() {
		out.content = asBounds(el.Bounds)
	}
	if !(out.content.W > 0 && out.content.H > 0) {
		out.err = fmt.Errorf("empty content area %v", out.content)
	}
	return out
}

// Assemble writes the page, and the proof page if enabled.
// The elements are parsed by a producer goroutine and sent, in order,
// to the caller goroutine which is the only one writing to the document.
func (a *Assembler) Assemble(ctx context.Context, page Page) (Output, error) {
	tmpl := page.Template
	if err := tmpl.Validate(); err != nil {
		return Output{}, &AssemblyError{Err: err}
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	queue := make(chan prepared)
	go func() {
		defer close(queue)
		for i, el := range page.Elements {
			select {
			case queue <- prepare(i, el, tmpl):
			case <-ctx.Done():
				return
			}
		}
	}()

	w := a.newWriter(tmpl)
	var done []prepared
	for p := range queue {
		if p.err != nil {
			return Output{}, &AssemblyError{Element: p.el.Name, Err: p.err}
		}
		if err := w.drawElement(&p); err != nil {
			return Output{}, &AssemblyError{Element: p.el.Name, Err: err}
		}
		done = append(done, p)
	}
	if err := ctx.Err(); err != nil {
		return Output{}, err
	}

	if a.Proof {
		w.proofPage(done)
	}
	var buf bytes.Buffer
	if err := w.pdf.Output(&buf); err != nil {
		return Output{}, &AssemblyError{Err: err}
	}
	return Output{PDF: buf.Bytes(), Swatches: w.swatches.list}, nil
}

// writer owns the PDF document of one page
type writer struct {
	pdf      *gofpdf.Fpdf
	tmpl     Template
	inks     *svgpdf.Inks
	swatches swatches
	engine   colors.Engine
	palette  *colors.Palette
	logger   *log.Logger

	renderers map[int]*svgpdf.Renderer
	labels    []string
}

func (a *Assembler) newWriter(tmpl Template) *writer {
	pdf := gofpdf.NewCustom(&gofpdf.InitType{
		UnitStr: "mm",
		Size:    gofpdf.SizeType{Wd: tmpl.WidthMM, Ht: tmpl.HeightMM},
	})
	pdf.SetMargins(0, 0, 0)
	pdf.SetAutoPageBreak(false, 0)
	pdf.SetCreator("artprint", false)
	pdf.SetTitle(tmpl.Name, true)
	date := a.Date
	if date.IsZero() {
		date = time.Now()
	}
	pdf.SetCreationDate(date)
	pdf.SetModificationDate(date)
	pdf.AddPage()
	return &writer{
		pdf:       pdf,
		tmpl:      tmpl,
		inks:      svgpdf.NewInks(pdf),
		engine:    a.Engine,
		palette:   a.Palette,
		logger:    a.logger(),
		renderers: make(map[int]*svgpdf.Renderer),
	}
}

// withPlacement clips to `pl`, rotated around its center, while calling `fn`
func (w *writer) withPlacement(pl placement, rotation float64, fn func()) {
	w.pdf.TransformBegin()
	if rotation != 0 {
		w.pdf.TransformRotate(-rotation, pl.x+pl.w/2, pl.y+pl.h/2)
	}
	w.pdf.ClipRect(pl.x, pl.y, pl.w, pl.h, false)
	fn()
	w.pdf.ClipEnd()
	w.pdf.TransformEnd()
}

func (w *writer) renderer(p *prepared) *svgpdf.Renderer {
	rd, ok := w.renderers[p.index]
	if !ok {
		table := newSubstitution(p.el.Name, p.el.Mappings, w.engine, w.inks, &w.swatches)
		rd = svgpdf.NewRenderer(w.pdf, w.inks, table)
		rd.Logger = w.logger
		w.renderers[p.index] = rd
	}
	return rd
}

// paint draws the artwork of `p` in `pl`, without clipping
func (w *writer) paint(p *prepared, pl placement) {
	switch p.el.Kind {
	case Vector:
		pixels := w.tmpl.Pixels()
		p.icon.SetTargetFrom(p.content, pl.x, pl.y, pl.w, pl.h)
		p.icon.DrawFiltered(w.renderer(p), p.opacity, func(src svgicon.Element, m svgicon.Matrix2D) bool {
			return !bounds.IsBackground(src, m, pixels)
		})
	case Raster:
		sx, sy := pl.w/p.content.W, pl.h/p.content.H
		w.pdf.SetAlpha(p.opacity, "")
		w.pdf.ImageOptions(p.registeredImg,
			pl.x-p.content.X*sx, pl.y-p.content.Y*sy, float64(p.imgW)*sx, float64(p.imgH)*sy,
			false, gofpdf.ImageOptions{AllowNegativePosition: true}, 0, "")
	}
	w.pdf.SetAlpha(1, "")
}

func (w *writer) drawElement(p *prepared) error {
	if p.el.Kind == Raster {
		name := fmt.Sprintf("artwork%d", p.index)
		if _, err := svgpdf.RegisterImage(w.pdf, name, p.el.Document); err != nil {
			return err
		}
		p.registeredImg = name
	}
	for _, pl := range p.places {
		w.withPlacement(pl, p.rotation, func() { w.paint(p, pl) })
	}
	return w.pdf.Error()
}

// garmentInk registers the spot color of a garment, preferring
// the palette color. An empty or transparent garment has no ink.
func (w *writer) garmentInk(el Element) (string, bool) {
	token := strings.TrimSpace(el.GarmentColor)
	if token == "" || strings.EqualFold(token, "transparent") || strings.EqualFold(token, "none") {
		return "", false
	}
	rgb, err := colors.ParseToken(token)
	if err != nil {
		w.logger.Printf("element %q: invalid garment color %q: %s", el.Name, token, err)
		return "", false
	}
	ink := svgpdf.Ink{Name: rgb.Hex(), CMYK: w.engine.ToCMYK(rgb)}
	if w.palette != nil {
		if entry, ok := w.palette.Match(rgb); ok {
			ink = svgpdf.Ink{Name: entry.Name, CMYK: entry.Canonical()}
		}
	}
	label := ink.Name + " " + ink.CMYK.String()
	colorant := w.inks.Register(ink)
	w.swatches.add(Swatch{
		Ink:     colorant,
		Name:    ink.Name,
		Element: el.Name,
		Token:   colors.Token(token),
		RGB:     rgb,
		CMYK:    ink.CMYK,
		Source:  SwatchGarment,
	})
	w.addLabel(label)
	return colorant, true
}

func (w *writer) addLabel(label string) {
	for _, l := range w.labels {
		if l == label {
			return
		}
	}
	w.labels = append(w.labels, label)
}

// label layout, in points
const (
	labelFontSize = 10
	labelLeft     = 50
	labelBottom   = 20
	labelLeading  = 15
)

// proofPage shows the artwork on the garment colors,
// and lists these colors at the bottom of the page
func (w *writer) proofPage(elements []prepared) {
	w.pdf.AddPage()
	for i := range elements {
		p := &elements[i]
		ink, hasGarment := w.garmentInk(p.el)
		for _, pl := range p.places {
			w.withPlacement(pl, p.rotation, func() {
				if hasGarment {
					w.pdf.SetFillSpotColor(ink, 100)
					w.pdf.Rect(pl.x, pl.y, pl.w, pl.h, "F")
				}
				w.paint(p, pl)
			})
		}
	}
	if len(w.labels) == 0 {
		return
	}

	black := w.inks.Register(svgpdf.Ink{Name: "Black", CMYK: colors.CMYK{K: 100}})
	// gofpdf paints text with the fill color
	w.pdf.SetFillSpotColor(black, 100)
	w.pdf.SetTextSpotColor(black, 100)
	w.pdf.SetFont("Helvetica", "", labelFontSize)
	tr := w.pdf.UnicodeTranslatorFromDescriptor("")
	ptToMM := 1 / w.pdf.GetConversionRatio()
	for i, label := range w.labels {
		y := w.tmpl.HeightMM - (labelBottom+float64(i)*labelLeading)*ptToMM
		w.pdf.Text(labelLeft*ptToMM, y, tr(label))
	}
}
