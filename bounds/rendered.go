package bounds

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/benoitkugler/artprint/svgicon"
	"github.com/benoitkugler/artprint/svgraster"
)

// Rasterizer renders the view box of a document on a width x height image.
// The returned image may have another size, with the same aspect ratio.
type Rasterizer interface {
	Name() string
	Rasterize(ctx context.Context, in *Input, width, height int) (image.Image, error)
}

// rasterizers which do not paint background shapes implement backgroundFree
type backgroundFree interface {
	skipsBackground() bool
}

// DefaultResolution is the size, in pixels, of the longest side
// of the renderings measured by RenderedStrategy.
const DefaultResolution = 1024

// alphaThreshold ignores the faint antialiasing of the edges
const alphaThreshold = 0x10

// RenderedStrategy measures the opaque pixels of a rendering.
// The rasterizers are tried in order, under the pool, until
// one of them produces a non empty image.
type RenderedStrategy struct {
	Pool        *Pool
	Rasterizers []Rasterizer
	// Resolution of the longest side, DefaultResolution if zero.
	Resolution int
}

func (*RenderedStrategy) Method() Method { return Rendered }

func (st *RenderedStrategy) Attempt(ctx context.Context, in *Input) (Box, error) {
	icon, err := in.Icon()
	if err != nil {
		return Box{}, fmt.Errorf("invalid document: %w", err)
	}
	vb := icon.ViewBox
	if !(vb.W > 0 && vb.H > 0) {
		return Box{}, fmt.Errorf("invalid view box %v", vb)
	}
	res := st.Resolution
	if res <= 0 {
		res = DefaultResolution
	}
	scale := float64(res) / math.Max(vb.W, vb.H)
	width, height := int(math.Ceil(vb.W*scale)), int(math.Ceil(vb.H*scale))

	pool := st.Pool
	if pool == nil {
		pool = NewPool(1, DefaultTimeout)
	}
	var errs []error
	for _, rasterizer := range st.Rasterizers {
		var img image.Image // not shared with a timed out job
		err := pool.Run(ctx, func(ctx context.Context) error {
			var err error
			img, err = rasterizer.Rasterize(ctx, in, width, height)
			return err
		})
		if err != nil {
			var toolErr *ExternalToolFailure
			if !errors.As(err, &toolErr) {
				err = &ExternalToolFailure{Tool: rasterizer.Name(), Err: err}
			}
			errs = append(errs, err)
			continue
		}
		var backgrounds []color.NRGBA
		if bf, ok := rasterizer.(backgroundFree); !ok || !bf.skipsBackground() {
			backgrounds = backgroundColors(icon, in.Template)
		}
		px, ok := opaqueExtent(img, backgrounds)
		if !ok {
			errs = append(errs, fmt.Errorf("%s: %w", rasterizer.Name(), ErrDegenerate))
			continue
		}
		b := img.Bounds()
		sx, sy := float64(b.Dx())/vb.W, float64(b.Dy())/vb.H
		return Box{
			XMin:   vb.X + float64(px.Min.X-b.Min.X)/sx,
			YMin:   vb.Y + float64(px.Min.Y-b.Min.Y)/sy,
			Width:  float64(px.Dx()) / sx,
			Height: float64(px.Dy()) / sy,
		}, nil
	}
	if len(errs) == 0 {
		return Box{}, errors.New("no rasterizer configured")
	}
	return Box{}, errors.Join(errs...)
}

// backgroundColors returns the fill colors of the background shapes
func backgroundColors(icon *svgicon.SvgIcon, tmpl Template) []color.NRGBA {
	var out []color.NRGBA
	for _, path := range icon.SVGPaths {
		if !IsBackground(path.Source, path.Style.Transform(), tmpl) {
			continue
		}
		if pc, ok := path.Style.FillerColor.(svgicon.PlainColor); ok {
			out = append(out, pc.NRGBA)
		}
	}
	return out
}

// opaqueExtent returns the smallest rectangle enclosing the pixels
// which are opaque enough, and differ from the background colors.
func opaqueExtent(img image.Image, backgrounds []color.NRGBA) (image.Rectangle, bool) {
	b := img.Bounds()
	out := image.Rectangle{Min: b.Max, Max: b.Min}
	found := false
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			c := color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
			if c.A < alphaThreshold || isBackgroundPixel(c, backgrounds) {
				continue
			}
			found = true
			if x < out.Min.X {
				out.Min.X = x
			}
			if y < out.Min.Y {
				out.Min.Y = y
			}
			if x+1 > out.Max.X {
				out.Max.X = x + 1
			}
			if y+1 > out.Max.Y {
				out.Max.Y = y + 1
			}
		}
	}
	return out, found
}

// MeasureImage returns the extent of the opaque pixels of a raster
// artwork, in image pixels. Transparent margins are trimmed.
func MeasureImage(img image.Image) (Box, error) {
	px, ok := opaqueExtent(img, nil)
	if !ok {
		return Box{}, ErrDegenerate
	}
	b := img.Bounds()
	return Box{
		XMin:   float64(px.Min.X - b.Min.X),
		YMin:   float64(px.Min.Y - b.Min.Y),
		Width:  float64(px.Dx()),
		Height: float64(px.Dy()),
	}, nil
}

func isBackgroundPixel(c color.NRGBA, backgrounds []color.NRGBA) bool {
	const tol = 2
	near := func(a, b uint8) bool { return int(a)-int(b) <= tol && int(b)-int(a) <= tol }
	for _, bg := range backgrounds {
		if near(c.R, bg.R) && near(c.G, bg.G) && near(c.B, bg.B) {
			return true
		}
	}
	return false
}

// InProcess renders with the svgraster package, without the background
// shapes. It refuses documents using elements it can't paint.
type InProcess struct{}

func (InProcess) Name() string { return "svgraster" }

func (InProcess) skipsBackground() bool { return true }

func (InProcess) Rasterize(_ context.Context, in *Input, width, height int) (image.Image, error) {
	// drawing mutates the icon: a private copy is parsed, so that
	// a timed out rendering never races with the shared one
	icon, err := svgicon.ReadIconBytes(in.Data, svgicon.IgnoreErrorMode)
	if err != nil {
		return nil, err
	}
	if len(icon.Unsupported) != 0 {
		return nil, fmt.Errorf("unsupported elements: %s", strings.Join(icon.Unsupported, ", "))
	}
	return svgraster.RasterIcon(icon, &svgraster.Options{
		Width:  width,
		Height: height,
		Keep:   func(src svgicon.Element, m svgicon.Matrix2D) bool { return !IsBackground(src, m, in.Template) },
	}), nil
}

// Command runs an external program writing a PNG file.
// The arguments may use the placeholders {input}, {output}, {width} and {height}.
type Command struct {
	Label string
	Path  string
	Args  []string
}

// RSVGConvert returns the command line of librsvg's converter.
// `path` may be empty to look the program up in the PATH.
func RSVGConvert(path string) Command {
	if path == "" {
		path = "rsvg-convert"
	}
	return Command{
		Label: "rsvg-convert",
		Path:  path,
		Args:  []string{"--width", "{width}", "--height", "{height}", "--format", "png", "--output", "{output}", "{input}"},
	}
}

// Inkscape returns the command line of Inkscape (version 1.0 or later).
func Inkscape(path string) Command {
	if path == "" {
		path = "inkscape"
	}
	return Command{
		Label: "inkscape",
		Path:  path,
		Args:  []string{"--export-type=png", "--export-filename={output}", "--export-width={width}", "--export-height={height}", "{input}"},
	}
}

func (c Command) Name() string {
	if c.Label != "" {
		return c.Label
	}
	return filepath.Base(c.Path)
}

func (c Command) Rasterize(ctx context.Context, in *Input, width, height int) (image.Image, error) {
	out, err := c.Exec(ctx, in.Data, ".svg", ".png", "{width}", strconv.Itoa(width), "{height}", strconv.Itoa(height))
	if err != nil {
		return nil, err
	}
	img, err := png.Decode(bytes.NewReader(out))
	if err != nil {
		return nil, &ExternalToolFailure{Tool: c.Name(), Err: fmt.Errorf("invalid output: %w", err)}
	}
	return img, nil
}

// Exec writes `data` in the {input} file, runs the program and returns
// the content of the {output} file. The files are named with the given
// extensions, which some programs use to select the formats.
// `placeholders` are additional (placeholder, value) pairs.
// Failures are returned as *ExternalToolFailure.
func (c Command) Exec(ctx context.Context, data []byte, inputExt, outputExt string, placeholders ...string) ([]byte, error) {
	dir, err := os.MkdirTemp("", "artprint")
	if err != nil {
		return nil, &ExternalToolFailure{Tool: c.Name(), Err: err}
	}
	defer os.RemoveAll(dir)

	input, output := filepath.Join(dir, "input"+inputExt), filepath.Join(dir, "output"+outputExt)
	if err = os.WriteFile(input, data, 0o600); err != nil {
		return nil, &ExternalToolFailure{Tool: c.Name(), Err: err}
	}
	r := strings.NewReplacer(append([]string{"{input}", input, "{output}", output}, placeholders...)...)
	args := make([]string, len(c.Args))
	for i, a := range c.Args {
		args[i] = r.Replace(a)
	}

	cmd := exec.CommandContext(ctx, c.Path, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err = cmd.Run(); err != nil {
		if ctx.Err() != nil {
			err = ctx.Err()
		}
		return nil, &ExternalToolFailure{Tool: c.Name(), Err: err, Stderr: stderr.String()}
	}
	out, err := os.ReadFile(output)
	if err != nil {
		return nil, &ExternalToolFailure{Tool: c.Name(), Err: err, Stderr: stderr.String()}
	}
	return out, nil
}
