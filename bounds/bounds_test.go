package bounds

import (
	"context"
	"errors"
	"image"
	"image/color"
	"image/draw"
	"io"
	"log"
	"math"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/benoitkugler/artprint/svgicon"
)

var quiet = log.New(io.Discard, "", 0)

var tmpl = Template{WidthPx: 100, HeightPx: 50}

func wrap(content string) []byte {
	return []byte(`<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 100 50">` + content + `</svg>`)
}

func assertBox(t *testing.T, got, exp Box, tol float64) {
	t.Helper()
	if math.Abs(got.XMin-exp.XMin) > tol || math.Abs(got.YMin-exp.YMin) > tol ||
		math.Abs(got.Width-exp.Width) > tol || math.Abs(got.Height-exp.Height) > tol {
		t.Fatalf("expected %s, got %s", exp, got)
	}
}

type rasterFunc func(ctx context.Context, width, height int) (image.Image, error)

func (rasterFunc) Name() string { return "fake" }

func (f rasterFunc) Rasterize(ctx context.Context, _ *Input, width, height int) (image.Image, error) {
	return f(ctx, width, height)
}

// paints a red block on a white page
func blockRasterizer(block image.Rectangle) rasterFunc {
	return func(_ context.Context, width, height int) (image.Image, error) {
		img := image.NewRGBA(image.Rect(0, 0, width, height))
		draw.Draw(img, img.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
		draw.Draw(img, block, image.NewUniform(color.RGBA{R: 0xff, A: 0xff}), image.Point{}, draw.Src)
		return img, nil
	}
}

func TestPxToMM(t *testing.T) {
	if got := PxToMM(96); math.Abs(got-25.4) > 1e-12 {
		t.Fatalf("unexpected conversion %g", got)
	}
	b := Box{XMin: 96, Width: 192}.ToMM()
	if math.Abs(b.XMin-25.4) > 1e-12 || math.Abs(b.Width-50.8) > 1e-12 {
		t.Fatalf("unexpected conversion %s", b)
	}
}

func TestIsBackground(t *testing.T) {
	rect := func(x, y, w, h float64) svgicon.Element {
		return svgicon.Element{Tag: "rect", Rect: &svgicon.Bounds{X: x, Y: y, W: w, H: h}}
	}
	for _, test := range []struct {
		src      svgicon.Element
		m        svgicon.Matrix2D
		expected bool
	}{
		{rect(0, 0, 100, 50), svgicon.Identity, true},
		{rect(0, 0, 99, 50), svgicon.Identity, false},
		{rect(0, 0, 100, 49), svgicon.Identity, false},
		{rect(1, 0, 100, 50), svgicon.Identity, false},
		{rect(10, 10, 100, 50), svgicon.Identity.Translate(-10, -10), true},
		{rect(0, 0, 50, 25), svgicon.Identity.Scale(2, 2), true},
		{rect(0, 0, 100, 50), svgicon.Identity.Rotate(0.1), false},
		{svgicon.Element{Tag: "path"}, svgicon.Identity, false},
		{svgicon.Element{Tag: "path", Rect: &svgicon.Bounds{W: 100, H: 50}}, svgicon.Identity, true},
		{svgicon.Element{Tag: "polygon", Rect: &svgicon.Bounds{W: 100, H: 49}}, svgicon.Identity, false},
		{svgicon.Element{Tag: "rect"}, svgicon.Identity, false},
	} {
		if got := IsBackground(test.src, test.m, tmpl); got != test.expected {
			t.Errorf("IsBackground(%v, %v): expected %v", test.src.Rect, test.m, test.expected)
		}
	}
}

func TestGeometric(t *testing.T) {
	an := NewAnalyzer(Options{Logger: quiet})
	ctx := context.Background()

	// full size background is ignored
	res := an.Analyze(ctx, wrap(`<rect width="100" height="50" fill="white"/><circle cx="50" cy="25" r="5"/>`), tmpl)
	if !res.Success || res.Method != Geometric {
		t.Fatalf("unexpected result %+v", res)
	}
	assertBox(t, res.Box, Box{45, 20, 10, 10}, 0.05)

	// one pixel short: not a background
	res = an.Analyze(ctx, wrap(`<rect width="99" height="50" fill="white"/><circle cx="50" cy="25" r="5"/>`), tmpl)
	assertBox(t, res.Box, Box{0, 0, 99, 50}, 1e-9)

	// rectangular paths and polygons are backgrounds too
	for _, background := range []string{
		`<path d="M0 0 H100 V50 H0 Z" fill="white"/>`,
		`<polygon points="0,0 100,0 100,50 0,50" fill="white"/>`,
	} {
		res = an.Analyze(ctx, wrap(background+`<circle cx="50" cy="25" r="5"/>`), tmpl)
		assertBox(t, res.Box, Box{45, 20, 10, 10}, 0.05)
	}
	res = an.Analyze(ctx, wrap(`<path d="M0 0 H100 V49 H0 Z" fill="white"/><circle cx="50" cy="25" r="5"/>`), tmpl)
	assertBox(t, res.Box, Box{0, 0, 100, 50}, 1e-9)
	res = an.Analyze(ctx, wrap(`<polygon points="0,0 99,0 99,50 0,50" fill="white"/><circle cx="50" cy="25" r="5"/>`), tmpl)
	assertBox(t, res.Box, Box{0, 0, 99, 50}, 1e-9)

	// stroke width is included, on every side
	res = an.Analyze(ctx, wrap(`<line x1="10" y1="10" x2="30" y2="10" stroke="black" stroke-width="4"/>`), tmpl)
	assertBox(t, res.Box, Box{8, 8, 24, 4}, 1e-6)
}

func TestEmptyDocument(t *testing.T) {
	an := NewAnalyzer(Options{Logger: quiet})
	for _, doc := range [][]byte{nil, []byte("  \n"), wrap(""), wrap(`<rect width="100" height="50" fill="white"/>`)} {
		res := an.Analyze(context.Background(), doc, tmpl)
		if !res.Success || res.Method != Default || res.Err != nil {
			t.Fatalf("unexpected result for %q: %+v", doc, res)
		}
		assertBox(t, res.Box, Box{25, 12.5, 50, 25}, 0)
	}
}

func TestUnavailable(t *testing.T) {
	an := NewAnalyzer(Options{Logger: quiet})
	res := an.Analyze(context.Background(), wrap(""), Template{})
	if res.Success || res.Method != Default || !errors.Is(res.Err, ErrBoundsUnavailable) {
		t.Fatalf("unexpected result %+v", res)
	}
	if res.Box.Width < 0 || res.Box.Height < 0 {
		t.Fatal("negative size")
	}
	if len(res.Attempts) != 3 {
		t.Fatalf("expected 3 attempts, got %v", res.Attempts)
	}
}

func TestDefaultFraction(t *testing.T) {
	box, err := DefaultStrategy{Fraction: 0.8}.Box(Template{WidthPx: 1000, HeightPx: 500})
	if err != nil {
		t.Fatal(err)
	}
	assertBox(t, box, Box{100, 50, 800, 400}, 1e-9)
}

func TestRenderedInProcess(t *testing.T) {
	st := &RenderedStrategy{Rasterizers: []Rasterizer{InProcess{}}, Resolution: 100}
	in := NewInput(wrap(`<rect width="100" height="50" fill="blue"/><rect x="10" y="10" width="20" height="20" fill="blue"/>`), tmpl)
	box, err := st.Attempt(context.Background(), in)
	if err != nil {
		t.Fatal(err)
	}
	assertBox(t, box, Box{10, 10, 20, 20}, 1)

	// at a higher resolution, the box is mapped back to user units
	st.Resolution = 400
	box, err = st.Attempt(context.Background(), NewInput(in.Data, tmpl))
	if err != nil {
		t.Fatal(err)
	}
	assertBox(t, box, Box{10, 10, 20, 20}, 0.5)
}

func TestRenderedFallback(t *testing.T) {
	// text is not supported by the geometric strategy nor by svgraster
	doc := wrap(`<rect width="100" height="50" fill="#ffffff"/><text x="10" y="10">Hello</text>`)
	failing := rasterFunc(func(context.Context, int, int) (image.Image, error) { return nil, errors.New("crash") })
	an := NewAnalyzer(Options{
		Logger:      quiet,
		Rasterizers: []Rasterizer{InProcess{}, failing, blockRasterizer(image.Rect(10, 5, 20, 15))},
	})
	an.Strategies[1].(*RenderedStrategy).Resolution = 100
	res := an.Analyze(context.Background(), doc, tmpl)
	if !res.Success || res.Method != Rendered {
		t.Fatalf("unexpected result %+v", res)
	}
	// the white background is not content
	assertBox(t, res.Box, Box{10, 5, 10, 10}, 1e-9)
	if len(res.Attempts) != 1 || res.Attempts[0].Method != Geometric {
		t.Fatalf("unexpected attempts %v", res.Attempts)
	}
}

func TestRenderedExhausted(t *testing.T) {
	doc := wrap(`<text x="10" y="10">Hello</text>`)
	st := &RenderedStrategy{Rasterizers: []Rasterizer{
		InProcess{},
		Command{Path: "/nonexistent/rasterizer", Args: []string{"{input}"}},
	}}
	_, err := st.Attempt(context.Background(), NewInput(doc, tmpl))
	var toolErr *ExternalToolFailure
	if !errors.Is(err, ErrExternalTool) || !errors.As(err, &toolErr) {
		t.Fatalf("unexpected error %v", err)
	}

	an := NewAnalyzer(Options{Logger: quiet, Rasterizers: st.Rasterizers})
	if res := an.Analyze(context.Background(), doc, tmpl); !res.Success || res.Method != Default {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestTimeout(t *testing.T) {
	blocking := rasterFunc(func(ctx context.Context, _, _ int) (image.Image, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})
	st := &RenderedStrategy{
		Pool:        NewPool(1, 20*time.Millisecond),
		Rasterizers: []Rasterizer{blocking, blockRasterizer(image.Rect(0, 0, 10, 10))},
		Resolution:  100,
	}
	box, err := st.Attempt(context.Background(), NewInput(wrap(`<rect width="100" height="50" fill="white"/><text>A</text>`), tmpl))
	if err != nil {
		t.Fatal(err)
	}
	assertBox(t, box, Box{0, 0, 10, 10}, 1e-9)

	st.Rasterizers = st.Rasterizers[:1]
	_, err = st.Attempt(context.Background(), NewInput(wrap(`<rect width="100" height="50" fill="white"/><text>A</text>`), tmpl))
	if !errors.Is(err, context.DeadlineExceeded) || !errors.Is(err, ErrExternalTool) {
		t.Fatalf("unexpected error %v", err)
	}
}

func TestPoolLimit(t *testing.T) {
	pool := NewPool(2, 0)
	var (
		current, peak int32
		wg            sync.WaitGroup
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = pool.Run(context.Background(), func(context.Context) error {
				n := atomic.AddInt32(&current, 1)
				for {
					m := atomic.LoadInt32(&peak)
					if n <= m || atomic.CompareAndSwapInt32(&peak, m, n) {
						break
					}
				}
				time.Sleep(5 * time.Millisecond)
				atomic.AddInt32(&current, -1)
				return nil
			})
		}()
	}
	wg.Wait()
	if peak > 2 {
		t.Fatalf("%d concurrent jobs", peak)
	}
}

type countingStrategy struct{ calls int32 }

func (*countingStrategy) Method() Method { return Geometric }

func (c *countingStrategy) Attempt(context.Context, *Input) (Box, error) {
	atomic.AddInt32(&c.calls, 1)
	return Box{Width: 1, Height: 1}, nil
}

func TestCache(t *testing.T) {
	counter := &countingStrategy{}
	an := &Analyzer{Strategies: []Strategy{counter}, Cache: NewCache(), Logger: quiet}
	ctx := context.Background()
	an.Analyze(ctx, wrap("<rect/>"), tmpl)
	an.Analyze(ctx, wrap("<rect/>"), tmpl)
	if counter.calls != 1 {
		t.Fatalf("expected 1 measure, got %d", counter.calls)
	}
	an.Analyze(ctx, wrap("<rect />"), tmpl)
	an.Analyze(ctx, wrap("<rect/>"), Template{WidthPx: 10, HeightPx: 10})
	if counter.calls != 3 || an.Cache.Len() != 3 {
		t.Fatalf("expected 3 measures, got %d", counter.calls)
	}
	an.Cache.Clear()
	an.Analyze(ctx, wrap("<rect/>"), tmpl)
	if counter.calls != 4 {
		t.Fatalf("expected 4 measures, got %d", counter.calls)
	}
}

func TestMeasureImage(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 20, 10))
	draw.Draw(img, image.Rect(4, 2, 9, 7), image.NewUniform(color.Black), image.Point{}, draw.Src)
	box, err := MeasureImage(img)
	if err != nil {
		t.Fatal(err)
	}
	assertBox(t, box, Box{4, 2, 5, 5}, 0)

	if _, err = MeasureImage(image.NewNRGBA(image.Rect(0, 0, 4, 4))); !errors.Is(err, ErrDegenerate) {
		t.Fatalf("unexpected error %v", err)
	}
}

func TestCommandExec(t *testing.T) {
	if _, err := os.Stat("/bin/sh"); err != nil {
		t.Skip("no shell available")
	}
	copyCmd := Command{Label: "copy", Path: "/bin/sh", Args: []string{"-c", `case "$0" in *.eps) cp "$0" "$1";; *) exit 3;; esac`, "{input}", "{output}"}}
	out, err := copyCmd.Exec(context.Background(), []byte("%!PS"), ".eps", ".pdf")
	if err != nil {
		t.Fatal(err)
	}
	if string(out) != "%!PS" {
		t.Fatalf("unexpected output %q", out)
	}

	_, err = copyCmd.Exec(context.Background(), []byte("%!PS"), ".ai", ".pdf")
	var toolErr *ExternalToolFailure
	if !errors.As(err, &toolErr) || toolErr.Tool != "copy" {
		t.Fatalf("unexpected error %v", err)
	}
}
