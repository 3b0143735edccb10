package artwork

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"log"
	"math"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/benoitkugler/artprint/assemble"
	"github.com/benoitkugler/artprint/bounds"
	"github.com/benoitkugler/artprint/colors"
	"github.com/benoitkugler/artprint/config"
	"github.com/benoitkugler/artprint/convert"
	"github.com/benoitkugler/artprint/recolor"
	"github.com/benoitkugler/artprint/repair"
)

var quiet = log.New(io.Discard, "", 0)

var canvas = assemble.Template{ID: "test", Name: "Test", WidthMM: 100, HeightMM: 50, WidthPx: 100, HeightPx: 50}

// no namespace: fixed by the repair step
const logo = `<svg viewBox="0 0 100 50">
	<rect width="100" height="50" fill="#fff"/>
	<rect x="10" y="10" width="20" height="20" fill="#96c528"/>
</svg>`

func newSession(t *testing.T) *Session {
	t.Helper()
	s, err := NewSession(config.Default(), canvas, quiet)
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func photo(t *testing.T) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 10, 10))
	for y := 2; y < 5; y++ {
		for x := 2; x < 5; x++ {
			img.Set(x, y, color.Black)
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func near(a, b float64) bool { return math.Abs(a-b) < 1e-6 }

func TestAnalyzeAll(t *testing.T) {
	s := newSession(t)
	res, err := s.AnalyzeAll(context.Background(), []Document{
		{Name: "logo.svg", MimeType: "image/svg+xml", Data: []byte(logo)},
		{Name: "broken.svg", MimeType: "image/svg+xml", Data: []byte("just text")},
		{Name: "photo.png", MimeType: "image/png", Data: photo(t)},
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(res) != 3 {
		t.Fatalf("expected 3 results, got %d", len(res))
	}

	a := res[0]
	if a.Err != nil || len(a.Fixes) == 0 {
		t.Fatalf("unexpected analysis %+v", a)
	}
	if !a.Bounds.Success || a.Bounds.Method != bounds.Geometric {
		t.Fatalf("unexpected bounds %+v", a.Bounds)
	}
	if b := a.Bounds.Box; !near(b.XMin, 10) || !near(b.Width, 20) {
		t.Fatalf("unexpected box %s", b)
	}
	if b := a.Bounds.BoxMM; !near(b.Width, 20*25.4/96) {
		t.Fatalf("unexpected box %s", b)
	}
	if len(a.Colors.Colors) != 2 || a.Colors.Colors[0].Token != "#fff" || a.Colors.Colors[1].Token != "#96c528" {
		t.Fatalf("unexpected colors %+v", a.Colors)
	}
	if c := a.Colors.Colors[1].CMYK; c != (colors.CMYK{C: 24, M: 0, Y: 80, K: 23}) {
		t.Fatalf("unexpected conversion %v", c)
	}
	if a.Colors.Strategy != "naive" {
		t.Fatalf("unexpected strategy %s", a.Colors.Strategy)
	}

	if !errors.Is(res[1].Err, repair.ErrParse) || res[1].Error == "" {
		t.Fatalf("expected parse error, got %v", res[1].Err)
	}

	p := res[2]
	if p.Kind != assemble.Raster || p.Bounds.Method != bounds.Rendered {
		t.Fatalf("unexpected raster analysis %+v", p)
	}
	if p.Bounds.Box != (bounds.Box{XMin: 2, YMin: 2, Width: 3, Height: 3}) {
		t.Fatalf("unexpected raster box %s", p.Bounds.Box)
	}

	// serialization keeps the method tags
	out, err := json.Marshal(a)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(out), `"method":"geometric"`) || !strings.Contains(string(out), `"standardizedCmyk"`) {
		t.Fatalf("unexpected JSON %s", out)
	}
}

func TestAnalyzeAllCanceled(t *testing.T) {
	s := newSession(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := s.AnalyzeAll(ctx, []Document{{Name: "logo.svg", Data: []byte(logo)}}); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation, got %v", err)
	}
}

func TestLifecycle(t *testing.T) {
	s := newSession(t)
	ctx := context.Background()
	s.Analyze(ctx, Document{Name: "b.svg", Data: []byte(logo)})
	s.Analyze(ctx, Document{Name: "a.svg", Data: []byte(logo)})
	if names := s.Names(); len(names) != 2 || names[0] != "a.svg" {
		t.Fatalf("unexpected names %v", names)
	}
	// same content: measured once
	if n := s.Analyzer.Cache.Len(); n != 1 {
		t.Fatalf("expected one cached result, got %d", n)
	}
	if !s.Delete("a.svg") || s.Delete("a.svg") {
		t.Fatal("unexpected delete result")
	}
	if _, ok := s.Get("a.svg"); ok {
		t.Fatal("document not deleted")
	}
	s.Close()
	if len(s.Names()) != 0 || s.Analyzer.Cache.Len() != 0 {
		t.Fatal("session not cleared")
	}
}

func TestRecolor(t *testing.T) {
	s := newSession(t)
	ctx := context.Background()
	s.Analyze(ctx, Document{Name: "logo.svg", Data: []byte(logo)})

	res, a, err := s.Recolor(ctx, "logo.svg", map[string]string{"#96C528": "#0000ff", "#123456": "#000000"})
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Reports) != 1 || !errors.Is(res.Reports[0], recolor.ErrColorTokenUnrecognized) {
		t.Fatalf("unexpected reports %v", res.Reports)
	}
	if bytes.Contains(a.Document, []byte("#96c528")) || !bytes.Contains(a.Document, []byte("#0000ff")) {
		t.Fatalf("unexpected document %s", a.Document)
	}
	if len(a.Colors.Colors) != 2 || a.Colors.Colors[1].Token != "#0000ff" {
		t.Fatalf("unexpected colors %+v", a.Colors)
	}
	if stored, _ := s.Get("logo.svg"); stored != a {
		t.Fatal("patched document not stored")
	}

	if _, _, err = s.Recolor(ctx, "missing.svg", nil); !errors.Is(err, ErrUnknownDocument) {
		t.Fatalf("unexpected error %v", err)
	}
}

func TestAssemble(t *testing.T) {
	s := newSession(t)
	ctx := context.Background()
	s.Analyze(ctx, Document{Name: "logo.svg", Data: []byte(logo)})
	s.Analyze(ctx, Document{Name: "photo.png", MimeType: "image/png", Data: photo(t)})

	out, err := s.Assemble(ctx, []Placement{
		{Document: "logo.svg", X: 10, Y: 10, Width: 30, Height: 30},
		{Document: "photo.png", X: 50, Y: 10, Width: 20, Height: 20, Grid: &assemble.Grid{Rows: 1, Cols: 2, SpacingPx: 5}},
	})
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Contains(out.PDF, []byte("[/Separation /")) {
		t.Fatal("missing CMYK color space")
	}
	if len(out.Swatches) != 1 || out.Swatches[0].Source != assemble.SwatchTable {
		t.Fatalf("unexpected swatches %+v", out.Swatches)
	}

	_, err = s.Assemble(ctx, []Placement{{Document: "missing.svg", Width: 10, Height: 10}})
	if !errors.Is(err, assemble.ErrAssembly) || !errors.Is(err, ErrUnknownDocument) {
		t.Fatalf("unexpected error %v", err)
	}
}

func TestAnalyzeConverted(t *testing.T) {
	if _, err := os.Stat("/bin/sh"); err != nil {
		t.Skip("no shell available")
	}
	s := newSession(t)
	// stands for inkscape: writes the logo whatever the input
	writer := bounds.Command{Label: "writer", Path: "/bin/sh", Args: []string{"-c", `printf '%s' '` + logo + `' > "$1"`, "{input}", "{output}"}}
	broken := bounds.Command{Label: "broken", Path: "/bin/sh", Args: []string{"-c", `echo damaged >&2; exit 1`, "{input}", "{output}"}}
	s.Converter = &convert.Converter{
		Vectorizers: []bounds.Command{writer},
		Pool:        bounds.NewPool(1, 10*time.Second),
		Logger:      quiet,
	}

	a := s.Analyze(context.Background(), Document{Name: "logo.pdf", MimeType: "application/pdf", Data: []byte("%PDF-1.4")})
	if a.Err != nil {
		t.Fatal(a.Err)
	}
	if a.Kind != assemble.Vector || len(a.Fixes) == 0 || a.Fixes[0] != "converted from pdf" {
		t.Fatalf("unexpected analysis %+v", a)
	}
	if !a.Bounds.Success || len(a.Colors.Colors) == 0 {
		t.Fatalf("unexpected analysis %+v", a)
	}

	s.Converter.Vectorizers = []bounds.Command{broken}
	a = s.Analyze(context.Background(), Document{Name: "other.pdf", MimeType: "application/pdf", Data: []byte("%PDF-1.4")})
	if !errors.Is(a.Err, bounds.ErrExternalTool) || !strings.Contains(a.Error, "damaged") {
		t.Fatalf("unexpected error %v", a.Err)
	}

	// EPS without a normalizer
	a = s.Analyze(context.Background(), Document{Name: "logo.eps", MimeType: "application/postscript"})
	if !errors.Is(a.Err, convert.ErrNoProgram) {
		t.Fatalf("unexpected error %v", a.Err)
	}

	s.Converter = nil
	a = s.Analyze(context.Background(), Document{Name: "logo.ai"})
	if !errors.Is(a.Err, ErrUnsupportedFormat) {
		t.Fatalf("unexpected error %v", a.Err)
	}
}

func TestAnalyzeUnsupported(t *testing.T) {
	s := newSession(t)
	a := s.Analyze(context.Background(), Document{Name: "notes.txt", MimeType: "text/plain", Data: []byte("hello")})
	if !errors.Is(a.Err, ErrUnsupportedFormat) || a.Kind != "" {
		t.Fatalf("unexpected analysis %+v", a)
	}
	if _, err := s.Assemble(context.Background(), []Placement{{Document: "notes.txt", Width: 10, Height: 10}}); !errors.Is(err, assemble.ErrAssembly) {
		t.Fatalf("unexpected error %v", err)
	}
}
