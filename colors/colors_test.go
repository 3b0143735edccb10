package colors

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestNaiveReference(t *testing.T) {
	for _, test := range []struct {
		in  RGB
		out CMYK
	}{
		{RGB{150, 197, 40}, CMYK{24, 0, 80, 23}},
		{RGB{0, 0, 0}, CMYK{0, 0, 0, 100}},
		{RGB{255, 255, 255}, CMYK{0, 0, 0, 0}},
		{RGB{255, 0, 0}, CMYK{0, 100, 100, 0}},
		{RGB{0, 0, 128}, CMYK{100, 100, 0, 50}},
		{RGB{1, 1, 1}, CMYK{0, 0, 0, 100}},
		// deep shadows: the chromatic channels absorb the rounding of K,
		// including the brightest one
		{RGB{0, 0, 2}, CMYK{100, 100, 22, 99}},
		{RGB{2, 2, 2}, CMYK{22, 22, 22, 99}},
	} {
		if got := (Naive{}).ToCMYK(test.in); got != test.out {
			t.Errorf("%s: expected %s, got %s", test.in, test.out, got)
		}
	}
}

func TestNaiveRoundTrip(t *testing.T) {
	step := 1
	if testing.Short() {
		step = 7
	}
	var engine Engine
	for r := 0; r < 256; r += step {
		for g := 0; g < 256; g += step {
			for b := 0; b < 256; b += step {
				in := RGB{uint8(r), uint8(g), uint8(b)}
				back, err := engine.ToRGB(engine.ToCMYK(in))
				if err != nil {
					t.Fatal(err)
				}
				if diff(in.R, back.R) > 1 || diff(in.G, back.G) > 1 || diff(in.B, back.B) > 1 {
					t.Fatalf("round trip of %s gives %s", in, back)
				}
			}
		}
	}
}

func diff(a, b uint8) int {
	if a > b {
		return int(a - b)
	}
	return int(b - a)
}

func TestInvalidDomain(t *testing.T) {
	var engine Engine
	_, err := engine.ToRGB(CMYK{C: 101})
	if !errors.Is(err, ErrInvalidColorDomain) {
		t.Fatalf("expected domain error, got %v", err)
	}
	var de *DomainError
	if !errors.As(err, &de) || de.Channel != "C" || de.Value != 101 {
		t.Fatalf("unexpected error %#v", err)
	}

	if _, err = NewCMYK(0, 0, -1, 0); !errors.Is(err, ErrInvalidColorDomain) {
		t.Fatalf("expected domain error, got %v", err)
	}
}

func TestParseToken(t *testing.T) {
	for _, test := range []struct {
		in  string
		out RGB
	}{
		{"#F00", RGB{255, 0, 0}},
		{"#ff0000", RGB{255, 0, 0}},
		{" #96C528 ", RGB{150, 197, 40}},
		{"rgb(255, 0, 0)", RGB{255, 0, 0}},
		{"RGB(0,128,255)", RGB{0, 128, 255}},
		{"rgb(100%, 50%, 0%)", RGB{255, 128, 0}},
		{"rgb(300, -2, 12)", RGB{255, 0, 12}},
	} {
		got, err := ParseToken(test.in)
		if err != nil {
			t.Fatalf("%q: %s", test.in, err)
		}
		if got != test.out {
			t.Errorf("%q: expected %s, got %s", test.in, test.out, got)
		}
	}

	for _, in := range []string{"none", "red", "currentColor", "url(#g)", "#12", "#GGGGGG", "rgb(1,2)", "rgb(1,2,3"} {
		if IsLiteral(in) {
			t.Errorf("%q should not be a literal color", in)
		}
	}
}

func TestTokenEqual(t *testing.T) {
	if !Token("#FF0000").Equal(" #ff0000") {
		t.Error("tokens should match case insensitively")
	}
	if Token("#FF0000").Equal("#F00") {
		t.Error("distinct literals must stay distinct")
	}
}

func TestParseCMYK(t *testing.T) {
	c, err := ParseCMYK("C:0 M:100 Y:100 K:0")
	if err != nil {
		t.Fatal(err)
	}
	if c != (CMYK{0, 100, 100, 0}) {
		t.Fatalf("unexpected %v", c)
	}
	if c.String() != "C:0 M:100 Y:100 K:0" {
		t.Fatalf("unexpected label %s", c)
	}
	if c, _ = ParseCMYK("k:5, y:3, m:2, c:1"); c != (CMYK{1, 2, 3, 5}) {
		t.Fatalf("unexpected %v", c)
	}
	for _, in := range []string{"", "C:0 M:0 Y:0", "C:0 C:0 Y:0 K:0", "C:0 M:0 Y:0 K:120", "C:a M:0 Y:0 K:0"} {
		if _, err := ParseCMYK(in); err == nil {
			t.Errorf("expected error for %q", in)
		}
	}
}

func TestCMYKJSON(t *testing.T) {
	var c CMYK
	if err := json.Unmarshal([]byte(`"C:10 M:20 Y:30 K:40"`), &c); err != nil {
		t.Fatal(err)
	}
	b, err := json.Marshal(c)
	if err != nil {
		t.Fatal(err)
	}
	var back CMYK
	if err = json.Unmarshal(b, &back); err != nil {
		t.Fatal(err)
	}
	if back != c {
		t.Fatalf("expected %v, got %v", c, back)
	}
	if err = json.Unmarshal([]byte(`{"c":0,"m":0,"y":0,"k":101}`), &back); !errors.Is(err, ErrInvalidColorDomain) {
		t.Fatalf("expected domain error, got %v", err)
	}
}

func TestProfileEmulation(t *testing.T) {
	p := DefaultProfile()
	if got := p.ToCMYK(RGB{255, 255, 255}); got != (CMYK{}) {
		t.Errorf("white should not be inked, got %s", got)
	}
	if got := p.ToCMYK(RGB{0, 0, 0}); got != (CMYK{K: 100}) {
		t.Errorf("black should be printed with K only, got %s", got)
	}
	gray := p.ToCMYK(RGB{128, 128, 128})
	if gray.C != 0 || gray.M != 0 || gray.Y != 0 || gray.K == 0 {
		t.Errorf("neutral gray should be printed with K only, got %s", gray)
	}
	for _, c := range []RGB{{20, 10, 60}, {150, 197, 40}, {255, 0, 0}, {3, 80, 3}} {
		got := p.ToCMYK(c)
		if err := got.Validate(); err != nil {
			t.Fatal(err)
		}
		if total := int(got.C) + int(got.M) + int(got.Y) + int(got.K); float64(total) > p.InkLimit+2 {
			t.Errorf("%s: total ink %d exceeds limit", c, total)
		}
	}

	var s Strategy = p // same contract as Naive
	engine := NewEngine(s)
	if engine.StrategyName() != "profile" {
		t.Fatal(engine.StrategyName())
	}
}

func TestStrategyByName(t *testing.T) {
	for _, name := range []string{"naive", "", "profile", "profileEmulating"} {
		if _, err := StrategyByName(name); err != nil {
			t.Error(err)
		}
	}
	if _, err := StrategyByName("icc"); err == nil {
		t.Error("expected error for unknown strategy")
	}
}

func TestDefaultPalette(t *testing.T) {
	p := DefaultPalette()
	if p.Len() != len(defaultEntries) {
		t.Fatalf("expected %d entries, got %d", len(defaultEntries), p.Len())
	}
	red, ok := p.Match(RGB{250, 3, 4})
	if !ok || red.Name != "Red" || red.Canonical() != (CMYK{0, 100, 100, 0}) {
		t.Fatalf("unexpected match %v %v", red, ok)
	}
	if _, ok := p.Match(RGB{60, 20, 200}); ok {
		t.Fatal("unexpected match")
	}
}

func TestMatchNearest(t *testing.T) {
	p, err := NewPalette([]PaletteEntry{
		{Name: "far", RGB: RGB{110, 100, 100}, CMYK: "C:0 M:9 Y:9 K:57", Tolerance: 30},
		{Name: "near", RGB: RGB{102, 100, 100}, CMYK: "C:0 M:2 Y:2 K:60", Tolerance: 30},
	})
	if err != nil {
		t.Fatal(err)
	}
	got, ok := p.Match(RGB{100, 100, 100})
	if !ok || got.Name != "near" {
		t.Fatalf("expected the closest entry, got %v", got)
	}

	p, err = NewPalette([]PaletteEntry{
		{Name: "first", RGB: RGB{200, 0, 0}, CMYK: "C:0 M:100 Y:100 K:22", Tolerance: 10},
		{Name: "second", RGB: RGB{200, 10, 0}, CMYK: "C:0 M:95 Y:100 K:22", Tolerance: 10},
	})
	if err != nil {
		t.Fatal(err)
	}
	if got, _ = p.Match(RGB{200, 5, 0}); got.Name != "first" {
		t.Fatalf("ties must be resolved by declaration order, got %s", got.Name)
	}
}

func TestMatchOwnTolerance(t *testing.T) {
	p, err := NewPalette([]PaletteEntry{
		{Name: "narrow", RGB: RGB{100, 100, 100}, CMYK: "C:0 M:0 Y:0 K:61", Tolerance: 2},
		{Name: "wide", RGB: RGB{120, 100, 100}, CMYK: "C:0 M:17 Y:17 K:53", Tolerance: 40},
	})
	if err != nil {
		t.Fatal(err)
	}
	// closer to narrow, but outside of its radius
	got, ok := p.Match(RGB{106, 100, 100})
	if !ok || got.Name != "wide" {
		t.Fatalf("unexpected match %v", got)
	}
}

func TestStandardizationIdempotent(t *testing.T) {
	p := DefaultPalette()
	var engine Engine
	for r := 0; r < 256; r += 5 {
		for g := 0; g < 256; g += 5 {
			for b := 0; b < 256; b += 5 {
				first, ok := p.Match(RGB{uint8(r), uint8(g), uint8(b)})
				if !ok {
					continue
				}
				back, err := engine.ToRGB(first.Canonical())
				if err != nil {
					t.Fatal(err)
				}
				second, ok := p.Match(back)
				if !ok || second.Canonical() != first.Canonical() {
					t.Fatalf("standardization of %v is not idempotent: %s then %s", RGB{uint8(r), uint8(g), uint8(b)}, first.CMYK, second.CMYK)
				}
			}
		}
	}
}

func TestNewPaletteRejects(t *testing.T) {
	// the CMYK value prints far away from the screen color
	_, err := NewPalette([]PaletteEntry{{Name: "bad", RGB: RGB{255, 0, 0}, CMYK: "C:100 M:0 Y:0 K:0"}})
	if err == nil {
		t.Fatal("expected error")
	}
	if _, err = NewPalette([]PaletteEntry{{Name: "bad", RGB: RGB{255, 0, 0}, CMYK: "C:0 M:100"}}); err == nil {
		t.Fatal("expected error")
	}
	// names with a meaning for separations
	for _, name := range []string{"All", "none "} {
		if _, err = NewPalette([]PaletteEntry{{Name: name, RGB: RGB{255, 0, 0}, CMYK: "C:0 M:100 Y:100 K:0"}}); err == nil {
			t.Fatalf("expected error for %q", name)
		}
	}
}

func TestStandardize(t *testing.T) {
	p := DefaultPalette()
	m, err := p.Standardize(Engine{}, "rgb(150, 197, 40)")
	if err != nil {
		t.Fatal(err)
	}
	exp := Mapping{Token: "rgb(150, 197, 40)", RGB: RGB{150, 197, 40}, CMYK: CMYK{24, 0, 80, 23}}
	if diff := cmp.Diff(exp, m); diff != "" {
		t.Fatalf("unexpected mapping (-want +got):\n%s", diff)
	}

	m, err = p.Standardize(Engine{}, "#FE0101")
	if err != nil {
		t.Fatal(err)
	}
	if m.Standardized == nil || m.Entry == nil || m.Entry.Name != "Red" {
		t.Fatalf("expected standardized red, got %+v", m)
	}
	if m.Final() != (CMYK{0, 100, 100, 0}) {
		t.Fatalf("unexpected final color %s", m.Final())
	}

	if _, err = p.Standardize(Engine{}, "none"); err == nil {
		t.Fatal("expected error")
	}
}
