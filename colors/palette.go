package colors

import (
	"fmt"
	"math"
	"strings"
)

// DefaultTolerance is the matching radius, in RGB euclidean distance,
// used for palette entries which do not specify one.
const DefaultTolerance = 12

// PaletteEntry is a canonical color pair.
type PaletteEntry struct {
	Name      string  `json:"name"`
	RGB       RGB     `json:"rgb"`
	CMYK      string  `json:"cmyk"` // label form, see CMYK.String
	Tolerance float64 `json:"tolerance,omitempty"`
	Category  string  `json:"category,omitempty"`

	cmyk CMYK
}

// Canonical returns the parsed CMYK value of the entry.
// It is only valid for entries of a Palette.
func (e PaletteEntry) Canonical() CMYK { return e.cmyk }

func (e PaletteEntry) distance(c RGB) float64 {
	dr := float64(e.RGB.R) - float64(c.R)
	dg := float64(e.RGB.G) - float64(c.G)
	db := float64(e.RGB.B) - float64(c.B)
	return math.Sqrt(dr*dr + dg*dg + db*db)
}

// Palette is an ordered list of canonical colors.
// It is immutable once built and may be shared between goroutines.
type Palette struct {
	entries []PaletteEntry
}

// NewPalette validates the entries and returns a palette. Entries
// with a zero Tolerance use DefaultTolerance.
// An entry is rejected if its CMYK value, converted back to RGB,
// would match another entry : standardization would then not be idempotent.
func NewPalette(entries []PaletteEntry) (*Palette, error) {
	out := make([]PaletteEntry, len(entries))
	for i, e := range entries {
		if n := strings.TrimSpace(e.Name); strings.EqualFold(n, "All") || strings.EqualFold(n, "None") {
			return nil, fmt.Errorf("palette entry %d: reserved name %q", i, e.Name)
		}
		c, err := ParseCMYK(e.CMYK)
		if err != nil {
			return nil, fmt.Errorf("palette entry %d (%s): %w", i, e.Name, err)
		}
		e.cmyk = c
		if e.Tolerance == 0 {
			e.Tolerance = DefaultTolerance
		}
		if e.Tolerance < 0 {
			return nil, fmt.Errorf("palette entry %d (%s): negative tolerance", i, e.Name)
		}
		out[i] = e
	}
	p := &Palette{entries: out}
	var engine Engine
	for i, e := range p.entries {
		back, _ := engine.ToRGB(e.cmyk) // validated by ParseCMYK
		if m, ok := p.Match(back); !ok || m.cmyk != e.cmyk {
			return nil, fmt.Errorf("palette entry %d (%s): %s does not map back onto %s", i, e.Name, e.CMYK, e.RGB.Hex())
		}
	}
	return p, nil
}

// Entries returns a copy of the palette entries.
func (p *Palette) Entries() []PaletteEntry {
	if p == nil {
		return nil
	}
	return append([]PaletteEntry(nil), p.entries...)
}

// Len returns the number of entries.
func (p *Palette) Len() int {
	if p == nil {
		return 0
	}
	return len(p.entries)
}

// Match returns the entry with the smallest distance to `c`, among
// the entries whose distance is within their own tolerance.
// Ties are resolved by declaration order.
func (p *Palette) Match(c RGB) (PaletteEntry, bool) {
	if p == nil {
		return PaletteEntry{}, false
	}
	best, bestDist := -1, math.Inf(1)
	for i, e := range p.entries {
		d := e.distance(c)
		if d <= e.Tolerance && d < bestDist {
			best, bestDist = i, d
		}
	}
	if best == -1 {
		return PaletteEntry{}, false
	}
	return p.entries[best], true
}

// Standardize resolves `tok` and converts it with `engine`.
// If a palette entry matches, its canonical CMYK is recorded as
// the standardized value.
func (p *Palette) Standardize(engine Engine, tok Token) (Mapping, error) {
	rgb, err := tok.RGB()
	if err != nil {
		return Mapping{}, err
	}
	m := Mapping{Token: tok, RGB: rgb, CMYK: engine.ToCMYK(rgb)}
	if entry, ok := p.Match(rgb); ok {
		std := entry.cmyk
		m.Standardized = &std
		m.Entry = &entry
	}
	return m, nil
}

// Mapping is the resolution of one color token.
type Mapping struct {
	Token        Token         `json:"token"`
	RGB          RGB           `json:"rgb"`
	CMYK         CMYK          `json:"cmyk"`
	Standardized *CMYK         `json:"standardizedCmyk,omitempty"`
	Entry        *PaletteEntry `json:"paletteEntry,omitempty"`
}

// Final returns the standardized value if any, or the converted one.
func (m Mapping) Final() CMYK {
	if m.Standardized != nil {
		return *m.Standardized
	}
	return m.CMYK
}

// DefaultPalette returns the garment and specialty ink palette.
func DefaultPalette() *Palette {
	p, err := NewPalette(defaultEntries)
	if err != nil { // the default entries are checked by tests
		panic(err)
	}
	return p
}

// DefaultEntries returns a copy of the entries of DefaultPalette.
func DefaultEntries() []PaletteEntry { return append([]PaletteEntry(nil), defaultEntries...) }

var defaultEntries = []PaletteEntry{
	{Name: "Black", RGB: RGB{0x00, 0x00, 0x00}, CMYK: "C:0 M:0 Y:0 K:100", Category: "gildan"},
	{Name: "White", RGB: RGB{0xFF, 0xFF, 0xFF}, CMYK: "C:0 M:0 Y:0 K:0", Category: "gildan"},
	{Name: "Ash", RGB: RGB{0xB8, 0xB8, 0xB8}, CMYK: "C:0 M:0 Y:0 K:28", Category: "gildan"},
	{Name: "Sport Grey", RGB: RGB{0x8C, 0x8C, 0x8C}, CMYK: "C:0 M:0 Y:0 K:45", Category: "gildan"},
	{Name: "Dark Heather", RGB: RGB{0x61, 0x61, 0x61}, CMYK: "C:0 M:0 Y:0 K:62", Category: "gildan"},
	{Name: "Red", RGB: RGB{0xFF, 0x00, 0x00}, CMYK: "C:0 M:100 Y:100 K:0", Category: "gildan"},
	{Name: "Cardinal Red", RGB: RGB{0xB7, 0x12, 0x34}, CMYK: "C:0 M:90 Y:71 K:28", Category: "gildan"},
	{Name: "Cherry Red", RGB: RGB{0xC5, 0x28, 0x2F}, CMYK: "C:0 M:84 Y:76 K:23", Category: "gildan"},
	{Name: "Orange", RGB: RGB{0xFF, 0x8C, 0x00}, CMYK: "C:0 M:45 Y:100 K:0", Category: "gildan"},
	{Name: "Gold", RGB: RGB{0xFF, 0xD7, 0x00}, CMYK: "C:0 M:16 Y:100 K:0", Category: "gildan"},
	{Name: "Yellow Haze", RGB: RGB{0xFF, 0xFF, 0x99}, CMYK: "C:0 M:0 Y:40 K:0", Category: "gildan"},
	{Name: "Daisy", RGB: RGB{0xFF, 0xFF, 0x00}, CMYK: "C:0 M:0 Y:100 K:0", Category: "gildan"},
	{Name: "Royal Blue", RGB: RGB{0x00, 0x47, 0xAB}, CMYK: "C:100 M:58 Y:0 K:33", Category: "gildan"},
	{Name: "Navy", RGB: RGB{0x00, 0x00, 0x80}, CMYK: "C:100 M:100 Y:0 K:50", Category: "gildan"},
	{Name: "Irish Green", RGB: RGB{0x00, 0xFF, 0x00}, CMYK: "C:100 M:0 Y:100 K:0", Category: "gildan"},
	{Name: "Forest Green", RGB: RGB{0x22, 0x8B, 0x22}, CMYK: "C:76 M:0 Y:76 K:45", Category: "gildan"},
	{Name: "Purple", RGB: RGB{0x80, 0x00, 0x80}, CMYK: "C:0 M:100 Y:0 K:50", Category: "gildan"},
	{Name: "Heliconia", RGB: RGB{0xFF, 0x14, 0x93}, CMYK: "C:0 M:92 Y:42 K:0", Category: "gildan"},
	{Name: "Safety Pink", RGB: RGB{0xFF, 0x69, 0xB4}, CMYK: "C:0 M:59 Y:29 K:0", Category: "gildan"},
	{Name: "Safety Orange", RGB: RGB{0xFF, 0x45, 0x00}, CMYK: "C:0 M:73 Y:100 K:0", Category: "gildan"},
	{Name: "Safety Green", RGB: RGB{0x32, 0xCD, 0x32}, CMYK: "C:75 M:0 Y:75 K:20", Category: "gildan"},
	{Name: "Maroon", RGB: RGB{0x80, 0x00, 0x00}, CMYK: "C:0 M:100 Y:100 K:50", Category: "gildan"},
	{Name: "Brown", RGB: RGB{0xA5, 0x2A, 0x2A}, CMYK: "C:0 M:74 Y:74 K:35", Category: "gildan"},
	{Name: "Tan", RGB: RGB{0xD2, 0xB4, 0x8C}, CMYK: "C:0 M:14 Y:33 K:18", Category: "gildan"},
	{Name: "Light Blue", RGB: RGB{0xAD, 0xD8, 0xE6}, CMYK: "C:24 M:6 Y:0 K:10", Category: "gildan"},
	{Name: "Light Pink", RGB: RGB{0xFF, 0xB6, 0xC1}, CMYK: "C:0 M:29 Y:24 K:0", Category: "gildan"},
	{Name: "Natural", RGB: RGB{0xF5, 0xF5, 0xDC}, CMYK: "C:0 M:0 Y:10 K:4", Category: "gildan"},
	{Name: "Heather Grey", RGB: RGB{0xD3, 0xD3, 0xD3}, CMYK: "C:0 M:0 Y:0 K:17", Category: "fruit_of_the_loom"},
	{Name: "Royal Blue", RGB: RGB{0x41, 0x69, 0xE1}, CMYK: "C:71 M:53 Y:0 K:12", Category: "fruit_of_the_loom"},
	{Name: "Kelly Green", RGB: RGB{0x4C, 0xBB, 0x17}, CMYK: "C:59 M:0 Y:88 K:27", Category: "fruit_of_the_loom"},
	{Name: "Orange", RGB: RGB{0xFF, 0xA5, 0x00}, CMYK: "C:0 M:35 Y:100 K:0", Category: "fruit_of_the_loom"},
	{Name: "Sky Blue", RGB: RGB{0x87, 0xCE, 0xEB}, CMYK: "C:43 M:16 Y:0 K:8", Category: "fruit_of_the_loom"},
	{Name: "Pink", RGB: RGB{0xFF, 0xC0, 0xCB}, CMYK: "C:0 M:25 Y:20 K:0", Category: "fruit_of_the_loom"},
	{Name: "Burgundy", RGB: RGB{0x80, 0x00, 0x20}, CMYK: "C:0 M:100 Y:75 K:50", Category: "fruit_of_the_loom"},
	{Name: "Hi-Viz Orange", RGB: RGB{0xFF, 0x66, 0x00}, CMYK: "C:0 M:60 Y:100 K:0", Category: "hi_viz"},
	{Name: "Pastel Blue", RGB: RGB{0xB8, 0xE6, 0xFF}, CMYK: "C:28 M:10 Y:0 K:0", Category: "pastels"},
	{Name: "Pastel Pink", RGB: RGB{0xFF, 0xD1, 0xDC}, CMYK: "C:0 M:18 Y:14 K:0", Category: "pastels"},
	{Name: "Pastel Green", RGB: RGB{0x90, 0xEE, 0x90}, CMYK: "C:39 M:0 Y:39 K:7", Category: "pastels"},
	{Name: "Pastel Purple", RGB: RGB{0xDD, 0xA0, 0xDD}, CMYK: "C:0 M:28 Y:0 K:13", Category: "pastels"},
	{Name: "Metallic Silver", RGB: RGB{0xC0, 0xC0, 0xC0}, CMYK: "C:0 M:0 Y:0 K:25", Category: "specialty_inks"},
	{Name: "Glow in Dark", RGB: RGB{0xF0, 0xF8, 0xFF}, CMYK: "C:6 M:3 Y:0 K:0", Category: "specialty_inks"},
	{Name: "Reflective", RGB: RGB{0xE5, 0xE5, 0xE5}, CMYK: "C:0 M:0 Y:0 K:10", Category: "specialty_inks"},
}
