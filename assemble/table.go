package assemble

import (
	"github.com/benoitkugler/artprint/colors"
	"github.com/benoitkugler/artprint/svgicon"
	"github.com/benoitkugler/artprint/svgpdf"
)

// SwatchSource tells how the CMYK value of a swatch was resolved.
type SwatchSource string

const (
	// SwatchTable is used for colors resolved by the element mappings.
	SwatchTable SwatchSource = "table"
	// SwatchFallback is used for colors missing from the mappings,
	// converted with the engine.
	SwatchFallback SwatchSource = "fallback"
	// SwatchGarment is used for the garment backgrounds of the proof page.
	SwatchGarment SwatchSource = "garment"
)

// Swatch is one color painted in the document.
type Swatch struct {
	// Ink is the name of the Separation color space.
	Ink string `json:"ink"`
	// Name is the palette name of the color, if any.
	Name    string       `json:"name,omitempty"`
	Element string       `json:"element"`
	Token   colors.Token `json:"token,omitempty"`
	RGB     colors.RGB   `json:"rgb"`
	CMYK    colors.CMYK  `json:"cmyk"`
	Source  SwatchSource `json:"source"`
}

type swatchKey struct {
	element string
	token   string
	rgb     colors.RGB
	source  SwatchSource
}

// swatches records each distinct color once, in painting order
type swatches struct {
	seen map[swatchKey]bool
	list []Swatch
}

func (sw *swatches) add(s Swatch) {
	if sw.seen == nil {
		sw.seen = make(map[swatchKey]bool)
	}
	key := swatchKey{s.Element, s.Token.Normalized(), s.RGB, s.Source}
	if sw.seen[key] {
		return
	}
	sw.seen[key] = true
	sw.list = append(sw.list, s)
}

// substitution is the color table of one element: the colors
// are looked up by their literal token, then by RGB value, and
// converted by the engine when both miss.
// Inks are registered on the shared page registry.
type substitution struct {
	element  string
	engine   colors.Engine
	byToken  map[string]colors.Mapping
	byRGB    map[colors.RGB]colors.Mapping
	inks     *svgpdf.Inks
	swatches *swatches
}

func newSubstitution(element string, mappings []colors.Mapping, engine colors.Engine,
	inks *svgpdf.Inks, sw *swatches,
) *substitution {
	out := &substitution{
		element:  element,
		engine:   engine,
		byToken:  make(map[string]colors.Mapping, len(mappings)),
		byRGB:    make(map[colors.RGB]colors.Mapping, len(mappings)),
		inks:     inks,
		swatches: sw,
	}
	for _, m := range mappings {
		if m.Token != "" {
			if _, has := out.byToken[m.Token.Normalized()]; !has {
				out.byToken[m.Token.Normalized()] = m
			}
		}
		// the first mapping of a value wins
		if _, has := out.byRGB[m.RGB]; !has {
			out.byRGB[m.RGB] = m
		}
	}
	return out
}

// resolve returns the mapping of `c`, if any
func (s *substitution) resolve(c svgicon.PlainColor) (colors.Mapping, bool) {
	if c.Token != "" {
		if m, ok := s.byToken[c.Token.Normalized()]; ok {
			return m, true
		}
	}
	m, ok := s.byRGB[c.RGB()]
	return m, ok
}

// Lookup implements svgpdf.ColorTable
func (s *substitution) Lookup(c svgicon.PlainColor) svgpdf.Ink {
	var (
		ink    svgpdf.Ink
		source SwatchSource
	)
	if m, ok := s.resolve(c); ok {
		ink.CMYK = m.Final()
		if m.Entry != nil {
			ink.Name = m.Entry.Name
		}
		source = SwatchTable
	} else {
		ink.CMYK = s.engine.ToCMYK(c.RGB())
		source = SwatchFallback
	}
	s.swatches.add(Swatch{
		Ink:     s.inks.Register(ink),
		Name:    ink.Name,
		Element: s.element,
		Token:   c.Token,
		RGB:     c.RGB(),
		CMYK:    ink.CMYK,
		Source:  source,
	})
	return ink
}
