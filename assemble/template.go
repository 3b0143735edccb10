package assemble

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/benoitkugler/artprint/bounds"
)

// Template is the page artwork is placed on, with its physical size
// and the pixel size of the design canvas.
type Template struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	WidthMM  float64 `json:"widthMm"`
	HeightMM float64 `json:"heightMm"`
	WidthPx  float64 `json:"widthPx"`
	HeightPx float64 `json:"heightPx"`
}

// NewTemplate derives the pixel size from the physical one, at 96 dpi.
func NewTemplate(id, name string, widthMM, heightMM float64) Template {
	return Template{
		ID: id, Name: name,
		WidthMM: widthMM, HeightMM: heightMM,
		WidthPx:  math.Round(widthMM / bounds.PxToMMFactor),
		HeightPx: math.Round(heightMM / bounds.PxToMMFactor),
	}
}

// Pixels returns the size used by the bounds analysis.
func (t Template) Pixels() bounds.Template {
	return bounds.Template{WidthPx: t.WidthPx, HeightPx: t.HeightPx}
}

// Validate checks that both sizes are strictly positive.
func (t Template) Validate() error {
	if !(t.WidthMM > 0 && t.HeightMM > 0) {
		return fmt.Errorf("template %q: invalid physical size %gx%g mm", t.ID, t.WidthMM, t.HeightMM)
	}
	if !(t.WidthPx > 0 && t.HeightPx > 0) {
		return fmt.Errorf("template %q: invalid pixel size %gx%g px", t.ID, t.WidthPx, t.HeightPx)
	}
	return nil
}

// toMM converts a point of the canvas to page millimeters
func (t Template) toMM(x, y float64) (float64, float64) {
	return x * t.WidthMM / t.WidthPx, y * t.HeightMM / t.HeightPx
}

// paper sizes, in mm
var (
	sizeA3 = [2]float64{297, 420}
	sizeA4 = [2]float64{210, 297}
	sizeA5 = [2]float64{148, 210}
)

// process transfer variants, available in A3 and A4
var processes = []struct{ id, name string }{
	{"dtf", "DTF"},
	{"uv-dtf", "UV DTF"},
	{"sublimation", "Sublimation"},
	{"vinyl", "Vinyl Flex"},
	{"vinyl-flock", "Vinyl Flock"},
	{"soft-shell", "Soft Shell"},
	{"reflective", "Reflective"},
	{"hi-viz", "Hi-Viz"},
	{"glitter", "Glitter"},
	{"metallic", "Metallic"},
	{"holographic", "Holographic"},
	{"glow-in-dark", "Glow in the Dark"},
	{"puff", "Puff"},
	{"foil", "Foil"},
	{"photographic", "Photographic"},
	{"embroidery-badges", "Embroidery Badges"},
	{"applique-badges", "Applique Badges & Embroidery"},
	{"laser-cut-badges", "Laser Cut Badges"},
	{"woven-badges", "Woven Badges"},
}

var catalog = buildCatalog()

func buildCatalog() []Template {
	out := []Template{
		NewTemplate("template-A3", "A3 (297×420mm)", sizeA3[0], sizeA3[1]),
		NewTemplate("template-A4", "A4 (210×297mm)", sizeA4[0], sizeA4[1]),
		NewTemplate("template-A5", "A5 (148×210mm)", sizeA5[0], sizeA5[1]),
		NewTemplate("template-FOTLA3", "Fruit of the Loom A3", sizeA3[0], sizeA3[1]),
		NewTemplate("template-FOTLA4", "Fruit of the Loom A4", sizeA4[0], sizeA4[1]),
	}
	for _, p := range processes {
		out = append(out,
			NewTemplate("template-"+p.id+"-a3", p.name+" A3", sizeA3[0], sizeA3[1]),
			NewTemplate("template-"+p.id+"-a4", p.name+" A4", sizeA4[0], sizeA4[1]),
		)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Catalog returns the known templates, sorted by ID.
func Catalog() []Template { return append([]Template(nil), catalog...) }

// LookupTemplate returns the template with the given ID.
// The comparison ignores case.
func LookupTemplate(id string) (Template, bool) {
	for _, t := range catalog {
		if strings.EqualFold(t.ID, id) {
			return t, true
		}
	}
	return Template{}, false
}
