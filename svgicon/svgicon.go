// Provides parsing and rendering of SVG images.
// SVG files are parsed into an abstract representation,
// which can then be consumed by painting drivers.
// See artprint/svgraster or artprint/svgpdf.
//
// Each painted path remembers the element it comes from,
// so that callers may decide to ignore some of them (for instance
// full page background rectangles when measuring the artwork).
package svgicon

import (
	"bytes"
	"encoding/xml"
	"errors"
	"io"
	"math"
	"os"

	"golang.org/x/net/html/charset"
)

// PathStyle holds the state of the SVG style
type PathStyle struct {
	FillOpacity, LineOpacity float64
	LineWidth                float64
	UseNonZeroWinding        bool

	Join                    JoinOptions
	Dash                    DashOptions
	FillerColor, LinerColor Pattern // either PlainColor or Gradient

	transform    Matrix2D       // current transform
	currentColor optionnalColor // value of the color property
	hidden       bool           // visibility:hidden
	notDisplayed bool           // display:none, not overridable by children
}

// Transform returns the transform from the path coordinates to the icon user space.
func (s PathStyle) Transform() Matrix2D { return s.transform }

// Element describes the source element of a path or an image.
type Element struct {
	Tag string
	ID  string
	// Rect is the geometry declared by a <rect> element, or the one
	// of a path, polygon or polyline drawing exactly an axis aligned
	// rectangle, in its own coordinate system. It is nil for other elements.
	Rect *Bounds
}

// SvgPath binds a style to a path
type SvgPath struct {
	Path   Path
	Style  PathStyle
	Source Element
}

// Visible returns true if the path is filled or stroked
// with a non transparent paint.
func (svgp *SvgPath) Visible() bool { return svgp.Style.fills() || svgp.Style.strokes() }

// Extent returns the painted area of the path, in the icon user space,
// stroke width included.
func (svgp *SvgPath) Extent() Rect {
	r := svgp.Path.Extent(svgp.Style.transform)
	r.Expand(svgp.Style.strokeMargin(svgp.Style.transform))
	return r
}

// SvgImage is a raster image referenced by an <image> element.
type SvgImage struct {
	Href       string // usually a data: URL
	X, Y, W, H float64
	Opacity    float64
	Transform  Matrix2D
	Source     Element
}

// Extent returns the area covered by the image, in the icon user space.
func (im SvgImage) Extent() Rect {
	var r Rect
	for _, p := range [4][2]float64{{im.X, im.Y}, {im.X + im.W, im.Y}, {im.X, im.Y + im.H}, {im.X + im.W, im.Y + im.H}} {
		r.AddPoint(im.Transform.Transform(p[0], p[1]))
	}
	return r
}

// Bounds defines a bounding box, such as a viewport
// or a path extent.
type Bounds struct{ X, Y, W, H float64 }

// SvgIcon holds data from parsed SVGs.
// See the `Draw` methods to use it.
type SvgIcon struct {
	ViewBox      Bounds
	Titles       []string // Title elements collect here
	Descriptions []string // Description elements collect here
	SVGPaths     []SvgPath
	Images       []SvgImage
	Transform    Matrix2D

	Width, Height string // top level width and height attributes

	// Unsupported lists the tags of the elements ignored
	// by the parser, such as text
	Unsupported []string

	grads map[string]*Gradient
	defs  map[string][]definition
}

// Extent returns the union of the painted areas of the visible paths and images,
// in the icon user space. Elements for which `exclude` returns true are ignored.
// `exclude` may be nil.
func (s *SvgIcon) Extent(exclude func(src Element, m Matrix2D) bool) Rect {
	var out Rect
	for i := range s.SVGPaths {
		svgp := &s.SVGPaths[i]
		if !svgp.Visible() {
			continue
		}
		if exclude != nil && exclude(svgp.Source, svgp.Style.transform) {
			continue
		}
		r := svgp.Extent()
		if isFinite(r) {
			out.Union(r)
		}
	}
	for _, im := range s.Images {
		if im.Opacity <= 0 || (exclude != nil && exclude(im.Source, im.Transform)) {
			continue
		}
		r := im.Extent()
		if isFinite(r) {
			out.Union(r)
		}
	}
	return out
}

func (s *SvgIcon) addUnsupported(tag string) {
	for _, t := range s.Unsupported {
		if t == tag {
			return
		}
	}
	s.Unsupported = append(s.Unsupported, tag)
}

func isFinite(r Rect) bool {
	for _, v := range [4]float64{r.XMin, r.YMin, r.XMax, r.YMax} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// ErrEmptyDocument is returned when the input has no XML element.
var ErrEmptyDocument = errors.New("invalid svg xml icon")

// ReadIconStream reads the Icon from the given io.Reader
// This only supports a sub-set of SVG, but
// is enough to draw many icons. errMode determines if the icon ignores, errors out, or logs a warning
// if it does not handle an element found in the icon file.
func ReadIconStream(stream io.Reader, errMode ErrorMode) (*SvgIcon, error) {
	// stylesheets apply to the elements preceding them
	data, err := io.ReadAll(stream)
	if err != nil {
		return nil, err
	}
	icon := &SvgIcon{defs: make(map[string][]definition), grads: make(map[string]*Gradient), Transform: Identity}
	cursor := &iconCursor{styleStack: []PathStyle{DefaultStyle}, icon: icon}
	cursor.errorMode = errMode
	cursor.sheet = readStyleSheet(data)
	if cursor.sheet != nil && cursor.sheet.partial {
		icon.addUnsupported("style")
	}
	decoder := xml.NewDecoder(bytes.NewReader(data))
	decoder.CharsetReader = charset.NewReaderLabel
	seenTag := false
	for {
		t, err := decoder.Token()
		if err != nil {
			if err == io.EOF {
				if !seenTag {
					return nil, ErrEmptyDocument
				}
				break
			}
			return icon, err
		}
		// Inspect the type of the XML token
		switch se := t.(type) {
		case xml.StartElement:
			seenTag = true
			// Reads all recognized style attributes from the start element
			// and places it on top of the styleStack
			err = cursor.pushStyle(se.Name.Local, se.Attr)
			if err != nil {
				return icon, err
			}
			err = cursor.readStartElement(se)
			if err != nil {
				return icon, err
			}
		case xml.EndElement:
			cursor.readEndElement(se)
		case xml.CharData:
			if cursor.inTitleText {
				icon.Titles[len(icon.Titles)-1] += string(se)
			}
			if cursor.inDescText {
				icon.Descriptions[len(icon.Descriptions)-1] += string(se)
			}
		}
	}
	return icon, nil
}

// ReadIconBytes is a convenience wrapper around ReadIconStream
func ReadIconBytes(data []byte, errMode ErrorMode) (*SvgIcon, error) {
	return ReadIconStream(bytes.NewReader(data), errMode)
}

// ReadIcon reads the Icon from the named file
// This only supports a sub-set of SVG, but
// is enough to draw many icons. errMode determines if the icon ignores, errors out, or logs a warning
// if it does not handle an element found in the icon file.
func ReadIcon(iconFile string, errMode ErrorMode) (*SvgIcon, error) {
	fin, errf := os.Open(iconFile)
	if errf != nil {
		return nil, errf
	}
	defer fin.Close()
	return ReadIconStream(fin, errMode)
}
