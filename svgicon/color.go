package svgicon

import (
	"encoding/xml"
	"errors"
	"fmt"
	"image/color"
	"strconv"
	"strings"

	"github.com/benoitkugler/artprint/colors"
	"golang.org/x/image/colornames"
)

// Pattern groups a basic color and a gradient pattern
// A nil value may by used to indicated that the function (fill or stroke) is off
type Pattern interface {
	isPattern()
}

// PlainColor is an uniform color, which remembers
// how it was written in the source document.
type PlainColor struct {
	color.NRGBA
	Token colors.Token // empty for colors not coming from a literal
}

func (PlainColor) isPattern() {}
func (Gradient) isPattern()   {}

// NewPlainColor returns a new opaque color.
func NewPlainColor(r, g, b, a uint8) PlainColor {
	return PlainColor{NRGBA: color.NRGBA{R: r, G: g, B: b, A: a}}
}

// RGB drops the alpha channel
func (p PlainColor) RGB() colors.RGB { return colors.RGB{R: p.R, G: p.G, B: p.B} }

// optionnalColor is either a color or "none"
type optionnalColor struct {
	valid bool
	color PlainColor
}

func (o optionnalColor) asPattern() Pattern {
	if !o.valid {
		return nil
	}
	return o.color
}

func (o optionnalColor) asColor() color.Color {
	if !o.valid {
		return color.NRGBA{}
	}
	return o.color
}

var errCurrentColor = errors.New("currentColor")

// parseSVGColor parses an SVG color string in all forms
// (including named colors and rgba()). "currentColor" is
// signaled by errCurrentColor, and must be resolved by the caller.
func parseSVGColor(colorStr string) (optionnalColor, error) {
	v := strings.TrimSpace(colorStr)
	low := strings.ToLower(v)
	switch low {
	case "", "none":
		return optionnalColor{}, nil
	case "transparent":
		return optionnalColor{valid: true, color: NewPlainColor(0, 0, 0, 0)}, nil
	case "currentcolor":
		return optionnalColor{}, errCurrentColor
	}
	if rgb, err := colors.ParseToken(v); err == nil {
		c := NewPlainColor(rgb.R, rgb.G, rgb.B, 0xff)
		c.Token = colors.Token(v)
		return optionnalColor{valid: true, color: c}, nil
	}
	if strings.HasPrefix(low, "rgba(") && strings.HasSuffix(low, ")") {
		args := strings.Split(low[5:len(low)-1], ",")
		if len(args) != 4 {
			return optionnalColor{}, fmt.Errorf("invalid color %s", colorStr)
		}
		rgb, err := colors.ParseToken("rgb(" + strings.Join(args[:3], ",") + ")")
		if err != nil {
			return optionnalColor{}, err
		}
		alpha, err := readFraction(args[3])
		if err != nil {
			return optionnalColor{}, err
		}
		c := NewPlainColor(rgb.R, rgb.G, rgb.B, uint8(clamp01(alpha)*255+0.5))
		return optionnalColor{valid: true, color: c}, nil
	}
	if named, ok := colornames.Map[low]; ok {
		return optionnalColor{valid: true, color: NewPlainColor(named.R, named.G, named.B, named.A)}, nil
	}
	return optionnalColor{}, fmt.Errorf("invalid color %s", colorStr)
}

func clamp01(f float64) float64 {
	if f < 0 {
		return 0
	} else if f > 1 {
		return 1
	}
	return f
}

// readGradURL returns the gradient referenced by `v`, if it is an url(#id) form.
// Unknown references fall back to `defaultColor`.
func (c *iconCursor) readGradURL(v string, defaultColor Pattern) (grad Pattern, ok bool) {
	if !strings.HasPrefix(v, "url(") || !strings.Contains(v, ")") {
		return nil, false
	}
	urlStr := strings.TrimSpace(v[4:strings.Index(v, ")")])
	urlStr = strings.Trim(urlStr, `'"`)
	if !strings.HasPrefix(urlStr, "#") {
		return defaultColor, true
	}
	if g, has := c.icon.grads[urlStr[1:]]; has {
		return *g, true
	}
	return defaultColor, true
}

// readGradAttr reads attributes shared by linear and radial gradients
func (c *iconCursor) readGradAttr(attr xml.Attr) (err error) {
	switch attr.Name.Local {
	case "gradientTransform":
		c.grad.Matrix, err = c.parseTransformFrom(Identity, attr.Value)
	case "gradientUnits":
		switch strings.TrimSpace(attr.Value) {
		case "userSpaceOnUse":
			c.grad.Units = UserSpaceOnUse
		case "objectBoundingBox":
			c.grad.Units = ObjectBoundingBox
		}
	case "spreadMethod":
		switch strings.TrimSpace(attr.Value) {
		case "pad":
			c.grad.Spread = PadSpread
		case "reflect":
			c.grad.Spread = ReflectSpread
		case "repeat":
			c.grad.Spread = RepeatSpread
		}
	}
	return err
}

// GradientUnits is the type for gradient units
type GradientUnits byte

// SVG bounds paremater constants
const (
	ObjectBoundingBox GradientUnits = iota
	UserSpaceOnUse
)

// SpreadMethod is the type for spread parameters
type SpreadMethod byte

// SVG spread parameter constants
const (
	PadSpread SpreadMethod = iota
	ReflectSpread
	RepeatSpread
)

// GradStop represents a stop of a SVG 2.0 gradient
type GradStop struct {
	StopColor color.Color
	Offset    float64
	Opacity   float64
}

// Gradient holds a description of an SVG 2.0 gradient
type Gradient struct {
	Direction gradientDirecter
	Stops     []GradStop
	Bounds    Bounds
	Matrix    Matrix2D
	Spread    SpreadMethod
	Units     GradientUnits
}

// Tokens returns the literal colors used by the stops.
func (g Gradient) Tokens() []colors.Token {
	var out []colors.Token
	for _, s := range g.Stops {
		if pc, ok := s.StopColor.(PlainColor); ok && pc.Token != "" {
			out = append(out, pc.Token)
		}
	}
	return out
}

// radial or linear
type gradientDirecter interface {
	isRadial() bool
}

// Linear is x1, y1, x2, y2
type Linear [4]float64

func (Linear) isRadial() bool { return false }

// Radial is cx, cy, fx, fy, r, fr
type Radial [6]float64

func (Radial) isRadial() bool { return true }

func parseOpacity(v string) (float64, error) {
	f, err := readFraction(v)
	if err != nil {
		return 0, err
	}
	return clamp01(f), nil
}

func readFraction(v string) (f float64, err error) {
	v = strings.TrimSpace(v)
	d := 1.0
	if strings.HasSuffix(v, "%") {
		d = 100
		v = strings.TrimSuffix(v, "%")
	}
	f, err = strconv.ParseFloat(v, 64)
	f /= d
	return
}
