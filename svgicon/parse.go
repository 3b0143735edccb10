package svgicon

import (
	"encoding/xml"
	"math"
	"strings"
)

type (
	// iconCursor is used while parsing SVG files
	iconCursor struct {
		pathCursor
		icon                            *SvgIcon
		sheet                           *styleSheet
		styleStack                      []PathStyle
		grad                            *Gradient
		inTitleText, inDescText, inGrad bool
		rootSeen                        bool
		shape                           *Bounds // declared geometry of the current <rect>
		useDepth                        int

		// definitions recording
		defsOpen   int    // opened elements since the defs (or symbol) start tag
		defsRoot   string // tag which started the recording
		skipOpen   int    // opened elements inside a never painted container
		currentDef []definition
	}

	// definition is used to store what's given in a def tag
	definition struct {
		ID, Tag string
		Attrs   []xml.Attr
	}
)

const svgNamespace = "http://www.w3.org/2000/svg"

// elements whose content is not painted directly
var defsLike = map[string]bool{
	"defs":     true,
	"symbol":   true,
	"clipPath": true,
	"mask":     true,
	"pattern":  true,
	"marker":   true,
	"metadata": true,
}

// elements grouping others, whose end must be recorded in definitions
var containers = map[string]bool{
	"g":      true,
	"symbol": true,
	"a":      true,
	"switch": true,
}

func (c *iconCursor) readTransformAttr(m1 Matrix2D, k string) (Matrix2D, error) {
	ln := len(c.points)
	switch k {
	case "rotate":
		if ln == 1 {
			m1 = m1.Rotate(c.points[0] * math.Pi / 180)
		} else if ln == 3 {
			m1 = m1.Translate(c.points[1], c.points[2]).
				Rotate(c.points[0]*math.Pi/180).
				Translate(-c.points[1], -c.points[2])
		} else {
			return m1, errParamMismatch
		}
	case "translate":
		if ln == 1 {
			m1 = m1.Translate(c.points[0], 0)
		} else if ln == 2 {
			m1 = m1.Translate(c.points[0], c.points[1])
		} else {
			return m1, errParamMismatch
		}
	case "skewx":
		if ln == 1 {
			m1 = m1.SkewX(c.points[0] * math.Pi / 180)
		} else {
			return m1, errParamMismatch
		}
	case "skewy":
		if ln == 1 {
			m1 = m1.SkewY(c.points[0] * math.Pi / 180)
		} else {
			return m1, errParamMismatch
		}
	case "scale":
		if ln == 1 {
			m1 = m1.Scale(c.points[0], c.points[0])
		} else if ln == 2 {
			m1 = m1.Scale(c.points[0], c.points[1])
		} else {
			return m1, errParamMismatch
		}
	case "matrix":
		if ln == 6 {
			m1 = m1.Mult(Matrix2D{
				A: c.points[0],
				B: c.points[1],
				C: c.points[2],
				D: c.points[3],
				E: c.points[4],
				F: c.points[5]})
		} else {
			return m1, errParamMismatch
		}
	default:
		return m1, errParamMismatch
	}
	return m1, nil
}

// parseTransformFrom applies the transform list `v` to `m1`
func (c *iconCursor) parseTransformFrom(m1 Matrix2D, v string) (Matrix2D, error) {
	ts := strings.Split(v, ")")
	for _, t := range ts {
		t = strings.TrimSpace(strings.TrimLeft(t, ", \t\n"))
		if len(t) == 0 {
			continue
		}
		d := strings.Split(t, "(")
		if len(d) != 2 || len(d[1]) < 1 {
			return m1, errParamMismatch // badly formed transformation
		}
		err := c.getPoints(d[1])
		if err != nil {
			return m1, err
		}
		m1, err = c.readTransformAttr(m1, strings.ToLower(strings.TrimSpace(d[0])))
		if err != nil {
			return m1, err
		}
	}
	return m1, nil
}

// readPaint resolves a fill or stroke value
func (c *iconCursor) readPaint(curStyle *PathStyle, v string, current Pattern) (Pattern, error) {
	if gradient, ok := c.readGradURL(v, current); ok {
		return gradient, nil
	}
	optCol, err := parseSVGColor(v)
	if err == errCurrentColor {
		return curStyle.currentColor.asPattern(), nil
	}
	if err != nil {
		return current, err
	}
	return optCol.asPattern(), nil
}

func (c *iconCursor) readStyleAttr(curStyle *PathStyle, k, v string) error {
	if v == "inherit" {
		return nil // the style is already a copy of the parent one
	}
	switch k {
	case "fill":
		p, err := c.readPaint(curStyle, v, curStyle.FillerColor)
		curStyle.FillerColor = p
		return err
	case "stroke":
		p, err := c.readPaint(curStyle, v, curStyle.LinerColor)
		curStyle.LinerColor = p
		return err
	case "color":
		col, err := parseSVGColor(v)
		if err == errCurrentColor {
			return nil
		}
		if err != nil {
			return err
		}
		curStyle.currentColor = col
	case "fill-rule":
		curStyle.UseNonZeroWinding = v != "evenodd"
	case "display":
		if v == "none" {
			curStyle.notDisplayed = true
		}
	case "visibility":
		curStyle.hidden = v == "hidden" || v == "collapse"
	case "stroke-linegap":
		switch v {
		case "flat":
			curStyle.Join.LineGap = FlatGap
		case "round":
			curStyle.Join.LineGap = RoundGap
		case "cubic":
			curStyle.Join.LineGap = CubicGap
		case "quadratic":
			curStyle.Join.LineGap = QuadraticGap
		}
	case "stroke-leadlinecap":
		switch v {
		case "butt":
			curStyle.Join.LeadLineCap = ButtCap
		case "round":
			curStyle.Join.LeadLineCap = RoundCap
		case "square":
			curStyle.Join.LeadLineCap = SquareCap
		case "cubic":
			curStyle.Join.LeadLineCap = CubicCap
		case "quadratic":
			curStyle.Join.LeadLineCap = QuadraticCap
		}
	case "stroke-linecap":
		switch v {
		case "butt":
			curStyle.Join.TrailLineCap = ButtCap
		case "round":
			curStyle.Join.TrailLineCap = RoundCap
		case "square":
			curStyle.Join.TrailLineCap = SquareCap
		case "cubic":
			curStyle.Join.TrailLineCap = CubicCap
		case "quadratic":
			curStyle.Join.TrailLineCap = QuadraticCap
		}
	case "stroke-linejoin":
		switch v {
		case "miter":
			curStyle.Join.LineJoin = Miter
		case "miter-clip":
			curStyle.Join.LineJoin = MiterClip
		case "arc-clip":
			curStyle.Join.LineJoin = ArcClip
		case "round":
			curStyle.Join.LineJoin = Round
		case "arc":
			curStyle.Join.LineJoin = Arc
		case "bevel":
			curStyle.Join.LineJoin = Bevel
		}
	case "stroke-miterlimit":
		mLimit, err := parseBasicFloat(v)
		if err != nil {
			return err
		}
		curStyle.Join.MiterLimit = fToFixed(mLimit)
	case "stroke-width":
		width, err := c.parseUnit(v, diagPercentage)
		if err != nil {
			return err
		}
		curStyle.LineWidth = width
	case "stroke-dashoffset":
		dashOffset, err := c.parseUnit(v, diagPercentage)
		if err != nil {
			return err
		}
		curStyle.Dash.DashOffset = dashOffset
	case "stroke-dasharray":
		if v == "none" {
			curStyle.Dash.Dash = nil
			break
		}
		dashes := splitOnCommaOrSpace(v)
		dList := make([]float64, len(dashes))
		for i, dstr := range dashes {
			d, err := c.parseUnit(dstr, diagPercentage)
			if err != nil {
				return err
			}
			dList[i] = d
		}
		curStyle.Dash.Dash = dList
	case "opacity", "stroke-opacity", "fill-opacity":
		op, err := parseOpacity(v)
		if err != nil {
			return err
		}
		if k != "stroke-opacity" {
			curStyle.FillOpacity *= op
		}
		if k != "fill-opacity" {
			curStyle.LineOpacity *= op
		}
	case "transform":
		m, err := c.parseTransformFrom(curStyle.transform, v)
		if err != nil {
			return err
		}
		curStyle.transform = m
	}
	return nil
}

// pushStyle parses the style element, and push it on the style stack.
// Note that this parses the direct presentation attributes, then the
// matching stylesheet rules, then the contents of the style attribute,
// the later taking precedence.
func (c *iconCursor) pushStyle(tag string, attrs []xml.Attr) error {
	var pairs [][2]string
	var styles []string
	for _, attr := range attrs {
		switch strings.ToLower(attr.Name.Local) {
		case "style":
			styles = append(styles, strings.Split(attr.Value, ";")...)
		default:
			pairs = append(pairs, [2]string{attr.Name.Local, attr.Value})
		}
	}
	pairs = append(pairs, c.sheet.declarations(tag, attrs)...)
	for _, decl := range styles {
		if kv := strings.SplitN(decl, ":", 2); len(kv) == 2 {
			pairs = append(pairs, [2]string{kv[0], kv[1]})
		}
	}
	// Make a copy of the top style
	curStyle := c.styleStack[len(c.styleStack)-1]
	// the color property must be known before resolving currentColor
	for _, kv := range pairs {
		if strings.ToLower(strings.TrimSpace(kv[0])) == "color" {
			if err := c.readStyleAttr(&curStyle, "color", strings.TrimSpace(kv[1])); err != nil {
				return err
			}
		}
	}
	for _, kv := range pairs {
		k := strings.ToLower(strings.TrimSpace(kv[0]))
		v := strings.TrimSpace(kv[1])
		if k == "color" {
			continue
		}
		if err := c.readStyleAttr(&curStyle, k, v); err != nil {
			return err
		}
	}
	c.styleStack = append(c.styleStack, curStyle) // Push style onto stack
	return nil
}

func (c *iconCursor) popStyle() {
	c.styleStack = c.styleStack[:len(c.styleStack)-1]
}

func isGradientTag(tag string) bool {
	return tag == "radialGradient" || tag == "linearGradient"
}

func (c *iconCursor) readStartElement(se xml.StartElement) (err error) {
	tag := se.Name.Local
	if c.skipOpen > 0 {
		c.skipOpen++
		return nil
	}
	if c.defsOpen > 0 {
		c.defsOpen++
		if isGradientTag(tag) || c.inGrad {
			return c.drawElement(se)
		}
		topLevel := c.defsOpen == 2 && c.defsRoot == "defs"
		if defsLike[tag] && !(tag == "symbol" && topLevel) {
			// content of clipPath, mask, etc... is never painted
			c.defsOpen--
			c.skipOpen = 1
			return nil
		}
		if topLevel {
			c.storeDef()
		}
		c.currentDef = append(c.currentDef, definition{
			ID:    attrValue(se.Attr, "id"),
			Tag:   tag,
			Attrs: se.Attr,
		})
		return nil
	}
	if defsLike[tag] {
		if tag != "defs" && tag != "symbol" {
			c.skipOpen = 1
			return nil
		}
		c.storeDef()
		c.defsOpen, c.defsRoot = 1, tag
		if tag == "symbol" {
			c.currentDef = []definition{{ID: attrValue(se.Attr, "id"), Tag: tag, Attrs: se.Attr}}
		}
		return nil
	}
	return c.drawElement(se)
}

func (c *iconCursor) drawElement(se xml.StartElement) error {
	tag := se.Name.Local
	df, ok := drawFuncs[tag]
	if !ok {
		// elements of editor namespaces are metadata
		if se.Name.Space == "" || se.Name.Space == svgNamespace {
			c.icon.addUnsupported(tag)
		}
		return c.handleError("Cannot process svg element " + tag)
	}
	if err := df(c, se.Attr); err != nil {
		return err
	}
	c.flushPath(tag, se.Attr)
	return nil
}

// storeDef registers the pending definition, if any
func (c *iconCursor) storeDef() {
	if len(c.currentDef) > 0 && c.currentDef[0].ID != "" {
		c.icon.defs[c.currentDef[0].ID] = c.currentDef
	}
	c.currentDef = nil
}

func (c *iconCursor) readEndElement(se xml.EndElement) {
	c.popStyle()
	tag := se.Name.Local
	if c.skipOpen > 0 {
		c.skipOpen--
		return
	}
	if c.defsOpen > 0 {
		c.defsOpen--
		if containers[tag] {
			c.currentDef = append(c.currentDef, definition{Tag: "endg"})
		}
		if c.defsOpen == 0 {
			c.storeDef()
		}
	}
	switch tag {
	case "title":
		c.inTitleText = false
	case "desc":
		c.inDescText = false
	case "radialGradient", "linearGradient":
		c.inGrad = false
	}
}

// flushPath stores the path built by the last element, if any
func (c *iconCursor) flushPath(tag string, attrs []xml.Attr) {
	shape := c.shape
	c.shape = nil
	if len(c.path) == 0 {
		return
	}
	style := c.styleStack[len(c.styleStack)-1]
	if style.hidden || style.notDisplayed {
		c.path = c.path[:0]
		return
	}
	pathCopy := append(Path{}, c.path...)
	if shape == nil && (tag == "path" || tag == "polygon" || tag == "polyline") {
		shape = pathCopy.AxisRect()
	}
	c.icon.SVGPaths = append(c.icon.SVGPaths, SvgPath{
		Path:   pathCopy,
		Style:  style,
		Source: Element{Tag: tag, ID: attrValue(attrs, "id"), Rect: shape},
	})
	c.path = c.path[:0]
}

func attrValue(attrs []xml.Attr, name string) string {
	for _, attr := range attrs {
		if attr.Name.Local == name {
			return attr.Value
		}
	}
	return ""
}
