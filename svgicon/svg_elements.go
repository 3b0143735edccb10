package svgicon

import (
	"encoding/xml"
	"errors"
	"strings"
)

func init() {
	// avoids cyclical static declaration
	// called on package initialization
	drawFuncs["use"] = useF
}

type svgFunc func(c *iconCursor, attrs []xml.Attr) error

var drawFuncs = map[string]svgFunc{
	"svg":            svgF,
	"g":              gF,
	"a":              gF,
	"switch":         gF,
	"symbol":         gF,
	"line":           lineF,
	"stop":           stopF,
	"rect":           rectF,
	"circle":         circleF,
	"ellipse":        circleF, //circleF handles ellipse also
	"polyline":       polylineF,
	"polygon":        polygonF,
	"path":           pathF,
	"desc":           descF,
	"title":          titleF,
	"linearGradient": linearGradientF,
	"radialGradient": radialGradientF,
	"image":          imageF,
	"style":          gF,
}

// maximum nesting of <use> references
const maxUseDepth = 16

func svgF(c *iconCursor, attrs []xml.Attr) error {
	if c.rootSeen { // nested svg elements are handled as groups
		return nil
	}
	c.rootSeen = true
	c.icon.ViewBox = Bounds{}
	var width, height float64
	var err error
	for _, attr := range attrs {
		switch attr.Name.Local {
		case "viewBox":
			err = c.getPoints(attr.Value)
			if len(c.points) != 4 {
				return errParamMismatch
			}
			c.icon.ViewBox.X = c.points[0]
			c.icon.ViewBox.Y = c.points[1]
			c.icon.ViewBox.W = c.points[2]
			c.icon.ViewBox.H = c.points[3]
		case "width":
			c.icon.Width = attr.Value
			if !strings.HasSuffix(attr.Value, "%") {
				width, err = parseBasicFloat(attr.Value)
			}
		case "height":
			c.icon.Height = attr.Value
			if !strings.HasSuffix(attr.Value, "%") {
				height, err = parseBasicFloat(attr.Value)
			}
		}
		if err != nil {
			return err
		}
	}
	if c.icon.ViewBox.W == 0 {
		c.icon.ViewBox.W = width
	}
	if c.icon.ViewBox.H == 0 {
		c.icon.ViewBox.H = height
	}
	return nil
}

func gF(*iconCursor, []xml.Attr) error { return nil } // g does nothing but push the style

func rectF(c *iconCursor, attrs []xml.Attr) error {
	var x, y, w, h, rx, ry float64
	var setRx, setRy bool
	var err error
	for _, attr := range attrs {
		switch attr.Name.Local {
		case "x":
			x, err = c.parseUnit(attr.Value, widthPercentage)
		case "y":
			y, err = c.parseUnit(attr.Value, heightPercentage)
		case "width":
			w, err = c.parseUnit(attr.Value, widthPercentage)
		case "height":
			h, err = c.parseUnit(attr.Value, heightPercentage)
		case "rx":
			setRx = true
			rx, err = c.parseUnit(attr.Value, widthPercentage)
		case "ry":
			setRy = true
			ry, err = c.parseUnit(attr.Value, heightPercentage)
		}
		if err != nil {
			return err
		}
	}
	if w <= 0 || h <= 0 {
		return nil
	}
	if setRx && !setRy {
		ry = rx
	} else if setRy && !setRx {
		rx = ry
	}
	c.shape = &Bounds{X: x, Y: y, W: w, H: h}
	c.path.addRoundRect(x, y, x+w, y+h, rx, ry)
	return nil
}

func circleF(c *iconCursor, attrs []xml.Attr) error {
	var cx, cy, rx, ry float64
	var setRx, setRy bool
	var err error
	for _, attr := range attrs {
		switch attr.Name.Local {
		case "cx":
			cx, err = c.parseUnit(attr.Value, widthPercentage)
		case "cy":
			cy, err = c.parseUnit(attr.Value, heightPercentage)
		case "r":
			rx, err = c.parseUnit(attr.Value, diagPercentage)
			ry = rx
			setRx, setRy = true, true
		case "rx":
			setRx = true
			rx, err = c.parseUnit(attr.Value, widthPercentage)
		case "ry":
			setRy = true
			ry, err = c.parseUnit(attr.Value, heightPercentage)
		}
		if err != nil {
			return err
		}
	}
	if setRx && !setRy {
		ry = rx
	} else if setRy && !setRx {
		rx = ry
	}
	if rx <= 0 || ry <= 0 { // not drawn, but not an error
		return nil
	}
	c.path.addEllipse(cx, cy, rx, ry)
	return nil
}

func lineF(c *iconCursor, attrs []xml.Attr) error {
	var x1, x2, y1, y2 float64
	var err error
	for _, attr := range attrs {
		switch attr.Name.Local {
		case "x1":
			x1, err = c.parseUnit(attr.Value, widthPercentage)
		case "x2":
			x2, err = c.parseUnit(attr.Value, widthPercentage)
		case "y1":
			y1, err = c.parseUnit(attr.Value, heightPercentage)
		case "y2":
			y2, err = c.parseUnit(attr.Value, heightPercentage)
		}
		if err != nil {
			return err
		}
	}
	c.path.Start(toFixedP(x1, y1))
	c.path.Line(toFixedP(x2, y2))
	c.path.Stop(false)
	return nil
}

func polylineF(c *iconCursor, attrs []xml.Attr) error {
	c.points = c.points[:0]
	var err error
	for _, attr := range attrs {
		switch attr.Name.Local {
		case "points":
			err = c.getPoints(attr.Value)
			if len(c.points)%2 != 0 {
				return errors.New("polygon has odd number of points")
			}
		}
		if err != nil {
			return err
		}
	}
	if len(c.points) >= 4 {
		c.path.Start(toFixedP(c.points[0], c.points[1]))
		for i := 2; i < len(c.points)-1; i += 2 {
			c.path.Line(toFixedP(c.points[i], c.points[i+1]))
		}
	}
	return nil
}

func polygonF(c *iconCursor, attrs []xml.Attr) error {
	err := polylineF(c, attrs)
	if len(c.points) >= 4 {
		c.path.Stop(true)
	}
	return err
}

func pathF(c *iconCursor, attrs []xml.Attr) error {
	var err error
	for _, attr := range attrs {
		switch attr.Name.Local {
		case "d":
			err = c.compilePath(attr.Value)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func descF(c *iconCursor, attrs []xml.Attr) error {
	c.inDescText = true
	c.icon.Descriptions = append(c.icon.Descriptions, "")
	return nil
}

func titleF(c *iconCursor, attrs []xml.Attr) error {
	c.inTitleText = true
	c.icon.Titles = append(c.icon.Titles, "")
	return nil
}

func imageF(c *iconCursor, attrs []xml.Attr) error {
	im := SvgImage{Source: Element{Tag: "image"}}
	var err error
	for _, attr := range attrs {
		switch attr.Name.Local {
		case "x":
			im.X, err = c.parseUnit(attr.Value, widthPercentage)
		case "y":
			im.Y, err = c.parseUnit(attr.Value, heightPercentage)
		case "width":
			im.W, err = c.parseUnit(attr.Value, widthPercentage)
		case "height":
			im.H, err = c.parseUnit(attr.Value, heightPercentage)
		case "href":
			im.Href = strings.TrimSpace(attr.Value)
		case "id":
			im.Source.ID = attr.Value
		}
		if err != nil {
			return err
		}
	}
	style := c.styleStack[len(c.styleStack)-1]
	if im.W <= 0 || im.H <= 0 || im.Href == "" || style.hidden || style.notDisplayed {
		return nil
	}
	im.Opacity = style.FillOpacity
	im.Transform = style.transform
	c.icon.Images = append(c.icon.Images, im)
	return nil
}

func linearGradientF(c *iconCursor, attrs []xml.Attr) error {
	var err error
	c.inGrad = true
	direction := Linear{0, 0, 1, 0}
	c.grad = &Gradient{Direction: direction, Bounds: c.icon.ViewBox, Matrix: Identity}
	for _, attr := range attrs {
		switch attr.Name.Local {
		case "id":
			id := attr.Value
			if len(id) > 0 {
				c.icon.grads[id] = c.grad
			} else {
				return errZeroLengthID
			}
		case "x1":
			direction[0], err = readFraction(attr.Value)
		case "y1":
			direction[1], err = readFraction(attr.Value)
		case "x2":
			direction[2], err = readFraction(attr.Value)
		case "y2":
			direction[3], err = readFraction(attr.Value)
		default:
			err = c.readGradAttr(attr)
		}
		if err != nil {
			return err
		}
	}
	c.grad.Direction = direction
	return nil
}

func radialGradientF(c *iconCursor, attrs []xml.Attr) error {
	c.inGrad = true
	direction := Radial{0.5, 0.5, 0.5, 0.5, 0.5, 0.5}
	c.grad = &Gradient{Direction: direction, Bounds: c.icon.ViewBox, Matrix: Identity}
	var setFx, setFy bool
	var err error
	for _, attr := range attrs {
		switch attr.Name.Local {
		case "id":
			id := attr.Value
			if len(id) > 0 {
				c.icon.grads[id] = c.grad
			} else {
				return errZeroLengthID
			}
		case "cx":
			direction[0], err = readFraction(attr.Value)
		case "cy":
			direction[1], err = readFraction(attr.Value)
		case "fx":
			setFx = true
			direction[2], err = readFraction(attr.Value)
		case "fy":
			setFy = true
			direction[3], err = readFraction(attr.Value)
		case "r":
			direction[4], err = readFraction(attr.Value)
		case "fr":
			direction[5], err = readFraction(attr.Value)
		default:
			err = c.readGradAttr(attr)
		}
		if err != nil {
			return err
		}
	}
	if !setFx { // set fx to cx by default
		direction[2] = direction[0]
	}
	if !setFy { // set fy to cy by default
		direction[3] = direction[1]
	}
	c.grad.Direction = direction
	return nil
}

func stopF(c *iconCursor, attrs []xml.Attr) error {
	if !c.inGrad {
		return nil
	}
	var pairs [][2]string
	for _, attr := range attrs {
		if attr.Name.Local == "style" {
			for _, decl := range strings.Split(attr.Value, ";") {
				if kv := strings.SplitN(decl, ":", 2); len(kv) == 2 {
					pairs = append(pairs, [2]string{strings.TrimSpace(kv[0]), strings.TrimSpace(kv[1])})
				}
			}
			continue
		}
		pairs = append(pairs, [2]string{attr.Name.Local, attr.Value})
	}
	stop := GradStop{Opacity: 1.0, StopColor: NewPlainColor(0, 0, 0, 0xff)}
	var err error
	for _, kv := range pairs {
		switch kv[0] {
		case "offset":
			stop.Offset, err = readFraction(kv[1])
		case "stop-color":
			var optColor optionnalColor
			optColor, err = parseSVGColor(kv[1])
			if err == errCurrentColor {
				optColor, err = c.styleStack[len(c.styleStack)-1].currentColor, nil
			}
			stop.StopColor = optColor.asColor()
		case "stop-opacity":
			stop.Opacity, err = parseOpacity(kv[1])
		}
		if err != nil {
			return err
		}
	}
	c.grad.Stops = append(c.grad.Stops, stop)
	return nil
}

func useF(c *iconCursor, attrs []xml.Attr) error {
	var (
		href string
		x, y float64
		err  error
	)
	for _, attr := range attrs {
		switch attr.Name.Local {
		case "href":
			href = attr.Value
		case "x":
			x, err = c.parseUnit(attr.Value, widthPercentage)
		case "y":
			y, err = c.parseUnit(attr.Value, heightPercentage)
		}
		if err != nil {
			return err
		}
	}
	if href == "" {
		return errors.New("only use tags with href is supported")
	}
	if !strings.HasPrefix(href, "#") {
		return errors.New("only the ID CSS selector is supported")
	}
	defs, ok := c.icon.defs[href[1:]]
	if !ok {
		return c.handleError("href ID in use statement was not found in saved defs: " + href)
	}
	if c.useDepth >= maxUseDepth {
		return errors.New("too many nested use elements")
	}
	c.useDepth++
	defer func() { c.useDepth-- }()

	// x and y are an additional translation
	top := &c.styleStack[len(c.styleStack)-1]
	top.transform = top.transform.Translate(x, y)

	depth := len(c.styleStack)
	for _, def := range defs {
		if def.Tag == "endg" {
			if len(c.styleStack) > depth {
				c.popStyle()
			}
			continue
		}
		if err = c.pushStyle(def.Tag, def.Attrs); err != nil {
			return err
		}
		df, ok := drawFuncs[def.Tag]
		if !ok {
			c.popStyle()
			if err = c.handleError("Cannot process svg element " + def.Tag); err != nil {
				return err
			}
			continue
		}
		if err = df(c, def.Attrs); err != nil {
			return err
		}
		c.flushPath(def.Tag, def.Attrs)
		if !containers[def.Tag] {
			c.popStyle()
		}
	}
	c.styleStack = c.styleStack[:depth]
	return nil
}
