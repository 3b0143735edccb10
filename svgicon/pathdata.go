package svgicon

import (
	"fmt"
	"math"
	"strconv"
	"unicode"

	"golang.org/x/image/math/fixed"
)

// This file implements the transformation from SVG path data
// and high level shapes to their path equivalent

// maxDx is the maximum radians a cubic splice is allowed to span
// in ellipse parametric when approximating an off-axis ellipse.
const maxDx float64 = math.Pi / 8

// kappa is the control point distance used to approximate a quarter of circle
const kappa = 0.5522847498

// pathCursor is used to parse SVG format path strings into a Path
type pathCursor struct {
	path                   Path
	placeX, placeY         float64 // current point
	cntlPtX, cntlPtY       float64 // last control point, used by S and T
	pathStartX, pathStartY float64
	points                 []float64
	lastKey                byte
	inPath                 bool
	errorMode              ErrorMode
}

func (c *pathCursor) init() {
	c.placeX, c.placeY = 0, 0
	c.pathStartX, c.pathStartY = 0, 0
	c.points = c.points[:0]
	c.lastKey = ' '
	c.inPath = false
}

// toFixedP converts two floats to a fixed point.
func toFixedP(x, y float64) (p fixed.Point26_6) {
	p.X = fixed.Int26_6(x * 64)
	p.Y = fixed.Int26_6(y * 64)
	return
}

func isDigit(b byte) bool { return '0' <= b && b <= '9' }

// scanNumber returns the end of the number starting at s[i],
// or i if there is none.
func scanNumber(s string, i int) int {
	j := i
	if j < len(s) && (s[j] == '+' || s[j] == '-') {
		j++
	}
	digits := false
	for j < len(s) && isDigit(s[j]) {
		j++
		digits = true
	}
	if j < len(s) && s[j] == '.' {
		j++
		for j < len(s) && isDigit(s[j]) {
			j++
			digits = true
		}
	}
	if !digits {
		return i
	}
	if j < len(s) && (s[j] == 'e' || s[j] == 'E') {
		k := j + 1
		if k < len(s) && (s[k] == '+' || s[k] == '-') {
			k++
		}
		if k < len(s) && isDigit(s[k]) {
			for k < len(s) && isDigit(s[k]) {
				k++
			}
			j = k
		}
	}
	return j
}

// readNumbers scans a list of numbers, separated by spaces, commas or nothing
// as in "10-5.5.5". When `arcFlags` is true, the 4th and 5th values of each
// group of 7 are read as one digit flags.
func readNumbers(dst []float64, s string, arcFlags bool) ([]float64, error) {
	dst = dst[:0]
	for i := 0; i < len(s); {
		ch := s[i]
		if ch == ' ' || ch == ',' || ch == '\t' || ch == '\n' || ch == '\r' {
			i++
			continue
		}
		if arcFlags && (len(dst)%7 == 3 || len(dst)%7 == 4) {
			if ch != '0' && ch != '1' {
				return dst, errParamMismatch
			}
			dst = append(dst, float64(ch-'0'))
			i++
			continue
		}
		j := scanNumber(s, i)
		if j == i {
			return dst, fmt.Errorf("invalid number in %q", s)
		}
		f, err := strconv.ParseFloat(s[i:j], 64)
		if err != nil {
			return dst, err
		}
		dst = append(dst, f)
		i = j
	}
	return dst, nil
}

// getPoints reads a set of floating point values from the SVG format number string,
// and add them to the cursor's points slice.
func (c *pathCursor) getPoints(dataPoints string) (err error) {
	c.points, err = readNumbers(c.points, dataPoints, false)
	return err
}

// compilePath translates the svgPath description string into a path.
func (c *pathCursor) compilePath(svgPath string) error {
	c.init()
	lastIndex := -1
	for i, v := range svgPath {
		if unicode.IsLetter(v) && v != 'e' && v != 'E' {
			if lastIndex != -1 {
				if err := c.addSeg(svgPath[lastIndex:i]); err != nil {
					return err
				}
			}
			lastIndex = i
		}
	}
	if lastIndex != -1 {
		if err := c.addSeg(svgPath[lastIndex:]); err != nil {
			return err
		}
	}
	return nil
}

// reflectControl returns the reflection of the last control point
// if the previous command is in `keys`, or the current point.
func (c *pathCursor) reflectControl(keys string) (x, y float64) {
	for i := 0; i < len(keys); i++ {
		if c.lastKey == keys[i] {
			return 2*c.placeX - c.cntlPtX, 2*c.placeY - c.cntlPtY
		}
	}
	return c.placeX, c.placeY
}

// ensureStart opens a sub path at the current point if needed,
// for instance when a drawing command follows a close command.
func (c *pathCursor) ensureStart() {
	if !c.inPath {
		c.path.Start(toFixedP(c.placeX, c.placeY))
		c.pathStartX, c.pathStartY = c.placeX, c.placeY
		c.inPath = true
	}
}

func (c *pathCursor) lineTo(x, y float64) {
	c.ensureStart()
	c.path.Line(toFixedP(x, y))
	c.placeX, c.placeY = x, y
}

// addSeg decodes an SVG seqment string into equivalent raster path commands saved
// in the cursor's Path
func (c *pathCursor) addSeg(segString string) error {
	key := segString[0]
	var err error
	c.points, err = readNumbers(c.points, segString[1:], key == 'a' || key == 'A')
	if err != nil {
		return err
	}
	l := len(c.points)
	rel := unicode.IsLower(rune(key))
	k := byte(unicode.ToUpper(rune(key)))
	var dx, dy float64 // offset for relative commands, updated per group
	offset := func() {
		if rel {
			dx, dy = c.placeX, c.placeY
		}
	}
	switch k {
	case 'Z':
		if l != 0 {
			return errParamMismatch
		}
		if c.inPath {
			c.path.Stop(true)
		}
		c.placeX, c.placeY = c.pathStartX, c.pathStartY
		c.inPath = false
	case 'M':
		if l < 2 || l%2 != 0 {
			return errParamMismatch
		}
		offset()
		c.placeX, c.placeY = c.points[0]+dx, c.points[1]+dy
		c.pathStartX, c.pathStartY = c.placeX, c.placeY
		c.path.Start(toFixedP(c.placeX, c.placeY))
		c.inPath = true
		for i := 2; i < l; i += 2 { // implicit line to
			offset()
			c.lineTo(c.points[i]+dx, c.points[i+1]+dy)
		}
	case 'L':
		if l == 0 || l%2 != 0 {
			return errParamMismatch
		}
		for i := 0; i < l; i += 2 {
			offset()
			c.lineTo(c.points[i]+dx, c.points[i+1]+dy)
		}
	case 'H':
		if l == 0 {
			return errParamMismatch
		}
		for _, x := range c.points {
			offset()
			c.lineTo(x+dx, c.placeY)
		}
	case 'V':
		if l == 0 {
			return errParamMismatch
		}
		for _, y := range c.points {
			offset()
			c.lineTo(c.placeX, y+dy)
		}
	case 'C', 'S':
		n := 6
		if k == 'S' {
			n = 4
		}
		if l == 0 || l%n != 0 {
			return errParamMismatch
		}
		for i := 0; i < l; i += n {
			offset()
			var x1, y1 float64
			p := c.points[i : i+n]
			if k == 'C' {
				x1, y1 = p[0]+dx, p[1]+dy
				p = p[2:]
			} else {
				x1, y1 = c.reflectControl("CS")
			}
			x2, y2, x, y := p[0]+dx, p[1]+dy, p[2]+dx, p[3]+dy
			c.ensureStart()
			c.path.CubeBezier(toFixedP(x1, y1), toFixedP(x2, y2), toFixedP(x, y))
			c.cntlPtX, c.cntlPtY = x2, y2
			c.placeX, c.placeY = x, y
			c.lastKey = k
		}
	case 'Q', 'T':
		n := 4
		if k == 'T' {
			n = 2
		}
		if l == 0 || l%n != 0 {
			return errParamMismatch
		}
		for i := 0; i < l; i += n {
			offset()
			var x1, y1 float64
			p := c.points[i : i+n]
			if k == 'Q' {
				x1, y1 = p[0]+dx, p[1]+dy
				p = p[2:]
			} else {
				x1, y1 = c.reflectControl("QT")
			}
			x, y := p[0]+dx, p[1]+dy
			c.ensureStart()
			c.path.QuadBezier(toFixedP(x1, y1), toFixedP(x, y))
			c.cntlPtX, c.cntlPtY = x1, y1
			c.placeX, c.placeY = x, y
			c.lastKey = k
		}
	case 'A':
		if l == 0 || l%7 != 0 {
			return errParamMismatch
		}
		for i := 0; i < l; i += 7 {
			offset()
			var arc [7]float64
			copy(arc[:], c.points[i:i+7])
			arc[0], arc[1] = math.Abs(arc[0]), math.Abs(arc[1])
			arc[5] += dx
			arc[6] += dy
			if arc[0] == 0 || arc[1] == 0 { // degenerated to a line
				c.lineTo(arc[5], arc[6])
				continue
			}
			if arc[5] == c.placeX && arc[6] == c.placeY { // omitted
				continue
			}
			c.ensureStart()
			cx, cy := findEllipseCenter(&arc[0], &arc[1], arc[2]*math.Pi/180, c.placeX,
				c.placeY, arc[5], arc[6], arc[4] == 0, arc[3] == 0)
			c.placeX, c.placeY = c.path.addArc(arc[:], cx, cy, c.placeX, c.placeY)
		}
	default:
		return fmt.Errorf("%w: %c", errCommandUnknown, key)
	}
	if k != 'C' && k != 'S' && k != 'Q' && k != 'T' {
		c.lastKey = k
	}
	return nil
}

// addRect adds a closed rectangle.
func (p *Path) addRect(minX, minY, maxX, maxY float64) {
	p.Start(toFixedP(minX, minY))
	p.Line(toFixedP(maxX, minY))
	p.Line(toFixedP(maxX, maxY))
	p.Line(toFixedP(minX, maxY))
	p.Stop(true)
}

// addRoundRect adds a rectangle with rounded corners of radius
// rx in the x axis and ry in the y axis.
func (p *Path) addRoundRect(minX, minY, maxX, maxY, rx, ry float64) {
	if rx <= 0 || ry <= 0 {
		p.addRect(minX, minY, maxX, maxY)
		return
	}
	rx = math.Min(rx, (maxX-minX)/2)
	ry = math.Min(ry, (maxY-minY)/2)
	kx, ky := kappa*rx, kappa*ry

	p.Start(toFixedP(minX+rx, minY))
	p.Line(toFixedP(maxX-rx, minY))
	p.CubeBezier(toFixedP(maxX-rx+kx, minY), toFixedP(maxX, minY+ry-ky), toFixedP(maxX, minY+ry))
	p.Line(toFixedP(maxX, maxY-ry))
	p.CubeBezier(toFixedP(maxX, maxY-ry+ky), toFixedP(maxX-rx+kx, maxY), toFixedP(maxX-rx, maxY))
	p.Line(toFixedP(minX+rx, maxY))
	p.CubeBezier(toFixedP(minX+rx-kx, maxY), toFixedP(minX, maxY-ry+ky), toFixedP(minX, maxY-ry))
	p.Line(toFixedP(minX, minY+ry))
	p.CubeBezier(toFixedP(minX, minY+ry-ky), toFixedP(minX+rx-kx, minY), toFixedP(minX+rx, minY))
	p.Stop(true)
}

// addEllipse adds a closed ellipse, made of four cubic curves
func (p *Path) addEllipse(cx, cy, rx, ry float64) {
	kx, ky := kappa*rx, kappa*ry
	p.Start(toFixedP(cx+rx, cy))
	p.CubeBezier(toFixedP(cx+rx, cy+ky), toFixedP(cx+kx, cy+ry), toFixedP(cx, cy+ry))
	p.CubeBezier(toFixedP(cx-kx, cy+ry), toFixedP(cx-rx, cy+ky), toFixedP(cx-rx, cy))
	p.CubeBezier(toFixedP(cx-rx, cy-ky), toFixedP(cx-kx, cy-ry), toFixedP(cx, cy-ry))
	p.CubeBezier(toFixedP(cx+kx, cy-ry), toFixedP(cx+rx, cy-ky), toFixedP(cx+rx, cy))
	p.Stop(true)
}

// addArc adds an arc to the path, and returns the last point.
// points are rx, ry, rotation, large arc flag, sweep flag, x, y
func (p *Path) addArc(points []float64, cx, cy, px, py float64) (lx, ly float64) {
	rotX := points[2] * math.Pi / 180 // Convert degress to radians
	largeArc := points[3] != 0
	sweep := points[4] != 0
	startAngle := math.Atan2(py-cy, px-cx) - rotX
	endAngle := math.Atan2(points[6]-cy, points[5]-cx) - rotX
	deltaTheta := endAngle - startAngle
	arcBig := math.Abs(deltaTheta) > math.Pi

	// Approximate ellipse using cubic bezeir splines
	etaStart := math.Atan2(math.Sin(startAngle)/points[1], math.Cos(startAngle)/points[0])
	etaEnd := math.Atan2(math.Sin(endAngle)/points[1], math.Cos(endAngle)/points[0])
	deltaEta := etaEnd - etaStart
	if arcBig != largeArc {
		if deltaEta < 0 {
			deltaEta += math.Pi * 2
		} else {
			deltaEta -= math.Pi * 2
		}
	}
	// This check might be needed if the center point of the elipse is
	// at the midpoint of the start and end lines.
	if deltaEta < 0 && sweep {
		deltaEta += math.Pi * 2
	} else if deltaEta >= 0 && !sweep {
		deltaEta -= math.Pi * 2
	}

	// Round up to determine number of cubic splines to approximate bezier curve
	segs := int(math.Abs(deltaEta)/maxDx) + 1
	dEta := deltaEta / float64(segs) // span of each segment
	// Approximate the ellipse using a set of cubic bezier curves by the method of
	// L. Maisonobe, "Drawing an elliptical arc using polylines, quadratic
	// or cubic Bezier curves", 2003
	// https://www.spaceroots.org/documents/elllipse/elliptical-arc.pdf
	tde := math.Tan(dEta / 2)
	alpha := math.Sin(dEta) * (math.Sqrt(4+3*tde*tde) - 1) / 3 // Math is fun!
	lx, ly = px, py
	sinTheta, cosTheta := math.Sin(rotX), math.Cos(rotX)
	ldx, ldy := ellipsePrime(points[0], points[1], sinTheta, cosTheta, etaStart)
	for i := 1; i <= segs; i++ {
		eta := etaStart + dEta*float64(i)
		var px, py float64
		if i == segs {
			px, py = points[5], points[6] // Just makes the end point exact; no roundoff error
		} else {
			px, py = ellipsePointAt(points[0], points[1], sinTheta, cosTheta, eta, cx, cy)
		}
		dx, dy := ellipsePrime(points[0], points[1], sinTheta, cosTheta, eta)
		p.CubeBezier(toFixedP(lx+alpha*ldx, ly+alpha*ldy),
			toFixedP(px-alpha*dx, py-alpha*dy), toFixedP(px, py))
		lx, ly, ldx, ldy = px, py, dx, dy
	}
	return lx, ly
}

// ellipsePrime gives tangent vectors for parameterized elipse; a, b, radii, eta parameter
func ellipsePrime(a, b, sinTheta, cosTheta, eta float64) (px, py float64) {
	bCosEta := b * math.Cos(eta)
	aSinEta := a * math.Sin(eta)
	px = -aSinEta*cosTheta - bCosEta*sinTheta
	py = -aSinEta*sinTheta + bCosEta*cosTheta
	return
}

// ellipsePointAt gives points for parameterized elipse; a, b, radii, eta parameter, center cx, cy
func ellipsePointAt(a, b, sinTheta, cosTheta, eta, cx, cy float64) (px, py float64) {
	aCosEta := a * math.Cos(eta)
	bSinEta := b * math.Sin(eta)
	px = cx + aCosEta*cosTheta - bSinEta*sinTheta
	py = cy + aCosEta*sinTheta + bSinEta*cosTheta
	return
}

// findEllipseCenter locates the center of the Ellipse if it exists. If it does not exist,
// the radius values will be increased minimally for a solution to be possible
// while preserving the ra to rb ratio.  ra and rb arguments are pointers that can be
// checked after the call to see if the values changed. This method uses coordinate transformations
// to reduce the problem to finding the center of a circle that includes the origin
// and an arbitrary point. The center of the circle is then transformed
// back to the original coordinates and returned.
func findEllipseCenter(ra, rb *float64, rotX, startX, startY, endX, endY float64, sweep, smallArc bool) (cx, cy float64) {
	cos, sin := math.Cos(rotX), math.Sin(rotX)

	// Move origin to start point
	nx, ny := endX-startX, endY-startY

	// Rotate ellipse x-axis to coordinate x-axis
	nx, ny = nx*cos+ny*sin, -nx*sin+ny*cos
	// Scale X dimension so that ra = rb
	nx *= *rb / *ra // Now the ellipse is a circle radius rb; therefore foci and center coincide

	midX, midY := nx/2, ny/2
	midlenSq := midX*midX + midY*midY

	var hr float64
	if *rb**rb < midlenSq {
		// Requested ellipse does not exist; scale ra, rb to fit. Length of
		// span is greater than max width of ellipse, must scale *ra, *rb
		nrb := math.Sqrt(midlenSq)
		if *ra == *rb {
			*ra = nrb // prevents roundoff
		} else {
			*ra = *ra * nrb / *rb
		}
		*rb = nrb
	} else {
		hr = math.Sqrt(*rb**rb-midlenSq) / math.Sqrt(midlenSq)
	}
	// Notice that if hr is zero, both answers are the same.
	if (sweep && smallArc) || (!sweep && !smallArc) {
		cx = midX + midY*hr
		cy = midY - midX*hr
	} else {
		cx = midX - midY*hr
		cy = midY + midX*hr
	}

	// reverse scale
	cx *= *ra / *rb
	//Reverse rotate and translate back to original coordinates
	return cx*cos - cy*sin + startX, cx*sin + cy*cos + startY
}
