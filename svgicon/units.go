package svgicon

import (
	"math"
	"strconv"
	"strings"
)

// reference used to resolve percentages
type percentageReference uint8

const (
	widthPercentage percentageReference = iota
	heightPercentage
	diagPercentage
)

// conversion factors to user units (px at 96 dpi)
var unitFactors = map[string]float64{
	"px": 1,
	"pt": 96. / 72.,
	"pc": 16,
	"mm": 96. / 25.4,
	"cm": 96. / 2.54,
	"in": 96,
	"em": 16,
	"ex": 8,
}

// parseBasicFloat parses a number, accepting (and converting) an absolute unit suffix.
func parseBasicFloat(s string) (float64, error) {
	s = strings.TrimSpace(s)
	factor := 1.
	if len(s) > 2 {
		if f, ok := unitFactors[strings.ToLower(s[len(s)-2:])]; ok {
			factor = f
			s = strings.TrimSpace(s[:len(s)-2])
		}
	}
	value, err := strconv.ParseFloat(s, 64)
	return value * factor, err
}

// parseUnit also resolves percentages, relative to the current viewport
func (c *iconCursor) parseUnit(s string, ref percentageReference) (float64, error) {
	s = strings.TrimSpace(s)
	if !strings.HasSuffix(s, "%") {
		return parseBasicFloat(s)
	}
	value, err := strconv.ParseFloat(strings.TrimSuffix(s, "%"), 64)
	if err != nil {
		return 0, err
	}
	value /= 100
	vb := c.icon.ViewBox
	switch ref {
	case widthPercentage:
		return value * vb.W, nil
	case heightPercentage:
		return value * vb.H, nil
	default:
		return value * math.Sqrt(vb.W*vb.W+vb.H*vb.H) / math.Sqrt2, nil
	}
}

// splitOnCommaOrSpace returns a list of strings after splitting the input on comma and space delimiters
func splitOnCommaOrSpace(s string) []string {
	return strings.FieldsFunc(s,
		func(r rune) bool {
			return r == ',' || r == ' ' || r == '\t' || r == '\n' || r == '\r'
		})
}
