package svgicon

import (
	"math"
)

// strokeMargin returns how far the painted stroke extends beyond the path
// geometry, in the coordinates obtained after applying `M`.
// Miter spikes on sharp corners are not taken into account.
func (style PathStyle) strokeMargin(M Matrix2D) float64 {
	if !style.strokes() || style.LineWidth <= 0 {
		return 0
	}
	half := style.LineWidth / 2 * math.Sqrt(math.Abs(M.Det()))
	lineCap := style.Join.TrailLineCap
	if style.Join.LeadLineCap != NilCap {
		lineCap = style.Join.LeadLineCap
	}
	if lineCap == SquareCap {
		half *= math.Sqrt2
	}
	return half
}

// fills returns true if the style paints the interior of the path
func (style PathStyle) fills() bool {
	return isVisible(style.FillerColor, style.FillOpacity)
}

// strokes returns true if the style paints the outline of the path
func (style PathStyle) strokes() bool {
	return isVisible(style.LinerColor, style.LineOpacity)
}

func isVisible(p Pattern, opacity float64) bool {
	if p == nil || opacity <= 0 {
		return false
	}
	if pc, ok := p.(PlainColor); ok {
		return pc.A != 0
	}
	return true
}
