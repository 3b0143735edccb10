package colors

import (
	"math"

	"github.com/lucasb-eyer/go-colorful"
)

// ProfileEmulation approximates the separation performed by press
// profiles: gray component replacement, dot gain compensation and
// a total ink limit. It is not an ICC transform.
type ProfileEmulation struct {
	// BlackStart is the gray component, in [0,1), below which no black is generated.
	BlackStart float64 `json:"blackStart"`
	// BlackStrength is the fraction of the gray component replaced by black, in [0,1].
	BlackStrength float64 `json:"blackStrength"`
	// DotGain is the mid tone dot gain to compensate, in [0,1).
	DotGain float64 `json:"dotGain"`
	// InkLimit is the maximum total area coverage, in percent (e.g. 300).
	InkLimit float64 `json:"inkLimit"`
	// NeutralChroma is the HCL chroma under which a color is printed with black only.
	NeutralChroma float64 `json:"neutralChroma"`
}

// DefaultProfile returns parameters close to a coated press profile.
func DefaultProfile() ProfileEmulation {
	return ProfileEmulation{
		BlackStart:    0.1,
		BlackStrength: 0.9,
		DotGain:       0.12,
		InkLimit:      300,
		NeutralChroma: 0.02,
	}
}

func (ProfileEmulation) Name() string { return "profile" }

func (p ProfileEmulation) ToCMYK(c RGB) CMYK {
	col := colorful.Color{R: float64(c.R) / 255, G: float64(c.G) / 255, B: float64(c.B) / 255}
	_, chroma, l := col.Hcl()
	if chroma < p.NeutralChroma {
		k := p.compensate(clamp01(1 - l))
		return CMYK{K: percent(k)}
	}

	cc, mm, yy := 1-col.R, 1-col.G, 1-col.B
	gray := math.Min(cc, math.Min(mm, yy))
	var k float64
	if gray > p.BlackStart && p.BlackStart < 1 {
		k = p.BlackStrength * gray * (gray - p.BlackStart) / (1 - p.BlackStart)
	}
	if k >= 1 {
		return CMYK{K: 100}
	}
	sep := func(v float64) float64 { return p.compensate(clamp01((v - k) / (1 - k))) }
	cc, mm, yy, k = sep(cc), sep(mm), sep(yy), p.compensate(k)

	if limit := p.InkLimit / 100; limit > 0 {
		if chromatic := cc + mm + yy; chromatic > 0 && chromatic+k > limit {
			scale := math.Max(0, limit-k) / chromatic
			cc, mm, yy = cc*scale, mm*scale, yy*scale
		}
	}
	return CMYK{C: percent(cc), M: percent(mm), Y: percent(yy), K: percent(k)}
}

// compensate reduces mid tones so that the printed dot matches the requested coverage
func (p ProfileEmulation) compensate(x float64) float64 {
	return x * (1 - p.DotGain*(1-x))
}

func clamp01(f float64) float64 {
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}
