package colors

import (
	"fmt"
	"math"
	"strings"
)

// Strategy converts a screen color to its print equivalent.
// Implementations must be safe for concurrent use.
type Strategy interface {
	Name() string
	ToCMYK(RGB) CMYK
}

// Naive is the reference subtractive model: black is extracted first as
// 1 - max(r,g,b), the chromatic channels are then expressed relative to 1 - K.
//
// The chromatic channels are computed from the rounded black value, so that
// converting back with Engine.ToRGB reproduces the input within one unit.
type Naive struct{}

func (Naive) Name() string { return "naive" }

func (Naive) ToCMYK(c RGB) CMYK {
	max := c.R
	if c.G > max {
		max = c.G
	}
	if c.B > max {
		max = c.B
	}
	k := percent(1 - float64(max)/255)
	if k == 100 {
		return CMYK{K: 100}
	}
	kf := float64(k) / 100
	rel := func(v uint8) uint8 {
		return percent((1 - float64(v)/255 - kf) / (1 - kf))
	}
	return CMYK{C: rel(c.R), M: rel(c.G), Y: rel(c.B), K: k}
}

// percent rounds the fraction f to an integer percentage in [0, 100]
func percent(f float64) uint8 {
	v := math.Round(f * 100)
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return uint8(v)
}

// Engine wraps a conversion strategy.
// The zero value uses the Naive strategy.
type Engine struct {
	Strategy Strategy
}

// NewEngine returns an engine using `s`, or Naive if `s` is nil.
func NewEngine(s Strategy) Engine {
	if s == nil {
		s = Naive{}
	}
	return Engine{Strategy: s}
}

func (e Engine) strategy() Strategy {
	if e.Strategy == nil {
		return Naive{}
	}
	return e.Strategy
}

// StrategyName returns the name of the active strategy.
func (e Engine) StrategyName() string { return e.strategy().Name() }

// ToCMYK never fails for in-domain input.
func (e Engine) ToCMYK(c RGB) CMYK { return e.strategy().ToCMYK(c) }

// ToRGB inverts the subtractive model. It returns a *DomainError
// if one of the channels is outside [0,100].
func (e Engine) ToRGB(c CMYK) (RGB, error) {
	if err := c.Validate(); err != nil {
		return RGB{}, err
	}
	cf, mf, yf, kf := c.Fractions()
	ch := func(v float64) uint8 { return clampByte(math.Round(255 * (1 - v) * (1 - kf))) }
	return RGB{R: ch(cf), G: ch(mf), B: ch(yf)}, nil
}

// StrategyByName returns the strategy registered under `name`:
// "naive" or "profile" (alias "profileEmulating").
func StrategyByName(name string) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "naive":
		return Naive{}, nil
	case "profile", "profileemulating", "profile-emulating":
		return DefaultProfile(), nil
	}
	return nil, fmt.Errorf("unknown conversion strategy %q", name)
}
