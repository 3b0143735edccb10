// Implements the screen (RGB) and print (CMYK) color models,
// the conversion strategies between them, and the standardization
// palette used to force visually similar inputs to identical print output.
package colors

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// RGB is the canonical screen representation, each channel in [0,255].
type RGB struct{ R, G, B uint8 }

// CMYK is the canonical print representation, each channel
// is an integer percentage in [0,100].
type CMYK struct{ C, M, Y, K uint8 }

// ErrInvalidColorDomain is returned when a channel is outside its defined range.
var ErrInvalidColorDomain = errors.New("color channel outside of its domain")

// DomainError reports the offending channel.
type DomainError struct {
	Channel string
	Value   int
}

func (e *DomainError) Error() string {
	return fmt.Sprintf("invalid color domain: channel %s = %d (expected [0,100])", e.Channel, e.Value)
}

func (e *DomainError) Unwrap() error { return ErrInvalidColorDomain }

// NewCMYK validates the four channels.
func NewCMYK(c, m, y, k int) (CMYK, error) {
	for _, ch := range [...]struct {
		name string
		v    int
	}{{"C", c}, {"M", m}, {"Y", y}, {"K", k}} {
		if ch.v < 0 || ch.v > 100 {
			return CMYK{}, &DomainError{Channel: ch.name, Value: ch.v}
		}
	}
	return CMYK{C: uint8(c), M: uint8(m), Y: uint8(y), K: uint8(k)}, nil
}

// Validate returns a *DomainError if one of the channels exceeds 100.
func (c CMYK) Validate() error {
	_, err := NewCMYK(int(c.C), int(c.M), int(c.Y), int(c.K))
	return err
}

// Hex returns the #RRGGBB form.
func (c RGB) Hex() string { return fmt.Sprintf("#%02X%02X%02X", c.R, c.G, c.B) }

func (c RGB) String() string { return fmt.Sprintf("rgb(%d,%d,%d)", c.R, c.G, c.B) }

// RGBA implements color.Color
func (c RGB) RGBA() (r, g, b, a uint32) {
	r, g, b = uint32(c.R), uint32(c.G), uint32(c.B)
	return r | r<<8, g | g<<8, b | b<<8, 0xffff
}

// MarshalText encodes the color as #RRGGBB
func (c RGB) MarshalText() ([]byte, error) { return []byte(c.Hex()), nil }

// UnmarshalText accepts any token form supported by ParseToken.
func (c *RGB) UnmarshalText(text []byte) error {
	v, err := ParseToken(string(text))
	if err != nil {
		return err
	}
	*c = v
	return nil
}

// String returns the label form used on proofs: "C:0 M:100 Y:100 K:0"
func (c CMYK) String() string {
	return fmt.Sprintf("C:%d M:%d Y:%d K:%d", c.C, c.M, c.Y, c.K)
}

// Fractions returns the channels in [0,1].
func (c CMYK) Fractions() (cf, mf, yf, kf float64) {
	return float64(c.C) / 100, float64(c.M) / 100, float64(c.Y) / 100, float64(c.K) / 100
}

// MarshalJSON uses the compact object form {"c":..,"m":..,"y":..,"k":..}.
func (c CMYK) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]int{"c": int(c.C), "m": int(c.M), "y": int(c.Y), "k": int(c.K)})
}

func (c *CMYK) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		v, err := ParseCMYK(s)
		if err != nil {
			return err
		}
		*c = v
		return nil
	}
	var m struct{ C, M, Y, K int }
	if err := json.Unmarshal(b, &m); err != nil {
		return err
	}
	v, err := NewCMYK(m.C, m.M, m.Y, m.K)
	if err != nil {
		return err
	}
	*c = v
	return nil
}

// ParseCMYK reads the label form "C:0 M:100 Y:100 K:0".
// Separators may be spaces or commas, and the order of the channels is free.
func ParseCMYK(s string) (CMYK, error) {
	fields := strings.FieldsFunc(s, func(r rune) bool { return r == ' ' || r == ',' || r == ';' })
	if len(fields) != 4 {
		return CMYK{}, fmt.Errorf("invalid CMYK string %q", s)
	}
	var vals [4]int
	var seen [4]bool
	for _, f := range fields {
		kv := strings.SplitN(f, ":", 2)
		if len(kv) != 2 {
			return CMYK{}, fmt.Errorf("invalid CMYK string %q", s)
		}
		v, err := strconv.Atoi(strings.TrimSuffix(strings.TrimSpace(kv[1]), "%"))
		if err != nil {
			return CMYK{}, fmt.Errorf("invalid CMYK string %q: %w", s, err)
		}
		idx := strings.Index("CMYK", strings.ToUpper(strings.TrimSpace(kv[0])))
		if idx < 0 || len(strings.TrimSpace(kv[0])) != 1 || seen[idx] {
			return CMYK{}, fmt.Errorf("invalid CMYK channel %q in %q", kv[0], s)
		}
		seen[idx] = true
		vals[idx] = v
	}
	return NewCMYK(vals[0], vals[1], vals[2], vals[3])
}
