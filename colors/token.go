package colors

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Token is a color exactly as written in a document,
// for instance "#F00", "#ff0000" or "rgb(100%, 0%, 0%)".
// Two tokens resolving to the same RGB value are still distinct.
type Token string

var errNotLiteral = errors.New("not a literal color")

// RGB resolves the token.
func (t Token) RGB() (RGB, error) { return ParseToken(string(t)) }

// Normalized returns the trimmed, lower-cased form used to compare tokens.
func (t Token) Normalized() string { return strings.ToLower(strings.TrimSpace(string(t))) }

// Equal compares two tokens case-insensitively, ignoring surrounding spaces.
func (t Token) Equal(other Token) bool {
	return strings.EqualFold(strings.TrimSpace(string(t)), strings.TrimSpace(string(other)))
}

// IsLiteral returns true if s is one of the literal color forms
// (hex or functional rgb notation). Keywords such as "none",
// "currentColor", named colors and paint server references are not literals.
func IsLiteral(s string) bool {
	_, err := ParseToken(s)
	return err == nil
}

// ParseToken parses the literal forms #rgb, #rrggbb,
// rgb(int,int,int) and rgb(pct%,pct%,pct%).
func ParseToken(s string) (RGB, error) {
	v := strings.TrimSpace(s)
	switch {
	case strings.HasPrefix(v, "#"):
		return parseHex(v[1:])
	case len(v) > 4 && strings.EqualFold(v[:4], "rgb("):
		if !strings.HasSuffix(v, ")") {
			return RGB{}, fmt.Errorf("invalid color %q: missing closing parenthesis", s)
		}
		return parseFunctional(v[4 : len(v)-1])
	}
	return RGB{}, fmt.Errorf("invalid color %q: %w", s, errNotLiteral)
}

func parseHex(h string) (RGB, error) {
	switch len(h) {
	case 3:
		h = string([]byte{h[0], h[0], h[1], h[1], h[2], h[2]})
	case 6:
	default:
		return RGB{}, fmt.Errorf("invalid hex color #%s", h)
	}
	n, err := strconv.ParseUint(h, 16, 32)
	if err != nil {
		return RGB{}, fmt.Errorf("invalid hex color #%s: %w", h, err)
	}
	return RGB{R: uint8(n >> 16), G: uint8(n >> 8), B: uint8(n)}, nil
}

func parseFunctional(args string) (RGB, error) {
	parts := strings.Split(args, ",")
	if len(parts) != 3 {
		return RGB{}, fmt.Errorf("invalid rgb() color: expected 3 components, got %d", len(parts))
	}
	var out [3]uint8
	for i, p := range parts {
		p = strings.TrimSpace(p)
		if strings.HasSuffix(p, "%") {
			f, err := strconv.ParseFloat(strings.TrimSuffix(p, "%"), 64)
			if err != nil {
				return RGB{}, fmt.Errorf("invalid rgb() component %q: %w", p, err)
			}
			out[i] = clampByte(math.Round(f * 255 / 100))
			continue
		}
		f, err := strconv.ParseFloat(p, 64)
		if err != nil {
			return RGB{}, fmt.Errorf("invalid rgb() component %q: %w", p, err)
		}
		out[i] = clampByte(math.Round(f))
	}
	return RGB{R: out[0], G: out[1], B: out[2]}, nil
}

func clampByte(f float64) uint8 {
	if f < 0 {
		return 0
	}
	if f > 255 {
		return 255
	}
	return uint8(f)
}
