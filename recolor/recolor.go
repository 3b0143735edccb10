// Lists and rewrites the literal colors of an SVG document.
//
// Only the values of color-bearing attributes (fill, stroke, stop-color,
// flood-color, lighting-color, color) and the matching declarations
// inside style attributes and <style> elements are considered. Other text
// content, other attributes (in particular embedded base64 payloads) and
// comments are never read nor modified.
package recolor

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"strings"

	"github.com/benoitkugler/artprint/colors"
)

// colorProperties are the presentation attributes
// (and style properties) holding a paint or a color.
var colorProperties = map[string]bool{
	"fill":           true,
	"stroke":         true,
	"stop-color":     true,
	"flood-color":    true,
	"lighting-color": true,
	"color":          true,
}

// IsColorProperty returns true if `name` is an attribute or a
// style property whose value may be a literal color.
func IsColorProperty(name string) bool {
	return colorProperties[strings.ToLower(strings.TrimSpace(name))]
}

// declaration is one `property: value` item of a style attribute.
// start and end delimit the value, trimmed of spaces
// and of a trailing !important.
type declaration struct {
	property   string
	start, end int
}

func parseStyle(style string) []declaration {
	var out []declaration
	offset := 0
	for _, item := range strings.Split(style, ";") {
		itemStart := offset
		offset += len(item) + 1
		colon := strings.IndexByte(item, ':')
		if colon == -1 {
			continue
		}
		value := item[colon+1:]
		start := itemStart + colon + 1
		start += len(value) - len(strings.TrimLeft(value, " \t\r\n"))
		value = strings.TrimSpace(value)
		if i := strings.LastIndexByte(value, '!'); i != -1 && strings.EqualFold(strings.TrimSpace(value[i+1:]), "important") {
			value = strings.TrimSpace(value[:i])
		}
		out = append(out, declaration{
			property: strings.ToLower(strings.TrimSpace(item[:colon])),
			start:    start,
			end:      start + len(value),
		})
	}
	return out
}

// sheetDeclarations returns the declarations of the innermost rule
// blocks of a stylesheet, with the text they refer to: `sheet` with its
// comments blanked, so that offsets are shared.
func sheetDeclarations(sheet string) (string, []declaration) {
	clean := []byte(sheet)
	for i := 0; i+1 < len(clean); i++ {
		if clean[i] != '/' || clean[i+1] != '*' {
			continue
		}
		stop := len(clean)
		if end := strings.Index(sheet[i+2:], "*/"); end != -1 {
			stop = i + 2 + end + 2
		}
		for j := i; j < stop; j++ {
			clean[j] = ' '
		}
		i = stop - 1
	}

	type block struct {
		open   int
		nested bool
	}
	var (
		stack []block
		out   []declaration
	)
	for i, b := range clean {
		switch b {
		case '{':
			if n := len(stack); n != 0 {
				stack[n-1].nested = true
			}
			stack = append(stack, block{open: i})
		case '}':
			if len(stack) == 0 {
				continue
			}
			top := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			if top.nested { // @media and friends
				continue
			}
			for _, decl := range parseStyle(string(clean[top.open+1 : i])) {
				decl.start += top.open + 1
				decl.end += top.open + 1
				out = append(out, decl)
			}
		}
	}
	return string(clean), out
}

// colorValues calls `fn` for each literal color used by the attributes of
// an element, in document order.
func colorValues(attrs []xml.Attr, fn func(value string)) {
	for _, attr := range attrs {
		if attr.Name.Space != "" {
			continue
		}
		name := strings.ToLower(attr.Name.Local)
		if name == "style" {
			for _, decl := range parseStyle(attr.Value) {
				if v := attr.Value[decl.start:decl.end]; colorProperties[decl.property] && colors.IsLiteral(v) {
					fn(v)
				}
			}
			continue
		}
		if v := strings.TrimSpace(attr.Value); colorProperties[name] && colors.IsLiteral(v) {
			fn(v)
		}
	}
}

func newDecoder(doc []byte) *xml.Decoder {
	dec := xml.NewDecoder(bytes.NewReader(doc))
	dec.Strict = true
	return dec
}

// sheetColors calls `fn` for each literal color of a stylesheet.
func sheetColors(sheet string, fn func(value string)) {
	clean, decls := sheetDeclarations(sheet)
	for _, decl := range decls {
		if v := clean[decl.start:decl.end]; colorProperties[decl.property] && colors.IsLiteral(v) {
			fn(v)
		}
	}
}

// Extract returns the distinct literal colors of the document, in
// first-seen order. Tokens are compared on their exact text: "#FF0000",
// "#ff0000" and "rgb(255,0,0)" are three different tokens.
// Keywords ("none", "currentColor", named colors) and paint server
// references are skipped.
func Extract(doc []byte) ([]colors.Token, error) {
	dec := newDecoder(doc)
	seen := make(map[string]bool)
	var out []colors.Token
	add := func(v string) {
		if !seen[v] {
			seen[v] = true
			out = append(out, colors.Token(v))
		}
	}
	inStyle := 0
	for {
		tok, err := dec.RawToken()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("extracting colors: %w", err)
		}
		switch tok := tok.(type) {
		case xml.StartElement:
			if tok.Name.Local == "style" {
				inStyle++
			}
			colorValues(tok.Attr, add)
		case xml.EndElement:
			if tok.Name.Local == "style" && inStyle > 0 {
				inStyle--
			}
		case xml.CharData:
			if inStyle > 0 {
				sheetColors(string(tok), add)
			}
		}
	}
	return out, nil
}
