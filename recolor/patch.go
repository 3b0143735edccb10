package recolor

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/benoitkugler/artprint/colors"
)

// ErrColorTokenUnrecognized is matched by the reports of Patch
// for tokens not found in the document.
var ErrColorTokenUnrecognized = errors.New("color token not found")

// ErrInvalidTarget is matched by the reports of Patch
// for replacement values which are not literal colors.
var ErrInvalidTarget = errors.New("invalid target color")

// TokenUnrecognizedError reports a mapping key found in no color attribute.
type TokenUnrecognizedError struct {
	Token string
}

func (e *TokenUnrecognizedError) Error() string {
	return fmt.Sprintf("color token %q not found in any color attribute", e.Token)
}

func (e *TokenUnrecognizedError) Unwrap() error { return ErrColorTokenUnrecognized }

// TargetError reports an unusable replacement value.
type TargetError struct {
	Token, Target string
	Err           error
}

func (e *TargetError) Error() string {
	return fmt.Sprintf("invalid replacement %q for %q: %s", e.Target, e.Token, e.Err)
}

func (e *TargetError) Unwrap() []error { return []error{ErrInvalidTarget, e.Err} }

// PatchResult is the output of Patch.
type PatchResult struct {
	Data []byte
	// Replaced counts the replaced occurrences, by mapping key.
	Replaced map[string]int
	// Reports contains the non fatal issues, one per concerned mapping entry,
	// in the order of the mapping keys.
	Reports []error
}

// replacements indexes the valid mapping entries by normalized token
type replacements map[string]replacement

type replacement struct {
	key, target string
}

func (r replacements) lookup(value string) (replacement, bool) {
	rep, ok := r[colors.Token(value).Normalized()]
	return rep, ok
}

func newReplacements(mapping map[string]string) (replacements, []error) {
	keys := make([]string, 0, len(mapping))
	for k := range mapping {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var reports []error
	out := make(replacements, len(mapping))
	for _, k := range keys {
		target := strings.TrimSpace(mapping[k])
		if _, err := colors.ParseToken(target); err != nil {
			reports = append(reports, &TargetError{Token: k, Target: mapping[k], Err: err})
			continue
		}
		norm := colors.Token(k).Normalized()
		if prev, ok := out[norm]; ok {
			reports = append(reports, fmt.Errorf("mapping for %q ignored: same token as %q", k, prev.key))
			continue
		}
		out[norm] = replacement{key: k, target: target}
	}
	return out, reports
}

type edit struct {
	start, end int
	text       string
}

// Patch replaces, in color-bearing attributes and style declarations
// (of style attributes and <style> elements),
// the values matching (case-insensitively) a key of `mapping` by the
// associated value. Replacement values must be literal colors.
// Everything else in the document is copied byte for byte.
//
// Keys not found in the document and invalid replacement values are
// reported in PatchResult.Reports, and the rest of the mapping still applies.
// An error is only returned for a malformed document.
func Patch(doc []byte, mapping map[string]string) (PatchResult, error) {
	reps, reports := newReplacements(mapping)
	out := PatchResult{Replaced: make(map[string]int)}

	var edits []edit
	inStyle := 0
	dec := newDecoder(doc)
	for {
		start := int(dec.InputOffset())
		tok, err := dec.RawToken()
		if err == io.EOF {
			break
		}
		if err != nil {
			return PatchResult{}, fmt.Errorf("patching colors: %w", err)
		}
		end := int(dec.InputOffset())
		switch tok := tok.(type) {
		case xml.EndElement:
			if tok.Name.Local == "style" && inStyle > 0 {
				inStyle--
			}
			continue
		case xml.CharData:
			if inStyle > 0 {
				edits = append(edits, patchStyleSheet(doc, string(tok), start, end, reps, out.Replaced)...)
			}
			continue
		}
		se, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		if se.Name.Local == "style" {
			inStyle++
		}
		if len(se.Attr) == 0 {
			continue
		}
		spans, err := scanAttributes(doc[start:end])
		if err != nil || len(spans) != len(se.Attr) {
			return PatchResult{}, fmt.Errorf("patching colors: unexpected layout for tag <%s> at offset %d", se.Name.Local, start)
		}
		for i, attr := range se.Attr {
			span := spans[i]
			span.start += start
			span.end += start
			edits = append(edits, patchAttribute(doc, attr, span, reps, out.Replaced)...)
		}
	}

	var buf bytes.Buffer
	buf.Grow(len(doc))
	last := 0
	for _, e := range edits {
		buf.Write(doc[last:e.start])
		buf.WriteString(e.text)
		last = e.end
	}
	buf.Write(doc[last:])
	out.Data = buf.Bytes()

	keys := make([]string, 0, len(reps))
	for _, rep := range reps {
		if out.Replaced[rep.key] == 0 {
			keys = append(keys, rep.key)
		}
	}
	sort.Strings(keys)
	for _, k := range keys {
		reports = append(reports, &TokenUnrecognizedError{Token: k})
	}
	out.Reports = reports
	return out, nil
}

// patchAttribute returns the edits for one attribute, whose raw value
// is at `span` in `doc`.
func patchAttribute(doc []byte, attr xml.Attr, span attrSpan, reps replacements, counts map[string]int) []edit {
	if attr.Name.Space != "" {
		return nil
	}
	raw := string(doc[span.start:span.end])
	// without character references, the raw and decoded values share offsets
	verbatim := raw == attr.Value
	name := strings.ToLower(attr.Name.Local)

	if colorProperties[name] {
		rep, ok := reps.lookup(attr.Value)
		if !ok {
			return nil
		}
		counts[rep.key]++
		if !verbatim {
			return []edit{{span.start, span.end, escapeAttr(rep.target, span.quote)}}
		}
		lead := len(raw) - len(strings.TrimLeft(raw, " \t\r\n"))
		trail := len(raw) - len(strings.TrimRight(raw, " \t\r\n"))
		return []edit{{span.start + lead, span.end - trail, rep.target}}
	}

	if name != "style" {
		return nil
	}
	var (
		edits   []edit
		patched strings.Builder
		last    int
	)
	for _, decl := range parseStyle(attr.Value) {
		if !colorProperties[decl.property] {
			continue
		}
		rep, ok := reps.lookup(attr.Value[decl.start:decl.end])
		if !ok {
			continue
		}
		counts[rep.key]++
		edits = append(edits, edit{span.start + decl.start, span.start + decl.end, rep.target})
		patched.WriteString(attr.Value[last:decl.start])
		patched.WriteString(rep.target)
		last = decl.end
	}
	if len(edits) == 0 || verbatim {
		return edits
	}
	patched.WriteString(attr.Value[last:])
	return []edit{{span.start, span.end, escapeAttr(patched.String(), span.quote)}}
}

// patchStyleSheet returns the edits for the text `sheet` of a <style>
// element, whose raw form is doc[start:end].
func patchStyleSheet(doc []byte, sheet string, start, end int, reps replacements, counts map[string]int) []edit {
	raw := string(doc[start:end])
	offset := start
	if strings.HasPrefix(raw, "<![CDATA[") {
		raw = strings.TrimSuffix(raw[len("<![CDATA["):], "]]>")
		offset += len("<![CDATA[")
	}
	verbatim := raw == sheet

	clean, decls := sheetDeclarations(sheet)
	var (
		edits   []edit
		patched strings.Builder
		last    int
	)
	for _, decl := range decls {
		if !colorProperties[decl.property] {
			continue
		}
		rep, ok := reps.lookup(clean[decl.start:decl.end])
		if !ok {
			continue
		}
		counts[rep.key]++
		edits = append(edits, edit{offset + decl.start, offset + decl.end, rep.target})
		patched.WriteString(sheet[last:decl.start])
		patched.WriteString(rep.target)
		last = decl.end
	}
	if len(edits) == 0 || verbatim {
		return edits
	}
	patched.WriteString(sheet[last:])
	return []edit{{start, end, escapeText(patched.String())}}
}

func escapeText(s string) string {
	return strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;").Replace(s)
}

// attrSpan locates an attribute value, without its quotes.
type attrSpan struct {
	start, end int
	quote      byte
}

func isSpace(b byte) bool { return b == ' ' || b == '\t' || b == '\r' || b == '\n' }

// scanAttributes returns the value locations of the attributes of
// a well formed start tag, in source order.
func scanAttributes(tag []byte) ([]attrSpan, error) {
	var out []attrSpan
	i := 1
	for i < len(tag) && !isSpace(tag[i]) && tag[i] != '/' && tag[i] != '>' {
		i++
	}
	skipSpaces := func() {
		for i < len(tag) && isSpace(tag[i]) {
			i++
		}
	}
	for {
		skipSpaces()
		if i >= len(tag) || tag[i] == '/' || tag[i] == '>' {
			return out, nil
		}
		for i < len(tag) && tag[i] != '=' && !isSpace(tag[i]) {
			i++
		}
		skipSpaces()
		if i >= len(tag) || tag[i] != '=' {
			return nil, errors.New("missing attribute value")
		}
		i++
		skipSpaces()
		if i >= len(tag) || (tag[i] != '"' && tag[i] != '\'') {
			return nil, errors.New("unquoted attribute value")
		}
		quote := tag[i]
		i++
		end := bytes.IndexByte(tag[i:], quote)
		if end == -1 {
			return nil, errors.New("unterminated attribute value")
		}
		out = append(out, attrSpan{start: i, end: i + end, quote: quote})
		i += end + 1
	}
}

func escapeAttr(s string, quote byte) string {
	r := strings.NewReplacer("&", "&amp;", "<", "&lt;", string(quote), map[byte]string{'"': "&quot;", '\'': "&apos;"}[quote])
	return r.Replace(s)
}
