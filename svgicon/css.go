package svgicon

import (
	"bytes"
	"encoding/xml"
	"sort"
	"strings"

	"golang.org/x/net/html/charset"
)

// selector is a compound selector made of an optional
// type (or *), an optional id and classes.
type selector struct {
	tag, id string
	classes []string
}

func (s selector) specificity() int {
	out := 10 * len(s.classes)
	if s.id != "" {
		out += 100
	}
	if s.tag != "" && s.tag != "*" {
		out++
	}
	return out
}

func (s selector) matches(tag, id string, classes []string) bool {
	if s.tag != "" && s.tag != "*" && s.tag != tag {
		return false
	}
	if s.id != "" && s.id != id {
		return false
	}
	for _, cl := range s.classes {
		found := false
		for _, c := range classes {
			if c == cl {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

type cssRule struct {
	sel          selector
	order        int
	declarations [][2]string
}

// styleSheet holds the rules of the <style> elements of a document.
// Only compound selectors are supported: combinators, pseudo
// classes, attribute selectors and at-rules are skipped and
// reported by `partial`.
type styleSheet struct {
	rules   []cssRule
	partial bool
}

func isIdentByte(b byte) bool {
	return b == '-' || b == '_' || b >= 0x80 ||
		('a' <= b && b <= 'z') || ('A' <= b && b <= 'Z') || ('0' <= b && b <= '9')
}

func parseSelector(s string) (selector, bool) {
	var out selector
	i := 0
	ident := func() string {
		start := i
		for i < len(s) && isIdentByte(s[i]) {
			i++
		}
		return s[start:i]
	}
	if i < len(s) && s[i] == '*' {
		out.tag = "*"
		i++
	} else {
		out.tag = ident()
	}
	for i < len(s) {
		kind := s[i]
		i++
		name := ident()
		if name == "" {
			return selector{}, false
		}
		switch kind {
		case '.':
			out.classes = append(out.classes, name)
		case '#':
			if out.id != "" {
				return selector{}, false
			}
			out.id = name
		default:
			return selector{}, false
		}
	}
	if out.tag == "" && out.id == "" && len(out.classes) == 0 {
		return selector{}, false
	}
	return out, true
}

func parseDeclarations(block string) [][2]string {
	var out [][2]string
	for _, decl := range strings.Split(block, ";") {
		kv := strings.SplitN(decl, ":", 2)
		if len(kv) != 2 {
			continue
		}
		v := strings.TrimSpace(kv[1])
		if i := strings.LastIndexByte(v, '!'); i != -1 && strings.EqualFold(strings.TrimSpace(v[i+1:]), "important") {
			v = strings.TrimSpace(v[:i])
		}
		out = append(out, [2]string{strings.TrimSpace(kv[0]), v})
	}
	return out
}

func stripComments(css string) string {
	var b strings.Builder
	for {
		i := strings.Index(css, "/*")
		if i == -1 {
			break
		}
		b.WriteString(css[:i])
		b.WriteByte(' ')
		end := strings.Index(css[i+2:], "*/")
		if end == -1 {
			return b.String()
		}
		css = css[i+2+end+2:]
	}
	b.WriteString(css)
	return b.String()
}

// add parses the text of one <style> element.
func (sh *styleSheet) add(css string) {
	css = stripComments(css)
	for {
		css = strings.TrimSpace(css)
		css = strings.TrimSpace(strings.TrimSuffix(strings.TrimPrefix(css, "<!--"), "-->"))
		if css == "" {
			return
		}
		open := strings.IndexByte(css, '{')
		if strings.HasPrefix(css, "@") {
			if semi := strings.IndexByte(css, ';'); semi != -1 && (open == -1 || semi < open) {
				css = css[semi+1:] // @import, @charset
				sh.partial = true
				continue
			}
		}
		if open == -1 {
			return
		}
		prelude := strings.TrimSpace(css[:open])
		if strings.HasPrefix(prelude, "@") {
			// skip the whole block, nested rules included
			depth, end := 0, len(css)
			for i := open; i < len(css); i++ {
				if css[i] == '{' {
					depth++
				} else if css[i] == '}' {
					depth--
					if depth == 0 {
						end = i + 1
						break
					}
				}
			}
			if !strings.HasPrefix(strings.ToLower(prelude), "@font-face") {
				sh.partial = true
			}
			css = css[end:]
			continue
		}
		end := open + strings.IndexByte(css[open:], '}')
		if end < open {
			end = len(css)
		}
		decls := parseDeclarations(css[open+1 : end])
		for _, part := range strings.Split(prelude, ",") {
			sel, ok := parseSelector(strings.TrimSpace(part))
			if !ok {
				sh.partial = true
				continue
			}
			sh.rules = append(sh.rules, cssRule{sel: sel, order: len(sh.rules), declarations: decls})
		}
		if end >= len(css) {
			return
		}
		css = css[end+1:]
	}
}

// declarations returns the declarations applying to an element,
// by increasing priority.
func (sh *styleSheet) declarations(tag string, attrs []xml.Attr) [][2]string {
	if sh == nil || len(sh.rules) == 0 {
		return nil
	}
	var id string
	var classes []string
	for _, attr := range attrs {
		switch attr.Name.Local {
		case "id":
			id = attr.Value
		case "class":
			classes = strings.Fields(attr.Value)
		}
	}
	var matched []cssRule
	for _, rule := range sh.rules {
		if rule.sel.matches(tag, id, classes) {
			matched = append(matched, rule)
		}
	}
	sort.SliceStable(matched, func(i, j int) bool {
		si, sj := matched[i].sel.specificity(), matched[j].sel.specificity()
		if si != sj {
			return si < sj
		}
		return matched[i].order < matched[j].order
	})
	var out [][2]string
	for _, rule := range matched {
		out = append(out, rule.declarations...)
	}
	return out
}

// readStyleSheet collects the <style> elements of a document.
// Malformed documents are reported by the main parsing pass.
func readStyleSheet(data []byte) *styleSheet {
	if !bytes.Contains(data, []byte("<style")) {
		return nil
	}
	decoder := xml.NewDecoder(bytes.NewReader(data))
	decoder.CharsetReader = charset.NewReaderLabel
	var (
		sh      styleSheet
		inStyle int
		text    strings.Builder
	)
	for {
		t, err := decoder.Token()
		if err != nil {
			break
		}
		switch t := t.(type) {
		case xml.StartElement:
			if t.Name.Local == "style" {
				inStyle++
			}
		case xml.EndElement:
			if t.Name.Local == "style" && inStyle > 0 {
				inStyle--
				if inStyle == 0 {
					sh.add(text.String())
					text.Reset()
				}
			}
		case xml.CharData:
			if inStyle > 0 {
				text.Write(t)
			}
		}
	}
	if len(sh.rules) == 0 && !sh.partial {
		return nil
	}
	return &sh
}
