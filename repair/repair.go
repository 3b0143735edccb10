// Normalizes uploaded SVG markup so that strict XML consumers accept it:
// the text is decoded to UTF-8 and the namespace declarations commonly
// dropped by hand-written or exported files are restored on the root element.
//
// Element content is never altered.
package repair

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"

	"golang.org/x/net/html/charset"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

const (
	SVGNamespace   = "http://www.w3.org/2000/svg"
	XLinkNamespace = "http://www.w3.org/1999/xlink"
)

// ErrParse is returned when no opening root tag can be located.
var ErrParse = errors.New("unparsable document")

// ParseError gives the reason why a document can't be repaired.
type ParseError struct {
	Reason string
	Err    error // optional underlying decoder error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("parse error: %s: %s", e.Reason, e.Err)
	}
	return "parse error: " + e.Reason
}

func (e *ParseError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrParse, e.Err}
	}
	return []error{ErrParse}
}

// Result is the repaired document, with a description
// of each applied fix (empty if the input was already valid).
type Result struct {
	Data  []byte
	Fixes []string
}

// Changed returns true if at least one fix was applied.
func (r Result) Changed() bool { return len(r.Fixes) != 0 }

var (
	bomUTF8    = []byte{0xEF, 0xBB, 0xBF}
	bomUTF16BE = []byte{0xFE, 0xFF}
	bomUTF16LE = []byte{0xFF, 0xFE}

	reEncoding = regexp.MustCompile(`^(\s*<\?xml[^>]*?encoding\s*=\s*)(["'])([^"']*)(["'])`)
)

// Repair returns a copy of `data` which declares the SVG namespace on its
// root element, and the XLink namespace if an xlink: attribute is used
// anywhere in the document.
// A *ParseError is returned if the root element can't be found or is not <svg>.
func Repair(data []byte) (Result, error) {
	var out Result
	data, fixes, err := normalizeEncoding(data)
	if err != nil {
		return Result{}, err
	}
	out.Fixes = append(out.Fixes, fixes...)

	root, err := scanDocument(data)
	if err != nil {
		return Result{}, err
	}

	var decls []string
	if !root.declaresDefault {
		if root.prefix == "" {
			decls = append(decls, fmt.Sprintf(`xmlns="%s"`, SVGNamespace))
			out.Fixes = append(out.Fixes, "added svg namespace declaration")
		} else {
			decls = append(decls, fmt.Sprintf(`xmlns:%s="%s"`, root.prefix, SVGNamespace))
			out.Fixes = append(out.Fixes, fmt.Sprintf("added svg namespace declaration for prefix %q", root.prefix))
		}
	}
	if root.usesXLink && !root.declaresXLink {
		decls = append(decls, fmt.Sprintf(`xmlns:xlink="%s"`, XLinkNamespace))
		out.Fixes = append(out.Fixes, "added xlink namespace declaration")
	}

	if len(decls) == 0 {
		out.Data = data
		return out, nil
	}
	insert := " " + strings.Join(decls, " ")
	var buf bytes.Buffer
	buf.Grow(len(data) + len(insert))
	buf.Write(data[:root.nameEnd])
	buf.WriteString(insert)
	buf.Write(data[root.nameEnd:])
	out.Data = buf.Bytes()
	return out, nil
}

// normalizeEncoding returns UTF-8 text, without byte order mark,
// whose prolog (if any) declares UTF-8.
func normalizeEncoding(data []byte) ([]byte, []string, error) {
	var fixes []string
	decoded := false
	if bytes.HasPrefix(data, bomUTF8) || bytes.HasPrefix(data, bomUTF16BE) || bytes.HasPrefix(data, bomUTF16LE) {
		out, _, err := transform.Bytes(unicode.BOMOverride(unicode.UTF8.NewDecoder()), data)
		if err != nil {
			return nil, nil, &ParseError{Reason: "invalid byte order mark", Err: err}
		}
		data, decoded = out, true
		fixes = append(fixes, "removed byte order mark")
	}

	m := reEncoding.FindSubmatchIndex(data)
	if m == nil {
		return data, fixes, nil
	}
	label := strings.ToLower(strings.TrimSpace(string(data[m[6]:m[7]])))
	if label == "utf-8" || label == "utf8" {
		return data, fixes, nil
	}
	if !decoded {
		r, err := charset.NewReaderLabel(label, bytes.NewReader(data))
		if err != nil {
			return nil, nil, &ParseError{Reason: fmt.Sprintf("unsupported encoding %q", label), Err: err}
		}
		out, err := io.ReadAll(r)
		if err != nil {
			return nil, nil, &ParseError{Reason: fmt.Sprintf("invalid %s text", label), Err: err}
		}
		data = out
		fixes = append(fixes, "transcoded from "+label)
		// the prolog is ASCII in every supported encoding, offsets are still valid
		if m = reEncoding.FindSubmatchIndex(data); m == nil {
			return data, fixes, nil
		}
	}
	var buf bytes.Buffer
	buf.Write(data[:m[6]])
	buf.WriteString("UTF-8")
	buf.Write(data[m[7]:])
	fixes = append(fixes, "declared UTF-8 encoding")
	return buf.Bytes(), fixes, nil
}

type rootInfo struct {
	prefix          string
	nameEnd         int // offset just after the root tag name
	declaresDefault bool
	declaresXLink   bool
	usesXLink       bool
}

// scanDocument locates the root start tag and looks
// for xlink attributes in the whole document.
func scanDocument(data []byte) (rootInfo, error) {
	var info rootInfo
	dec := xml.NewDecoder(bytes.NewReader(data))
	dec.Strict = false
	dec.CharsetReader = charset.NewReaderLabel

	var root *xml.StartElement
	for root == nil {
		start := dec.InputOffset()
		tok, err := dec.RawToken()
		if err == io.EOF {
			return info, &ParseError{Reason: "no root element"}
		}
		if err != nil {
			return info, &ParseError{Reason: "can't locate the root element", Err: err}
		}
		se, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		if se.Name.Local != "svg" {
			return info, &ParseError{Reason: fmt.Sprintf("root element is <%s>, not <svg>", qualified(se.Name))}
		}
		root = &se
		info.prefix = se.Name.Space
		info.nameEnd = int(start) + 1 + len(qualified(se.Name))
		if info.nameEnd > len(data) || !bytes.HasPrefix(data[start+1:], []byte(qualified(se.Name))) {
			return info, &ParseError{Reason: "malformed root tag"}
		}
	}

	for _, attr := range root.Attr {
		switch {
		case info.prefix == "" && attr.Name.Space == "" && attr.Name.Local == "xmlns":
			info.declaresDefault = true
		case info.prefix != "" && attr.Name.Space == "xmlns" && attr.Name.Local == info.prefix:
			info.declaresDefault = true
		case attr.Name.Space == "xmlns" && attr.Name.Local == "xlink":
			info.declaresXLink = true
		}
	}
	info.usesXLink = hasXLinkAttr(root.Attr)

	// errors after the root tag are left to downstream parsers
	for !info.usesXLink {
		tok, err := dec.RawToken()
		if err != nil {
			break
		}
		if se, ok := tok.(xml.StartElement); ok && hasXLinkAttr(se.Attr) {
			info.usesXLink = true
		}
	}
	return info, nil
}

func hasXLinkAttr(attrs []xml.Attr) bool {
	for _, attr := range attrs {
		if attr.Name.Space == "xlink" {
			return true
		}
	}
	return false
}

func qualified(n xml.Name) string {
	if n.Space == "" {
		return n.Local
	}
	return n.Space + ":" + n.Local
}
