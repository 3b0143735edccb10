package repair

import (
	"bytes"
	"encoding/xml"
	"errors"
	"strings"
	"testing"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
)

func TestAddsNamespaces(t *testing.T) {
	for _, test := range []struct {
		in, out string
		fixes   int
	}{
		{
			`<svg width="10" height="10"><rect width="5" height="5"/></svg>`,
			`<svg xmlns="http://www.w3.org/2000/svg" width="10" height="10"><rect width="5" height="5"/></svg>`,
			1,
		},
		{
			`<?xml version="1.0"?>` + "\n" + `<!-- logo --><svg><use xlink:href="#a"/></svg>`,
			`<?xml version="1.0"?>` + "\n" + `<!-- logo --><svg xmlns="http://www.w3.org/2000/svg" xmlns:xlink="http://www.w3.org/1999/xlink"><use xlink:href="#a"/></svg>`,
			2,
		},
		{
			`<svg xmlns="http://www.w3.org/2000/svg"><image xlink:href="data:image/png;base64,AAAA"/></svg>`,
			`<svg xmlns="http://www.w3.org/2000/svg" xmlns:xlink="http://www.w3.org/1999/xlink"><image xlink:href="data:image/png;base64,AAAA"/></svg>`,
			1,
		},
		{
			`<svg:svg><svg:rect width="1" height="1"/></svg:svg>`,
			`<svg:svg xmlns:svg="http://www.w3.org/2000/svg"><svg:rect width="1" height="1"/></svg:svg>`,
			1,
		},
		{
			`<svg
	viewBox="0 0 1 1"/>`,
			`<svg xmlns="http://www.w3.org/2000/svg"
	viewBox="0 0 1 1"/>`,
			1,
		},
	} {
		res, err := Repair([]byte(test.in))
		if err != nil {
			t.Fatal(err)
		}
		if string(res.Data) != test.out {
			t.Errorf("expected\n%s\ngot\n%s", test.out, res.Data)
		}
		if len(res.Fixes) != test.fixes {
			t.Errorf("expected %d fixes, got %v", test.fixes, res.Fixes)
		}
		// the result must be namespace valid
		dec := xml.NewDecoder(bytes.NewReader(res.Data))
		for {
			tok, err := dec.Token()
			if err != nil {
				break
			}
			if se, ok := tok.(xml.StartElement); ok && se.Name.Space != SVGNamespace {
				t.Errorf("element %v is not in the svg namespace", se.Name)
			}
		}
	}
}

func TestAlreadyValid(t *testing.T) {
	in := `<svg xmlns="http://www.w3.org/2000/svg" xmlns:xlink="http://www.w3.org/1999/xlink"><use xlink:href="#a"/></svg>`
	res, err := Repair([]byte(in))
	if err != nil {
		t.Fatal(err)
	}
	if res.Changed() || string(res.Data) != in {
		t.Fatalf("valid document should be left untouched, got %s (%v)", res.Data, res.Fixes)
	}
}

func TestParseError(t *testing.T) {
	for _, in := range []string{
		"",
		"just some text",
		`<?xml version="1.0"?>`,
		`<html><body/></html>`,
		`<svg`,
	} {
		_, err := Repair([]byte(in))
		if !errors.Is(err, ErrParse) {
			t.Errorf("%q: expected parse error, got %v", in, err)
		}
		var pe *ParseError
		if !errors.As(err, &pe) {
			t.Errorf("%q: expected *ParseError, got %T", in, err)
		}
	}
}

func TestEncoding(t *testing.T) {
	src := `<?xml version="1.0" encoding="UTF-16"?><svg><title>café</title></svg>`
	utf16, err := unicode.UTF16(unicode.LittleEndian, unicode.UseBOM).NewEncoder().String(src)
	if err != nil {
		t.Fatal(err)
	}
	res, err := Repair([]byte(utf16))
	if err != nil {
		t.Fatal(err)
	}
	exp := `<?xml version="1.0" encoding="UTF-8"?><svg xmlns="http://www.w3.org/2000/svg"><title>café</title></svg>`
	if string(res.Data) != exp {
		t.Fatalf("expected %s, got %s", exp, res.Data)
	}

	latin, err := charmap.ISO8859_1.NewEncoder().String(`<?xml version="1.0" encoding="ISO-8859-1"?><svg xmlns="http://www.w3.org/2000/svg"><desc>été</desc></svg>`)
	if err != nil {
		t.Fatal(err)
	}
	res, err = Repair([]byte(latin))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(res.Data), "<desc>été</desc>") || !strings.Contains(string(res.Data), `encoding="UTF-8"`) {
		t.Fatalf("unexpected transcoding: %s", res.Data)
	}

	res, err = Repair(append([]byte{0xEF, 0xBB, 0xBF}, `<svg xmlns="http://www.w3.org/2000/svg"/>`...))
	if err != nil {
		t.Fatal(err)
	}
	if string(res.Data) != `<svg xmlns="http://www.w3.org/2000/svg"/>` {
		t.Fatalf("BOM should be removed, got %q", res.Data)
	}
}
