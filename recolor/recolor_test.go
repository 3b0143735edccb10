package recolor

import (
	"errors"
	"strings"
	"testing"

	"github.com/benoitkugler/artprint/colors"
	"github.com/google/go-cmp/cmp"
)

func TestExtract(t *testing.T) {
	doc := `<svg xmlns="http://www.w3.org/2000/svg">
	<rect fill="#FF0000" stroke="none"/>
	<rect fill="rgb(255, 0, 0)" stroke="#ff0000"/>
	<circle style="fill: #00f; stroke:url(#grad) ;stop-color:rgb(10%,20%,30%) !important"/>
	<path fill="currentColor" stroke="red" d="M0 0"/>
	<text fill="#FF0000">#123456</text>
	<linearGradient><stop stop-color=" #abcdef "/></linearGradient>
	<image href="data:image/png;base64,ZmlsbD0iIzAwMDAwMCI="/>
</svg>`
	got, err := Extract([]byte(doc))
	if err != nil {
		t.Fatal(err)
	}
	exp := []colors.Token{"#FF0000", "rgb(255, 0, 0)", "#ff0000", "#00f", "rgb(10%,20%,30%)", "#abcdef"}
	if diff := cmp.Diff(exp, got); diff != "" {
		t.Fatalf("unexpected tokens (-want +got):\n%s", diff)
	}
}

func TestExtractInvalid(t *testing.T) {
	if _, err := Extract([]byte(`<svg><rect fill="#fff></svg>`)); err == nil {
		t.Fatal("expected error on malformed document")
	}
}

func TestParseStyle(t *testing.T) {
	style := " fill : #fff ; stroke:rgb(1,2,3) !important;;opacity"
	decls := parseStyle(style)
	if len(decls) != 2 {
		t.Fatalf("unexpected declarations %v", decls)
	}
	if p, v := decls[0].property, style[decls[0].start:decls[0].end]; p != "fill" || v != "#fff" {
		t.Fatalf("unexpected declaration %s: %q", p, v)
	}
	if p, v := decls[1].property, style[decls[1].start:decls[1].end]; p != "stroke" || v != "rgb(1,2,3)" {
		t.Fatalf("unexpected declaration %s: %q", p, v)
	}
}

func TestPatchEmbeddedPayload(t *testing.T) {
	// the base64 payload contains the token verbatim
	payload := "data:text/plain,fill=%22rgb(255, 0, 0)%22 rgb(255, 0, 0)"
	doc := `<svg xmlns="http://www.w3.org/2000/svg"><rect fill="rgb(255, 0, 0)" width="10" height="10"/>` +
		`<image href="` + payload + `"/><desc>rgb(255, 0, 0)</desc></svg>`
	res, err := Patch([]byte(doc), map[string]string{"rgb(255, 0, 0)": "#0000FF"})
	if err != nil {
		t.Fatal(err)
	}
	out := string(res.Data)
	if !strings.Contains(out, `fill="#0000FF"`) {
		t.Fatalf("missing replacement in %s", out)
	}
	if strings.Contains(out, `fill="rgb(255, 0, 0)"`) {
		t.Fatalf("token not replaced in %s", out)
	}
	if !strings.Contains(out, payload) || !strings.Contains(out, "<desc>rgb(255, 0, 0)</desc>") {
		t.Fatalf("unrelated content modified: %s", out)
	}
	if res.Replaced["rgb(255, 0, 0)"] != 1 || len(res.Reports) != 0 {
		t.Fatalf("unexpected result %v %v", res.Replaced, res.Reports)
	}
}

func TestPatch(t *testing.T) {
	for _, test := range []struct {
		doc, exp string
		mapping  map[string]string
	}{
		{ // case insensitive, surrounding spaces kept
			`<svg><rect fill=" #FF0000 " stroke='#ff0000'/></svg>`,
			`<svg><rect fill=" #00ff00 " stroke='#00ff00'/></svg>`,
			map[string]string{"#ff0000": "#00ff00"},
		},
		{ // style declarations, other properties untouched
			`<svg><g style="opacity:0.5; fill: #abc ;stroke:#ABC!important"/></svg>`,
			`<svg><g style="opacity:0.5; fill: rgb(1,2,3) ;stroke:rgb(1,2,3)!important"/></svg>`,
			map[string]string{"#abc": "rgb(1,2,3)"},
		},
		{ // non color attributes
			`<svg><rect id="#abc" fill="#abc"><title>#abc</title></rect></svg>`,
			`<svg><rect id="#abc" fill="#def"><title>#abc</title></rect></svg>`,
			map[string]string{"#abc": "#def"},
		},
		{ // character references
			`<svg><rect fill="&#35;abc"/><!-- fill="#abc" --></svg>`,
			`<svg><rect fill="#def"/><!-- fill="#abc" --></svg>`,
			map[string]string{"#abc": "#def"},
		},
		{ // gradient stops and namespaced attributes
			`<svg><stop stop-color="#abc" x:fill="#abc"/></svg>`,
			`<svg><stop stop-color="#def" x:fill="#abc"/></svg>`,
			map[string]string{"#abc": "#def"},
		},
	} {
		res, err := Patch([]byte(test.doc), test.mapping)
		if err != nil {
			t.Fatal(err)
		}
		if got := string(res.Data); got != test.exp {
			t.Fatalf("expected\n%s\ngot\n%s", test.exp, got)
		}
	}
}

func TestPatchReports(t *testing.T) {
	doc := `<svg><rect fill="#111111"/><rect fill="#222222"/></svg>`
	res, err := Patch([]byte(doc), map[string]string{
		"#111111": "#aaaaaa",
		"#222222": "blue",
		"#333333": "#cccccc",
	})
	if err != nil {
		t.Fatal(err)
	}
	if exp := `<svg><rect fill="#aaaaaa"/><rect fill="#222222"/></svg>`; string(res.Data) != exp {
		t.Fatalf("unexpected output %s", res.Data)
	}
	if len(res.Reports) != 2 {
		t.Fatalf("expected 2 reports, got %v", res.Reports)
	}
	var targetErr *TargetError
	if !errors.As(res.Reports[0], &targetErr) || targetErr.Token != "#222222" || !errors.Is(res.Reports[0], ErrInvalidTarget) {
		t.Fatalf("unexpected report %v", res.Reports[0])
	}
	var tokenErr *TokenUnrecognizedError
	if !errors.As(res.Reports[1], &tokenErr) || tokenErr.Token != "#333333" || !errors.Is(res.Reports[1], ErrColorTokenUnrecognized) {
		t.Fatalf("unexpected report %v", res.Reports[1])
	}
}

func TestPatchMalformed(t *testing.T) {
	if _, err := Patch([]byte(`<svg><rect fill="#fff></svg>`), map[string]string{"#fff": "#000"}); err == nil {
		t.Fatal("expected error on malformed document")
	}
}

func TestScanAttributes(t *testing.T) {
	tag := `<rect a="1" b = 'x>y' c="" />`
	spans, err := scanAttributes([]byte(tag))
	if err != nil {
		t.Fatal(err)
	}
	var values []string
	for _, s := range spans {
		values = append(values, tag[s.start:s.end])
	}
	if diff := cmp.Diff([]string{"1", "x>y", ""}, values); diff != "" {
		t.Fatalf("unexpected values (-want +got):\n%s", diff)
	}
}

const styled = `<svg xmlns="http://www.w3.org/2000/svg">
	<style>/* fill:#123456 */ .st0{fill:#FF0000}
	@media print { .st1 { stroke: #00ff00 } }
	.st2 { fill: url(#g); stroke: #0000FF !important }</style>
	<style><![CDATA[ rect > .st3 { fill:#abcdef } ]]></style>
	<rect class="st0" width="10" height="10"/>
</svg>`

func TestExtractStyleSheet(t *testing.T) {
	got, err := Extract([]byte(styled))
	if err != nil {
		t.Fatal(err)
	}
	exp := []colors.Token{"#FF0000", "#00ff00", "#0000FF", "#abcdef"}
	if diff := cmp.Diff(exp, got); diff != "" {
		t.Fatalf("unexpected tokens (-want +got):\n%s", diff)
	}
}

func TestPatchStyleSheet(t *testing.T) {
	res, err := Patch([]byte(styled), map[string]string{"#ff0000": "#111111", "#ABCDEF": "#222222", "#123456": "#333333"})
	if err != nil {
		t.Fatal(err)
	}
	exp := strings.NewReplacer("{fill:#FF0000}", "{fill:#111111}", "{ fill:#abcdef }", "{ fill:#222222 }").Replace(styled)
	if string(res.Data) != exp {
		t.Fatalf("unexpected document:\n%s", res.Data)
	}
	// comments are not patched
	if len(res.Reports) != 1 || !errors.Is(res.Reports[0], ErrColorTokenUnrecognized) {
		t.Fatalf("unexpected reports %v", res.Reports)
	}

	// an entity forces the rewriting of the whole text
	doc := `<svg xmlns="http://www.w3.org/2000/svg"><style>g&gt;.a{fill:#FF0000}</style></svg>`
	res, err = Patch([]byte(doc), map[string]string{"#FF0000": "#000000"})
	if err != nil {
		t.Fatal(err)
	}
	if got := string(res.Data); got != `<svg xmlns="http://www.w3.org/2000/svg"><style>g&gt;.a{fill:#000000}</style></svg>` {
		t.Fatalf("unexpected document %s", got)
	}
}

func TestSheetDeclarations(t *testing.T) {
	sheet := ".a{fill:red}/* .b{fill:blue} */@media x{.c{stroke: #fff}}"
	clean, decls := sheetDeclarations(sheet)
	if len(clean) != len(sheet) || len(decls) != 2 {
		t.Fatalf("unexpected declarations %v", decls)
	}
	if v := clean[decls[1].start:decls[1].end]; decls[1].property != "stroke" || v != "#fff" {
		t.Fatalf("unexpected declaration %s: %q", decls[1].property, v)
	}
}
