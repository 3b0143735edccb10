package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const logo = `<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 100 50">
	<rect x="10" y="10" width="20" height="20" fill="#96c528"/>
</svg>`

func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stderr)
	rootCmd.SetArgs(append([]string{"--data-dir", t.TempDir()}, args...))
	err := rootCmd.Execute()
	return stdout.String(), stderr.String(), err
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestTemplates(t *testing.T) {
	out, _, err := execute(t, "templates")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "template-A4") || !strings.Contains(out, "template-dtf-a3") {
		t.Fatalf("unexpected output %s", out)
	}
}

func TestBounds(t *testing.T) {
	path := writeFile(t, t.TempDir(), "logo.svg", logo)
	out, _, err := execute(t, "bounds", path)
	if err != nil {
		t.Fatal(err)
	}
	var res []struct {
		Name   string `json:"name"`
		Bounds struct {
			Success bool   `json:"success"`
			Method  string `json:"method"`
		} `json:"bounds"`
	}
	if err = json.Unmarshal([]byte(out), &res); err != nil {
		t.Fatal(err)
	}
	if len(res) != 1 || !res[0].Bounds.Success || res[0].Bounds.Method != "geometric" {
		t.Fatalf("unexpected output %s", out)
	}
}

func TestPatch(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "logo.svg", logo)
	dst := filepath.Join(dir, "patched.svg")
	_, stderr, err := execute(t, "patch", path, "--map", "#96c528=#ff0000", "--map", "#abcdef=#000000", "-o", dst)
	if err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(dst)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Contains(data, []byte(`fill="#ff0000"`)) {
		t.Fatalf("unexpected document %s", data)
	}
	if !strings.Contains(stderr, "warning:") {
		t.Fatalf("expected a warning for the unknown token, got %q", stderr)
	}
	mappings = nil
}

func TestAssembleLayout(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "logo.svg", logo)
	layout := writeFile(t, dir, "layout.json", `{
		"template": "template-A5",
		"placements": [{"document": "logo.svg", "x": 20, "y": 20, "width": 100, "height": 50}]
	}`)
	dst := filepath.Join(dir, "print.pdf")
	out, _, err := execute(t, "assemble", layout, "-o", dst)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "Wrote") {
		t.Fatalf("unexpected output %s", out)
	}
	data, err := os.ReadFile(dst)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.HasPrefix(data, []byte("%PDF")) || !bytes.Contains(data, []byte("/Separation")) {
		t.Fatal("invalid PDF output")
	}

	if _, _, err = execute(t, "assemble", writeFile(t, dir, "bad.json", `{"template": "template-B9"}`), "-o", dst); err == nil {
		t.Fatal("expected an error for an unknown template")
	}
}
