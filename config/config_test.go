package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/benoitkugler/artprint/colors"
	"github.com/google/go-cmp/cmp"
)

func TestLoadMissing(t *testing.T) {
	dir := t.TempDir()
	cfg, err := Load(dir)
	if err != nil {
		t.Fatal(err)
	}
	exp := Default()
	exp.DataDir = dir
	if diff := cmp.Diff(exp, cfg, cmp.AllowUnexported(colors.PaletteEntry{})); diff != "" {
		t.Fatalf("unexpected config (-want +got):\n%s", diff)
	}
	if err = cfg.Validate(); err != nil {
		t.Fatal(err)
	}
}

func TestSaveLoad(t *testing.T) {
	cfg := Default()
	cfg.DataDir = filepath.Join(t.TempDir(), "nested")
	cfg.Strategy = "profile"
	cfg.Workers = 2
	cfg.ToolTimeout = Duration(5 * time.Second)
	cfg.Rasterizers = []Rasterizer{{Kind: "rsvg-convert"}, {Kind: "command", Path: "/usr/bin/convert", Args: []string{"{input}", "{output}"}}}
	cfg.Palette = []colors.PaletteEntry{{Name: "Red", RGB: colors.RGB{R: 255}, CMYK: "C:0 M:100 Y:100 K:0"}}
	if err := Save(cfg); err != nil {
		t.Fatal(err)
	}
	raw, err := os.ReadFile(filepath.Join(cfg.DataDir, FileName))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(raw), `"tool_timeout": "5s"`) {
		t.Fatalf("unexpected duration encoding:\n%s", raw)
	}

	loaded, err := Load(cfg.DataDir)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(cfg, loaded, cmp.AllowUnexported(colors.PaletteEntry{})); diff != "" {
		t.Fatalf("unexpected config (-want +got):\n%s", diff)
	}

	engine, err := loaded.Engine()
	if err != nil {
		t.Fatal(err)
	}
	if engine.StrategyName() != "profile" {
		t.Fatalf("unexpected strategy %s", engine.StrategyName())
	}
	pal, err := loaded.BuildPalette()
	if err != nil {
		t.Fatal(err)
	}
	if pal.Len() != 1 || pal.Entries()[0].Tolerance != colors.DefaultTolerance {
		t.Fatalf("unexpected palette %v", pal.Entries())
	}
	cmds, err := loaded.Commands()
	if err != nil {
		t.Fatal(err)
	}
	if len(cmds) != 2 || cmds[0].Name() != "rsvg-convert" || cmds[1].Name() != "convert" {
		t.Fatalf("unexpected commands %v", cmds)
	}
}

func TestLoadDefaults(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, FileName), []byte(`{"strategy": "naive", "workers": 8}`), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(dir)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Workers != 8 || cfg.DataDir != dir || cfg.BoundsFraction != 0.5 || time.Duration(cfg.ToolTimeout) != 30*time.Second {
		t.Fatalf("unexpected config %+v", cfg)
	}
	pal, err := cfg.BuildPalette()
	if err != nil {
		t.Fatal(err)
	}
	if pal.Len() != colors.DefaultPalette().Len() {
		t.Fatal("expected the default palette")
	}
}

func TestInvalid(t *testing.T) {
	for _, content := range []string{
		`{"strategy": "icc"}`,
		`{"bounds_fraction": 1.5}`,
		`{"rasterizers": [{"kind": "ghostscript"}]}`,
		`{"rasterizers": [{"kind": "command"}]}`,
		`{"tool_timeout": "soon"}`,
		`not json`,
	} {
		dir := t.TempDir()
		if err := os.WriteFile(filepath.Join(dir, FileName), []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
		if _, err := Load(dir); err == nil {
			t.Errorf("expected error for %s", content)
		}
	}
}

func TestEngineAliases(t *testing.T) {
	cfg := Default()
	cfg.Profile.InkLimit = 250
	for _, name := range []string{"profile", "profileEmulating", "profile-emulating"} {
		cfg.Strategy = name
		engine, err := cfg.Engine()
		if err != nil {
			t.Fatal(err)
		}
		if engine.Strategy != cfg.Profile {
			t.Fatalf("%s: configured profile not used: %v", name, engine.Strategy)
		}
	}
}

func TestDetectRasterizers(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "rsvg-convert"), []byte("#!/bin/sh\n"), 0o755); err != nil {
		t.Fatal(err)
	}
	t.Setenv("PATH", dir)

	cfg := Default()
	cmds, err := cfg.Commands()
	if err != nil {
		t.Fatal(err)
	}
	if len(cmds) != 1 || cmds[0].Name() != "rsvg-convert" || cmds[0].Path != filepath.Join(dir, "rsvg-convert") {
		t.Fatalf("unexpected commands %v", cmds)
	}

	// an explicit empty list disables the detection
	cfg.Rasterizers = []Rasterizer{}
	if cmds, _ = cfg.Commands(); len(cmds) != 0 {
		t.Fatalf("unexpected commands %v", cmds)
	}
}

func TestConverter(t *testing.T) {
	cfg := Default()
	cfg.Converters.Inkscape = "/opt/inkscape/bin/inkscape"
	cv := cfg.Converter(nil, nil)
	if len(cv.Normalizers) != 1 || cv.Normalizers[0].Path != "gs" {
		t.Fatalf("unexpected normalizers %v", cv.Normalizers)
	}
	if len(cv.Vectorizers) != 2 || cv.Vectorizers[0].Path != "/opt/inkscape/bin/inkscape" || cv.Vectorizers[1].Name() != "pdftocairo" {
		t.Fatalf("unexpected vectorizers %v", cv.Vectorizers)
	}
}
