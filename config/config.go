// Package config stores the process-wide settings in a JSON file.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/benoitkugler/artprint/bounds"
	"github.com/benoitkugler/artprint/colors"
	"github.com/benoitkugler/artprint/convert"
)

// FileName is the name of the configuration file in the data directory.
const FileName = "artprint.config"

// Duration is a time.Duration written as "30s" in JSON.
type Duration time.Duration

func (d Duration) MarshalText() ([]byte, error) { return []byte(time.Duration(d).String()), nil }

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// Rasterizer configures an external rasterizer of the rendered bounds strategy.
type Rasterizer struct {
	// Kind is "rsvg-convert", "inkscape" or "command".
	Kind string `json:"kind"`
	// Path of the program; looked up in the PATH if empty.
	Path string `json:"path,omitempty"`
	// Args is only used by the "command" kind.
	Args []string `json:"args,omitempty"`
}

// Command returns the command line of the rasterizer.
func (r Rasterizer) Command() (bounds.Command, error) {
	switch r.Kind {
	case "rsvg-convert":
		return bounds.RSVGConvert(r.Path), nil
	case "inkscape":
		return bounds.Inkscape(r.Path), nil
	case "command":
		if r.Path == "" {
			return bounds.Command{}, errors.New("missing path for command rasterizer")
		}
		return bounds.Command{Path: r.Path, Args: r.Args}, nil
	default:
		return bounds.Command{}, fmt.Errorf("unknown rasterizer kind %q", r.Kind)
	}
}

// Converters locates the programs converting PDF, EPS and AI documents.
// Empty paths are looked up in the PATH.
type Converters struct {
	Ghostscript string `json:"ghostscript,omitempty"`
	Inkscape    string `json:"inkscape,omitempty"`
	PDFToCairo  string `json:"pdftocairo,omitempty"`
}

type Config struct {
	DataDir string `json:"data_dir"`

	// Palette is the standardization palette. If empty, the default
	// garment palette is used.
	Palette []colors.PaletteEntry `json:"palette,omitempty"`
	// Tolerance is used by the palette entries which do not define one.
	Tolerance float64 `json:"tolerance"`
	// Strategy is the conversion strategy: "naive" or "profile".
	Strategy string                  `json:"strategy"`
	Profile  colors.ProfileEmulation `json:"profile"`

	PxToMM         float64 `json:"px_to_mm"`
	BoundsFraction float64 `json:"bounds_fraction"`

	// Workers is the number of documents analyzed concurrently,
	// and of concurrent rasterizations.
	Workers     int      `json:"workers"`
	ToolTimeout Duration `json:"tool_timeout"`
	// Rasterizers are tried after the in-process one. When null,
	// rsvg-convert and inkscape are used if found in the PATH;
	// an empty list disables the external rasterizers.
	Rasterizers []Rasterizer `json:"rasterizers"`
	Converters  Converters   `json:"converters"`

	// Proof adds the garment proof page to assembled documents.
	Proof   bool `json:"proof"`
	Verbose bool `json:"verbose"`
}

func Default() Config {
	return Config{
		DataDir:        ".",
		Tolerance:      colors.DefaultTolerance,
		Strategy:       colors.Naive{}.Name(),
		Profile:        colors.DefaultProfile(),
		PxToMM:         bounds.PxToMMFactor,
		BoundsFraction: bounds.DefaultFraction,
		Workers:        4,
		ToolTimeout:    Duration(bounds.DefaultTimeout),
	}
}

// Load reads the configuration of `dataDir`, or returns the
// default one if the file does not exist.
func Load(dataDir string) (Config, error) {
	cfgPath := filepath.Join(dataDir, FileName)

	f, err := os.Open(cfgPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			cfg := Default()
			cfg.DataDir = dataDir
			return cfg, nil
		}
		return Config{}, err
	}
	defer f.Close()

	var cfg Config
	if err := json.NewDecoder(f).Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("invalid configuration %s: %w", cfgPath, err)
	}

	def := Default()
	if cfg.DataDir == "" {
		cfg.DataDir = dataDir
	}
	if cfg.Tolerance == 0 {
		cfg.Tolerance = def.Tolerance
	}
	if cfg.Strategy == "" {
		cfg.Strategy = def.Strategy
	}
	if cfg.Profile == (colors.ProfileEmulation{}) {
		cfg.Profile = def.Profile
	}
	if cfg.PxToMM == 0 {
		cfg.PxToMM = def.PxToMM
	}
	if cfg.BoundsFraction == 0 {
		cfg.BoundsFraction = def.BoundsFraction
	}
	if cfg.Workers == 0 {
		cfg.Workers = def.Workers
	}
	if cfg.ToolTimeout == 0 {
		cfg.ToolTimeout = def.ToolTimeout
	}

	return cfg, cfg.Validate()
}

// Save writes the configuration in its data directory.
func Save(cfg Config) error {
	cfgPath := filepath.Join(cfg.DataDir, FileName)

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return err
	}

	tmp := cfgPath + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(cfg); err != nil {
		os.Remove(tmp)
		return err
	}

	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}

	return os.Rename(tmp, cfgPath)
}

// Validate checks the values which can't be defaulted.
func (cfg Config) Validate() error {
	if _, err := colors.StrategyByName(cfg.Strategy); err != nil {
		return err
	}
	if cfg.Tolerance < 0 {
		return fmt.Errorf("negative tolerance %g", cfg.Tolerance)
	}
	if !(cfg.PxToMM > 0) {
		return fmt.Errorf("invalid px to mm factor %g", cfg.PxToMM)
	}
	if !(cfg.BoundsFraction > 0 && cfg.BoundsFraction <= 1) {
		return fmt.Errorf("bounds fraction %g outside of ]0,1]", cfg.BoundsFraction)
	}
	if cfg.Workers < 1 {
		return fmt.Errorf("invalid number of workers %d", cfg.Workers)
	}
	for _, r := range cfg.Rasterizers {
		if _, err := r.Command(); err != nil {
			return err
		}
	}
	return nil
}

// Engine returns the configured conversion engine.
func (cfg Config) Engine() (colors.Engine, error) {
	s, err := colors.StrategyByName(cfg.Strategy)
	if err != nil {
		return colors.Engine{}, err
	}
	if _, ok := s.(colors.ProfileEmulation); ok {
		return colors.NewEngine(cfg.Profile), nil
	}
	return colors.NewEngine(s), nil
}

// BuildPalette returns the configured palette, applying the
// default tolerance.
func (cfg Config) BuildPalette() (*colors.Palette, error) {
	entries := cfg.Palette
	if len(entries) == 0 {
		entries = colors.DefaultEntries()
	} else {
		entries = append([]colors.PaletteEntry(nil), entries...)
	}
	for i := range entries {
		if entries[i].Tolerance == 0 {
			entries[i].Tolerance = cfg.Tolerance
		}
	}
	return colors.NewPalette(entries)
}

// Commands returns the external rasterizers, in order.
func (cfg Config) Commands() ([]bounds.Command, error) {
	if cfg.Rasterizers == nil {
		return detectRasterizers(), nil
	}
	out := make([]bounds.Command, len(cfg.Rasterizers))
	for i, r := range cfg.Rasterizers {
		c, err := r.Command()
		if err != nil {
			return nil, err
		}
		out[i] = c
	}
	return out, nil
}

// detectRasterizers returns the known rasterizers found in the PATH
func detectRasterizers() []bounds.Command {
	var out []bounds.Command
	if path, err := exec.LookPath("rsvg-convert"); err == nil {
		out = append(out, bounds.RSVGConvert(path))
	}
	if path, err := exec.LookPath("inkscape"); err == nil {
		out = append(out, bounds.Inkscape(path))
	}
	return out
}

// Converter returns the converter of PDF, EPS and AI documents,
// running its programs in `pool`.
func (cfg Config) Converter(pool *bounds.Pool, logger *log.Logger) *convert.Converter {
	return &convert.Converter{
		Normalizers: []bounds.Command{convert.Ghostscript(cfg.Converters.Ghostscript)},
		Vectorizers: []bounds.Command{convert.Inkscape(cfg.Converters.Inkscape), convert.PDFToCairo(cfg.Converters.PDFToCairo)},
		Pool:        pool,
		Logger:      logger,
	}
}
