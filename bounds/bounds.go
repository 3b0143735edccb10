// Measures the content extent of SVG artwork.
//
// An Analyzer tries an ordered list of strategies sharing the
// Strategy contract: the first success wins. The default chain is
// the exact geometric union of the painted paths, then the extent of
// the opaque pixels of a rendering, and finally a box centered on the
// template.
//
// Shapes drawn by design tools as a full page background are ignored:
// a <rect> is a background if and only if, in user space, its origin is
// exactly (0,0) and its size exactly the template pixel size.
package bounds

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
)

// PxToMMFactor converts CSS pixels (96 per inch) to millimeters.
const PxToMMFactor = 25.4 / 96

// PxToMM converts a length in pixels to millimeters.
func PxToMM(px float64) float64 { return px * PxToMMFactor }

// Box is an axis aligned rectangle. Width and Height are never negative.
type Box struct {
	XMin   float64 `json:"xMin"`
	YMin   float64 `json:"yMin"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// ToMM converts a box expressed in pixels to millimeters.
func (b Box) ToMM() Box {
	return Box{XMin: PxToMM(b.XMin), YMin: PxToMM(b.YMin), Width: PxToMM(b.Width), Height: PxToMM(b.Height)}
}

// IsEmpty returns true if the box has no area.
func (b Box) IsEmpty() bool { return b.Width <= 0 || b.Height <= 0 }

func (b Box) String() string {
	return fmt.Sprintf("[%g %g %g %g]", b.XMin, b.YMin, b.Width, b.Height)
}

// Method identifies the strategy which produced a box.
type Method string

const (
	Geometric Method = "geometric"
	Rendered  Method = "rendered"
	Default   Method = "default"
)

// Template is the pixel size of the page the artwork is designed for.
type Template struct {
	WidthPx  float64 `json:"widthPx"`
	HeightPx float64 `json:"heightPx"`
}

var (
	// ErrBoundsUnavailable is matched by Result.Err when every strategy failed.
	ErrBoundsUnavailable = errors.New("bounds unavailable")
	// ErrDegenerate is returned by strategies finding no visible content.
	ErrDegenerate = errors.New("empty or degenerate content")
	// ErrExternalTool is matched by *ExternalToolFailure.
	ErrExternalTool = errors.New("external tool failure")
)

// ExternalToolFailure reports a failed or timed out external program.
type ExternalToolFailure struct {
	Tool   string
	Err    error
	Stderr string // output of a command, if any
}

func (e *ExternalToolFailure) Error() string {
	msg := fmt.Sprintf("external tool %s: %s", e.Tool, e.Err)
	if s := strings.TrimSpace(e.Stderr); s != "" {
		msg += " (" + s + ")"
	}
	return msg
}

func (e *ExternalToolFailure) Unwrap() []error { return []error{ErrExternalTool, e.Err} }

// UnavailableError is returned when every strategy failed.
type UnavailableError struct {
	Attempts []Attempt
}

func (e *UnavailableError) Error() string {
	chunks := make([]string, len(e.Attempts))
	for i, a := range e.Attempts {
		chunks[i] = fmt.Sprintf("%s: %s", a.Method, a.Error)
	}
	return "bounds unavailable: " + strings.Join(chunks, "; ")
}

func (e *UnavailableError) Unwrap() error { return ErrBoundsUnavailable }

// Attempt records the failure of one strategy.
type Attempt struct {
	Method Method `json:"method"`
	Error  string `json:"error"`
}

// Result is the outcome of Analyzer.Analyze.
type Result struct {
	Success bool   `json:"success"`
	Method  Method `json:"method"`
	Box     Box    `json:"box"`
	// Err is non nil when Success is false.
	Err error `json:"-"`
	// Attempts lists the strategies which failed before Method succeeded.
	Attempts []Attempt `json:"attempts,omitempty"`
}

// Strategy is one way of measuring a document.
// Implementations must not modify the input.
type Strategy interface {
	Method() Method
	Attempt(ctx context.Context, in *Input) (Box, error)
}

// Analyzer runs its strategies in order.
type Analyzer struct {
	Strategies []Strategy
	// Cache, if not nil, stores the results by document content.
	Cache *Cache
	// Logger reports failed strategies. If nil, log.Default() is used.
	Logger *log.Logger
}

// Options configures NewAnalyzer.
type Options struct {
	// Pool runs the rasterizations. If nil, a pool with 2 workers
	// and a 30 seconds timeout is used.
	Pool *Pool
	// Rasterizers are tried in order by the rendered strategy.
	// If empty, only the in-process rasterizer is used.
	Rasterizers []Rasterizer
	// Fraction of the template used by the default strategy (0.5 if zero).
	Fraction float64
	Cache    *Cache
	Logger   *log.Logger
}

// NewAnalyzer returns an analyzer using the geometric, rendered and default
// strategies, in this order.
func NewAnalyzer(opts Options) *Analyzer {
	pool := opts.Pool
	if pool == nil {
		pool = NewPool(2, DefaultTimeout)
	}
	rasterizers := opts.Rasterizers
	if len(rasterizers) == 0 {
		rasterizers = []Rasterizer{InProcess{}}
	}
	return &Analyzer{
		Strategies: []Strategy{
			GeometricStrategy{},
			&RenderedStrategy{Pool: pool, Rasterizers: rasterizers},
			DefaultStrategy{Fraction: opts.Fraction},
		},
		Cache:  opts.Cache,
		Logger: opts.Logger,
	}
}

func (an *Analyzer) logger() *log.Logger {
	if an.Logger != nil {
		return an.Logger
	}
	return log.Default()
}

// Analyze returns the content box of `doc`, in user units.
// It never fails: if no strategy succeeds, the result has Success
// set to false, Method set to Default and Err matching ErrBoundsUnavailable.
// A document without content (empty input included) gets the default box.
func (an *Analyzer) Analyze(ctx context.Context, doc []byte, tmpl Template) Result {
	if an.Cache != nil {
		if res, ok := an.Cache.Get(doc, tmpl); ok {
			return res
		}
	}
	res := an.analyze(ctx, doc, tmpl)
	if an.Cache != nil {
		an.Cache.Put(doc, tmpl, res)
	}
	return res
}

func (an *Analyzer) analyze(ctx context.Context, doc []byte, tmpl Template) Result {
	in := NewInput(doc, tmpl)
	empty := len(bytes.TrimSpace(doc)) == 0
	var attempts []Attempt
	for _, strategy := range an.Strategies {
		if empty && strategy.Method() != Default {
			continue
		}
		box, err := strategy.Attempt(ctx, in)
		if err == nil && (box.Width < 0 || box.Height < 0) {
			err = fmt.Errorf("negative size %s", box)
		}
		if err != nil {
			an.logger().Printf("bounds: %s strategy failed: %s", strategy.Method(), err)
			attempts = append(attempts, Attempt{Method: strategy.Method(), Error: err.Error()})
			continue
		}
		return Result{Success: true, Method: strategy.Method(), Box: box, Attempts: attempts}
	}
	return Result{Method: Default, Err: &UnavailableError{Attempts: attempts}, Attempts: attempts}
}
