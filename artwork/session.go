// Package artwork runs the processing pipeline of uploaded artwork:
// repair, bounds analysis and color extraction, conversion and
// standardization, color patching and assembly of the print document.
//
// A Session holds the documents of one request (or user session),
// with the bounds cache and the configured engine and palette.
// Nothing is kept at the process level.
package artwork

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"log"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/benoitkugler/artprint/assemble"
	"github.com/benoitkugler/artprint/bounds"
	"github.com/benoitkugler/artprint/colors"
	"github.com/benoitkugler/artprint/config"
	"github.com/benoitkugler/artprint/convert"
	"github.com/benoitkugler/artprint/recolor"
	"github.com/benoitkugler/artprint/repair"
)

// ErrUnknownDocument is returned for names not stored in the session.
var ErrUnknownDocument = errors.New("unknown document")

// ErrUnsupportedFormat is returned for documents which are neither
// SVG, a raster image nor a convertible vector format.
var ErrUnsupportedFormat = errors.New("unsupported document format")

// Document is an uploaded file.
type Document struct {
	Name     string
	MimeType string
	Data     []byte
}

// BoundsResult is the content box of a document, always tagged with
// the strategy which produced it.
type BoundsResult struct {
	Success  bool             `json:"success"`
	Method   bounds.Method    `json:"method"`
	Box      bounds.Box       `json:"box"`
	BoxMM    bounds.Box       `json:"boxMm"`
	Error    string           `json:"error,omitempty"`
	Attempts []bounds.Attempt `json:"attempts,omitempty"`
}

// ColorFailure reports a token which could not be converted.
type ColorFailure struct {
	Token colors.Token `json:"token"`
	Error string       `json:"error"`
}

// ColorAnalysis lists the colors of a document, in order of appearance.
type ColorAnalysis struct {
	Strategy string           `json:"strategy"`
	Colors   []colors.Mapping `json:"colors"`
	Failures []ColorFailure   `json:"failures,omitempty"`
}

// Analysis is the outcome of the analysis of one document.
// When Err is not nil (a parse, conversion or format error),
// only Name and Kind are valid.
type Analysis struct {
	Name     string        `json:"name"`
	Kind     assemble.Kind `json:"kind"`
	Fixes    []string      `json:"fixes,omitempty"`
	Bounds   BoundsResult  `json:"bounds"`
	Colors   ColorAnalysis `json:"colors"`
	Error    string        `json:"error,omitempty"`
	Err      error         `json:"-"`
	Document []byte        `json:"-"` // repaired (and patched) content
}

// Session stores the analyzed documents, by name.
// It is safe for concurrent use.
type Session struct {
	Engine   colors.Engine
	Palette  *colors.Palette
	Analyzer *bounds.Analyzer
	// Converter turns PDF, EPS and AI documents into SVG.
	// When nil, these documents are rejected.
	Converter *convert.Converter
	Template  assemble.Template
	// PxToMM converts the boxes to millimeters.
	PxToMM float64
	// Workers bounds the number of documents analyzed at once.
	Workers int
	Proof   bool
	Logger  *log.Logger

	mu        sync.Mutex
	documents map[string]*Analysis
}

// NewSession builds a session from the configuration,
// for artwork designed on `tmpl`.
func NewSession(cfg config.Config, tmpl assemble.Template, logger *log.Logger) (*Session, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := tmpl.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = log.Default()
	}
	engine, err := cfg.Engine()
	if err != nil {
		return nil, err
	}
	palette, err := cfg.BuildPalette()
	if err != nil {
		return nil, err
	}
	commands, err := cfg.Commands()
	if err != nil {
		return nil, err
	}
	rasterizers := []bounds.Rasterizer{bounds.InProcess{}}
	for _, c := range commands {
		rasterizers = append(rasterizers, c)
	}
	pool := bounds.NewPool(cfg.Workers, time.Duration(cfg.ToolTimeout))
	analyzer := bounds.NewAnalyzer(bounds.Options{
		Pool:        pool,
		Rasterizers: rasterizers,
		Fraction:    cfg.BoundsFraction,
		Cache:       bounds.NewCache(),
		Logger:      logger,
	})
	return &Session{
		Engine:    engine,
		Palette:   palette,
		Analyzer:  analyzer,
		Converter: cfg.Converter(pool, logger),
		Template:  tmpl,
		PxToMM:    cfg.PxToMM,
		Workers:   cfg.Workers,
		Proof:     cfg.Proof,
		Logger:    logger,
		documents: make(map[string]*Analysis),
	}, nil
}

func (s *Session) logger() *log.Logger {
	if s.Logger == nil {
		return log.Default()
	}
	return s.Logger
}

func (s *Session) store(a *Analysis) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.documents == nil {
		s.documents = make(map[string]*Analysis)
	}
	s.documents[a.Name] = a
}

// Get returns the stored analysis of `name`.
func (s *Session) Get(name string) (*Analysis, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.documents[name]
	return a, ok
}

// Delete removes the document `name`, and returns false if it was not stored.
func (s *Session) Delete(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.documents[name]
	delete(s.documents, name)
	return ok
}

// Names returns the stored documents, sorted.
func (s *Session) Names() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.documents))
	for name := range s.documents {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Close forgets every document and empties the bounds cache.
func (s *Session) Close() {
	s.mu.Lock()
	s.documents = make(map[string]*Analysis)
	s.mu.Unlock()
	if s.Analyzer != nil && s.Analyzer.Cache != nil {
		s.Analyzer.Cache.Clear()
	}
}

// Analyze processes one document and stores the result, replacing
// any document with the same name.
// A parse error is reported in the analysis, and is fatal to this document only.
func (s *Session) Analyze(ctx context.Context, doc Document) *Analysis {
	var a *Analysis
	if f, ok := convert.FormatOf(doc.MimeType, doc.Name); ok {
		a = s.analyzeConverted(ctx, doc.Name, f, doc.Data)
	} else if kind := assemble.KindOf(doc.MimeType, doc.Name); kind != "" {
		a = s.analyze(ctx, doc.Name, kind, doc.Data)
	} else {
		err := fmt.Errorf("%w: %q", ErrUnsupportedFormat, doc.MimeType)
		a = &Analysis{Name: doc.Name, Err: err, Error: err.Error()}
	}
	if a.Err != nil {
		s.logger().Printf("document %q: %s", doc.Name, a.Err)
	}
	s.store(a)
	return a
}

// AnalyzeAll processes the documents concurrently, with at most
// Workers documents at once. The results are in input order.
// The only error returned is the cancellation of `ctx`.
func (s *Session) AnalyzeAll(ctx context.Context, docs []Document) ([]*Analysis, error) {
	out := make([]*Analysis, len(docs))
	g, ctx := errgroup.WithContext(ctx)
	if s.Workers > 0 {
		g.SetLimit(s.Workers)
	}
	for i, doc := range docs {
		i, doc := i, doc
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			out[i] = s.Analyze(ctx, doc)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Session) analyze(ctx context.Context, name string, kind assemble.Kind, data []byte) *Analysis {
	a := &Analysis{Name: name, Kind: kind}
	if kind == assemble.Raster {
		a.Document = data
		a.Bounds = s.rasterBounds(data)
		a.Colors.Strategy = s.Engine.StrategyName()
		return a
	}

	repaired, err := repair.Repair(data)
	if err != nil {
		a.Err, a.Error = err, err.Error()
		return a
	}
	a.Document, a.Fixes = repaired.Data, repaired.Fixes

	// bounds and colors are independent
	var (
		res    bounds.Result
		tokens []colors.Token
	)
	var g errgroup.Group
	g.Go(func() error {
		res = s.Analyzer.Analyze(ctx, a.Document, s.Template.Pixels())
		return nil
	})
	g.Go(func() error {
		var err error
		tokens, err = recolor.Extract(a.Document)
		return err
	})
	if err := g.Wait(); err != nil {
		err = &repair.ParseError{Reason: "malformed document", Err: err}
		a.Err, a.Error = err, err.Error()
		return a
	}
	a.Bounds = s.boundsResult(res)
	a.Colors = s.Convert(tokens)
	return a
}

// analyzeConverted turns a PDF, EPS or AI document into SVG
// before the regular analysis.
func (s *Session) analyzeConverted(ctx context.Context, name string, f convert.Format, data []byte) *Analysis {
	if s.Converter == nil {
		err := fmt.Errorf("%w: %s documents are not enabled", ErrUnsupportedFormat, f)
		return &Analysis{Name: name, Kind: assemble.Vector, Err: err, Error: err.Error()}
	}
	svg, err := s.Converter.ToSVG(ctx, data, f)
	if err != nil {
		err = fmt.Errorf("converting %s document: %w", f, err)
		return &Analysis{Name: name, Kind: assemble.Vector, Err: err, Error: err.Error()}
	}
	a := s.analyze(ctx, name, assemble.Vector, svg)
	a.Fixes = append([]string{fmt.Sprintf("converted from %s", f)}, a.Fixes...)
	return a
}

func (s *Session) toMM(b bounds.Box) bounds.Box {
	f := s.PxToMM
	if f == 0 {
		f = bounds.PxToMMFactor
	}
	return bounds.Box{XMin: b.XMin * f, YMin: b.YMin * f, Width: b.Width * f, Height: b.Height * f}
}

func (s *Session) boundsResult(res bounds.Result) BoundsResult {
	out := BoundsResult{
		Success:  res.Success,
		Method:   res.Method,
		Box:      res.Box,
		BoxMM:    s.toMM(res.Box),
		Attempts: res.Attempts,
	}
	if res.Err != nil {
		out.Error = res.Err.Error()
	}
	return out
}

// rasterBounds trims the transparent margins of an image; an image
// without any opaque pixel keeps its whole area, tagged as default
func (s *Session) rasterBounds(data []byte) BoundsResult {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return BoundsResult{Method: bounds.Default, Error: fmt.Sprintf("invalid image: %s", err)}
	}
	box, err := bounds.MeasureImage(img)
	if err != nil {
		b := img.Bounds()
		full := bounds.Box{Width: float64(b.Dx()), Height: float64(b.Dy())}
		return BoundsResult{Success: true, Method: bounds.Default, Box: full, BoxMM: s.toMM(full)}
	}
	return BoundsResult{Success: true, Method: bounds.Rendered, Box: box, BoxMM: s.toMM(box)}
}

// Convert resolves and standardizes the tokens. A token which can't be
// converted is reported without affecting the others.
func (s *Session) Convert(tokens []colors.Token) ColorAnalysis {
	out := ColorAnalysis{Strategy: s.Engine.StrategyName(), Colors: []colors.Mapping{}}
	palette := s.Palette
	if palette == nil {
		palette = &colors.Palette{}
	}
	for _, tok := range tokens {
		m, err := palette.Standardize(s.Engine, tok)
		if err != nil {
			out.Failures = append(out.Failures, ColorFailure{Token: tok, Error: err.Error()})
			continue
		}
		out.Colors = append(out.Colors, m)
	}
	return out
}

// Recolor applies the approved overrides to the stored document `name`,
// then analyzes the patched content again and stores it.
// Unrecognized tokens are reported in the PatchResult.
func (s *Session) Recolor(ctx context.Context, name string, mapping map[string]string) (recolor.PatchResult, *Analysis, error) {
	prev, ok := s.Get(name)
	if !ok {
		return recolor.PatchResult{}, nil, fmt.Errorf("%w: %q", ErrUnknownDocument, name)
	}
	if prev.Err != nil {
		return recolor.PatchResult{}, nil, prev.Err
	}
	if prev.Kind != assemble.Vector {
		return recolor.PatchResult{}, nil, fmt.Errorf("document %q: only vector artwork can be recolored", name)
	}
	res, err := recolor.Patch(prev.Document, mapping)
	if err != nil {
		return recolor.PatchResult{}, nil, err
	}
	for _, report := range res.Reports {
		s.logger().Printf("document %q: %s", name, report)
	}
	a := s.analyze(ctx, name, prev.Kind, res.Data)
	s.store(a)
	return res, a, a.Err
}

// Placement positions a stored document on the template canvas, in pixels.
type Placement struct {
	Document     string         `json:"document"`
	X            float64        `json:"x"`
	Y            float64        `json:"y"`
	Width        float64        `json:"width"`
	Height       float64        `json:"height"`
	Rotation     float64        `json:"rotation,omitempty"`
	Opacity      float64        `json:"opacity,omitempty"`
	GarmentColor string         `json:"garmentColor,omitempty"`
	Grid         *assemble.Grid `json:"grid,omitempty"`
}

// Assemble writes the print document of the placed documents.
func (s *Session) Assemble(ctx context.Context, placements []Placement) (assemble.Output, error) {
	page := assemble.Page{Template: s.Template}
	for _, pl := range placements {
		a, ok := s.Get(pl.Document)
		if !ok {
			return assemble.Output{}, &assemble.AssemblyError{Element: pl.Document, Err: ErrUnknownDocument}
		}
		if a.Err != nil {
			return assemble.Output{}, &assemble.AssemblyError{Element: pl.Document, Err: a.Err}
		}
		page.Elements = append(page.Elements, assemble.Element{
			Name:         a.Name,
			Document:     a.Document,
			Kind:         a.Kind,
			X:            pl.X,
			Y:            pl.Y,
			Width:        pl.Width,
			Height:       pl.Height,
			Rotation:     pl.Rotation,
			Bounds:       a.Bounds.Box,
			Mappings:     a.Colors.Colors,
			Opacity:      pl.Opacity,
			GarmentColor: pl.GarmentColor,
			Grid:         pl.Grid,
		})
	}
	as := assemble.Assembler{
		Engine:  s.Engine,
		Palette: s.Palette,
		Proof:   s.Proof,
		Logger:  s.logger(),
	}
	return as.Assemble(ctx, page)
}
