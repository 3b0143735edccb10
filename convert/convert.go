// Package convert turns PDF, PostScript and Illustrator artwork into
// SVG documents, with external programs: Ghostscript normalizes
// PostScript and Illustrator files to PDF, then Inkscape (or pdftocairo)
// writes a plain SVG of the first page.
package convert

import (
	"context"
	"errors"
	"fmt"
	"log"
	"path/filepath"
	"strings"

	"github.com/benoitkugler/artprint/bounds"
)

// Format is a document format which must be converted to SVG
// before its analysis.
type Format string

const (
	PDF         Format = "pdf"
	PostScript  Format = "eps"
	Illustrator Format = "ai"
)

var mimeFormats = map[string]Format{
	"application/pdf":                   PDF,
	"application/x-pdf":                 PDF,
	"application/postscript":            PostScript,
	"application/eps":                   PostScript,
	"application/x-eps":                 PostScript,
	"image/eps":                         PostScript,
	"image/x-eps":                       PostScript,
	"application/illustrator":           Illustrator,
	"application/vnd.adobe.illustrator": Illustrator,
}

var extFormats = map[string]Format{
	".pdf": PDF,
	".eps": PostScript,
	".ps":  PostScript,
	".ai":  Illustrator,
}

// FormatOf uses the MIME type. The file extension is only used
// for an empty or generic MIME type.
func FormatOf(mimeType, fileName string) (Format, bool) {
	mt := strings.ToLower(strings.TrimSpace(mimeType))
	if i := strings.IndexByte(mt, ';'); i >= 0 {
		mt = strings.TrimSpace(mt[:i])
	}
	if f, ok := mimeFormats[mt]; ok {
		return f, true
	}
	if mt != "" && mt != "application/octet-stream" {
		return "", false
	}
	f, ok := extFormats[strings.ToLower(filepath.Ext(fileName))]
	return f, ok
}

// ErrNoProgram is returned when no program is configured for a step.
var ErrNoProgram = errors.New("no conversion program configured")

// Ghostscript returns the command line writing a PDF from a PostScript
// (or PDF compatible Illustrator) file.
// `path` may be empty to look the program up in the PATH.
func Ghostscript(path string) bounds.Command {
	if path == "" {
		path = "gs"
	}
	return bounds.Command{
		Label: "gs",
		Path:  path,
		Args:  []string{"-dSAFER", "-dBATCH", "-dNOPAUSE", "-dQUIET", "-sDEVICE=pdfwrite", "-sOutputFile={output}", "{input}"},
	}
}

// Inkscape returns the command line writing a plain SVG of
// the first page of a PDF file (Inkscape 1.0 or later).
func Inkscape(path string) bounds.Command {
	if path == "" {
		path = "inkscape"
	}
	return bounds.Command{
		Label: "inkscape",
		Path:  path,
		Args:  []string{"--pdf-page=1", "--export-type=svg", "--export-plain-svg", "--export-filename={output}", "{input}"},
	}
}

// PDFToCairo returns the command line of poppler's converter,
// writing a SVG of the first page of a PDF file.
func PDFToCairo(path string) bounds.Command {
	if path == "" {
		path = "pdftocairo"
	}
	return bounds.Command{
		Label: "pdftocairo",
		Path:  path,
		Args:  []string{"-svg", "-f", "1", "-l", "1", "{input}", "{output}"},
	}
}

// Converter runs the conversion programs. Each step tries its programs in
// order, the first success wins.
type Converter struct {
	// Normalizers write a PDF from PostScript and Illustrator files.
	Normalizers []bounds.Command
	// Vectorizers write a SVG from a PDF file.
	Vectorizers []bounds.Command
	// Pool bounds the number of programs running at once and their duration.
	// It is usually shared with the bounds analyzer.
	Pool   *bounds.Pool
	Logger *log.Logger
}

func (cv *Converter) logger() *log.Logger {
	if cv.Logger == nil {
		return log.Default()
	}
	return cv.Logger
}

// ToSVG converts a document of format `f`.
// When every program of a step fails, the returned error joins
// their *bounds.ExternalToolFailure, and matches bounds.ErrExternalTool.
func (cv *Converter) ToSVG(ctx context.Context, data []byte, f Format) ([]byte, error) {
	pdf := data
	if f != PDF {
		var err error
		pdf, err = cv.run(ctx, cv.Normalizers, data, "."+string(f), ".pdf")
		if err != nil {
			return nil, fmt.Errorf("converting %s to PDF: %w", f, err)
		}
	}
	svg, err := cv.run(ctx, cv.Vectorizers, pdf, ".pdf", ".svg")
	if err != nil {
		return nil, fmt.Errorf("converting PDF to SVG: %w", err)
	}
	return svg, nil
}

func (cv *Converter) run(ctx context.Context, programs []bounds.Command, data []byte, inputExt, outputExt string) ([]byte, error) {
	if len(programs) == 0 {
		return nil, ErrNoProgram
	}
	pool := cv.Pool
	if pool == nil {
		pool = bounds.NewPool(1, bounds.DefaultTimeout)
	}
	var errs []error
	for _, program := range programs {
		var out []byte
		err := pool.Run(ctx, func(ctx context.Context) error {
			res, err := program.Exec(ctx, data, inputExt, outputExt)
			if err == nil && len(res) == 0 {
				err = &bounds.ExternalToolFailure{Tool: program.Name(), Err: errors.New("empty output")}
			}
			out = res
			return err
		})
		if err == nil {
			return out, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		var toolErr *bounds.ExternalToolFailure
		if !errors.As(err, &toolErr) { // timeout
			err = &bounds.ExternalToolFailure{Tool: program.Name(), Err: err}
		}
		cv.logger().Printf("%s", err)
		errs = append(errs, err)
	}
	return nil, errors.Join(errs...)
}
