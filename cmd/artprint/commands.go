package main

import (
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/benoitkugler/artprint/artwork"
	"github.com/benoitkugler/artprint/assemble"
)

var (
	patchOutput    string
	assembleOutput string
	mappings       map[string]string
)

var boundsCmd = &cobra.Command{
	Use:   "bounds FILE...",
	Short: "Measure the content box of artwork",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runBounds,
}

var colorsCmd = &cobra.Command{
	Use:   "colors FILE...",
	Short: "List the colors of artwork, with their CMYK conversion",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runColors,
}

var patchCmd = &cobra.Command{
	Use:   "patch FILE",
	Short: "Replace colors in a SVG document",
	Long:  "Replace the color-bearing attributes matching the --map keys. Everything else in the document is kept byte for byte.",
	Args:  cobra.ExactArgs(1),
	RunE:  runPatch,
}

var assembleCmd = &cobra.Command{
	Use:   "assemble LAYOUT",
	Short: "Assemble the print document described by a JSON layout",
	Args:  cobra.ExactArgs(1),
	RunE:  runAssemble,
}

var templatesCmd = &cobra.Command{
	Use:   "templates",
	Short: "List the known templates",
	Args:  cobra.NoArgs,
	RunE:  runTemplates,
}

func init() {
	patchCmd.Flags().StringToStringVarP(&mappings, "map", "m", nil, "Color replacement, as token=color (repeatable)")
	patchCmd.Flags().StringVarP(&patchOutput, "output", "o", "", "Output file (default: standard output)")
	assembleCmd.Flags().StringVarP(&assembleOutput, "output", "o", "print.pdf", "Output PDF file")
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func readDocument(path string) (artwork.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return artwork.Document{}, err
	}
	return artwork.Document{Name: path, MimeType: mime.TypeByExtension(strings.ToLower(filepath.Ext(path))), Data: data}, nil
}

func readDocuments(paths []string) ([]artwork.Document, error) {
	out := make([]artwork.Document, len(paths))
	for i, path := range paths {
		doc, err := readDocument(path)
		if err != nil {
			return nil, err
		}
		out[i] = doc
	}
	return out, nil
}

func analyzeFiles(cmd *cobra.Command, paths []string) ([]*artwork.Analysis, error) {
	session, err := newSession(templateID)
	if err != nil {
		return nil, err
	}
	docs, err := readDocuments(paths)
	if err != nil {
		return nil, err
	}
	return session.AnalyzeAll(cmd.Context(), docs)
}

func runBounds(cmd *cobra.Command, args []string) error {
	analyses, err := analyzeFiles(cmd, args)
	if err != nil {
		return err
	}
	type entry struct {
		Name   string               `json:"name"`
		Bounds artwork.BoundsResult `json:"bounds"`
		Error  string               `json:"error,omitempty"`
	}
	out := make([]entry, len(analyses))
	for i, a := range analyses {
		out[i] = entry{Name: a.Name, Bounds: a.Bounds, Error: a.Error}
	}
	return writeJSON(cmd.OutOrStdout(), out)
}

func runColors(cmd *cobra.Command, args []string) error {
	analyses, err := analyzeFiles(cmd, args)
	if err != nil {
		return err
	}
	type entry struct {
		Name   string                `json:"name"`
		Colors artwork.ColorAnalysis `json:"colors"`
		Error  string                `json:"error,omitempty"`
	}
	out := make([]entry, len(analyses))
	for i, a := range analyses {
		out[i] = entry{Name: a.Name, Colors: a.Colors, Error: a.Error}
	}
	return writeJSON(cmd.OutOrStdout(), out)
}

func runPatch(cmd *cobra.Command, args []string) error {
	session, err := newSession(templateID)
	if err != nil {
		return err
	}
	doc, err := readDocument(args[0])
	if err != nil {
		return err
	}
	if a := session.Analyze(cmd.Context(), doc); a.Err != nil {
		return a.Err
	}
	res, a, err := session.Recolor(cmd.Context(), doc.Name, mappings)
	if err != nil {
		return err
	}
	for _, report := range res.Reports {
		fmt.Fprintf(cmd.ErrOrStderr(), "warning: %s\n", report)
	}
	if patchOutput == "" {
		_, err = cmd.OutOrStdout().Write(a.Document)
		return err
	}
	return os.WriteFile(patchOutput, a.Document, 0o644)
}

// Layout describes a print document. Document paths are relative
// to the layout file.
type Layout struct {
	Template   string              `json:"template"`
	Proof      *bool               `json:"proof,omitempty"`
	Placements []artwork.Placement `json:"placements"`
	// Overrides are the approved color replacements, by document.
	Overrides map[string]map[string]string `json:"overrides,omitempty"`
}

func runAssemble(cmd *cobra.Command, args []string) error {
	raw, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}
	var layout Layout
	if err = json.Unmarshal(raw, &layout); err != nil {
		return fmt.Errorf("invalid layout %s: %w", args[0], err)
	}
	if layout.Template == "" {
		layout.Template = templateID
	}
	session, err := newSession(layout.Template)
	if err != nil {
		return err
	}
	if layout.Proof != nil {
		session.Proof = *layout.Proof
	}

	dir := filepath.Dir(args[0])
	seen := map[string]bool{}
	var docs []artwork.Document
	for _, pl := range layout.Placements {
		if seen[pl.Document] {
			continue
		}
		seen[pl.Document] = true
		doc, err := readDocument(filepath.Join(dir, pl.Document))
		if err != nil {
			return err
		}
		doc.Name = pl.Document
		docs = append(docs, doc)
	}
	if _, err = session.AnalyzeAll(cmd.Context(), docs); err != nil {
		return err
	}
	for name, mapping := range layout.Overrides {
		res, _, err := session.Recolor(cmd.Context(), name, mapping)
		if err != nil {
			return err
		}
		for _, report := range res.Reports {
			fmt.Fprintf(cmd.ErrOrStderr(), "warning: %s: %s\n", name, report)
		}
	}

	out, err := session.Assemble(cmd.Context(), layout.Placements)
	if err != nil {
		return err
	}
	if err = os.WriteFile(assembleOutput, out.PDF, 0o644); err != nil {
		return err
	}
	for _, s := range out.Swatches {
		if s.Source == assemble.SwatchFallback {
			fmt.Fprintf(cmd.ErrOrStderr(), "warning: %s: %s converted without approved value (%s)\n", s.Element, s.RGB.Hex(), s.CMYK)
		}
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s (%d colors)\n", assembleOutput, len(out.Swatches))
	return nil
}

func runTemplates(cmd *cobra.Command, args []string) error {
	w := cmd.OutOrStdout()
	for _, t := range assemble.Catalog() {
		fmt.Fprintf(w, "%-36s %-36s %gx%g mm  %gx%g px\n", t.ID, t.Name, t.WidthMM, t.HeightMM, t.WidthPx, t.HeightPx)
	}
	return nil
}
