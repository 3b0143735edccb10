package convert

import (
	"context"
	"errors"
	"io"
	"log"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/benoitkugler/artprint/bounds"
)

var quiet = log.New(io.Discard, "", 0)

const svg = `<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 10 10"><rect width="5" height="5"/></svg>`

// shell runs `script` with the input and output files as $0 and $1
func shell(t *testing.T, label, script string) bounds.Command {
	t.Helper()
	if _, err := os.Stat("/bin/sh"); err != nil {
		t.Skip("no shell available")
	}
	return bounds.Command{Label: label, Path: "/bin/sh", Args: []string{"-c", script, "{input}", "{output}"}}
}

func TestFormatOf(t *testing.T) {
	for _, test := range []struct {
		mime, name string
		format     Format
		ok         bool
	}{
		{"application/pdf", "", PDF, true},
		{"application/postscript; charset=binary", "logo.eps", PostScript, true},
		{"", "Logo.AI", Illustrator, true},
		{"application/octet-stream", "logo.ps", PostScript, true},
		{"image/svg+xml", "logo.pdf", "", false},
		{"image/png", "logo.png", "", false},
		{"", "notes.txt", "", false},
	} {
		f, ok := FormatOf(test.mime, test.name)
		if f != test.format || ok != test.ok {
			t.Errorf("FormatOf(%q, %q): expected %q %v, got %q %v", test.mime, test.name, test.format, test.ok, f, ok)
		}
	}
}

func TestChain(t *testing.T) {
	cv := &Converter{
		// only accepts PostScript input, and copies it
		Normalizers: []bounds.Command{shell(t, "gs", `case "$0" in *.eps) cp "$0" "$1";; *) exit 2;; esac`)},
		Vectorizers: []bounds.Command{
			shell(t, "broken", `exit 1`),
			shell(t, "writer", `case "$0" in *.pdf) printf '%s' '`+svg+`' > "$1";; *) exit 2;; esac`),
		},
		Pool:   bounds.NewPool(2, 10*time.Second),
		Logger: quiet,
	}
	out, err := cv.ToSVG(context.Background(), []byte("%!PS-Adobe-3.0 EPSF-3.0"), PostScript)
	if err != nil {
		t.Fatal(err)
	}
	if string(out) != svg {
		t.Fatalf("unexpected output %s", out)
	}
	// PDF input skips the normalization
	if _, err = cv.ToSVG(context.Background(), []byte("%PDF-1.4"), PDF); err != nil {
		t.Fatal(err)
	}
}

func TestFailures(t *testing.T) {
	cv := &Converter{
		Vectorizers: []bounds.Command{
			shell(t, "first", `echo "no page" >&2; exit 1`),
			shell(t, "second", `touch "$1"`), // empty output
		},
		Logger: quiet,
	}
	_, err := cv.ToSVG(context.Background(), []byte("%PDF-1.4"), PDF)
	if !errors.Is(err, bounds.ErrExternalTool) {
		t.Fatalf("unexpected error %v", err)
	}
	if msg := err.Error(); !strings.Contains(msg, "first") || !strings.Contains(msg, "no page") || !strings.Contains(msg, "second") {
		t.Fatalf("unexpected message %s", msg)
	}

	// no normalizer for an Illustrator file
	if _, err = cv.ToSVG(context.Background(), []byte("%PDF-1.4"), Illustrator); !errors.Is(err, ErrNoProgram) {
		t.Fatalf("unexpected error %v", err)
	}

	cv.Vectorizers = []bounds.Command{{Path: "/nonexistent/inkscape", Args: []string{"{input}"}}}
	var toolErr *bounds.ExternalToolFailure
	if _, err = cv.ToSVG(context.Background(), []byte("%PDF-1.4"), PDF); !errors.As(err, &toolErr) || toolErr.Tool != "inkscape" {
		t.Fatalf("unexpected error %v", err)
	}
}

func TestTimeout(t *testing.T) {
	cv := &Converter{
		Vectorizers: []bounds.Command{shell(t, "slow", `sleep 5`)},
		Pool:        bounds.NewPool(1, 50*time.Millisecond),
		Logger:      quiet,
	}
	_, err := cv.ToSVG(context.Background(), []byte("%PDF-1.4"), PDF)
	if !errors.Is(err, bounds.ErrExternalTool) || !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("unexpected error %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err = cv.ToSVG(ctx, []byte("%PDF-1.4"), PDF); !errors.Is(err, context.Canceled) {
		t.Fatalf("unexpected error %v", err)
	}
}
