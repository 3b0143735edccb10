package svgicon

import (
	"errors"
	"log"
)

// ErrorMode is the for setting how the parser reacts to unparsed elements
type ErrorMode uint8

const (
	// IgnoreErrorMode skips unparsed SVG elements
	IgnoreErrorMode ErrorMode = iota

	// WarnErrorMode outputs a warning when an unparsed SVG element is found
	WarnErrorMode

	// StrictErrorMode causes a error when an unparsed SVG element is found
	StrictErrorMode
)

var (
	errParamMismatch  = errors.New("param mismatch")
	errCommandUnknown = errors.New("unknown command")
	errZeroLengthID   = errors.New("zero length id")
)

// handleError reports an unsupported element according to the error mode
func (c *iconCursor) handleError(errStr string) error {
	switch c.errorMode {
	case StrictErrorMode:
		return errors.New(errStr)
	case WarnErrorMode:
		log.Println(errStr)
	}
	return nil
}
