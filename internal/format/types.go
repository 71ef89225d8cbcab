// Package format renders parse outcomes and compatibility reports as chat text.
//
// Structured values are printed the way Ruby's pp prints them: nested arrays
// stay on one line while they fit the line width and break one element per
// line otherwise. Rendering is pure, so the same input always yields the
// same text.
package format

import (
	"errors"
	"fmt"
)

const (
	defaultLineWidth = 80
	defaultIndent    = " "
	astIndent        = "  "
)

// ErrUnknownVariant is returned for an outcome or value this package cannot print.
var ErrUnknownVariant = errors.New("unknown variant")

// Options configure rendering.
type Options struct {
	LineWidth int
	// Indent is added per nesting level when a group breaks. pp uses a single space.
	Indent string
}

func normalizeOptions(opts Options) (Options, error) {
	if opts.LineWidth < 0 {
		return Options{}, fmt.Errorf("invalid LineWidth %d", opts.LineWidth)
	}
	if opts.LineWidth == 0 {
		opts.LineWidth = defaultLineWidth
	}
	if opts.Indent == "" {
		opts.Indent = defaultIndent
	}
	return opts, nil
}
