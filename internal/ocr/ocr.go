// Package ocr provides optical character recognition behind a single-method
// interface, so the parser registry can treat OCR as just another text
// source and tests can substitute a fake that returns a canned string.
package ocr

import (
	"context"
	"image"
	"regexp"
	"strings"
)

// Engine converts a raster image to text.
type Engine interface {
	ImageToText(ctx context.Context, img image.Image) (string, error)
}

// Options tune the recognition pass.
type Options struct {
	DPI  int
	PSM  int
	Lang string
}

var whitespaceRun = regexp.MustCompile(`[ \t]+`)
var blankLineRun = regexp.MustCompile(`\n{3,}`)

// NormalizeWhitespace collapses runs of spaces/tabs and excess blank lines
// in OCR output, and trims the result. Every Engine implementation should
// run its raw output through this before returning.
func NormalizeWhitespace(s string) string {
	s = whitespaceRun.ReplaceAllString(s, " ")
	s = blankLineRun.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}
