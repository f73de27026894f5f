//go:build !cgo

package ocr

import (
	"context"
	"errors"
	"image"
)

// TesseractEngine stub type when built without CGO (see tesseract.go for the
// real implementation).
type TesseractEngine struct{}

// NewTesseractEngine returns a stub engine when built without CGO.
func NewTesseractEngine(_ Options) *TesseractEngine {
	return &TesseractEngine{}
}

// ImageToText always errors without CGO (Tesseract bindings not available).
func (e *TesseractEngine) ImageToText(_ context.Context, _ image.Image) (string, error) {
	return "", errors.New("OCR requires CGO; build with CGO_ENABLED=1 and libtesseract installed")
}
