//go:build cgo

package ocr

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"

	"github.com/otiai10/gosseract/v2"
)

// TesseractEngine runs OCR via the Tesseract engine through gosseract's CGO
// bindings. One client is created per call since gosseract.Client is not
// safe for concurrent reuse across goroutines.
type TesseractEngine struct {
	opts Options
}

// NewTesseractEngine returns an Engine backed by Tesseract, configured with
// the given page-segmentation mode and language.
func NewTesseractEngine(opts Options) *TesseractEngine {
	if opts.PSM == 0 {
		opts.PSM = 3
	}
	if opts.Lang == "" {
		opts.Lang = "eng"
	}
	return &TesseractEngine{opts: opts}
}

// ImageToText runs a single recognition pass over img and returns
// whitespace-normalized text. An empty result is not an error.
func (e *TesseractEngine) ImageToText(ctx context.Context, img image.Image) (string, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return "", fmt.Errorf("encode image for OCR: %w", err)
	}

	client := gosseract.NewClient()
	defer client.Close()

	if err := client.SetLanguage(e.opts.Lang); err != nil {
		return "", fmt.Errorf("ocr set language: %w", err)
	}
	if err := client.SetPageSegMode(gosseract.PageSegMode(e.opts.PSM)); err != nil {
		return "", fmt.Errorf("ocr set page segmentation mode: %w", err)
	}
	if err := client.SetImageFromBytes(buf.Bytes()); err != nil {
		return "", fmt.Errorf("ocr load image: %w", err)
	}

	done := make(chan struct{})
	var text string
	var ocrErr error
	go func() {
		text, ocrErr = client.Text()
		close(done)
	}()
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case <-done:
	}
	if ocrErr != nil {
		return "", fmt.Errorf("ocr recognize: %w", ocrErr)
	}
	return NormalizeWhitespace(text), nil
}
