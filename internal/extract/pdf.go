package extract

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/raghavvag/lucidfiles/internal/ocr"
)

// extractPDF extracts per-page text. Pages whose text layer is empty or
// whitespace-only are treated as scanned pages: any embedded image
// XObjects on that page are decoded and OCR'd, and the per-page decision is
// independent, so a single PDF may mix native-text and OCR pages.
func extractPDF(ctx context.Context, content []byte, engine ocr.Engine) (string, error) {
	r, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", fmt.Errorf("open PDF: %w", err)
	}
	var pages []string
	numPages := r.NumPage()
	for i := 0; i < numPages; i++ {
		page := r.Page(i + 1)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return "", fmt.Errorf("extract page %d: %w", i+1, err)
		}
		if strings.TrimSpace(text) == "" {
			ocrText, err := ocrPage(ctx, page, engine)
			if err != nil {
				return "", fmt.Errorf("ocr page %d: %w", i+1, err)
			}
			text = ocrText
		}
		pages = append(pages, text)
	}
	return strings.Join(pages, "\n\n"), nil
}

// ocrPage walks a page's XObject resources for embedded raster images and
// OCRs each one found, concatenating the results in resource order. A page
// with no decodable image (e.g. vector-only, blank) yields an empty string,
// which is not an error.
func ocrPage(ctx context.Context, page pdf.Page, engine ocr.Engine) (string, error) {
	resources := page.Resources()
	if resources.IsNull() {
		return "", nil
	}
	xobjects := resources.Key("XObject")
	if xobjects.IsNull() {
		return "", nil
	}

	var out []string
	for _, key := range xobjects.Keys() {
		obj := xobjects.Key(key)
		if obj.Key("Subtype").Name() != "Image" {
			continue
		}
		raw := obj.Reader()
		if raw == nil {
			continue
		}
		var buf bytes.Buffer
		if _, err := buf.ReadFrom(raw); err != nil {
			continue
		}
		img, _, err := image.Decode(bytes.NewReader(buf.Bytes()))
		if err != nil {
			// Not a directly decodable raster (e.g. CCITT fax, raw sample
			// data); skip rather than fail the whole page.
			continue
		}
		text, err := engine.ImageToText(ctx, img)
		if err != nil {
			return "", err
		}
		if strings.TrimSpace(text) != "" {
			out = append(out, text)
		}
	}
	return strings.Join(out, "\n"), nil
}
