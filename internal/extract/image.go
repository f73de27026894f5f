package extract

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"

	"github.com/raghavvag/lucidfiles/internal/ocr"
)

// extractImage decodes a raster image and runs it through OCR. An empty
// OCR result is not an error: the file simply yields no chunks.
func extractImage(ctx context.Context, content []byte, ext string, engine ocr.Engine) (string, error) {
	img, err := decodeImage(content, ext)
	if err != nil {
		return "", fmt.Errorf("decode image: %w", err)
	}
	text, err := engine.ImageToText(ctx, img)
	if err != nil {
		return "", fmt.Errorf("ocr: %w", err)
	}
	return text, nil
}

func decodeImage(content []byte, ext string) (image.Image, error) {
	switch ext {
	case ".bmp":
		return bmp.Decode(bytes.NewReader(content))
	case ".tif", ".tiff":
		return tiff.Decode(bytes.NewReader(content))
	default:
		img, _, err := image.Decode(bytes.NewReader(content))
		return img, err
	}
}
