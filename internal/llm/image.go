package llm

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png" // generated images often arrive as PNG
)

// jpegQuality for re-encoded provider images.
const jpegQuality = 90

// NormalizeJPEG re-encodes an image payload to JPEG so callers see one
// transport-ready encoding no matter which provider produced the image or
// whether it arrived as inline bytes or a fetched URL body.
func NormalizeJPEG(data []byte) ([]byte, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}
