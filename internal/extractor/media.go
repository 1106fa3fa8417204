package extractor

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"io"

	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"

	"invoicelens/internal/domain"
)

// MaxImagePixels bounds the dimensions of a TIFF or BMP that is decoded for conversion.
const MaxImagePixels = 80_000_000

var imageConfigs = map[string]func(io.Reader) (image.Config, error){
	"image/tiff":     tiff.DecodeConfig,
	"image/bmp":      bmp.DecodeConfig,
	"image/x-ms-bmp": bmp.DecodeConfig,
}

// CheckImageSize reads the header of a TIFF or BMP and rejects images that cannot be read
// or whose width x height exceeds MaxImagePixels. Other content types are not inspected.
// Errors wrap domain.ErrInvalidDocument.
func CheckImageSize(contentType string, data []byte) error {
	decodeConfig, ok := imageConfigs[contentType]
	if !ok {
		return nil
	}
	cfg, err := decodeConfig(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("%w: reading %s header: %v", domain.ErrInvalidDocument, contentType, err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 || int64(cfg.Width)*int64(cfg.Height) > MaxImagePixels {
		return fmt.Errorf("%w: image is %dx%d pixels", domain.ErrInvalidDocument, cfg.Width, cfg.Height)
	}
	return nil
}

// PrepareMedia returns the MIME type and bytes to send to a provider. PDF, JPEG and PNG
// pass through; TIFF and BMP are re-encoded as PNG since the vision API does not accept them.
func PrepareMedia(contentType string, data []byte) (string, []byte, error) {
	var decode func(r *bytes.Reader) (image.Image, error)
	switch contentType {
	case "application/pdf", "image/jpeg", "image/png":
		return contentType, data, nil
	case "image/tiff":
		decode = func(r *bytes.Reader) (image.Image, error) { return tiff.Decode(r) }
	case "image/bmp", "image/x-ms-bmp":
		decode = func(r *bytes.Reader) (image.Image, error) { return bmp.Decode(r) }
	default:
		return "", nil, fmt.Errorf("unsupported content type for extraction: %s", contentType)
	}

	if err := CheckImageSize(contentType, data); err != nil {
		return "", nil, err
	}
	img, err := decode(bytes.NewReader(data))
	if err != nil {
		return "", nil, fmt.Errorf("decoding %s: %w", contentType, err)
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return "", nil, fmt.Errorf("encoding png: %w", err)
	}
	return "image/png", buf.Bytes(), nil
}
