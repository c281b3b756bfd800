package filehandler

import (
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// ErrCorruptImage is returned when a file cannot be decoded as an image.
var ErrCorruptImage = errors.New("corrupt image")

// ImageInfo is the result of a decode probe.
type ImageInfo struct {
	Width  int
	Height int
	Format string
}

// ProbeImage decodes only the image header to learn its intrinsic size.
// Any decode failure is reported as ErrCorruptImage.
func ProbeImage(filePath string) (ImageInfo, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return ImageInfo{}, fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	cfg, format, err := image.DecodeConfig(f)
	if err != nil {
		return ImageInfo{}, fmt.Errorf("%w: %s: %v", ErrCorruptImage, filePath, err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return ImageInfo{}, fmt.Errorf("%w: %s: empty image", ErrCorruptImage, filePath)
	}
	return ImageInfo{Width: cfg.Width, Height: cfg.Height, Format: format}, nil
}

// DecodeImage fully decodes an image file.
func DecodeImage(filePath string) (image.Image, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorruptImage, filePath, err)
	}
	return img, nil
}
