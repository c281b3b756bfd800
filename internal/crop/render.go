package crop

import (
	"context"
	"fmt"
	"image"
	"image/jpeg"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/image/draw"

	"github.com/fpang/create-post-pipeline/internal/contract"
	"github.com/fpang/create-post-pipeline/internal/filehandler"
)

// Output defaults for the rendered bitmap.
const (
	DefaultTargetWidth = 1080
	DefaultQuality     = 90
	FinalBitmapName    = "final.jpg"
)

// RenderOptions controls the output bitmap.
type RenderOptions struct {
	TargetWidth int
	Quality     int
}

func (o RenderOptions) withDefaults() RenderOptions {
	if o.TargetWidth <= 0 {
		o.TargetWidth = DefaultTargetWidth
	}
	if o.Quality <= 0 || o.Quality > 100 {
		o.Quality = DefaultQuality
	}
	return o
}

// Rendered describes the bitmap written by Render.
type Rendered struct {
	Path   string
	Width  int
	Height int
}

// Render crops srcPath to rect, scales the crop to the target width with a
// height derived from ratio, and writes a JPEG named FinalBitmapName into
// dstDir. The bitmap is written to a temporary file first and renamed into
// place, so the final path either holds a complete image or nothing.
func Render(ctx context.Context, srcPath string, rect contract.Rect, ratio contract.AspectRatio, dstDir string, opts RenderOptions) (*Rendered, error) {
	start := time.Now()
	opts = opts.withDefaults()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	src, err := filehandler.DecodeImage(srcPath)
	if err != nil {
		return nil, err
	}

	srcRect := pixelRect(rect, src.Bounds())
	if srcRect.Empty() {
		return nil, fmt.Errorf("crop rectangle %+v is empty for %dx%d source", rect, src.Bounds().Dx(), src.Bounds().Dy())
	}

	outW, outH := OutputSize(opts.TargetWidth, ratio)
	dst := image.NewRGBA(image.Rect(0, 0, outW, outH))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, srcRect, draw.Src, nil)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	finalPath := filepath.Join(dstDir, FinalBitmapName)
	if err := writeJPEGAtomic(dst, finalPath, opts.Quality); err != nil {
		return nil, err
	}

	log.Debug().
		Str("src", srcPath).
		Str("dst", finalPath).
		Int("crop_x", srcRect.Min.X).
		Int("crop_y", srcRect.Min.Y).
		Int("crop_w", srcRect.Dx()).
		Int("crop_h", srcRect.Dy()).
		Int("out_w", outW).
		Int("out_h", outH).
		Dur("elapsed", time.Since(start)).
		Msg("Final bitmap rendered")

	return &Rendered{Path: finalPath, Width: outW, Height: outH}, nil
}

// pixelRect converts a float source rectangle into integer pixel bounds of
// the decoded image, rounding outward-in so the result stays inside bounds.
func pixelRect(r contract.Rect, bounds image.Rectangle) image.Rectangle {
	x0 := int(math.Round(r.X))
	y0 := int(math.Round(r.Y))
	x1 := int(math.Round(r.X + r.Width))
	y1 := int(math.Round(r.Y + r.Height))
	return image.Rect(x0, y0, x1, y1).Add(bounds.Min).Intersect(bounds)
}

func writeJPEGAtomic(img image.Image, finalPath string, quality int) error {
	tmp, err := os.CreateTemp(filepath.Dir(finalPath), ".render-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp bitmap: %w", err)
	}
	tmpPath := tmp.Name()

	if err := jpeg.Encode(tmp, img, &jpeg.Options{Quality: quality}); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("encode bitmap: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close bitmap: %w", err)
	}
	if err := os.Rename(tmpPath, finalPath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("move bitmap into place: %w", err)
	}
	return nil
}
