// Package crop holds the pan/zoom crop engine: the "cover" scale that keeps
// a fixed-aspect viewport filled, clamping of zoom and pan, the mapping of a
// settled viewport back into source-pixel space, and rendering of the final
// fixed-resolution bitmap.
//
// Coordinates follow screen conventions: the viewport is centred on the
// image at zero offset, positive OffsetX moves the image right, positive
// OffsetY moves it down.
package crop

import (
	"math"

	"github.com/fpang/create-post-pipeline/internal/contract"
)

// MinZoom is the smallest zoom multiplier; below it the image would no
// longer cover the viewport.
const MinZoom = 1.0

// Size is a width/height pair in points or pixels.
type Size struct {
	Width  float64
	Height float64
}

// ViewportFor derives the viewport for a ratio against a fixed device width.
func ViewportFor(deviceWidth float64, ratio contract.AspectRatio) Size {
	w, h := ratio.Dimensions()
	return Size{Width: deviceWidth, Height: deviceWidth * float64(h) / float64(w)}
}

// BaseScale is the cover scale: the smallest factor at which the image
// fills the viewport in both directions.
func BaseScale(img, viewport Size) float64 {
	return math.Max(viewport.Width/img.Width, viewport.Height/img.Height)
}

// State is a settled snapshot of the editor. Only a State that went
// through Clamp may be fed into Region.
type State struct {
	Image     Size
	Viewport  Size
	Ratio     contract.AspectRatio
	BaseScale float64
	Zoom      float64
	OffsetX   float64
	OffsetY   float64
}

// VisualSize is the on-screen size of the image at the state's zoom.
func (s State) VisualSize() Size {
	return Size{
		Width:  s.Image.Width * s.BaseScale * s.Zoom,
		Height: s.Image.Height * s.BaseScale * s.Zoom,
	}
}

// MaxOffset returns the largest pan distance in each direction that keeps
// the viewport inside the image.
func (s State) MaxOffset() (x, y float64) {
	v := s.VisualSize()
	x = math.Max(0, (v.Width-s.Viewport.Width)/2)
	y = math.Max(0, (v.Height-s.Viewport.Height)/2)
	return x, y
}

// Clamp returns s with zoom raised to MinZoom and offsets pulled into
// [-MaxOffset, +MaxOffset].
func Clamp(s State) State {
	if s.Zoom < MinZoom || math.IsNaN(s.Zoom) {
		s.Zoom = MinZoom
	}
	maxX, maxY := s.MaxOffset()
	s.OffsetX = clamp(s.OffsetX, -maxX, maxX)
	s.OffsetY = clamp(s.OffsetY, -maxY, maxY)
	return s
}

// Region maps the viewport of a settled state into source-pixel space.
// The result is clamped to the image bounds so floating-point drift at the
// edges can never produce a rectangle outside the source.
func Region(s State) contract.Rect {
	v := s.VisualSize()

	visualLeft := (s.Viewport.Width-v.Width)/2 + s.OffsetX
	visualTop := (s.Viewport.Height-v.Height)/2 + s.OffsetY

	// How far the viewport's top-left corner has moved into the image.
	cropX := -visualLeft
	cropY := -visualTop

	toSourceX := s.Image.Width / v.Width
	toSourceY := s.Image.Height / v.Height

	r := contract.Rect{
		X:      cropX * toSourceX,
		Y:      cropY * toSourceY,
		Width:  s.Viewport.Width * toSourceX,
		Height: s.Viewport.Height * toSourceY,
	}

	r.X = clamp(r.X, 0, s.Image.Width)
	r.Y = clamp(r.Y, 0, s.Image.Height)
	if r.X+r.Width > s.Image.Width {
		r.Width = s.Image.Width - r.X
	}
	if r.Y+r.Height > s.Image.Height {
		r.Height = s.Image.Height - r.Y
	}
	r.Width = math.Max(0, r.Width)
	r.Height = math.Max(0, r.Height)
	return r
}

// OutputSize is the rendered bitmap size for a target width and ratio.
func OutputSize(targetWidth int, ratio contract.AspectRatio) (w, h int) {
	rw, rh := ratio.Dimensions()
	return targetWidth, int(math.Round(float64(targetWidth) * float64(rh) / float64(rw)))
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Min(math.Max(v, lo), hi)
}
