package crop

import (
	"fmt"

	"github.com/fpang/create-post-pipeline/internal/contract"
)

// DefaultDeviceWidth is the viewport width used when the caller has no
// screen to measure.
const DefaultDeviceWidth = 390.0

// Editor holds the interactive pan/zoom state for one image. Gesture
// methods change transient values freely; Settle clamps them. Region must
// only ever be computed from Snapshot, never from mid-gesture values.
type Editor struct {
	image       Size
	deviceWidth float64
	state       State
}

// NewEditor creates an editor for an image of the given pixel size.
func NewEditor(imageWidth, imageHeight int, deviceWidth float64, ratio contract.AspectRatio) (*Editor, error) {
	if imageWidth < 1 || imageHeight < 1 {
		return nil, fmt.Errorf("invalid image size %dx%d", imageWidth, imageHeight)
	}
	if deviceWidth <= 0 {
		deviceWidth = DefaultDeviceWidth
	}
	if !ratio.Valid() {
		return nil, fmt.Errorf("unsupported aspect ratio %q", ratio)
	}

	e := &Editor{
		image:       Size{Width: float64(imageWidth), Height: float64(imageHeight)},
		deviceWidth: deviceWidth,
	}
	e.SetAspectRatio(ratio)
	return e, nil
}

// SetAspectRatio switches the frame. Zoom and pan are reset so no state
// from the old frame can point outside the new one.
func (e *Editor) SetAspectRatio(ratio contract.AspectRatio) {
	viewport := ViewportFor(e.deviceWidth, ratio)
	e.state = State{
		Image:     e.image,
		Viewport:  viewport,
		Ratio:     ratio,
		BaseScale: BaseScale(e.image, viewport),
		Zoom:      MinZoom,
	}
}

// PanBy moves the image by a gesture delta in viewport points.
func (e *Editor) PanBy(dx, dy float64) {
	e.state.OffsetX += dx
	e.state.OffsetY += dy
}

// ZoomTo sets the zoom multiplier. Values below MinZoom are tolerated
// until the next Settle.
func (e *Editor) ZoomTo(zoom float64) {
	e.state.Zoom = zoom
}

// PinchBy multiplies the current zoom by a pinch scale factor.
func (e *Editor) PinchBy(factor float64) {
	e.state.Zoom *= factor
}

// Settle clamps zoom and pan in place and returns the settled state.
func (e *Editor) Settle() State {
	e.state = Clamp(e.state)
	return e.state
}

// Snapshot returns a clamped copy of the current state without mutating
// the editor.
func (e *Editor) Snapshot() State {
	return Clamp(e.state)
}

// Ratio returns the active aspect ratio.
func (e *Editor) Ratio() contract.AspectRatio {
	return e.state.Ratio
}
