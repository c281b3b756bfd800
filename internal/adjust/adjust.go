// Package adjust implements the second phase of the create-post pipeline:
// it takes the settled crop framing, renders the final bitmap into the
// session workspace, and emits the AdjustResult contract.
package adjust

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/fpang/create-post-pipeline/internal/contract"
	"github.com/fpang/create-post-pipeline/internal/crop"
)

// Workspaces is the subset of the session manager this phase needs.
type Workspaces interface {
	Dir(id string) string
	Exists(id string) bool
}

// ProcessingError is a retryable crop/render failure. The user stays on the
// adjustment step.
type ProcessingError struct {
	SessionID string
	Err       error
}

func (e *ProcessingError) Error() string {
	return fmt.Sprintf("processing error in session %s: %v", e.SessionID, e.Err)
}

func (e *ProcessingError) Unwrap() error {
	return e.Err
}

// Retryable is always true: a render may be attempted again.
func (e *ProcessingError) Retryable() bool {
	return true
}

// IsProcessingError reports whether err is a *ProcessingError.
func IsProcessingError(err error) bool {
	var pe *ProcessingError
	return errors.As(err, &pe)
}

// Phase renders committed crops.
type Phase struct {
	workspaces Workspaces
	render     crop.RenderOptions
}

// New creates an adjustment phase.
func New(workspaces Workspaces, render crop.RenderOptions) *Phase {
	return &Phase{workspaces: workspaces, render: render}
}

// NewEditor opens a crop editor for a picked photo.
func (p *Phase) NewEditor(pick *contract.MediaPickResult, deviceWidth float64, ratio contract.AspectRatio) (*crop.Editor, error) {
	if err := contract.AssertMediaPick(pick); err != nil {
		return nil, err
	}
	return crop.NewEditor(pick.Width, pick.Height, deviceWidth, ratio)
}

// Commit snapshots and clamps the editor, derives the source rectangle,
// renders the final bitmap and returns the contract for the publish phase.
func (p *Phase) Commit(ctx context.Context, sessionID string, pick *contract.MediaPickResult, editor *crop.Editor) (*contract.AdjustResult, error) {
	if err := contract.AssertMediaPick(pick); err != nil {
		return nil, err
	}
	if sessionID == "" || !p.workspaces.Exists(sessionID) {
		return nil, &contract.ViolationError{Contract: "Session", Reason: fmt.Sprintf("session %q is not initialized", sessionID)}
	}
	if editor == nil {
		return nil, &contract.ViolationError{Contract: "CropState", Reason: "missing editor"}
	}

	state := editor.Snapshot()
	if int(state.Image.Width) != pick.Width || int(state.Image.Height) != pick.Height {
		return nil, &contract.ViolationError{
			Contract: "CropState",
			Reason: fmt.Sprintf("editor image %vx%v does not match picked %dx%d",
				state.Image.Width, state.Image.Height, pick.Width, pick.Height),
		}
	}

	rect := crop.Region(state)

	out, err := crop.Render(ctx, pick.OriginalURI, rect, state.Ratio, p.workspaces.Dir(sessionID), p.render)
	if err != nil {
		log.Warn().Err(err).Str("sessionId", sessionID).Msg("Render failed")
		return nil, &ProcessingError{SessionID: sessionID, Err: err}
	}

	result := &contract.AdjustResult{
		SessionID:      sessionID,
		Original:       *pick,
		FinalBitmapURI: out.Path,
		Crop: contract.CropMetadata{
			Zoom:        state.Zoom,
			OffsetX:     state.OffsetX,
			OffsetY:     state.OffsetY,
			AspectRatio: state.Ratio,
			CropWidth:   rect.Width,
			CropHeight:  rect.Height,
		},
		CropRect:     rect,
		OutputWidth:  out.Width,
		OutputHeight: out.Height,
	}

	log.Info().
		Str("sessionId", sessionID).
		Str("ratio", string(state.Ratio)).
		Float64("zoom", state.Zoom).
		Str("bitmap", out.Path).
		Msg("Adjustment committed")

	return result, nil
}
