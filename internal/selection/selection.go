// Package selection implements the first phase of the create-post
// pipeline: it validates exactly one picked photo and opens a session
// for it.
package selection

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/fpang/create-post-pipeline/internal/contract"
	"github.com/fpang/create-post-pipeline/internal/filehandler"
)

// Default quality floor and upload ceiling.
const (
	DefaultMinDimension = 500
	DefaultMaxFileSize  = 20 * 1024 * 1024 // 20 MB
)

// Asset is one item returned by a platform picker.
type Asset struct {
	URI    string
	Source contract.Source
}

// Picker yields the assets chosen by the user. Pickers report refused
// access with ErrPermissionDenied and a cancelled dialog as zero assets.
type Picker interface {
	Pick(ctx context.Context) ([]Asset, error)
}

// Workspaces is the subset of the session manager this phase needs.
type Workspaces interface {
	GenerateID() string
	Initialize(id string) error
}

// Limits bounds what a picked photo may look like.
type Limits struct {
	MinDimension int
	MaxFileSize  int64
}

// DefaultLimits returns the product limits: 500x500 minimum, 20 MB maximum.
func DefaultLimits() Limits {
	return Limits{MinDimension: DefaultMinDimension, MaxFileSize: DefaultMaxFileSize}
}

// Result is the navigation payload handed to the adjustment phase.
type Result struct {
	SessionID string
	Pick      contract.MediaPickResult
}

// Phase validates picks and opens sessions.
type Phase struct {
	workspaces Workspaces
	limits     Limits
	now        func() time.Time
}

// New creates a selection phase backed by the given session workspaces.
func New(workspaces Workspaces, limits Limits) *Phase {
	return &Phase{workspaces: workspaces, limits: limits, now: time.Now}
}

// Run asks the picker for assets and validates them.
func (p *Phase) Run(ctx context.Context, picker Picker) (*Result, error) {
	assets, err := picker.Pick(ctx)
	if err != nil {
		if errors.Is(err, ErrPermissionDenied) {
			return nil, newError(CodePermissionDenied, "Photo access was denied", err)
		}
		return nil, newError(CodeSelection, "Could not open the picker", err)
	}
	return p.Select(ctx, assets)
}

// Select validates the picked assets. On success it creates and initializes
// a new session; on any failure no session is created.
func (p *Phase) Select(ctx context.Context, assets []Asset) (*Result, error) {
	switch {
	case len(assets) == 0:
		return nil, newError(CodeSelection, "No photo selected", nil)
	case len(assets) > 1:
		return nil, newError(CodeSelection, fmt.Sprintf("Select exactly one photo (got %d)", len(assets)), nil)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	pick, err := p.validate(assets[0])
	if err != nil {
		log.Info().Err(err).Str("uri", assets[0].URI).Msg("Picked asset rejected")
		return nil, err
	}

	id := p.workspaces.GenerateID()
	if err := p.workspaces.Initialize(id); err != nil {
		return nil, fmt.Errorf("open session: %w", err)
	}

	log.Info().
		Str("sessionId", id).
		Str("uri", pick.OriginalURI).
		Int("width", pick.Width).
		Int("height", pick.Height).
		Int64("size_bytes", pick.FileSize).
		Str("camera", pick.Camera).
		Msg("Media selected, session opened")

	return &Result{SessionID: id, Pick: *pick}, nil
}

func (p *Phase) validate(asset Asset) (*contract.MediaPickResult, error) {
	if asset.URI == "" {
		return nil, newError(CodeInvalidMedia, "Photo has no file", nil)
	}

	mf, err := filehandler.LoadMediaFile(asset.URI)
	if err != nil {
		switch {
		case errors.Is(err, filehandler.ErrNotFound):
			return nil, newError(CodeInvalidMedia, "File not found", err)
		case errors.Is(err, filehandler.ErrUnsupportedFormat):
			return nil, newError(CodeInvalidMedia, "Unsupported file type", err)
		default:
			return nil, newError(CodeInvalidMedia, "File could not be read", err)
		}
	}

	if p.limits.MaxFileSize > 0 && mf.Size > p.limits.MaxFileSize {
		return nil, newError(CodeInvalidMedia, "File too large",
			fmt.Errorf("%d bytes exceeds %d", mf.Size, p.limits.MaxFileSize))
	}

	info, err := filehandler.ProbeImage(mf.Path)
	if err != nil {
		return nil, newError(CodeInvalidMedia, "Corrupt image", err)
	}

	if info.Width < p.limits.MinDimension || info.Height < p.limits.MinDimension {
		return nil, newError(CodeInvalidMedia, "Image too small",
			fmt.Errorf("%dx%d is below %dx%d", info.Width, info.Height, p.limits.MinDimension, p.limits.MinDimension))
	}

	source := asset.Source
	if source == "" {
		source = contract.SourceLibrary
	}

	uri := mf.Path
	if abs, err := filepath.Abs(mf.Path); err == nil {
		uri = abs
	}

	pick := &contract.MediaPickResult{
		OriginalURI: uri,
		Source:      source,
		MIMEType:    mf.MIMEType,
		Width:       info.Width,
		Height:      info.Height,
		FileSize:    mf.Size,
		Timestamp:   p.now().UTC(),
	}
	if md := mf.Metadata; md != nil {
		if md.HasDate {
			pick.TakenAt = md.DateTaken
		}
		if md.HasGPS {
			pick.GPS = &contract.GPS{Latitude: md.Latitude, Longitude: md.Longitude}
		}
		pick.Camera = md.Camera()
	}
	return pick, nil
}
