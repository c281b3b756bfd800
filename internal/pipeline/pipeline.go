// Package pipeline runs the three create-post phases in order for the
// entry points: select one photo, commit a crop, then publish. It owns the
// session lifecycle around them.
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/fpang/create-post-pipeline/internal/adjust"
	"github.com/fpang/create-post-pipeline/internal/contract"
	"github.com/fpang/create-post-pipeline/internal/crop"
	"github.com/fpang/create-post-pipeline/internal/filehandler"
	"github.com/fpang/create-post-pipeline/internal/post"
	"github.com/fpang/create-post-pipeline/internal/publish"
	"github.com/fpang/create-post-pipeline/internal/selection"
	"github.com/fpang/create-post-pipeline/internal/session"
)

// Framing is the gesture state applied in the crop editor before commit.
// Offsets are in viewport points and are clamped on commit.
type Framing struct {
	Ratio   contract.AspectRatio
	Zoom    float64
	OffsetX float64
	OffsetY float64
}

// Request is one create-post run.
type Request struct {
	Picker  selection.Picker
	Framing Framing
	Details post.Details

	// LocationFromEXIF tags the photo's GPS position when Details has no
	// location.
	LocationFromEXIF bool
	// Attempts bounds publish attempts for retryable failures. Zero means one.
	Attempts int
	// KeepOnFailure leaves the session workspace in place after a failed
	// publish.
	KeepOnFailure bool
}

// KeptResultName is the file in a kept session workspace that holds the
// failed run, so a later process can retry it.
const KeptResultName = "kept.json"

// Result reports how far a run got.
type Result struct {
	SessionID string                    `json:"sessionId"`
	Pick      *contract.MediaPickResult `json:"pick,omitempty"`
	Adjust    *contract.AdjustResult    `json:"adjust,omitempty"`
	Payload   *contract.PostPayload     `json:"payload,omitempty"`
	Outcome   publish.Outcome           `json:"outcome"`
	Attempts  int                       `json:"attempts"`
}

// Pipeline wires the phases to one session manager and publisher.
type Pipeline struct {
	sessions    *session.Manager
	selection   *selection.Phase
	adjust      *adjust.Phase
	publisher   *publish.Publisher
	deviceWidth float64
	backoff     time.Duration
}

// Options tune the phases.
type Options struct {
	Limits      selection.Limits
	Render      crop.RenderOptions
	DeviceWidth float64
	// Backoff is the pause before the second publish attempt; it doubles
	// for each further attempt.
	Backoff time.Duration
}

// New creates a Pipeline.
func New(sessions *session.Manager, publisher *publish.Publisher, opts Options) *Pipeline {
	if opts.DeviceWidth <= 0 {
		opts.DeviceWidth = crop.DefaultDeviceWidth
	}
	if opts.Limits == (selection.Limits{}) {
		opts.Limits = selection.DefaultLimits()
	}
	return &Pipeline{
		sessions:    sessions,
		selection:   selection.New(sessions, opts.Limits),
		adjust:      adjust.New(sessions, opts.Render),
		publisher:   publisher,
		deviceWidth: opts.DeviceWidth,
		backoff:     opts.Backoff,
	}
}

// Sessions returns the session manager.
func (p *Pipeline) Sessions() *session.Manager { return p.sessions }

// Run executes all phases. Errors from selection and adjustment are
// returned as is (*selection.Error, *adjust.ProcessingError,
// *contract.ViolationError). A publish failure is not an error: it is
// reported in Result.Outcome.
func (p *Pipeline) Run(ctx context.Context, req Request) (*Result, error) {
	sel, err := p.selection.Run(ctx, req.Picker)
	if err != nil {
		return nil, err
	}
	res := &Result{SessionID: sel.SessionID, Pick: &sel.Pick}
	logger := log.With().Str("sessionId", sel.SessionID).Logger()

	abandon := func(err error) (*Result, error) {
		logger.Warn().Err(err).Msg("Create flow abandoned")
		p.sessions.Cleanup(sel.SessionID)
		return res, err
	}

	ratio := req.Framing.Ratio
	if ratio == "" {
		ratio = contract.Ratio1x1
	}
	editor, err := p.adjust.NewEditor(res.Pick, p.deviceWidth, ratio)
	if err != nil {
		return abandon(err)
	}
	if req.Framing.Zoom > 0 {
		editor.ZoomTo(req.Framing.Zoom)
	}
	editor.PanBy(req.Framing.OffsetX, req.Framing.OffsetY)

	adj, err := p.adjust.Commit(ctx, sel.SessionID, res.Pick, editor)
	if err != nil {
		return abandon(err)
	}
	res.Adjust = adj

	details := req.Details
	if details.Location == nil && req.LocationFromEXIF {
		details.Location = LocationFromGPS(res.Pick.GPS)
	}
	payload, err := post.BuildPayload(adj, details)
	if err != nil {
		return abandon(err)
	}
	res.Payload = payload

	res.Outcome, res.Attempts = p.publish(ctx, payload, req.Attempts)

	if res.Outcome.Succeeded() {
		logger.Info().
			Str("postId", res.Outcome.PostID).
			Str("url", res.Outcome.MediaURL).
			Int("attempts", res.Attempts).
			Msg("Post is live")
		p.sessions.Cleanup(sel.SessionID)
		return res, nil
	}

	logger.Warn().
		Str("reason", string(res.Outcome.Reason)).
		Bool("retryable", res.Outcome.Retryable).
		Int("attempts", res.Attempts).
		Msg("Publish failed")
	if !req.KeepOnFailure {
		p.sessions.Cleanup(sel.SessionID)
		return res, nil
	}
	if err := p.keep(res); err != nil {
		logger.Error().Err(err).Msg("Failed to keep session for retry")
		p.sessions.Cleanup(sel.SessionID)
	}
	return res, nil
}

// Retry publishes a previous run's payload again. The session must still
// exist (KeepOnFailure). A failed retry keeps the session again.
func (p *Pipeline) Retry(ctx context.Context, prev *Result, attempts int) (*Result, error) {
	if prev == nil || prev.Payload == nil {
		return nil, &contract.ViolationError{Contract: "PostPayload", Reason: "nothing to retry"}
	}
	if !p.sessions.Exists(prev.SessionID) {
		return nil, &contract.ViolationError{Contract: "Session", Reason: fmt.Sprintf("session %q no longer exists", prev.SessionID)}
	}
	res := *prev
	res.Outcome, res.Attempts = p.publish(ctx, prev.Payload, attempts)
	if res.Outcome.Succeeded() {
		p.sessions.Cleanup(prev.SessionID)
		return &res, nil
	}
	if err := p.keep(&res); err != nil {
		log.Warn().Err(err).Str("sessionId", res.SessionID).Msg("Failed to update kept session")
	}
	return &res, nil
}

// Kept loads the run kept in sessionID's workspace.
func (p *Pipeline) Kept(sessionID string) (*Result, error) {
	if err := session.ValidateID(sessionID); err != nil {
		return nil, &contract.ViolationError{Contract: "Session", Reason: err.Error()}
	}
	if !p.sessions.Exists(sessionID) {
		return nil, &contract.ViolationError{Contract: "Session", Reason: fmt.Sprintf("session %q no longer exists", sessionID)}
	}
	data, err := os.ReadFile(filepath.Join(p.sessions.Dir(sessionID), KeptResultName))
	if err != nil {
		return nil, &contract.ViolationError{Contract: "Session", Reason: fmt.Sprintf("session %q was not kept for retry: %v", sessionID, err)}
	}
	var res Result
	if err := json.Unmarshal(data, &res); err != nil {
		return nil, fmt.Errorf("decode kept session %s: %w", sessionID, err)
	}
	if res.SessionID != sessionID {
		return nil, &contract.ViolationError{Contract: "Session", Reason: fmt.Sprintf("kept result belongs to %q", res.SessionID)}
	}
	return &res, nil
}

// RetryKept reloads a kept session and publishes it again.
func (p *Pipeline) RetryKept(ctx context.Context, sessionID string, attempts int) (*Result, error) {
	prev, err := p.Kept(sessionID)
	if err != nil {
		return nil, err
	}
	return p.Retry(ctx, prev, attempts)
}

// Cancel abandons a session kept after failure.
func (p *Pipeline) Cancel(sessionID string) {
	p.sessions.Cleanup(sessionID)
}

// keep writes res into its session workspace, temp file then rename.
func (p *Pipeline) keep(res *Result) error {
	data, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return fmt.Errorf("encode kept session: %w", err)
	}
	dir := p.sessions.Dir(res.SessionID)
	tmp, err := os.CreateTemp(dir, KeptResultName+".*")
	if err != nil {
		return fmt.Errorf("create kept session file: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write kept session file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close kept session file: %w", err)
	}
	if err := os.Rename(tmp.Name(), filepath.Join(dir, KeptResultName)); err != nil {
		return fmt.Errorf("rename kept session file: %w", err)
	}
	return nil
}

func (p *Pipeline) publish(ctx context.Context, payload *contract.PostPayload, attempts int) (publish.Outcome, int) {
	if attempts < 1 {
		attempts = 1
	}
	wait := p.backoff
	var out publish.Outcome
	for n := 1; ; n++ {
		out = p.publisher.Publish(ctx, payload)
		if out.Succeeded() || !out.Retryable || n >= attempts {
			return out, n
		}
		log.Info().Int("attempt", n).Dur("wait", wait).Str("reason", string(out.Reason)).Msg("Retrying publish")
		if wait > 0 {
			select {
			case <-ctx.Done():
				return out, n
			case <-time.After(wait):
			}
			wait *= 2
		}
	}
}

// LocationFromGPS builds a coordinate-only location, or nil without GPS.
func LocationFromGPS(gps *contract.GPS) *contract.Location {
	if gps == nil {
		return nil
	}
	coords := *gps
	return &contract.Location{
		ID:     "geo:" + strconv.FormatFloat(gps.Latitude, 'f', 6, 64) + "," + strconv.FormatFloat(gps.Longitude, 'f', 6, 64),
		Name:   filehandler.CoordinatesToDMS(gps.Latitude, gps.Longitude),
		Coords: &coords,
	}
}
