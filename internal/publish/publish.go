// Package publish runs the publish saga: upload the final bitmap, create
// the post record, and delete the upload again if the record cannot be
// created. Callers get a single Outcome, success or failure, and never a
// partial result.
package publish

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/fpang/create-post-pipeline/internal/contract"
	"github.com/fpang/create-post-pipeline/internal/events"
	"github.com/fpang/create-post-pipeline/internal/identity"
	"github.com/fpang/create-post-pipeline/internal/metrics"
	"github.com/fpang/create-post-pipeline/internal/post"
	"github.com/fpang/create-post-pipeline/internal/storage"
	"github.com/fpang/create-post-pipeline/internal/store"
)

// Timeouts bound each network step. Zero disables the bound for that step.
type Timeouts struct {
	Upload   time.Duration
	Record   time.Duration
	Rollback time.Duration
	Notify   time.Duration
}

// DefaultTimeouts returns the default per-step bounds.
func DefaultTimeouts() Timeouts {
	return Timeouts{
		Upload:   60 * time.Second,
		Record:   15 * time.Second,
		Rollback: 15 * time.Second,
		Notify:   5 * time.Second,
	}
}

// Publisher runs publish attempts. It holds no per-attempt state and may be
// shared.
type Publisher struct {
	identity  identity.Accessor
	objects   storage.ObjectStore
	documents store.DocumentStore
	notifier  events.Notifier
	timeouts  Timeouts
	backend   string
	now       func() time.Time
	newID     func() string

	onTransition func(from, to state)
}

// Option configures a Publisher.
type Option func(*Publisher)

// WithNotifier emits a PostCreated event after each successful publish.
func WithNotifier(n events.Notifier) Option {
	return func(p *Publisher) { p.notifier = n }
}

// WithTimeouts overrides DefaultTimeouts.
func WithTimeouts(t Timeouts) Option {
	return func(p *Publisher) { p.timeouts = t }
}

// WithBackendLabel sets the Backend metric dimension, e.g. "s3+dynamodb".
func WithBackendLabel(label string) Option {
	return func(p *Publisher) { p.backend = label }
}

// WithClock replaces time.Now for record timestamps.
func WithClock(now func() time.Time) Option {
	return func(p *Publisher) { p.now = now }
}

// WithIDGenerator replaces the post id generator.
func WithIDGenerator(gen func() string) Option {
	return func(p *Publisher) { p.newID = gen }
}

// New creates a Publisher.
func New(id identity.Accessor, objects storage.ObjectStore, documents store.DocumentStore, opts ...Option) *Publisher {
	p := &Publisher{
		identity:  id,
		objects:   objects,
		documents: documents,
		timeouts:  DefaultTimeouts(),
		backend:   "unknown",
		now:       time.Now,
		newID:     uuid.NewString,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// attempt is the mutable state of one Publish call.
type attempt struct {
	p     *Publisher
	state state
}

func (a *attempt) moveTo(next state) {
	if !a.state.canMoveTo(next) {
		panic(fmt.Sprintf("publish: illegal transition %s -> %s", a.state, next))
	}
	log.Debug().Str("from", a.state.String()).Str("to", next.String()).Msg("Publish state transition")
	if a.p.onTransition != nil {
		a.p.onTransition(a.state, next)
	}
	a.state = next
}

// Publish runs one attempt. Every attempt mints a fresh post id, so a retry
// after failure never collides with an earlier partial attempt.
func (p *Publisher) Publish(ctx context.Context, payload *contract.PostPayload) Outcome {
	start := time.Now()
	out, rolledBack := p.publish(ctx, payload)
	p.record(out, payload, rolledBack, time.Since(start))
	return out
}

func (p *Publisher) publish(ctx context.Context, payload *contract.PostPayload) (Outcome, bool) {
	user, err := p.identity.CurrentUser(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("Identity lookup failed")
		return failure(ReasonUnauthenticated, false, err), false
	}
	if user == nil {
		log.Warn().Msg("Publish attempted without a signed-in user")
		return failure(ReasonUnauthenticated, false, errors.New("not signed in")), false
	}
	if err := identity.ValidateUserID(user.ID); err != nil {
		return failure(ReasonUnauthenticated, false, fmt.Errorf("user %q: %w", user.ID, err)), false
	}

	// Everything below this line is checked before any network call.
	if payload != nil {
		if err := post.ValidateCaption(payload.Caption); err != nil {
			return failure(ReasonCaptionTooLong, false, err), false
		}
	}
	if err := contract.AssertPostPayload(payload); err != nil {
		return failure(ReasonInvalidPayload, false, err), false
	}
	if _, err := os.Stat(payload.MediaURI); err != nil {
		return failure(ReasonInvalidPayload, false, fmt.Errorf("media unavailable: %w", err)), false
	}

	a := &attempt{p: p, state: stateStart}
	postID := p.newID()
	objectPath := storage.PostObjectPath(user.ID, postID, filepath.Base(payload.MediaURI))
	logger := log.With().
		Str("sessionId", payload.SessionID).
		Str("postId", postID).
		Str("userId", user.ID).
		Logger()

	// Step 1: upload.
	a.moveTo(stateUploading)
	uploadCtx, cancel := withTimeout(ctx, p.timeouts.Upload)
	url, err := p.objects.Put(uploadCtx, objectPath, payload.MediaURI)
	cancel()
	if err != nil {
		a.moveTo(stateUploadFailed)
		logger.Error().Err(err).Str("path", objectPath).Msg("Upload failed")
		if ctx.Err() != nil {
			return failure(ReasonCancelled, false, err), false
		}
		return failure(ReasonUploadFailed, true, fmt.Errorf("upload media: %w", err)), false
	}
	a.moveTo(stateUploaded)
	logger.Info().Str("path", objectPath).Msg("Media uploaded")

	// Step 2: create the record.
	a.moveTo(stateCreatingRecord)
	rec := newRecord(postID, user.ID, url, objectPath, payload, p.now())
	recordCtx, cancel := withTimeout(ctx, p.timeouts.Record)
	_, err = p.documents.CreateDocument(recordCtx, store.CollectionPosts, rec)
	cancel()
	if err != nil {
		a.moveTo(stateRecordFailed)
		logger.Error().Err(err).Msg("Record creation failed")

		// Compensate: remove exactly what step 1 uploaded, once. The
		// rollback runs even if ctx is already cancelled.
		a.moveTo(stateRollingBack)
		rbCtx, cancel := withTimeout(context.WithoutCancel(ctx), p.timeouts.Rollback)
		if delErr := p.objects.Delete(rbCtx, objectPath); delErr != nil {
			logger.Error().Err(delErr).Str("path", objectPath).Msg("Rollback delete failed; media orphaned")
		} else {
			logger.Info().Str("path", objectPath).Msg("Rolled back uploaded media")
		}
		cancel()

		if ctx.Err() != nil {
			return failure(ReasonCancelled, false, err), true
		}
		return failure(ReasonRecordFailed, true, fmt.Errorf("create record: %w", err)), true
	}
	a.moveTo(stateRecordCreated)
	logger.Info().Str("url", url).Msg("Post published")

	p.notify(ctx, rec)
	return success(postID, url), false
}

// notify emits PostCreated after the saga has already succeeded. Its
// failure is logged and never changes the outcome.
func (p *Publisher) notify(ctx context.Context, rec PostRecord) {
	if p.notifier == nil {
		return
	}
	nctx, cancel := withTimeout(context.WithoutCancel(ctx), p.timeouts.Notify)
	defer cancel()
	err := p.notifier.PostCreated(nctx, events.PostCreated{
		PostID:      rec.ID,
		AuthorID:    rec.AuthorID,
		SessionID:   rec.SessionID,
		MediaURL:    rec.MediaURL,
		AspectRatio: rec.AspectRatio,
		Hashtags:    rec.Hashtags,
		CreatedAt:   rec.CreatedAt,
	})
	if err != nil {
		log.Warn().Err(err).Str("postId", rec.ID).Msg("PostCreated notification failed")
	}
}

func (p *Publisher) record(out Outcome, payload *contract.PostPayload, rolledBack bool, elapsed time.Duration) {
	outcome := string(out.Status)
	if !out.Succeeded() {
		outcome = string(out.Reason)
	}
	m := metrics.New().
		Dimension("Outcome", outcome).
		Dimension("Backend", p.backend).
		Duration("PublishMs", elapsed).
		Count("PublishResult")
	if rolledBack {
		m.Count("PublishRollback")
	}
	if out.PostID != "" {
		m.Property("postId", out.PostID)
	}
	if payload != nil {
		m.Property("sessionId", payload.SessionID)
	}
	m.Flush()
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
