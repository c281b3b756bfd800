package pipeline

import (
	"context"
	"errors"
	"image"
	"image/jpeg"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fpang/create-post-pipeline/internal/config"
	"github.com/fpang/create-post-pipeline/internal/contract"
	"github.com/fpang/create-post-pipeline/internal/identity"
	"github.com/fpang/create-post-pipeline/internal/logging"
	"github.com/fpang/create-post-pipeline/internal/metrics"
	"github.com/fpang/create-post-pipeline/internal/post"
	"github.com/fpang/create-post-pipeline/internal/publish"
	"github.com/fpang/create-post-pipeline/internal/selection"
	"github.com/fpang/create-post-pipeline/internal/session"
	"github.com/fpang/create-post-pipeline/internal/storage"
	"github.com/fpang/create-post-pipeline/internal/store"
)

func TestMain(m *testing.M) {
	metrics.SetOutput(io.Discard)
	os.Exit(m.Run())
}

// flakyDocuments fails the first n creates, then delegates.
type flakyDocuments struct {
	failures int
	calls    int
	next     store.DocumentStore
}

func (f *flakyDocuments) CreateDocument(ctx context.Context, collection string, data any) (string, error) {
	f.calls++
	if f.calls <= f.failures {
		return "", errors.New("transient write failure")
	}
	return f.next.CreateDocument(ctx, collection, data)
}

type fixture struct {
	sessions *session.Manager
	objects  *storage.LocalStore
	mediaDir string
	docs     *store.MemoryStore
	photo    string
}

func newFixture(t *testing.T, w, h int) *fixture {
	t.Helper()
	mediaDir := t.TempDir()
	objects, err := storage.NewLocalStore(mediaDir, "")
	require.NoError(t, err)

	photo := filepath.Join(t.TempDir(), "photo.jpg")
	f, err := os.Create(photo)
	require.NoError(t, err)
	require.NoError(t, jpeg.Encode(f, image.NewRGBA(image.Rect(0, 0, w, h)), nil))
	require.NoError(t, f.Close())

	return &fixture{
		sessions: session.NewManager(t.TempDir()),
		objects:  objects,
		mediaDir: mediaDir,
		docs:     store.NewMemoryStore(),
		photo:    photo,
	}
}

func (fx *fixture) pipeline(docs store.DocumentStore) *Pipeline {
	pub := publish.New(identity.NewStatic("user-1", "Ana"), fx.objects, docs)
	return New(fx.sessions, pub, Options{})
}

func (fx *fixture) request() Request {
	return Request{
		Picker:  selection.PathPicker{Paths: []string{fx.photo}},
		Framing: Framing{Ratio: contract.Ratio4x5, Zoom: 1.5, OffsetX: 40},
		Details: post.Details{
			Caption:     "First light",
			Location:    &contract.Location{ID: "loc-9", Name: "Porto"},
			HashtagText: "#Porto #sunrise",
		},
	}
}

func sessionCount(t *testing.T, m *session.Manager) int {
	t.Helper()
	entries, err := os.ReadDir(m.Root())
	if os.IsNotExist(err) {
		return 0
	}
	require.NoError(t, err)
	return len(entries)
}

func TestRunPublishesAndCleansUp(t *testing.T) {
	fx := newFixture(t, 1600, 1200)

	res, err := fx.pipeline(fx.docs).Run(context.Background(), fx.request())
	require.NoError(t, err)
	require.True(t, res.Outcome.Succeeded(), res.Outcome.String())

	assert.Equal(t, 1, res.Attempts)
	assert.Equal(t, 1080, res.Adjust.OutputWidth)
	assert.Equal(t, 1350, res.Adjust.OutputHeight)
	assert.Equal(t, []string{"porto", "sunrise"}, res.Payload.Hashtags)

	var rec publish.PostRecord
	require.NoError(t, fx.docs.GetDocument(context.Background(), store.CollectionPosts, res.Outcome.PostID, &rec))
	assert.Equal(t, publish.StatusLive, rec.Status)
	assert.True(t, fx.objects.Exists(rec.MediaPath))

	assert.False(t, fx.sessions.Exists(res.SessionID), "session removed after success")
}

func TestRunRejectsSmallPhotoWithoutSession(t *testing.T) {
	fx := newFixture(t, 400, 400)

	res, err := fx.pipeline(fx.docs).Run(context.Background(), fx.request())
	assert.Nil(t, res)
	assert.Equal(t, selection.CodeInvalidMedia, selection.CodeOf(err))
	assert.Zero(t, sessionCount(t, fx.sessions))
}

func TestRunPublishFailureRollsBack(t *testing.T) {
	fx := newFixture(t, 1200, 1200)
	docs := &flakyDocuments{failures: 10, next: fx.docs}

	res, err := fx.pipeline(docs).Run(context.Background(), fx.request())
	require.NoError(t, err)

	assert.Equal(t, publish.StatusFailure, res.Outcome.Status)
	assert.Equal(t, publish.ReasonRecordFailed, res.Outcome.Reason)
	assert.Zero(t, fx.docs.Len(store.CollectionPosts))
	assert.NoDirExists(t, filepath.Join(fx.mediaDir, "posts"), "uploaded media rolled back")
	assert.Zero(t, sessionCount(t, fx.sessions), "session removed after final failure")
}

func TestRunRetriesTransientFailure(t *testing.T) {
	fx := newFixture(t, 1200, 1200)
	docs := &flakyDocuments{failures: 1, next: fx.docs}
	req := fx.request()
	req.Attempts = 3

	res, err := fx.pipeline(docs).Run(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, res.Outcome.Succeeded())
	assert.Equal(t, 2, res.Attempts)
	assert.Equal(t, 1, fx.docs.Len(store.CollectionPosts))
}

func TestKeepOnFailureThenRetry(t *testing.T) {
	fx := newFixture(t, 1200, 1200)
	docs := &flakyDocuments{failures: 1, next: fx.docs}
	p := fx.pipeline(docs)
	req := fx.request()
	req.KeepOnFailure = true

	res, err := p.Run(context.Background(), req)
	require.NoError(t, err)
	require.False(t, res.Outcome.Succeeded())
	assert.True(t, fx.sessions.Exists(res.SessionID))
	assert.FileExists(t, res.Payload.MediaURI)

	again, err := p.Retry(context.Background(), res, 1)
	require.NoError(t, err)
	assert.True(t, again.Outcome.Succeeded())
	assert.False(t, fx.sessions.Exists(res.SessionID))

	_, err = p.Retry(context.Background(), res, 1)
	assert.ErrorIs(t, err, contract.ErrContractViolation, "session is gone after success")
}

func TestKeptSessionSurvivesRestartAndRetries(t *testing.T) {
	fx := newFixture(t, 1200, 1200)
	req := fx.request()
	req.KeepOnFailure = true

	res, err := fx.pipeline(&flakyDocuments{failures: 1, next: fx.docs}).Run(context.Background(), req)
	require.NoError(t, err)
	require.False(t, res.Outcome.Succeeded())
	assert.FileExists(t, filepath.Join(fx.sessions.Dir(res.SessionID), KeptResultName))

	// A new process over the same cache root: startup GC keeps recent
	// sessions, and the kept run is reloaded from disk.
	restarted := fx.pipeline(fx.docs)
	assert.Zero(t, restarted.Sessions().ClearStale(24*time.Hour))

	kept, err := restarted.Kept(res.SessionID)
	require.NoError(t, err)
	assert.Equal(t, res.Payload, kept.Payload)
	assert.Equal(t, publish.ReasonRecordFailed, kept.Outcome.Reason)

	again, err := restarted.RetryKept(context.Background(), res.SessionID, 1)
	require.NoError(t, err)
	require.True(t, again.Outcome.Succeeded(), again.Outcome.String())
	assert.Equal(t, 1, fx.docs.Len(store.CollectionPosts))
	assert.False(t, fx.sessions.Exists(res.SessionID))
}

func TestFailedRetryKeepsSessionAgain(t *testing.T) {
	fx := newFixture(t, 1200, 1200)
	req := fx.request()
	req.KeepOnFailure = true
	res, err := fx.pipeline(&flakyDocuments{failures: 10, next: fx.docs}).Run(context.Background(), req)
	require.NoError(t, err)

	again, err := fx.pipeline(&flakyDocuments{failures: 10, next: fx.docs}).RetryKept(context.Background(), res.SessionID, 2)
	require.NoError(t, err)
	assert.False(t, again.Outcome.Succeeded())

	kept, err := fx.pipeline(fx.docs).Kept(res.SessionID)
	require.NoError(t, err)
	assert.Equal(t, 2, kept.Attempts)
}

func TestKeptRejectsUnknownSessions(t *testing.T) {
	fx := newFixture(t, 1200, 1200)
	p := fx.pipeline(fx.docs)

	_, err := p.Kept("../etc")
	assert.ErrorIs(t, err, contract.ErrContractViolation)

	_, err = p.RetryKept(context.Background(), fx.sessions.GenerateID(), 1)
	assert.ErrorIs(t, err, contract.ErrContractViolation)

	id := fx.sessions.GenerateID()
	require.NoError(t, fx.sessions.Initialize(id))
	_, err = p.Kept(id)
	assert.ErrorIs(t, err, contract.ErrContractViolation, "workspace without a kept run")
}

func TestCancelRemovesKeptSession(t *testing.T) {
	fx := newFixture(t, 1200, 1200)
	p := fx.pipeline(&flakyDocuments{failures: 1, next: fx.docs})
	req := fx.request()
	req.KeepOnFailure = true

	res, err := p.Run(context.Background(), req)
	require.NoError(t, err)
	p.Cancel(res.SessionID)
	assert.False(t, fx.sessions.Exists(res.SessionID))

	_, err = p.Kept(res.SessionID)
	assert.ErrorIs(t, err, contract.ErrContractViolation)
}

func TestRunAbandonsOnBadDetails(t *testing.T) {
	fx := newFixture(t, 1200, 1200)
	req := fx.request()
	req.Details.Location = &contract.Location{Name: "no id"}

	res, err := fx.pipeline(fx.docs).Run(context.Background(), req)
	assert.ErrorIs(t, err, contract.ErrContractViolation)
	require.NotNil(t, res)
	assert.False(t, fx.sessions.Exists(res.SessionID))
}

func TestLocationFromGPS(t *testing.T) {
	assert.Nil(t, LocationFromGPS(nil))
	loc := LocationFromGPS(&contract.GPS{Latitude: 41.14961, Longitude: -8.61099})
	require.NotNil(t, loc)
	assert.Equal(t, "geo:41.149610,-8.610990", loc.ID)
	assert.NotEmpty(t, loc.Name)
	assert.Equal(t, 41.14961, loc.Coords.Latitude)
}

func TestBuildFromConfig(t *testing.T) {
	cfg := &config.Config{
		CacheRoot:       t.TempDir(),
		ObjectBackend:   config.ObjectsLocal,
		StorageDir:      t.TempDir(),
		DocumentBackend: config.DocumentsSQL,
		SQLDSN:          filepath.Join(t.TempDir(), "posts.db"),
		IdentitySource:  config.IdentityStatic,
		AuthorID:        "user-7",
		Limits:          selection.DefaultLimits(),
		Timeouts:        publish.DefaultTimeouts(),
		DeviceWidth:     390,
	}
	p, backends, err := Build(context.Background(), cfg, logging.NewStartupLogger("test"))
	require.NoError(t, err)
	t.Cleanup(func() { backends.Close() })

	_, ok := backends.Reader()
	assert.True(t, ok)

	fx := newFixture(t, 1000, 1000)
	res, err := p.Run(context.Background(), fx.request())
	require.NoError(t, err)
	require.True(t, res.Outcome.Succeeded(), res.Outcome.String())

	reader, _ := backends.Reader()
	var rec publish.PostRecord
	require.NoError(t, reader.GetDocument(context.Background(), store.CollectionPosts, res.Outcome.PostID, &rec))
	assert.Equal(t, "user-7", rec.AuthorID)
}

func TestBuildJWTIdentity(t *testing.T) {
	t.Setenv(identity.SigningKeyEnvVar, "test-key")
	cfg := &config.Config{
		CacheRoot:       t.TempDir(),
		ObjectBackend:   config.ObjectsLocal,
		StorageDir:      t.TempDir(),
		DocumentBackend: config.DocumentsMemory,
		IdentitySource:  config.IdentityJWT,
	}
	require.False(t, cfg.NeedsAWS())

	_, backends, err := Build(context.Background(), cfg, logging.NewStartupLogger("test"))
	require.NoError(t, err)
	u, err := backends.Identity.CurrentUser(context.Background())
	assert.NoError(t, err)
	assert.Nil(t, u, "no token means signed out")

	tok, err := identity.IssueToken([]byte("test-key"), identity.User{ID: "user-3"}, time.Hour)
	require.NoError(t, err)
	u, err = backends.Identity.CurrentUser(identity.WithToken(context.Background(), tok))
	require.NoError(t, err)
	assert.Equal(t, "user-3", u.ID)
}
