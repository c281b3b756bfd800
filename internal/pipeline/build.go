package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/fpang/create-post-pipeline/internal/awsboot"
	"github.com/fpang/create-post-pipeline/internal/config"
	"github.com/fpang/create-post-pipeline/internal/events"
	"github.com/fpang/create-post-pipeline/internal/identity"
	"github.com/fpang/create-post-pipeline/internal/logging"
	"github.com/fpang/create-post-pipeline/internal/publish"
	"github.com/fpang/create-post-pipeline/internal/session"
	"github.com/fpang/create-post-pipeline/internal/storage"
	"github.com/fpang/create-post-pipeline/internal/store"
)

// Backends are the collaborators chosen by configuration.
type Backends struct {
	Objects   storage.ObjectStore
	Documents store.DocumentStore
	Identity  identity.Accessor
	Notifier  events.Notifier

	closers []func() error
}

// Reader returns the document store as a Reader when it supports reads.
func (b *Backends) Reader() (store.Reader, bool) {
	r, ok := b.Documents.(store.Reader)
	return r, ok
}

// Close releases backend resources.
func (b *Backends) Close() error {
	var errs []error
	for _, c := range b.closers {
		errs = append(errs, c())
	}
	return errors.Join(errs...)
}

// OpenBackends constructs the backends named by cfg and records them on
// startup. AWS clients are only created when a backend needs them.
func OpenBackends(ctx context.Context, cfg *config.Config, startup *logging.StartupLogger) (*Backends, error) {
	b := &Backends{}

	var aws awsboot.Clients
	if cfg.NeedsAWS() {
		var err error
		if aws, err = awsboot.InitAWS(ctx); err != nil {
			return nil, err
		}
	}

	switch cfg.ObjectBackend {
	case config.ObjectsS3:
		s3Store := awsboot.InitS3(aws.Config, cfg.MediaBucket, cfg.MediaBaseURL)
		b.Objects = s3Store
		startup.S3Bucket("media", s3Store.Bucket())
	default:
		local, err := storage.NewLocalStore(cfg.StorageDir, cfg.MediaBaseURL)
		if err != nil {
			return nil, err
		}
		b.Objects = local
		startup.Config("storageDir", cfg.StorageDir)
	}
	startup.Backend("objects", cfg.ObjectBackend)

	switch cfg.DocumentBackend {
	case config.DocumentsDynamo:
		dynamo := awsboot.InitDynamo(aws.Config, cfg.PostsTable)
		b.Documents = dynamo
		startup.DynamoTable("posts", dynamo.TableName())
	case config.DocumentsMemory:
		b.Documents = store.NewMemoryStore()
	default:
		sqlStore, err := store.OpenSQL(cfg.SQLDSN)
		if err != nil {
			return nil, err
		}
		b.Documents = sqlStore
		b.closers = append(b.closers, sqlStore.Close)
	}
	startup.Backend("documents", cfg.DocumentBackend)

	switch cfg.IdentitySource {
	case config.IdentityJWT:
		var params awsboot.ParameterAPI
		if aws.SSM != nil {
			params = aws.SSM
		}
		key, err := awsboot.LoadSigningKey(ctx, params, cfg.SigningKeyParam)
		if err != nil {
			b.Close()
			return nil, fmt.Errorf("identity: %w", err)
		}
		b.Identity = identity.NewTokenAccessor(key, cfg.AuthToken)
		startup.SSMParam("signingKey", cfg.SigningKeyParam)
	default:
		b.Identity = identity.NewStatic(cfg.AuthorID, cfg.AuthorName)
	}
	startup.Backend("identity", cfg.IdentitySource)

	if cfg.EventBus != "" {
		b.Notifier = awsboot.InitEventBridge(aws.Config, cfg.EventBus)
	} else {
		b.Notifier = events.LogNotifier{}
	}
	startup.Feature("eventBridge", cfg.EventBus != "")

	log.Debug().Str("backends", cfg.BackendLabel()).Msg("Backends opened")
	return b, nil
}

// Build opens the backends and assembles a Pipeline from cfg.
func Build(ctx context.Context, cfg *config.Config, startup *logging.StartupLogger) (*Pipeline, *Backends, error) {
	b, err := OpenBackends(ctx, cfg, startup)
	if err != nil {
		return nil, nil, err
	}
	pub := publish.New(b.Identity, b.Objects, b.Documents,
		publish.WithNotifier(b.Notifier),
		publish.WithTimeouts(cfg.Timeouts),
		publish.WithBackendLabel(cfg.BackendLabel()),
	)
	p := New(session.NewManager(cfg.CacheRoot), pub, Options{
		Limits:      cfg.Limits,
		Render:      cfg.Render,
		DeviceWidth: cfg.DeviceWidth,
	})
	startup.Config("cacheRoot", p.Sessions().Root())
	return p, b, nil
}
