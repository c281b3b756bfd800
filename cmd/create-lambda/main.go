// Package main provides the Lambda entry point for the create-post pipeline.
//
// The Lambda is invoked with the S3 key of an uploaded photo plus the post
// details. It downloads the photo into /tmp, runs selection, crop and
// render in a session workspace under /tmp, and publishes through the
// configured backends (normally S3 + DynamoDB + EventBridge).
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/fpang/create-post-pipeline/internal/awsboot"
	"github.com/fpang/create-post-pipeline/internal/config"
	"github.com/fpang/create-post-pipeline/internal/contract"
	"github.com/fpang/create-post-pipeline/internal/filehandler"
	"github.com/fpang/create-post-pipeline/internal/identity"
	"github.com/fpang/create-post-pipeline/internal/logging"
	"github.com/fpang/create-post-pipeline/internal/pipeline"
	"github.com/fpang/create-post-pipeline/internal/post"
	"github.com/fpang/create-post-pipeline/internal/selection"
	"github.com/fpang/create-post-pipeline/internal/storage"
)

// Initialized at cold start.
var (
	cfg        *config.Config
	pipe       *pipeline.Pipeline
	downloader *storage.S3Store
)

var coldStart = true

func init() {
	initStart := time.Now()
	logging.InitJSON()

	var err error
	cfg, err = config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}
	if os.Getenv("CREATE_CACHE_ROOT") == "" {
		cfg.CacheRoot = filepath.Join(os.TempDir(), "create-post")
	}
	if cfg.MediaBucket == "" {
		log.Fatal().Msg("MEDIA_BUCKET_NAME environment variable is required")
	}

	ctx := context.Background()
	clients, err := awsboot.InitAWS(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load AWS config")
	}
	downloader = awsboot.InitS3(clients.Config, cfg.MediaBucket, cfg.MediaBaseURL)

	startup := awsboot.StartupLog("create-lambda", initStart)
	pipe, _, err = pipeline.Build(ctx, cfg, startup)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open backends")
	}

	// A fresh container owns /tmp; drop anything a previous one left.
	pipe.Sessions().ClearAll()

	startup.S3Bucket("uploads", downloader.Bucket()).
		Config("staleAfter", cfg.StaleAfter.String()).
		Log()
}

// CreatePostEvent is the invocation payload.
type CreatePostEvent struct {
	Key      string   `json:"key"`
	Token    string   `json:"token,omitempty"`
	Ratio    string   `json:"ratio,omitempty"`
	Zoom     float64  `json:"zoom,omitempty"`
	OffsetX  float64  `json:"offsetX,omitempty"`
	OffsetY  float64  `json:"offsetY,omitempty"`
	Caption  string   `json:"caption,omitempty"`
	Hashtags string   `json:"hashtags,omitempty"`
	Tags     []string `json:"tags,omitempty"`

	Location         *contract.Location `json:"location,omitempty"`
	LocationFromEXIF bool               `json:"locationFromExif,omitempty"`
	Attempts         int                `json:"attempts,omitempty"`
}

// CreatePostResult is returned to the caller.
type CreatePostResult struct {
	Status    string `json:"status"`
	PostID    string `json:"postId,omitempty"`
	MediaURL  string `json:"mediaUrl,omitempty"`
	SessionID string `json:"sessionId,omitempty"`
	Reason    string `json:"reason,omitempty"`
	Retryable bool   `json:"retryable"`
	Error     string `json:"error,omitempty"`
}

func handler(ctx context.Context, event CreatePostEvent) (CreatePostResult, error) {
	handlerStart := time.Now()
	if coldStart {
		coldStart = false
		log.Info().Str("function", "create-lambda").Msg("Cold start, first invocation")
	}
	logger := log.With().Str("key", event.Key).Logger()

	if removed := pipe.Sessions().ClearStale(cfg.StaleAfter); removed > 0 {
		logger.Info().Int("removed", removed).Msg("Stale sessions removed")
	}

	if event.Key == "" {
		return CreatePostResult{Status: "failure", Reason: "invalid-request", Error: "key is required"}, fmt.Errorf("key is required")
	}
	ext := strings.ToLower(filepath.Ext(event.Key))
	if !filehandler.IsImage(ext) {
		logger.Warn().Str("extension", ext).Msg("Unsupported file type rejected")
		return CreatePostResult{Status: "failure", Reason: string(selection.CodeInvalidMedia), Error: "Unsupported file type"}, nil
	}

	ratio := cfg.Ratio
	if event.Ratio != "" {
		r, err := contract.ParseAspectRatio(event.Ratio)
		if err != nil {
			return CreatePostResult{Status: "failure", Reason: "invalid-request", Error: err.Error()}, nil
		}
		ratio = r
	}

	localPath := filepath.Join(os.TempDir(), "incoming-"+uuid.NewString()+ext)
	defer os.Remove(localPath)
	if err := downloader.Download(ctx, event.Key, localPath); err != nil {
		logger.Error().Err(err).Msg("Failed to download photo")
		if errors.Is(err, os.ErrNotExist) {
			return CreatePostResult{Status: "failure", Reason: "invalid-request", Error: "photo not found"}, nil
		}
		return CreatePostResult{Status: "failure", Reason: "download-failed", Retryable: true, Error: "could not download the photo"}, nil
	}

	if event.Token != "" {
		ctx = identity.WithToken(ctx, event.Token)
	}

	res, err := pipe.Run(ctx, pipeline.Request{
		Picker: selection.PathPicker{Paths: []string{localPath}, Source: contract.SourceLibrary},
		Framing: pipeline.Framing{
			Ratio:   ratio,
			Zoom:    event.Zoom,
			OffsetX: event.OffsetX,
			OffsetY: event.OffsetY,
		},
		Details: post.Details{
			Caption:     event.Caption,
			Location:    event.Location,
			Tags:        event.Tags,
			HashtagText: event.Hashtags,
		},
		LocationFromEXIF: event.LocationFromEXIF,
		Attempts:         event.Attempts,
	})
	if err != nil {
		reason, retryable := pipeline.Classify(err)
		result := CreatePostResult{
			Status:    "failure",
			Reason:    reason,
			Retryable: retryable,
			Error:     pipeline.FailureMessage(err),
		}
		if res != nil {
			result.SessionID = res.SessionID
		}
		logger.Warn().Err(err).Str("reason", reason).Bool("retryable", retryable).
			Dur("elapsed", time.Since(handlerStart)).Msg("Create post rejected")
		return result, nil
	}

	out := res.Outcome
	logger.Info().
		Str("sessionId", res.SessionID).
		Str("status", string(out.Status)).
		Str("postId", out.PostID).
		Dur("elapsed", time.Since(handlerStart)).
		Msg("Create post finished")

	return CreatePostResult{
		Status:    string(out.Status),
		PostID:    out.PostID,
		MediaURL:  out.MediaURL,
		SessionID: res.SessionID,
		Reason:    string(out.Reason),
		Retryable: out.Retryable,
		Error:     out.Message,
	}, nil
}

func main() {
	lambda.Start(handler)
}
