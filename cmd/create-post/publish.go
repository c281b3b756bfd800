package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/fpang/create-post-pipeline/internal/contract"
	"github.com/fpang/create-post-pipeline/internal/identity"
	"github.com/fpang/create-post-pipeline/internal/pipeline"
	"github.com/fpang/create-post-pipeline/internal/post"
	"github.com/fpang/create-post-pipeline/internal/publish"
	"github.com/fpang/create-post-pipeline/internal/selection"
)

var (
	dialogFlag       bool
	ratioFlag        string
	zoomFlag         float64
	offsetXFlag      float64
	offsetYFlag      float64
	captionFlag      string
	hashtagsFlag     string
	tagsFlag         []string
	locationIDFlag   string
	locationNameFlag string
	exifLocationFlag bool
	attemptsFlag     int
	keepFlag         bool
	tokenFlag        string
	jsonFlag         bool
)

var publishCmd = &cobra.Command{
	Use:   "publish [photo]",
	Short: "Crop and publish one photo",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runPublish,
}

func init() {
	f := publishCmd.Flags()
	f.BoolVar(&dialogFlag, "dialog", false, "Pick the photo with the native file dialog")
	f.StringVarP(&ratioFlag, "ratio", "r", "", "Aspect ratio: 1:1, 4:5 or 16:9 (default from CREATE_ASPECT_RATIO, else 4:5)")
	f.Float64VarP(&zoomFlag, "zoom", "z", 1, "Zoom factor (>= 1)")
	f.Float64Var(&offsetXFlag, "offset-x", 0, "Horizontal pan in viewport points")
	f.Float64Var(&offsetYFlag, "offset-y", 0, "Vertical pan in viewport points")
	f.StringVarP(&captionFlag, "caption", "c", "", "Caption (up to 2200 characters)")
	f.StringVar(&hashtagsFlag, "hashtags", "", "Hashtags, e.g. \"#travel #lisbon\"")
	f.StringSliceVarP(&tagsFlag, "tag", "t", nil, "Tag a person (repeatable)")
	f.StringVar(&locationIDFlag, "location-id", "", "Location id")
	f.StringVar(&locationNameFlag, "location-name", "", "Location display name")
	f.BoolVar(&exifLocationFlag, "exif-location", false, "Use the photo's GPS position when no location is given")
	f.IntVar(&attemptsFlag, "attempts", 1, "Publish attempts for retryable failures")
	f.BoolVar(&keepFlag, "keep", false, "Keep the session workspace after a failed publish")
	f.StringVar(&tokenFlag, "token", "", "Bearer token (jwt identity; default CREATE_AUTH_TOKEN)")
	f.BoolVar(&jsonFlag, "json", false, "Print the result as JSON")
}

func runPublish(cmd *cobra.Command, args []string) error {
	cfg, startup := loadConfig("create-post")

	var picker selection.Picker
	switch {
	case len(args) == 1:
		picker = selection.PathPicker{Paths: args, Source: contract.SourceLibrary}
	case dialogFlag:
		picker = selection.DialogPicker{Title: "Choose a photo to post"}
	default:
		return errors.New("give a photo path or --dialog")
	}

	ratio := cfg.Ratio
	if ratioFlag != "" {
		r, err := contract.ParseAspectRatio(ratioFlag)
		if err != nil {
			return err
		}
		ratio = r
	}

	var location *contract.Location
	if locationIDFlag != "" || locationNameFlag != "" {
		location = &contract.Location{ID: locationIDFlag, Name: locationNameFlag}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if tokenFlag != "" {
		ctx = identity.WithToken(ctx, tokenFlag)
	}

	p, backends, err := pipeline.Build(ctx, cfg, startup)
	if err != nil {
		return fmt.Errorf("open backends: %w", err)
	}
	defer backends.Close()

	// Reclaim abandoned workspaces; recent ones may be kept for retry.
	if n := p.Sessions().ClearStale(cfg.StaleAfter); n > 0 {
		log.Info().Int("removed", n).Msg("Stale sessions removed")
	}
	startup.Feature("keepOnFailure", keepFlag).Log()

	res, err := p.Run(ctx, pipeline.Request{
		Picker: picker,
		Framing: pipeline.Framing{
			Ratio:   ratio,
			Zoom:    zoomFlag,
			OffsetX: offsetXFlag,
			OffsetY: offsetYFlag,
		},
		Details: post.Details{
			Caption:     captionFlag,
			Location:    location,
			Tags:        tagsFlag,
			HashtagText: hashtagsFlag,
		},
		LocationFromEXIF: exifLocationFlag,
		Attempts:         attemptsFlag,
		KeepOnFailure:    keepFlag,
	})
	if err != nil {
		return describe(err)
	}
	return report(cmd, res)
}

// report prints the result and turns a failed outcome into an error.
func report(cmd *cobra.Command, res *pipeline.Result) error {
	if jsonFlag {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		if err := enc.Encode(res.Outcome); err != nil {
			return err
		}
	} else {
		printOutcome(res)
	}
	if !res.Outcome.Succeeded() {
		return fmt.Errorf("publish failed: %s", res.Outcome.Reason)
	}
	return nil
}

func printOutcome(res *pipeline.Result) {
	out := res.Outcome
	if out.Succeeded() {
		fmt.Printf("Published post %s\n", out.PostID)
		fmt.Printf("  media:    %s\n", out.MediaURL)
		fmt.Printf("  frame:    %s %dx%d\n", res.Adjust.Crop.AspectRatio, res.Adjust.OutputWidth, res.Adjust.OutputHeight)
		if res.Pick.Camera != "" {
			fmt.Printf("  camera:   %s\n", res.Pick.Camera)
		}
		if len(res.Payload.Hashtags) > 0 {
			fmt.Printf("  hashtags: %s\n", post.FormatHashtags(res.Payload.Hashtags))
		}
		return
	}
	fmt.Printf("Publish failed (%s)\n", out.Reason)
	if out.Message != "" {
		fmt.Printf("  %s\n", out.Message)
	}
	switch {
	case out.Reason == publish.ReasonUnauthenticated:
		fmt.Println("  Sign in (CREATE_AUTHOR_ID or --token) and try again.")
	case out.Retryable && !keepFlag:
		fmt.Println("  Try again.")
	}
	if keepFlag {
		fmt.Printf("  Session %s kept. Retry with: create-post retry %s\n", res.SessionID, res.SessionID)
		fmt.Printf("  Discard with: create-post discard %s\n", res.SessionID)
	}
}

// describe turns phase errors into the message a user acts on.
func describe(err error) error {
	reason, _ := pipeline.Classify(err)
	var selErr *selection.Error
	switch {
	case errors.As(err, &selErr):
		return fmt.Errorf("%s [%s]", selErr.Message, selErr.Code)
	case reason == pipeline.ReasonCancelled:
		return errors.New("cancelled")
	case reason == pipeline.ReasonProcessingFailed:
		return fmt.Errorf("could not render the photo, try again: %w", err)
	case reason == pipeline.ReasonCaptionTooLong:
		return fmt.Errorf("caption is longer than %d characters", contract.MaxCaptionLength)
	case reason == pipeline.ReasonContractViolation:
		log.Error().Err(err).Msg("Pipeline contract violated")
	}
	return err
}
