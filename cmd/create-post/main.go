// Command create-post takes one photo through the create-post pipeline:
// validate it, crop it to a post frame, render the final bitmap and
// publish it with rollback on failure.
package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/fpang/create-post-pipeline/internal/config"
	"github.com/fpang/create-post-pipeline/internal/logging"
	"github.com/fpang/create-post-pipeline/internal/metrics"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

var metricsFlag bool

var rootCmd = &cobra.Command{
	Use:   "create-post",
	Short: "Crop and publish a photo as a post",
	Long: `create-post runs the create-post pipeline on a single photo.

The photo is checked (one image, at least 500x500, at most 20 MB), cropped to
1:1, 4:5 or 16:9 with the given zoom and pan, rendered at 1080px wide and then
published: the bitmap is uploaded, the post record is written, and the upload
is deleted again if the record cannot be written.

Backends are chosen by environment (CREATE_OBJECT_BACKEND, CREATE_DOCUMENT_BACKEND,
CREATE_IDENTITY). With no environment the post is stored under ~/.create-post
and authored by the OS account; set CREATE_AUTHOR_ID when the account name is
not a valid user id (letters, digits, '-' and '_'), or use CREATE_IDENTITY=jwt
with --token.

Examples:
  create-post publish photo.jpg --caption "First light" --hashtags "#porto #sunrise"
  create-post publish --dialog --ratio 1:1 --zoom 1.4
  create-post retry 01a1543e-...
  create-post gc --max-age 24h
  create-post show 0f8c...`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logging.Init()
		if !metricsFlag {
			metrics.SetOutput(io.Discard)
		}
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&metricsFlag, "metrics", false, "Write CloudWatch EMF metrics to stdout")
	rootCmd.AddCommand(publishCmd, retryCmd, discardCmd, gcCmd, showCmd, tokenCmd, versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig reads the environment and logs the startup summary.
func loadConfig(name string) (*config.Config, *logging.StartupLogger) {
	start := time.Now()
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}
	startup := logging.NewStartupLogger(name).
		Version(version).
		InitDuration(time.Since(start))
	return cfg, startup
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(version)
	},
}
