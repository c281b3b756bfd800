package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/fpang/create-post-pipeline/internal/identity"
	"github.com/fpang/create-post-pipeline/internal/pipeline"
	"github.com/fpang/create-post-pipeline/internal/publish"
	"github.com/fpang/create-post-pipeline/internal/session"
	"github.com/fpang/create-post-pipeline/internal/storage"
	"github.com/fpang/create-post-pipeline/internal/store"
)

var maxAgeFlag time.Duration

var gcCmd = &cobra.Command{
	Use:   "gc",
	Short: "Remove session workspaces left by earlier runs",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, _ := loadConfig("create-post")
		sessions := session.NewManager(cfg.CacheRoot)
		if maxAgeFlag <= 0 {
			sessions.ClearAll()
			fmt.Printf("Cleared %s\n", sessions.Root())
			return
		}
		n := sessions.ClearStale(maxAgeFlag)
		fmt.Printf("Removed %d stale session(s) older than %s\n", n, maxAgeFlag)
	},
}

func init() {
	gcCmd.Flags().DurationVar(&maxAgeFlag, "max-age", 0, "Only remove sessions older than this (0 removes all)")
}

var presignFlag time.Duration

var showCmd = &cobra.Command{
	Use:   "show <post-id>",
	Short: "Print a published post record",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, startup := loadConfig("create-post")
		ctx := context.Background()
		backends, err := pipeline.OpenBackends(ctx, cfg, startup)
		if err != nil {
			return err
		}
		defer backends.Close()

		reader, ok := backends.Reader()
		if !ok {
			return fmt.Errorf("document backend %q cannot read records", cfg.DocumentBackend)
		}
		var rec publish.PostRecord
		if err := reader.GetDocument(ctx, store.CollectionPosts, args[0], &rec); err != nil {
			return err
		}
		fmt.Printf("Post %s by %s (%s)\n", rec.ID, rec.AuthorID, rec.Status)
		fmt.Printf("  media:    %s\n", rec.MediaURL)
		if s3Store, ok := backends.Objects.(*storage.S3Store); ok && presignFlag > 0 {
			signed, err := s3Store.PresignedURL(ctx, rec.MediaPath, presignFlag)
			if err != nil {
				return fmt.Errorf("presign %s: %w", rec.MediaPath, err)
			}
			fmt.Printf("  signed:   %s\n", signed)
		}
		fmt.Printf("  created:  %s\n", rec.CreatedAt.Format(time.RFC3339))
		fmt.Printf("  frame:    %s zoom %.2f, %dx%d\n", rec.Crop.AspectRatio, rec.Crop.Zoom, rec.Width, rec.Height)
		if rec.Caption != "" {
			fmt.Printf("  caption:  %s\n", rec.Caption)
		}
		if rec.Location != nil {
			fmt.Printf("  location: %s\n", rec.Location.Name)
		}
		return nil
	},
}

func init() {
	showCmd.Flags().DurationVar(&presignFlag, "presign", 15*time.Minute, "Lifetime of a signed media link for S3 storage (0 disables)")
}

var (
	tokenUserFlag string
	tokenNameFlag string
	tokenTTLFlag  time.Duration
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Issue a bearer token for the jwt identity source",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		key, err := identity.LocalSigningKey()
		if err != nil {
			return err
		}
		tok, err := identity.IssueToken(key, identity.User{ID: tokenUserFlag, DisplayName: tokenNameFlag}, tokenTTLFlag)
		if err != nil {
			return err
		}
		fmt.Println(tok)
		return nil
	},
}

func init() {
	tokenCmd.Flags().StringVar(&tokenUserFlag, "user", "", "User id (token subject)")
	tokenCmd.Flags().StringVar(&tokenNameFlag, "name", "", "Display name")
	tokenCmd.Flags().DurationVar(&tokenTTLFlag, "ttl", 12*time.Hour, "Token lifetime")
	tokenCmd.MarkFlagRequired("user")
}
