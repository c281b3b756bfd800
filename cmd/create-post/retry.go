package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/fpang/create-post-pipeline/internal/identity"
	"github.com/fpang/create-post-pipeline/internal/pipeline"
	"github.com/fpang/create-post-pipeline/internal/session"
)

var retryCmd = &cobra.Command{
	Use:   "retry <session-id>",
	Short: "Publish a session kept by publish --keep again",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, startup := loadConfig("create-post")

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
		startup.Log()

		res, err := p.RetryKept(ctx, args[0], attemptsFlag)
		if err != nil {
			return describe(err)
		}
		// A failed retry stays kept.
		keepFlag = true
		return report(cmd, res)
	},
}

var discardCmd = &cobra.Command{
	Use:   "discard <session-id>",
	Short: "Delete a session kept by publish --keep",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _ := loadConfig("create-post")
		p := pipeline.New(session.NewManager(cfg.CacheRoot), nil, pipeline.Options{})
		if _, err := p.Kept(args[0]); err != nil {
			return describe(err)
		}
		p.Cancel(args[0])
		fmt.Printf("Discarded session %s\n", args[0])
		return nil
	},
}

func init() {
	f := retryCmd.Flags()
	f.IntVar(&attemptsFlag, "attempts", 1, "Publish attempts for retryable failures")
	f.StringVar(&tokenFlag, "token", "", "Bearer token (jwt identity; default CREATE_AUTH_TOKEN)")
	f.BoolVar(&jsonFlag, "json", false, "Print the result as JSON")
}
