package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/himanishpuri/ReelDNA/internal/ingest"
	"github.com/himanishpuri/ReelDNA/pkg/reeldna"
)

func newWatchCommand(ctx *commandContext) *cobra.Command {
	var dir, mode string

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Watch a download directory and run detection on each new suspect",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			log := ctx.logger()

			ingCfg := cfg.IngestConfig()
			if dir != "" {
				ingCfg.Dir = dir
			}
			if mode != "" {
				ingCfg.Mode = mode
			}
			if err := ingCfg.Validate(); err != nil {
				return &usageError{err: err}
			}

			runCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			seen, err := openSeenStore(runCtx, cfg)
			if err != nil {
				return err
			}
			defer seen.Close()

			return ctx.withService(func(svc reeldna.Service) error {
				// The reference session must exist before any suspect arrives.
				if _, err := svc.Metadata(runCtx); err != nil {
					return fmt.Errorf("no reference session, run sample first: %w", err)
				}

				w, err := ingest.NewWatcher(ingCfg, detectHandler(svc, log), seen, log)
				if err != nil {
					return &usageError{err: err}
				}
				fmt.Fprintf(cmd.OutOrStdout(), "👀 Watching %s for suspect videos (Ctrl+C to stop)\n", ingCfg.Dir)
				err = w.Run(runCtx)
				if errors.Is(err, context.Canceled) {
					return nil
				}
				return err
			})
		},
	}

	cmd.Flags().StringVar(&dir, "dir", "", "Directory to watch (overrides ingest.dir)")
	cmd.Flags().StringVar(&mode, "mode", "", "Watch mode: event or poll (overrides ingest.mode)")
	return cmd
}

func openSeenStore(ctx context.Context, cfg *reeldna.Config) (ingest.SeenStore, error) {
	if cfg.Ingest.RedisAddr == "" {
		return ingest.NewMemorySeen(), nil
	}
	return ingest.NewRedisSeen(ctx, cfg.RedisOptions())
}

func detectHandler(svc reeldna.Service, log reeldna.Logger) ingest.Handler {
	return func(ctx context.Context, path string) error {
		res, err := svc.Detect(ctx, path)
		if err != nil {
			return err
		}
		status := "not pirated"
		if res.Verdict.IsPirated {
			status = "PIRATED"
		}
		log.Infof("Detection %s for %s: %s (%s)", res.ID, path, status, res.Verdict.Rule)
		return nil
	}
}

func newFetchCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "fetch <url>",
		Short: "Download a suspect video with yt-dlp without running detection",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "📥 Downloading...")
			path, err := ingest.NewFetcher(cfg.Ingest.FetchDir, ctx.logger()).Fetch(cmd.Context(), args[0])
			if err != nil {
				ctx.logger().Errorf("Download failed: %v", err)
				return err
			}
			fmt.Fprintf(out, "✅ Saved to %s\n", path)
			return nil
		},
	}
}
