package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/himanishpuri/ReelDNA/internal/ingest"
	"github.com/himanishpuri/ReelDNA/pkg/reeldna"
	"github.com/himanishpuri/ReelDNA/pkg/utils"
)

const pipelineTimeout = 30 * time.Minute

func newSampleCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "sample <reference_video>",
		Short: "Sample frames, audio clips and anchors from the reference video",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			log := ctx.logger()
			return ctx.withService(func(svc reeldna.Service) error {
				fmt.Fprintln(out, "🎬 Sampling reference video...")
				fmt.Fprintln(out, "   This may take a few moments for long videos")

				runCtx, cancel := context.WithTimeout(cmd.Context(), pipelineTimeout)
				defer cancel()

				run, err := svc.SampleReference(runCtx, args[0])
				if err != nil {
					log.Errorf("SampleReference failed: %v", err)
					return err
				}

				meta := run.Metadata
				fmt.Fprintln(out, "\n✅ Reference session ready")
				fmt.Fprintf(out, "   Session:  %s\n", meta.ID)
				fmt.Fprintf(out, "   Duration: %s\n", formatDuration(meta.ReferenceDuration))
				fmt.Fprintf(out, "   Samples:  %d\n", len(meta.Samples))
				fmt.Fprintf(out, "   Anchors:  %d\n", len(meta.Anchors))
				printExtraction(out, run.Samples)
				printExtraction(out, run.Anchors)
				return nil
			})
		},
	}
}

func newSyncCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "sync <recorded_video>",
		Short: "Align a recording with the reference and extract matching samples",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			log := ctx.logger()
			return ctx.withService(func(svc reeldna.Service) error {
				fmt.Fprintln(out, "🔍 Synchronizing recording with reference...")

				runCtx, cancel := context.WithTimeout(cmd.Context(), pipelineTimeout)
				defer cancel()

				run, err := svc.SampleRecorded(runCtx, args[0])
				if err != nil {
					log.Errorf("SampleRecorded failed: %v", err)
					return err
				}
				printSync(out, run.Sync)
				printExtraction(out, run.Extraction)
				printWarnings(out, run.Warnings)
				return nil
			})
		},
	}
}

func newCompareCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "compare",
		Short: "Classify the recorded samples already in the session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			log := ctx.logger()
			return ctx.withService(func(svc reeldna.Service) error {
				fmt.Fprintln(out, "⚖️  Comparing samples...")
				res, err := svc.Compare(cmd.Context())
				if err != nil {
					log.Errorf("Compare failed: %v", err)
					return err
				}
				printWarnings(out, res.Warnings)
				printVerdict(out, res.Verdict)
				printReport(out, res.Report)
				fmt.Fprintf(out, "\n💾 Results written to %s\n", res.ResultsPath)
				return nil
			})
		},
	}
}

func newDetectCommand(ctx *commandContext) *cobra.Command {
	var url string

	cmd := &cobra.Command{
		Use:   "detect [suspect_video]",
		Short: "Run the full detection pipeline for one suspect video",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			log := ctx.logger()

			var suspect string
			switch {
			case len(args) == 1 && url != "":
				return usagef("pass either a suspect file or --url, not both")
			case len(args) == 1:
				suspect = args[0]
			case url != "":
				suspect = url
			default:
				return usagef("a suspect file or --url is required")
			}

			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			runCtx, cancel := context.WithTimeout(cmd.Context(), pipelineTimeout)
			defer cancel()

			if utils.IsRemoteURL(suspect) {
				fmt.Fprintln(out, "📥 Downloading suspect video...")
				path, err := ingest.NewFetcher(cfg.Ingest.FetchDir, log).Fetch(runCtx, suspect)
				if err != nil {
					log.Errorf("Download failed: %v", err)
					return err
				}
				fmt.Fprintf(out, "   Saved to %s\n", path)
				suspect = path
			}

			return ctx.withService(func(svc reeldna.Service) error {
				fmt.Fprintln(out, "🔍 Running detection...")
				res, err := svc.Detect(runCtx, suspect)
				if err != nil {
					log.Errorf("Detect failed: %v", err)
					return err
				}
				printSync(out, res.Sync)
				printExtraction(out, res.Extraction)
				printWarnings(out, res.Warnings)
				printVerdict(out, res.Verdict)
				printReport(out, res.Report)
				if len(res.Archived) > 0 {
					fmt.Fprintf(out, "\n🗄️  Archived %d evidence object(s)\n", len(res.Archived))
				}
				fmt.Fprintf(out, "\n💾 Detection %s written to %s\n", res.ID, res.ResultsPath)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&url, "url", "", "Download the suspect from a URL (yt-dlp) before detecting")
	return cmd
}

func newReportCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "report",
		Short: "Re-send the report for the session's exported verdict",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			return ctx.withService(func(svc reeldna.Service) error {
				r, err := svc.Report(cmd.Context())
				if err != nil {
					ctx.logger().Errorf("Report failed: %v", err)
					return err
				}
				if r == nil {
					fmt.Fprintln(out, "📭 Nothing to report")
					return nil
				}
				printReport(out, r)
				return nil
			})
		},
	}
}

func newEvidenceCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "evidence",
		Short: "Render spectrograms for the session's audio matches",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			return ctx.withService(func(svc reeldna.Service) error {
				pairs, err := svc.Evidence(cmd.Context())
				if err != nil {
					ctx.logger().Errorf("Evidence failed: %v", err)
					return err
				}
				if len(pairs) == 0 {
					fmt.Fprintln(out, "📭 No audio matches to render")
					return nil
				}
				rows := make([][]string, 0, len(pairs))
				for _, p := range pairs {
					rows = append(rows, []string{fmt.Sprint(p.Index), p.Reference, p.Recorded})
				}
				fmt.Fprintln(out, renderTable(
					[]string{"#", "Reference", "Recorded"},
					rows,
					[]columnAlignment{alignRight},
				))
				return nil
			})
		},
	}
}

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the current session metadata",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			return ctx.withService(func(svc reeldna.Service) error {
				meta, err := svc.Metadata(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "📁 Session %s (created %s)\n", meta.ID, meta.CreatedAt.Format(time.DateTime))
				fmt.Fprintf(out, "   Reference: %s (%s)\n", meta.ReferenceVideo, formatDuration(meta.ReferenceDuration))
				fmt.Fprintf(out, "   Samples:   %d\n", len(meta.Samples))
				fmt.Fprintf(out, "   Anchors:   %d\n", len(meta.Anchors))
				if meta.RecordedVideo != "" {
					fmt.Fprintf(out, "   Recorded:  %s (%s)\n", meta.RecordedVideo, formatDuration(meta.RecordedDuration))
					fmt.Fprintf(out, "   Offset:    %.3fs\n", meta.Offset)
					fmt.Fprintf(out, "   Extracted: %d\n", len(meta.RecordedSamples))
				}
				return nil
			})
		},
	}
}

func formatDuration(sec float64) string {
	d := int(sec)
	return fmt.Sprintf("%d:%02d:%02d", d/3600, d/60%60, d%60)
}
