package main

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/himanishpuri/ReelDNA/pkg/models"
	"github.com/himanishpuri/ReelDNA/pkg/reeldna"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var piratedOnly bool

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List stored detections, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			return ctx.withService(func(svc reeldna.Service) error {
				detections, err := svc.ListDetections(limit, piratedOnly)
				if err != nil {
					ctx.logger().Errorf("ListDetections failed: %v", err)
					return err
				}
				if len(detections) == 0 {
					fmt.Fprintln(out, "📭 No detections recorded")
					return nil
				}
				fmt.Fprintf(out, "📚 Found %d detection(s):\n\n", len(detections))
				fmt.Fprintln(out, renderHistory(detections))
				return nil
			})
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of detections to list (0 for all)")
	cmd.Flags().BoolVar(&piratedOnly, "pirated", false, "Only list pirated verdicts")
	return cmd
}

func renderHistory(detections []models.Detection) string {
	rows := make([][]string, 0, len(detections))
	for _, d := range detections {
		verdict := "clean"
		if d.Verdict.IsPirated {
			verdict = "PIRATED"
		}
		rows = append(rows, []string{
			d.ID,
			d.CreatedAt.Local().Format(time.DateTime),
			filepath.Base(d.SuspectVideo),
			verdict,
			d.Verdict.Rule,
			fmt.Sprintf("%.1f%%", d.Verdict.ImageMatchPercentage*100),
			yesNo(d.Reported),
		})
	}
	return renderTable(
		[]string{"ID", "Detected", "Suspect", "Verdict", "Rule", "Visual", "Reported"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignLeft},
	)
}

func newShowCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "show <detection_id>",
		Short: "Show one stored detection",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			return ctx.withService(func(svc reeldna.Service) error {
				d, err := svc.GetDetection(args[0])
				if err != nil {
					ctx.logger().Warnf("Detection %s not found: %v", args[0], err)
					return err
				}
				if asJSON {
					enc := json.NewEncoder(out)
					enc.SetIndent("", "  ")
					return enc.Encode(d)
				}
				fmt.Fprintf(out, "🔎 Detection %s\n", d.ID)
				fmt.Fprintf(out, "   Session:   %s\n", d.SessionID)
				fmt.Fprintf(out, "   Reference: %s\n", d.ReferenceVideo)
				fmt.Fprintf(out, "   Suspect:   %s\n", d.SuspectVideo)
				fmt.Fprintf(out, "   Offset:    %.3fs\n", d.Offset)
				fmt.Fprintf(out, "   Reported:  %s\n", yesNo(d.Reported))
				printVerdict(out, d.Verdict)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the detection as JSON")
	return cmd
}

func newDeleteCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <detection_id>",
		Short: "Delete a stored detection",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			log := ctx.logger()
			return ctx.withService(func(svc reeldna.Service) error {
				d, err := svc.GetDetection(args[0])
				if err != nil {
					log.Warnf("Detection %s not found: %v", args[0], err)
					return err
				}
				if err := svc.DeleteDetection(d.ID); err != nil {
					log.Errorf("DeleteDetection failed: %v", err)
					return err
				}
				fmt.Fprintf(out, "✅ Deleted detection %s (%s)\n", d.ID, filepath.Base(d.SuspectVideo))
				log.Infof("Deleted detection %s", d.ID)
				return nil
			})
		},
	}
}

func newDoctorCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check that ffmpeg and ffprobe are available",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			return ctx.withService(func(svc reeldna.Service) error {
				if err := svc.CheckTools(cmd.Context()); err != nil {
					fmt.Fprintf(out, "❌ %v\n", err)
					return err
				}
				cfg := svc.Config()
				fmt.Fprintf(out, "✅ %s and %s found\n", cfg.Media.FFmpegPath, cfg.Media.FFprobePath)
				return nil
			})
		},
	}
}
