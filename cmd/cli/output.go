package main

import (
	"fmt"
	"io"
	"strconv"

	"github.com/himanishpuri/ReelDNA/internal/align"
	"github.com/himanishpuri/ReelDNA/internal/report"
	"github.com/himanishpuri/ReelDNA/pkg/models"
	"github.com/himanishpuri/ReelDNA/pkg/reeldna"
)

func printSync(out io.Writer, res align.Result) {
	fmt.Fprintf(out, "\n⏱️  Offset: %.3fs (from %d anchor(s))\n", res.Offset, res.Used)
	if len(res.Estimates) > 0 {
		rows := make([][]string, 0, len(res.Estimates))
		for _, e := range res.Estimates {
			status := "ok"
			switch {
			case !e.OK:
				status = e.Error
			case e.LowConfidence:
				status = "low confidence"
			}
			rows = append(rows, []string{
				fmt.Sprintf("%.0fs", e.Anchor),
				fmt.Sprintf("%.3f", e.Offset),
				fmt.Sprintf("%.3f", e.NormalisedPeak),
				status,
			})
		}
		fmt.Fprintln(out, renderTable(
			[]string{"Anchor", "Offset (s)", "Norm. Peak", "Status"},
			rows,
			[]columnAlignment{alignRight, alignRight, alignRight, alignLeft},
		))
	}
	printWarnings(out, res.Warnings)
}

func printWarnings(out io.Writer, warnings []string) {
	for _, w := range warnings {
		fmt.Fprintf(out, "⚠️  %s\n", w)
	}
}

func printExtraction(out io.Writer, s reeldna.ExtractionSummary) {
	fmt.Fprintf(out, "📦 %s\n", s)
	for _, f := range s.Failures {
		fmt.Fprintf(out, "   skipped %s\n", f)
	}
}

func printVerdict(out io.Writer, v models.Verdict) {
	rows := make([][]string, 0, len(v.Records))
	for _, r := range v.Records {
		rows = append(rows, []string{
			strconv.Itoa(r.Index),
			fmt.Sprintf("%.2f", r.ReferenceTimestamp),
			fmt.Sprintf("%.2f", r.RecordedTimestamp),
			strconv.Itoa(r.VisualDistance),
			yesNo(r.VisualMatch),
			fmt.Sprintf("%.4f", r.AudioSimilarity),
			yesNo(r.AudioMatch),
		})
	}
	if len(rows) > 0 {
		fmt.Fprintln(out)
		fmt.Fprintln(out, renderTable(
			[]string{"#", "Ref (s)", "Rec (s)", "Hash dist", "Visual", "Audio sim", "Audio"},
			rows,
			[]columnAlignment{alignRight, alignRight, alignRight, alignRight, alignLeft, alignRight, alignLeft},
		))
	}

	fmt.Fprintln(out)
	fmt.Fprintf(out, "   Samples compared:   %d\n", v.TotalSamples)
	fmt.Fprintf(out, "   Visual matches:     %d (%.1f%%)\n", v.ImageMatchCount, v.ImageMatchPercentage*100)
	fmt.Fprintf(out, "   Audio matches:      %d\n", v.AudioMatchCount)
	fmt.Fprintf(out, "   Avg hash distance:  %.2f\n", v.AvgImageDistance)
	fmt.Fprintf(out, "   Avg audio sim:      %.4f\n", v.AvgAudioSimilarity)
	fmt.Fprintf(out, "   Matched timestamps: %s\n", report.FormatTimestamps(v.MatchedTimestamps))
	fmt.Fprintln(out)
	if v.IsPirated {
		fmt.Fprintf(out, "🚨 PIRATED (%s): %s\n", v.Rule, v.Reason)
	} else {
		fmt.Fprintf(out, "✅ NOT PIRATED (%s): %s\n", v.Rule, v.Reason)
	}
}

func printReport(out io.Writer, r *models.Report) {
	if r == nil {
		return
	}
	fmt.Fprintln(out, "\n📨 Report sent")
	fmt.Fprintf(out, "   Movie:   %s\n", r.MovieName)
	fmt.Fprintf(out, "   Channel: %s\n", r.ChannelID)
	fmt.Fprintf(out, "   Message: %s\n", r.MessageID)
	fmt.Fprintf(out, "   Visual:  %s\n", r.VisualMatchScore)
	fmt.Fprintf(out, "   Audio:   %s\n", r.AudioMatchScore)
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
