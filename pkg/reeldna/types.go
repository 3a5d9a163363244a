package reeldna

import (
	"fmt"

	"github.com/himanishpuri/ReelDNA/internal/align"
	"github.com/himanishpuri/ReelDNA/internal/sampler"
	"github.com/himanishpuri/ReelDNA/pkg/models"
)

// ExtractionSummary counts how many planned extractions produced a sample.
type ExtractionSummary struct {
	Stage     string   `json:"stage"`
	Attempted int      `json:"attempted"`
	Processed int      `json:"processed"`
	Failures  []string `json:"failures,omitempty"`
}

func (s ExtractionSummary) String() string {
	return fmt.Sprintf("%s: processed %d of %d", s.Stage, s.Processed, s.Attempted)
}

func summarize(s sampler.Summary) ExtractionSummary {
	out := ExtractionSummary{
		Stage:     s.Stage,
		Attempted: s.Attempted(),
		Processed: s.Processed(),
	}
	for _, f := range s.Failures() {
		out.Failures = append(out.Failures, fmt.Sprintf("sample %d at %.2fs: %v", f.Index, f.Timestamp, f.Err))
	}
	return out
}

// ReferenceRun is the outcome of sampling a reference video.
type ReferenceRun struct {
	Metadata *models.SessionMetadata `json:"metadata"`
	Samples  ExtractionSummary       `json:"samples"`
	Anchors  ExtractionSummary       `json:"anchors"`
}

// RecordedRun is the outcome of aligning and sampling a recording.
type RecordedRun struct {
	Metadata   *models.SessionMetadata `json:"metadata"`
	Sync       align.Result            `json:"sync"`
	Extraction ExtractionSummary       `json:"extraction"`
	Warnings   []string                `json:"warnings,omitempty"`
}

type ProcessOptions struct {
	// Dir receives the suspect's frames and clips.
	Dir         string
	WithVerdict bool
}

// ProcessResult is what the ingestion boundary hands back.
type ProcessResult struct {
	Metadata   *models.SessionMetadata `json:"metadata"`
	Sync       align.Result            `json:"sync"`
	Extraction ExtractionSummary       `json:"extraction"`
	Verdict    *models.Verdict         `json:"verdict,omitempty"`
	Warnings   []string                `json:"warnings,omitempty"`
}

// DetectResult is a finished, exported and stored detection.
type DetectResult struct {
	ID          string                  `json:"id"`
	Metadata    *models.SessionMetadata `json:"-"`
	Sync        align.Result            `json:"sync"`
	Extraction  ExtractionSummary       `json:"extraction"`
	Verdict     models.Verdict          `json:"verdict"`
	ResultsPath string                  `json:"results_path"`
	Report      *models.Report          `json:"report,omitempty"`
	Archived    []string                `json:"archived,omitempty"`
	Warnings    []string                `json:"warnings,omitempty"`
}
