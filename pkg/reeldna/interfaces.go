package reeldna

import (
	"context"

	"github.com/himanishpuri/ReelDNA/internal/evidence"
	"github.com/himanishpuri/ReelDNA/pkg/models"
)

// Service runs the detection pipeline against one reference session.
type Service interface {
	// SampleReference draws samples and anchors from the reference video and
	// starts a new session.
	SampleReference(ctx context.Context, referenceVideo string) (*ReferenceRun, error)
	// SampleRecorded aligns a recording with the session reference and extracts
	// the matching samples into the session.
	SampleRecorded(ctx context.Context, recordedVideo string) (*RecordedRun, error)
	// Compare classifies the recorded samples already in the session.
	Compare(ctx context.Context) (*DetectResult, error)
	// Detect runs alignment, extraction and classification for one suspect
	// in its own run directory.
	Detect(ctx context.Context, suspectVideo string) (*DetectResult, error)
	// Process is the ingestion boundary: it extracts the suspect's samples
	// against meta and, when withVerdict is set, classifies them.
	Process(ctx context.Context, suspectVideo string, meta *models.SessionMetadata, opts ProcessOptions) (*ProcessResult, error)
	// Report re-sends the report for the session's exported verdict.
	Report(ctx context.Context) (*models.Report, error)
	// Evidence renders spectrograms for the session's audio matches.
	Evidence(ctx context.Context) ([]evidence.Pair, error)
	Metadata(ctx context.Context) (*models.SessionMetadata, error)
	CheckTools(ctx context.Context) error

	GetDetection(id string) (*models.Detection, error)
	ListDetections(limit int, piratedOnly bool) ([]models.Detection, error)
	DeleteDetection(id string) error
	CountDetections() (int64, error)

	Config() *Config
	Close() error
}

// Extractor is the media tool adapter. Every call may fail; failures drop the
// affected sample only.
type Extractor interface {
	Duration(ctx context.Context, video string) (float64, error)
	ExtractFrame(ctx context.Context, video string, at float64, out string) error
	ExtractAudio(ctx context.Context, video string, start, duration float64, sampleRate int, out string) error
}

// Storage keeps the detection history.
type Storage interface {
	SaveDetection(d *models.Detection) (string, error)
	GetDetection(id string) (*models.Detection, error)
	ListDetections(limit int, piratedOnly bool) ([]models.Detection, error)
	MarkReported(id string) error
	DeleteDetection(id string) error
	CountDetections() (int64, error)
	Close() error
}

type Logger interface {
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
	Debugf(format string, args ...any)
}
