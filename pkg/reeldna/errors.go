package reeldna

import (
	"errors"

	"github.com/himanishpuri/ReelDNA/internal/storage"
)

// Input validation failures. These are the only errors that stop a run.
var (
	ErrDurationUnavailable = errors.New("video duration unavailable")
	ErrNoReferenceSamples  = errors.New("no reference samples")
	ErrNoRecordedSamples   = errors.New("no recorded samples")
)

// ErrDetectionNotFound is returned by history lookups for unknown ids.
var ErrDetectionNotFound = storage.ErrDetectionNotFound
