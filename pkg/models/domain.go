package models

import (
	"errors"
	"fmt"
	"sort"
	"time"
)

var (
	ErrDuplicateIndex     = errors.New("duplicate sample index")
	ErrUnsortedTimestamps = errors.New("sample timestamps are not ascending")
	ErrNegativeTimestamp  = errors.New("negative timestamp")
)

// Sample is one comparison point: a still frame and an audio clip taken at Timestamp.
// Samples are immutable once created and are joined across videos by Index.
type Sample struct {
	Index      int     `json:"index"`
	Timestamp  float64 `json:"timestamp"`  // Seconds on the owning video's timeline
	Screenshot string  `json:"screenshot"` // Path to the extracted frame
	Audio      string  `json:"audio"`      // Path to the extracted mono WAV clip
}

// Anchor is a short reference audio clip used only for offset estimation.
type Anchor struct {
	Timestamp float64 `json:"timestamp"`
	Audio     string  `json:"path"`
}

// SessionMetadata is the persisted hand-off between the reference and recorded stages.
type SessionMetadata struct {
	ID                string    `json:"session_id"`
	ReferenceVideo    string    `json:"original_video"`
	ReferenceDuration float64   `json:"duration"`
	AudioDuration     float64   `json:"audio_duration"`
	Timestamps        []float64 `json:"timestamps"`
	Samples           []Sample  `json:"samples"`
	Anchors           []Anchor  `json:"anchors"`
	CreatedAt         time.Time `json:"created_at"`

	RecordedVideo    string   `json:"recorded_video,omitempty"`
	RecordedDuration float64  `json:"recorded_duration,omitempty"`
	Offset           float64  `json:"offset,omitempty"`
	RecordedSamples  []Sample `json:"recorded_samples,omitempty"`
}

// NewSampleSet copies samples into a validated set: unique indices, non-negative
// ascending timestamps.
func NewSampleSet(samples ...Sample) ([]Sample, error) {
	out := make([]Sample, len(samples))
	copy(out, samples)
	if err := ValidateSamples(out); err != nil {
		return nil, err
	}
	return out, nil
}

func ValidateSamples(samples []Sample) error {
	seen := make(map[int]struct{}, len(samples))
	for i, s := range samples {
		if _, dup := seen[s.Index]; dup {
			return fmt.Errorf("%w: %d", ErrDuplicateIndex, s.Index)
		}
		seen[s.Index] = struct{}{}
		if s.Timestamp < 0 {
			return fmt.Errorf("%w: sample %d at %.2fs", ErrNegativeTimestamp, s.Index, s.Timestamp)
		}
		if i > 0 && s.Timestamp < samples[i-1].Timestamp {
			return fmt.Errorf("%w: sample %d (%.2fs) after %.2fs", ErrUnsortedTimestamps, s.Index, s.Timestamp, samples[i-1].Timestamp)
		}
	}
	return nil
}

func validateAnchors(anchors []Anchor) error {
	for i, a := range anchors {
		if a.Timestamp < 0 {
			return fmt.Errorf("%w: anchor at %.2fs", ErrNegativeTimestamp, a.Timestamp)
		}
		if i > 0 && a.Timestamp < anchors[i-1].Timestamp {
			return fmt.Errorf("%w: anchor %.2fs after %.2fs", ErrUnsortedTimestamps, a.Timestamp, anchors[i-1].Timestamp)
		}
	}
	return nil
}

// NewSessionMetadata builds the metadata produced by the reference stage.
func NewSessionMetadata(id, referenceVideo string, duration, audioDuration float64, timestamps []float64, samples []Sample, anchors []Anchor) (*SessionMetadata, error) {
	set, err := NewSampleSet(samples...)
	if err != nil {
		return nil, err
	}
	anc := make([]Anchor, len(anchors))
	copy(anc, anchors)
	if err := validateAnchors(anc); err != nil {
		return nil, err
	}
	ts := make([]float64, len(timestamps))
	copy(ts, timestamps)
	if !sort.Float64sAreSorted(ts) {
		return nil, fmt.Errorf("%w: planned timestamps", ErrUnsortedTimestamps)
	}
	return &SessionMetadata{
		ID:                id,
		ReferenceVideo:    referenceVideo,
		ReferenceDuration: duration,
		AudioDuration:     audioDuration,
		Timestamps:        ts,
		Samples:           set,
		Anchors:           anc,
		CreatedAt:         time.Now().UTC(),
	}, nil
}

// Validate re-checks the invariants after decoding from disk.
func (m *SessionMetadata) Validate() error {
	if m.ReferenceVideo == "" {
		return errors.New("metadata has no reference video")
	}
	if err := ValidateSamples(m.Samples); err != nil {
		return fmt.Errorf("reference samples: %w", err)
	}
	if err := validateAnchors(m.Anchors); err != nil {
		return err
	}
	if err := ValidateSamples(m.RecordedSamples); err != nil {
		return fmt.Errorf("recorded samples: %w", err)
	}
	return nil
}

// WithRecorded returns a copy of m carrying the recorded-side results.
func (m *SessionMetadata) WithRecorded(video string, duration, offset float64, samples []Sample) (*SessionMetadata, error) {
	set, err := NewSampleSet(samples...)
	if err != nil {
		return nil, err
	}
	cp := *m
	cp.RecordedVideo = video
	cp.RecordedDuration = duration
	cp.Offset = offset
	cp.RecordedSamples = set
	return &cp, nil
}

// SampleByIndex returns the sample carrying index, if any.
func SampleByIndex(samples []Sample, index int) (Sample, bool) {
	for _, s := range samples {
		if s.Index == index {
			return s, true
		}
	}
	return Sample{}, false
}
